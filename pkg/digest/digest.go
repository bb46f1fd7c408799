// Package digest computes SHA-256 content digests of staged backup
// artifacts.
//
// Hashing streams the file through a bounded read buffer so memory
// stays flat regardless of artifact size, and checks for context
// cancellation between reads so a scan pass can be aborted mid-file.
//
// The optional BadgerDB-backed Cache memoizes results keyed by path so
// unchanged artifacts are not re-hashed on every pass. The cache is an
// optimization only: any cache failure degrades to plain hashing.
package digest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

// DefaultBufferSize is the read buffer size used while streaming file
// contents into the hash when the caller does not pick one. 64 KiB
// keeps memory bounded for multi-gigabyte dumps.
const DefaultBufferSize = 64 * 1024

// ErrNotFound is returned when the file to hash does not exist.
// Callers use it to tell a missing artifact apart from an I/O failure.
var ErrNotFound = errors.New("file not found")

// Hasher computes the SHA-256 digest and size of a file.
//
// Implementations return the lowercase hex digest, the file size in
// bytes, and an error that matches ErrNotFound (via errors.Is) when the
// file does not exist.
type Hasher interface {
	Sum(ctx context.Context, path string) (hash string, size int64, err error)
}

// Sum streams the file at path through SHA-256 and returns the
// lowercase hex digest and the number of bytes hashed.
//
// The file is read in fixed-size chunks; ctx is checked between chunks
// so cancellation takes effect without waiting for the whole file.
//
// Returns an error matching ErrNotFound when the file does not exist,
// and a wrapped I/O error for any other failure.
func Sum(ctx context.Context, path string) (string, int64, error) {
	return sum(ctx, path, DefaultBufferSize)
}

// sum is Sum with an explicit read buffer size. A non-positive bufSize
// falls back to DefaultBufferSize.
func sum(ctx context.Context, path string, bufSize int) (string, int64, error) {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", 0, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return "", 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, bufSize)
	var size int64

	for {
		if err := ctx.Err(); err != nil {
			return "", 0, err
		}

		n, err := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
			size += int64(n)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", 0, fmt.Errorf("failed to read %s: %w", path, err)
		}
	}

	return hex.EncodeToString(h.Sum(nil)), size, nil
}

// Direct is a Hasher that always streams the file. It carries no
// mutable state and is safe for concurrent use.
type Direct struct {
	// BufferSize is the read buffer size. Zero means DefaultBufferSize.
	BufferSize int
}

// Sum implements Hasher by streaming the file with the configured
// buffer size.
func (d Direct) Sum(ctx context.Context, path string) (string, int64, error) {
	return sum(ctx, path, d.BufferSize)
}
