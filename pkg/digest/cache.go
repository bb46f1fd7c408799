package digest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/backmon-io/backmon/internal/logger"
)

// cacheTTL bounds how long a digest entry survives without being
// refreshed. Stale artifacts age out instead of accumulating forever.
const cacheTTL = 30 * 24 * time.Hour

// prefixDigest namespaces digest entries inside the store: "d:<path>".
const prefixDigest = "d:"

// cacheEntry is the stored value for one staged artifact. Size and
// modification time act as the validity fingerprint: the cached hash is
// trusted only while both still match the file on disk.
type cacheEntry struct {
	Size    int64  `json:"size"`
	MtimeNS int64  `json:"mtime_ns"`
	SHA256  string `json:"sha256"`
}

// keyDigest generates the store key for a staged artifact path.
func keyDigest(path string) []byte {
	return []byte(prefixDigest + path)
}

// Cache is a Hasher backed by a BadgerDB store of previously computed
// digests.
//
// A lookup hits only when the file's current size and mtime match the
// stored fingerprint; otherwise the file is re-hashed and the entry
// refreshed. Every cache failure (open, read, decode, write) degrades
// to plain hashing so the scan result never depends on cache health.
type Cache struct {
	// BufferSize is the read buffer size used when a miss forces a
	// re-hash. Zero means DefaultBufferSize.
	BufferSize int

	db *badger.DB
}

// OpenCache opens (or creates) the digest cache at dir.
func OpenCache(dir string) (*Cache, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open digest cache at %s: %w", dir, err)
	}

	return &Cache{db: db}, nil
}

// Sum implements Hasher.
//
// The file is stat'ed first; a cached entry whose size and mtime match
// is returned without touching the file contents. On a miss the file is
// streamed through SHA-256 and the fresh result is stored with a TTL.
func (c *Cache) Sum(ctx context.Context, path string) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", 0, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return "", 0, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	size := info.Size()
	mtimeNS := info.ModTime().UnixNano()

	if entry, ok := c.lookup(path); ok && entry.Size == size && entry.MtimeNS == mtimeNS {
		logger.Debug("Digest cache hit",
			logger.Path(path),
			logger.CacheHit(true),
			logger.ServerSize(size))
		return entry.SHA256, size, nil
	}

	hash, hashedSize, err := sum(ctx, path, c.BufferSize)
	if err != nil {
		return "", 0, err
	}

	c.store(path, cacheEntry{Size: hashedSize, MtimeNS: mtimeNS, SHA256: hash})

	return hash, hashedSize, nil
}

// lookup returns the cached entry for path, or ok=false on any miss or
// cache error. Errors are logged and swallowed: the caller re-hashes.
func (c *Cache) lookup(path string) (cacheEntry, bool) {
	var entry cacheEntry

	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyDigest(path))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})
	if err != nil {
		if err != badger.ErrKeyNotFound {
			logger.Warn("Digest cache read failed, re-hashing",
				logger.Path(path),
				logger.Err(err))
		}
		return cacheEntry{}, false
	}

	return entry, true
}

// store persists a fresh digest entry. Write failures are logged and
// swallowed: the computed hash is already in hand.
func (c *Cache) store(path string, entry cacheEntry) {
	err := c.db.Update(func(txn *badger.Txn) error {
		val, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		return txn.SetEntry(badger.NewEntry(keyDigest(path), val).WithTTL(cacheTTL))
	})
	if err != nil {
		logger.Warn("Digest cache write failed",
			logger.Path(path),
			logger.Err(err))
	}
}

// Close releases the underlying store.
func (c *Cache) Close() error {
	return c.db.Close()
}
