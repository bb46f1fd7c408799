// Package backupfs provides a root-scoped filesystem gateway for the
// backup deposit tree.
//
// Every operation takes a path relative to the gateway root. Paths are
// cleaned and confined before any filesystem call: absolute paths,
// empty paths, and paths escaping the root are refused with
// KindInvalidPath. Failures are *Error values carrying a Kind and the
// underlying cause.
package backupfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
)

// Gateway performs filesystem operations confined under a single root
// directory. It carries no mutable state and is safe for concurrent
// use.
type Gateway struct {
	root     string
	dirMode  os.FileMode
	fileMode os.FileMode
}

// Config holds configuration for a filesystem gateway.
type Config struct {
	// Root is the directory all operations are confined under.
	Root string

	// CreateRoot creates the root directory if it doesn't exist.
	// Default: true
	CreateRoot bool

	// DirMode is the permission mode for created directories.
	// Default: 0755
	DirMode os.FileMode

	// FileMode is the permission mode for created files.
	// Default: 0644
	FileMode os.FileMode
}

// DefaultConfig returns the default configuration for root.
func DefaultConfig(root string) Config {
	return Config{
		Root:       root,
		CreateRoot: true,
		DirMode:    0755,
		FileMode:   0644,
	}
}

// New creates a gateway rooted at cfg.Root.
func New(cfg Config) (*Gateway, error) {
	if cfg.Root == "" {
		return nil, errors.New("gateway root is required")
	}

	if cfg.DirMode == 0 {
		cfg.DirMode = 0755
	}
	if cfg.FileMode == 0 {
		cfg.FileMode = 0644
	}

	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root %s: %w", cfg.Root, err)
	}

	if cfg.CreateRoot {
		if err := os.MkdirAll(root, cfg.DirMode); err != nil {
			return nil, fmt.Errorf("failed to create root %s: %w", root, err)
		}
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("gateway root %s is not a directory", root)
	}

	return &Gateway{
		root:     root,
		dirMode:  cfg.DirMode,
		fileMode: cfg.FileMode,
	}, nil
}

// NewWithRoot creates a gateway with the default configuration.
func NewWithRoot(root string) (*Gateway, error) {
	return New(DefaultConfig(root))
}

// Root returns the absolute root directory of the gateway.
func (g *Gateway) Root() string {
	return g.root
}

// Abs resolves rel against the root and returns the absolute path,
// refusing paths that would leave the root. "." resolves to the root
// itself.
func (g *Gateway) Abs(rel string) (string, error) {
	return g.resolve("abs", rel)
}

// resolve confines rel under the root. Confinement is lexical and
// happens before any syscall, so crafted names in reports cannot reach
// outside the deposit tree.
func (g *Gateway) resolve(op, rel string) (string, error) {
	if rel == "." {
		return g.root, nil
	}
	if !filepath.IsLocal(rel) {
		return "", &Error{
			Op:   op,
			Path: rel,
			Kind: KindInvalidPath,
			Err:  errors.New("path escapes the gateway root"),
		}
	}
	return filepath.Join(g.root, rel), nil
}

// EnsureDir creates the directory rel (and any missing parents) under
// the root. Existing directories are left untouched.
func (g *Gateway) EnsureDir(ctx context.Context, rel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := g.resolve("ensuredir", rel)
	if err != nil {
		return err
	}

	return wrap("ensuredir", rel, os.MkdirAll(path, g.dirMode))
}

// Stat returns file information for rel.
func (g *Gateway) Stat(ctx context.Context, rel string) (fs.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := g.resolve("stat", rel)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, wrap("stat", rel, err)
	}

	return info, nil
}

// Exists reports whether rel exists under the root.
func (g *Gateway) Exists(ctx context.Context, rel string) (bool, error) {
	_, err := g.Stat(ctx, rel)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ListDir returns the entries of the directory rel, sorted by name.
func (g *Gateway) ListDir(ctx context.Context, rel string) ([]fs.DirEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := g.resolve("listdir", rel)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, wrap("listdir", rel, err)
	}

	return entries, nil
}

// Delete removes the file rel. A missing file is not an error: the
// outcome the caller wants (file gone) already holds.
func (g *Gateway) Delete(ctx context.Context, rel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := g.resolve("delete", rel)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return wrap("delete", rel, err)
	}

	return nil
}

// Move renames src to dst, overwriting dst if present. When the rename
// crosses a filesystem boundary it falls back to copy+fsync+remove so
// the move still completes.
func (g *Gateway) Move(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	srcPath, err := g.resolve("move", src)
	if err != nil {
		return err
	}
	dstPath, err := g.resolve("move", dst)
	if err != nil {
		return err
	}

	err = os.Rename(srcPath, dstPath)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return wrap("move", src, err)
	}

	// Rename crossed a mount point. Copy to the destination first so
	// the source survives a partial failure.
	if err := copyFile(srcPath, dstPath, g.fileMode); err != nil {
		return wrap("move", src, err)
	}
	if err := os.Remove(srcPath); err != nil {
		return wrap("move", src, err)
	}

	return nil
}

// Copy copies the file at src, an absolute path that may lie outside
// this gateway's root (typically Abs on another gateway), to dst under
// the root. An existing destination is overwritten and the source
// modification time is preserved.
func (g *Gateway) Copy(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if !filepath.IsAbs(src) {
		return &Error{
			Op:   "copy",
			Path: src,
			Kind: KindInvalidPath,
			Err:  errors.New("source must be an absolute path"),
		}
	}

	dstPath, err := g.resolve("copy", dst)
	if err != nil {
		return err
	}

	if err := copyFile(src, dstPath, g.fileMode); err != nil {
		return wrap("copy", dst, err)
	}

	return nil
}

// copyFile copies src to dst through a temporary file in dst's
// directory, fsyncs, then renames into place. The source mtime is
// carried over so promoted artifacts keep their original timestamp.
func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	tmp := dst + ".tmp"
	out, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	if err := os.Chtimes(tmp, info.ModTime(), info.ModTime()); err != nil {
		os.Remove(tmp)
		return err
	}

	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return err
	}

	return nil
}
