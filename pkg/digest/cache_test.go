//go:build integration

package digest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	cache, err := OpenCache(filepath.Join(t.TempDir(), "digests"))
	if err != nil {
		t.Fatalf("OpenCache() failed: %v", err)
	}
	t.Cleanup(func() {
		cache.Close()
	})
	return cache
}

func TestCacheSum(t *testing.T) {
	ctx := context.Background()
	cache := openTestCache(t)
	dir := t.TempDir()

	t.Run("miss then hit", func(t *testing.T) {
		path := writeFile(t, dir, "dump.bak", "backup payload")

		first, size, err := cache.Sum(ctx, path)
		if err != nil {
			t.Fatalf("Sum() failed: %v", err)
		}
		if size != int64(len("backup payload")) {
			t.Errorf("size = %d, want %d", size, len("backup payload"))
		}

		// Unchanged file: second call must serve the stored entry and
		// agree with the first result.
		second, secondSize, err := cache.Sum(ctx, path)
		if err != nil {
			t.Fatalf("Sum() on cached entry failed: %v", err)
		}
		if second != first {
			t.Errorf("cached hash = %s, want %s", second, first)
		}
		if secondSize != size {
			t.Errorf("cached size = %d, want %d", secondSize, size)
		}
	})

	t.Run("modified file invalidates entry", func(t *testing.T) {
		path := writeFile(t, dir, "changing.bak", "version one")

		first, _, err := cache.Sum(ctx, path)
		if err != nil {
			t.Fatalf("Sum() failed: %v", err)
		}

		if err := os.WriteFile(path, []byte("version two!"), 0o644); err != nil {
			t.Fatalf("WriteFile() failed: %v", err)
		}
		// Force a distinct mtime even on coarse-grained filesystems.
		bumped := time.Now().Add(2 * time.Second)
		if err := os.Chtimes(path, bumped, bumped); err != nil {
			t.Fatalf("Chtimes() failed: %v", err)
		}

		second, size, err := cache.Sum(ctx, path)
		if err != nil {
			t.Fatalf("Sum() after modification failed: %v", err)
		}
		if second == first {
			t.Error("hash unchanged after file modification, stale entry served")
		}
		if size != int64(len("version two!")) {
			t.Errorf("size = %d, want %d", size, len("version two!"))
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, _, err := cache.Sum(ctx, filepath.Join(dir, "gone.bak"))
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Sum() error = %v, want ErrNotFound", err)
		}
	})
}

func TestCacheDegradesToHashing(t *testing.T) {
	ctx := context.Background()

	cache, err := OpenCache(filepath.Join(t.TempDir(), "digests"))
	if err != nil {
		t.Fatalf("OpenCache() failed: %v", err)
	}
	path := writeFile(t, t.TempDir(), "dump.bak", "payload")

	// A closed store must not fail the hash, only skip the cache.
	if err := cache.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	hash, size, err := cache.Sum(ctx, path)
	if err != nil {
		t.Fatalf("Sum() with closed cache failed: %v", err)
	}
	want, wantSize, err := Sum(ctx, path)
	if err != nil {
		t.Fatalf("Sum() failed: %v", err)
	}
	if hash != want || size != wantSize {
		t.Errorf("degraded Sum() = (%s, %d), want (%s, %d)", hash, size, want, wantSize)
	}
}
