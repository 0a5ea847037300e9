// Package memory provides the default in-process listing cache.
package memory

import (
	"context"
	"path"
	"sync"
	"time"

	"github.com/openpai/paifs/pkg/cache"
	"github.com/openpai/paifs/pkg/vfs"
)

// ListingCache is a mutex-guarded map from (authority, path) to cached
// listings. It never expires entries by time; removal happens only through
// Invalidate.
type ListingCache struct {
	mu      sync.RWMutex
	entries map[string]cache.Entry
}

// New creates an empty in-memory listing cache.
func New() *ListingCache {
	return &ListingCache{entries: make(map[string]cache.Entry)}
}

// key joins authority and path with a separator that cannot appear in either:
// authorities come from configuration (no NUL) and paths are normalized POSIX
// strings. The path is stored raw, never URL-encoded.
func key(authority, p string) string {
	return authority + "\x00" + p
}

// Get implements cache.ListingCache. A miss returns (nil, nil).
func (c *ListingCache) Get(_ context.Context, authority, p string) (*cache.Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key(authority, p)]
	if !ok {
		return nil, nil
	}

	// Copy the slice header's backing array so callers cannot mutate the
	// cached listing in place.
	copied := entry
	copied.Entries = append([]vfs.DirectoryEntry(nil), entry.Entries...)
	return &copied, nil
}

// Put implements cache.ListingCache.
func (c *ListingCache) Put(_ context.Context, authority, p string, entries []vfs.DirectoryEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key(authority, p)] = cache.Entry{
		Entries:   append([]vfs.DirectoryEntry(nil), entries...),
		FetchedAt: time.Now(),
	}
	return nil
}

// Invalidate implements cache.ListingCache, dropping the path and its parent.
func (c *ListingCache) Invalidate(_ context.Context, authority, p string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key(authority, p))
	delete(c.entries, key(authority, path.Dir(p)))
	return nil
}

// Len reports the number of cached listings. Used by tests and debug output.
func (c *ListingCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
