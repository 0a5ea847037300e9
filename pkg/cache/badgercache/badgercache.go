// Package badgercache provides a persistent listing cache backed by BadgerDB,
// so interactive sessions keep warm directory listings across process
// restarts. Semantics are identical to the in-memory cache: entries are
// removed only by invalidation, never by time.
package badgercache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/openpai/paifs/pkg/cache"
	"github.com/openpai/paifs/pkg/vfs"
)

// Database Key Namespace
// ======================
//
// Badger is a key-value store, so listing entries use a prefixed key to keep
// the namespace open for future data types:
//
// Data Type          Prefix   Key Format                    Value Type
// =====================================================================
// Directory Listing  "l:"     l:<authority>\x00<path>       storedEntry (JSON)
//
// The path component is the normalized POSIX path, never URL-encoded, so the
// on-disk keys match the in-memory cache keys one to one. The NUL separator
// cannot appear in an authority (it comes from configuration) or a normalized
// path, so keys are unambiguous.

// ListingCache is a cache.ListingCache persisted in a BadgerDB directory.
type ListingCache struct {
	db *badger.DB
}

// storedEntry is the serialized form of a cache entry.
type storedEntry struct {
	Entries   []storedDirEntry `json:"entries"`
	FetchedAt time.Time        `json:"fetched_at"`
}

type storedDirEntry struct {
	Name         string    `json:"name"`
	Dir          bool      `json:"dir"`
	Size         uint64    `json:"size"`
	ModifiedTime time.Time `json:"modified_time"`
}

// Open opens (creating if necessary) a persistent listing cache at dir.
// Callers own the returned cache and must Close it.
func Open(dir string) (*ListingCache, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open listing cache at %q: %w", dir, err)
	}
	return &ListingCache{db: db}, nil
}

// Close releases the underlying database.
func (c *ListingCache) Close() error {
	return c.db.Close()
}

func listingKey(authority, p string) []byte {
	return []byte("l:" + authority + "\x00" + p)
}

// Get implements cache.ListingCache. A miss returns (nil, nil).
func (c *ListingCache) Get(ctx context.Context, authority, p string) (*cache.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var stored storedEntry
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(listingKey(authority, p))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &stored)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached listing for %s:%s: %w", authority, p, err)
	}

	entries := make([]vfs.DirectoryEntry, 0, len(stored.Entries))
	for _, e := range stored.Entries {
		kind := vfs.KindFile
		if e.Dir {
			kind = vfs.KindDirectory
		}
		entries = append(entries, vfs.DirectoryEntry{
			Name:         e.Name,
			Kind:         kind,
			Size:         e.Size,
			ModifiedTime: e.ModifiedTime,
		})
	}
	return &cache.Entry{Entries: entries, FetchedAt: stored.FetchedAt}, nil
}

// Put implements cache.ListingCache.
func (c *ListingCache) Put(ctx context.Context, authority, p string, entries []vfs.DirectoryEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	stored := storedEntry{
		Entries:   make([]storedDirEntry, 0, len(entries)),
		FetchedAt: time.Now(),
	}
	for _, e := range entries {
		stored.Entries = append(stored.Entries, storedDirEntry{
			Name:         e.Name,
			Dir:          e.Kind == vfs.KindDirectory,
			Size:         e.Size,
			ModifiedTime: e.ModifiedTime,
		})
	}

	val, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to encode listing for %s:%s: %w", authority, p, err)
	}

	err = c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(listingKey(authority, p), val)
	})
	if err != nil {
		return fmt.Errorf("failed to store listing for %s:%s: %w", authority, p, err)
	}
	return nil
}

// Invalidate implements cache.ListingCache, dropping the path and its parent
// in a single transaction.
func (c *ListingCache) Invalidate(ctx context.Context, authority, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := c.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(listingKey(authority, p)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Delete(listingKey(authority, path.Dir(p))); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to invalidate listing for %s:%s: %w", authority, p, err)
	}
	return nil
}
