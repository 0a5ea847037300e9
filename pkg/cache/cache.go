// Package cache defines the directory-listing cache that fronts listing
// operations on remote providers.
//
// The cache is correct-by-invalidation rather than time-based: an entry is
// created on the first successful listing of a path and removed whenever a
// mutating operation targets that path or its parent. Entries never expire on
// their own. External mutation of the remote filesystem performed outside
// this client can therefore leave the cache stale until the next invalidating
// operation touches the same path; that is a deliberate weak-consistency
// tradeoff appropriate for a low-concurrency, single-user client, not a bug.
package cache

import (
	"context"
	"time"

	"github.com/openpai/paifs/pkg/vfs"
)

// Entry is one cached directory listing.
//
// Entries are keyed by normalized path per cluster authority; no entry ever
// straddles two clusters. The cache holds a flat index, not a tree, to avoid
// dangling invalidation chains between parent and child entries.
type Entry struct {
	// Entries is the listing in the order the remote returned it.
	Entries []vfs.DirectoryEntry

	// FetchedAt records when the listing was obtained.
	FetchedAt time.Time
}

// ListingCache caches directory listings keyed by (authority, path).
//
// Contract:
//   - Get returns (nil, nil) on a miss; a non-nil entry is a hit.
//   - Put stores or replaces the listing for a path.
//   - Invalidate drops the entry for the path and, conservatively, for its
//     parent, since a delete, rename, or create changes the parent's listing
//     too. Invalidating an absent path is a no-op.
//
// Implementations must be safe for concurrent use. Callers invalidate only
// after the remote mutation is confirmed, never before.
type ListingCache interface {
	Get(ctx context.Context, authority, path string) (*Entry, error)
	Put(ctx context.Context, authority, path string, entries []vfs.DirectoryEntry) error
	Invalidate(ctx context.Context, authority, path string) error
}
