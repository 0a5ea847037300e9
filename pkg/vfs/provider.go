package vfs

import (
	"context"
	"time"
)

// ============================================================================
// Provider Interface
// ============================================================================

// EntryKind distinguishes files from directories in listings.
type EntryKind int

const (
	KindFile EntryKind = iota
	KindDirectory
)

func (k EntryKind) String() string {
	switch k {
	case KindFile:
		return "File"
	case KindDirectory:
		return "Directory"
	default:
		return "Unknown"
	}
}

// DirectoryEntry describes one child of a remote directory.
//
// Entries are produced by listing operations in the order the remote service
// returned them; no client-side sort is applied.
type DirectoryEntry struct {
	// Name is the entry name relative to its parent (no path separators).
	Name string

	// Kind is File or Directory.
	Kind EntryKind

	// Size is the file size in bytes (0 for directories on most backends).
	Size uint64

	// ModifiedTime is the remote last-modification timestamp.
	ModifiedTime time.Time
}

// CreateOptions controls CreateFile behavior.
type CreateOptions struct {
	// Overwrite replaces an existing file when true. When false, creating
	// over an existing path fails with ErrDestinationExists and leaves the
	// original content untouched.
	Overwrite bool

	// Progress, when non-nil, receives best-effort transfer events. Sends
	// never block; events are dropped if the receiver lags.
	Progress chan<- TransferEvent
}

// DeleteOptions controls Delete behavior.
type DeleteOptions struct {
	// Recursive removes directories with their contents. When false,
	// deleting a non-empty directory fails with ErrNotEmpty.
	Recursive bool
}

// CopyOptions controls Copy behavior.
type CopyOptions struct {
	// Overwrite replaces an existing destination when true.
	Overwrite bool

	// Progress, when non-nil, receives best-effort transfer events.
	Progress chan<- TransferEvent
}

// Provider is the narrow file-operation contract exposed to callers (tree
// views, upload helpers). Implementations adapt a concrete remote storage
// protocol (WebHDFS, S3) to these operations.
//
// Semantics shared by all implementations:
//   - Paths in locators are normalized POSIX paths; encoding for the wire is
//     an implementation detail.
//   - Every failure is typed by the taxonomy in errors.go and matchable with
//     errors.Is; raw transport errors never surface unwrapped.
//   - No operation retries automatically. Write operations are not safely
//     idempotent at this boundary (a failed transfer after a successful
//     negotiate may leave an empty or partial remote file), so retry and
//     backoff policy belongs to the caller.
//   - No ordering or mutual exclusion is enforced across concurrent calls.
//     Callers needing read-after-write consistency on a path must not issue
//     the read before the write completes.
//
// Thread Safety:
// Implementations must be safe for concurrent use by multiple goroutines.
type Provider interface {
	// Stat returns the entry for a single path. Fails with ErrNotFound if
	// the path does not exist.
	Stat(ctx context.Context, loc Locator) (*DirectoryEntry, error)

	// ListDirectory returns the children of a directory in remote order.
	// An existing empty directory yields an empty slice, not an error.
	ListDirectory(ctx context.Context, loc Locator) ([]DirectoryEntry, error)

	// ReadFile returns the whole file content. No partial-range API is
	// exposed; offset support is reserved for internal resumed transfers.
	ReadFile(ctx context.Context, loc Locator) ([]byte, error)

	// CreateFile writes data as a new file. See CreateOptions for the
	// overwrite contract.
	CreateFile(ctx context.Context, loc Locator, data []byte, opts CreateOptions) error

	// AppendFile appends data to an existing file.
	AppendFile(ctx context.Context, loc Locator, data []byte) error

	// CreateDirectory creates a directory, including missing parents. It is
	// idempotent: creating an existing directory succeeds silently. Callers
	// relying on "newly created" signaling must check existence beforehand.
	CreateDirectory(ctx context.Context, loc Locator) error

	// Delete removes a file or directory. See DeleteOptions.
	Delete(ctx context.Context, loc Locator, opts DeleteOptions) error

	// Rename moves src to dst within the same cluster. Fails with
	// ErrDestinationExists if dst already exists; the remote protocols do
	// not overwrite on rename.
	Rename(ctx context.Context, src, dst Locator) error

	// Copy duplicates src to dst. Implemented client-side where the remote
	// has no native copy: the source is read fully into memory and written
	// to the destination. Not atomic, and bounded by available memory for
	// very large files; acceptable for this client's workload (source-code
	// trees, not big-data files).
	Copy(ctx context.Context, src, dst Locator, opts CopyOptions) error
}
