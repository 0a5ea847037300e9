package vfs

import "errors"

// ============================================================================
// Error Taxonomy
// ============================================================================

// These sentinels type every failure a Provider can surface. Implementations
// wrap them with context so callers can both match with errors.Is and read a
// useful message:
//
//	if errors.Is(err, vfs.ErrNotFound) {
//	    // prompt, skip, or abort at the caller's discretion
//	}
//
// Propagation policy: no adapter failure is silently swallowed, and no raw
// transport error escapes unwrapped. Whether to prompt, log, or abort a
// higher-level workflow is the caller's concern.
var (
	// ErrUnknownCluster indicates the operation referenced a cluster
	// authority with no registered credential.
	ErrUnknownCluster = errors.New("unknown cluster")

	// ErrNotFound indicates the remote path does not exist. Maps from the
	// remote FileNotFoundException or an HTTP 404.
	ErrNotFound = errors.New("path not found")

	// ErrNotEmpty indicates a non-recursive delete targeted a non-empty
	// directory. Mirrors the remote's own error signal.
	ErrNotEmpty = errors.New("directory not empty")

	// ErrDestinationExists indicates a rename or exclusive create targeted
	// a path that already exists.
	ErrDestinationExists = errors.New("destination already exists")

	// ErrAccessDenied indicates a remote permission or authentication
	// failure. Maps from HTTP 401/403 or AccessControlException.
	ErrAccessDenied = errors.New("access denied")

	// ErrTransport indicates a network failure or timeout during any phase
	// of a remote exchange.
	ErrTransport = errors.New("transport failure")

	// ErrProtocol indicates an unexpected response shape: a missing
	// Location header on a negotiate response, or a non-JSON body where
	// JSON was expected.
	ErrProtocol = errors.New("protocol violation")
)
