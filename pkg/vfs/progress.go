package vfs

// ============================================================================
// Transfer Progress Events
// ============================================================================

// TransferEvent reports progress of a long-running transfer (read, create,
// copy). Events are produced alongside the operation and consumed through a
// channel the caller supplies, decoupled from the transfer's control flow.
type TransferEvent struct {
	// TransferID correlates events belonging to one logical operation.
	TransferID string

	// Operation is the operation name ("read", "create", "copy").
	Operation string

	// Path is the normalized remote path the transfer targets.
	Path string

	// BytesDone is the number of payload bytes moved so far.
	BytesDone uint64

	// BytesTotal is the expected total, or 0 when unknown.
	BytesTotal uint64
}

// EmitProgress performs a non-blocking send of ev to ch. A nil channel or a
// full buffer drops the event; progress reporting is best-effort and must
// never stall a transfer.
func EmitProgress(ch chan<- TransferEvent, ev TransferEvent) {
	if ch == nil {
		return
	}
	select {
	case ch <- ev:
	default:
	}
}
