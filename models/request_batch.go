package models

// BatchRequest is the push-cycle envelope sent to POST /sync/batch.
// Operations enumerate the pending queue entries in enqueue order.
type BatchRequest struct {
	Operations []BatchOperation `json:"operations"`
}

// BatchOperation is one queued mutation on the wire.
type BatchOperation struct {
	// ID is the queue entry id; the server echoes it back in the
	// matching BatchResult so the client can ack the right entry.
	ID string `json:"id"`

	// Type is the mutation kind on the wire: "create", "update" or
	// "delete" (the string form of Action).
	Type string `json:"type"`

	// Table is the target collection name.
	Table string `json:"table"`

	Data Record `json:"data"`

	// Timestamp is the client-side enqueue time in Unix milliseconds,
	// used by the server for conflict ordering.
	Timestamp int64 `json:"timestamp"`
}
