package models

// Action is the kind of mutation recorded in the queue.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// ErrorClass categorizes a failed sync attempt. The class decides the retry
// policy: network failures wait for reconnection, timeouts retry on a fast
// curve, server errors retry on the standard curve, auth failures trigger a
// token refresh, validation failures are terminal.
type ErrorClass string

const (
	ErrorClassNetwork    ErrorClass = "network"
	ErrorClassTimeout    ErrorClass = "timeout"
	ErrorClassServer     ErrorClass = "server"
	ErrorClassAuth       ErrorClass = "auth"
	ErrorClassValidation ErrorClass = "validation"
	ErrorClassUnknown    ErrorClass = "unknown"
)

// QueueItem is one durable entry of the mutation queue. It is created when a
// local mutation is issued, mutated on failed sync attempts (Retries,
// LastError, ErrorClass) and removed once the server confirms the operation.
type QueueItem struct {
	// ID is the queue entry's own identity, distinct from the payload's
	// record id.
	ID string `json:"id"`

	Action     Action `json:"action"`
	Collection string `json:"collection"`
	Payload    Record `json:"payload"`

	// EnqueuedAt is the enqueue wall-clock time in Unix milliseconds.
	// Items are replayed in EnqueuedAt ascending order; Seq breaks ties
	// between items enqueued within the same millisecond.
	EnqueuedAt int64 `json:"enqueuedAt"`
	Seq        int64 `json:"seq"`

	Retries    int        `json:"retries"`
	LastError  string     `json:"lastError,omitempty"`
	ErrorClass ErrorClass `json:"errorClass,omitempty"`
}

// RecordID returns the id of the record the queued mutation targets.
func (q QueueItem) RecordID() string {
	return q.Payload.ID()
}
