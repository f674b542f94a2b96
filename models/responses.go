package models

// Per-item statuses returned in a BatchResult.
const (
	BatchStatusSuccess = "success"
	BatchStatusFailed  = "failed"
)

// BatchResult is the server's verdict for one pushed operation.
type BatchResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// BatchResponse answers POST /sync/batch. Results must be the same length
// as the request's operations; any unmatched id is treated by the client as
// a failure that stays queued.
type BatchResponse struct {
	Success bool          `json:"success"`
	Results []BatchResult `json:"results"`
	Error   string        `json:"error,omitempty"`
}

// FullBackupResponse answers GET /sync/full-backup: the complete server
// snapshot, one record list per collection.
type FullBackupResponse struct {
	Success bool                `json:"success"`
	Data    map[string][]Record `json:"data"`
	Error   string              `json:"error,omitempty"`
}
