package models

// MetadataKeyLastSync is the key of the singleton row in the syncMetadata
// collection describing the last successful full pull.
const MetadataKeyLastSync = "lastSync"

// SyncMetadata is the last-successful-pull snapshot descriptor. It is
// written only by the sync coordinator after a pull completes.
type SyncMetadata struct {
	Key         string   `json:"key"`
	Timestamp   int64    `json:"timestamp"`
	RecordCount int      `json:"recordCount"`
	Version     string   `json:"version"`
	TableList   []string `json:"tableList,omitempty"`
}

// SyncProgress reports how far a full pull has advanced, per collection.
type SyncProgress struct {
	Total   int    `json:"total"`
	Current int    `json:"current"`
	Label   string `json:"label"`
}

// SyncState is the single process-wide source of truth about sync status.
// It is owned and mutated only by the sync coordinator and broadcast to
// subscribers on every change; any UI reads it, nothing else writes it.
type SyncState struct {
	IsSyncing bool  `json:"isSyncing"`
	IsOnline  bool  `json:"isOnline"`
	LastSync  int64 `json:"lastSync"`

	// PendingCount counts all queue entries, exhausted ones included:
	// exhausted items are retained, never silently dropped.
	PendingCount   int `json:"pendingCount"`
	ExhaustedCount int `json:"exhaustedCount"`

	LastError string        `json:"lastError,omitempty"`
	Progress  *SyncProgress `json:"progress,omitempty"`
}

// Clone returns an independent copy safe to hand to subscribers.
func (s SyncState) Clone() SyncState {
	out := s
	if s.Progress != nil {
		p := *s.Progress
		out.Progress = &p
	}
	return out
}

// SyncStats is a point-in-time queue summary for callers that do not
// subscribe to state changes.
type SyncStats struct {
	PendingCount   int   `json:"pendingCount"`
	ExhaustedCount int   `json:"exhaustedCount"`
	LastSync       int64 `json:"lastSync"`
}
