package dbsync

// SyncResult is the outcome of one SyncMessages call for one chat.
// Constructed once, returned to the caller, never mutated afterward.
type SyncResult struct {
	Success              bool           `json:"success"`
	MessagesSynced       int            `json:"messages_synced"`
	MessagesDeduplicated int            `json:"messages_deduplicated"`
	ElapsedSeconds       float64        `json:"elapsed_seconds"`
	ErrorMessage         string         `json:"error_message,omitempty"`
	Details              map[string]any `json:"details,omitempty"`
}
