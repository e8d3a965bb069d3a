package workflow

import "time"

// Step is one named stage of a workflow run.
type Step struct {
	Name      string        `json:"name"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	OK        bool          `json:"ok"`
	Detail    string        `json:"detail,omitempty"`
	Err       string        `json:"error,omitempty"`
}

// Report aggregates all steps of one workflow run. Ephemeral, kept only
// for the response and diagnostics.
type Report struct {
	ID           string        `json:"id"`
	CommunityJID string        `json:"community_jid"`
	Steps        []Step        `json:"steps"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration"`
	Success      bool          `json:"success"`
	Message      string        `json:"message"`
}
