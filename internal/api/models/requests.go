package models

import "time"

// SendMessageRequest is the body of POST /v1/messages/send.
type SendMessageRequest struct {
	// Recipient is a phone number or a full JID.
	Recipient string `json:"recipient"`
	Message   string `json:"message"`
}

// SendMessageResponse reports the outcome of a routed send.
type SendMessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Backend string `json:"backend"`
}

// WorkflowRequest is the body of POST /v1/workflows/community-read.
type WorkflowRequest struct {
	CommunityJID string `json:"community_jid"`
}

// Liveness is the body of GET /v1/ops/health.
type Liveness struct {
	Status  string         `json:"status"`
	Time    time.Time      `json:"time"`
	Details map[string]any `json:"details,omitempty"`
}
