// Package backend defines the WhatsApp bridge backends the coordinator
// can route to, and the wire shapes shared by their HTTP clients.
package backend

import (
	"fmt"
)

// Backend identifies one of the two WhatsApp bridges.
type Backend string

const (
	// BackendGo is the whatsmeow-based bridge. Stable, owns the durable
	// message store, handles communities and mark-as-read.
	BackendGo Backend = "go"

	// BackendBaileys is the Baileys-based bridge. Specialized in on-demand
	// full history sync, owns the transient message store.
	BackendBaileys Backend = "baileys"

	// BackendNone is the sentinel returned when no backend is available.
	BackendNone Backend = "none"
)

// All returns the two real backends in checked order (go before baileys).
func All() []Backend {
	return []Backend{BackendGo, BackendBaileys}
}

// Parse converts a string into a Backend, rejecting unknown names.
func Parse(s string) (Backend, error) {
	switch Backend(s) {
	case BackendGo:
		return BackendGo, nil
	case BackendBaileys:
		return BackendBaileys, nil
	default:
		return "", fmt.Errorf("unknown backend %q", s)
	}
}

// Valid reports whether b is one of the two real backends.
func (b Backend) Valid() bool {
	return b == BackendGo || b == BackendBaileys
}

// Other returns the opposite backend. Only meaningful for real backends.
func (b Backend) Other() Backend {
	if b == BackendGo {
		return BackendBaileys
	}
	return BackendGo
}

// Message is the wire shape for a WhatsApp message as exchanged with the
// bridge stores. Timestamp is unix seconds.
type Message struct {
	ID         string `json:"id"`
	ChatJID    string `json:"chat_jid"`
	Sender     string `json:"sender"`
	Content    string `json:"content"`
	Timestamp  int64  `json:"timestamp"`
	IsFromMe   bool   `json:"is_from_me"`
	SyncSource string `json:"sync_source,omitempty"`
}

// Chat is a chat listing entry from a bridge store.
type Chat struct {
	JID  string `json:"jid"`
	Name string `json:"name,omitempty"`
}
