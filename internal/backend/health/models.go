package health

import (
	"time"

	"github.com/jacopone/whatsapp-mcp/internal/backend"
)

// Status classifies the outcome of a single health probe.
type Status string

const (
	// StatusOK means the backend answered and reported itself healthy.
	StatusOK Status = "ok"
	// StatusDegraded means the backend answered but reported reduced
	// capability. Degraded backends still count as available.
	StatusDegraded Status = "degraded"
	// StatusError means the backend answered with a non-200 status or a
	// body that signaled an error.
	StatusError Status = "error"
	// StatusUnreachable means the probe never got an HTTP response
	// (timeout or connection refused).
	StatusUnreachable Status = "unreachable"
)

// BackendHealth is the normalized result of one health probe. It is
// constructed fresh per probe and never mutated afterwards.
type BackendHealth struct {
	Backend           backend.Backend `json:"backend"`
	Status            Status          `json:"status"`
	WhatsAppConnected bool            `json:"whatsapp_connected"`
	DatabaseOK        bool            `json:"database_ok"`
	UptimeSeconds     int64           `json:"uptime_seconds"`
	LastCheck         time.Time       `json:"last_check"`
	ResponseTimeMS    float64         `json:"response_time_ms"`
	ErrorMessage      string          `json:"error_message,omitempty"`
	Details           map[string]any  `json:"details,omitempty"`
}

// Available reports whether the backend can serve traffic.
func (h BackendHealth) Available() bool {
	return h.Status == StatusOK || h.Status == StatusDegraded
}

// OverallHealth aggregates the most recent probe of each backend.
type OverallHealth struct {
	Status            Status            `json:"status"`
	PrimaryBackend    backend.Backend   `json:"primary_backend"`
	Go                BackendHealth     `json:"go_backend"`
	Baileys           BackendHealth     `json:"baileys_backend"`
	AvailableBackends []backend.Backend `json:"available_backends"`
	LastCheck         time.Time         `json:"last_check"`
}

// ForBackend returns the per-backend record inside the aggregate.
func (o OverallHealth) ForBackend(b backend.Backend) BackendHealth {
	if b == backend.BackendBaileys {
		return o.Baileys
	}
	return o.Go
}

// aggregate combines two per-backend records into an OverallHealth.
// Overall status is ok when both backends are available, degraded when
// exactly one is, and error when neither is. The primary backend is the
// first available one in checked order (go before baileys).
func aggregate(goHealth, baileysHealth BackendHealth) OverallHealth {
	available := make([]backend.Backend, 0, 2)
	if goHealth.Available() {
		available = append(available, backend.BackendGo)
	}
	if baileysHealth.Available() {
		available = append(available, backend.BackendBaileys)
	}

	status := StatusError
	switch len(available) {
	case 2:
		status = StatusOK
	case 1:
		status = StatusDegraded
	}

	primary := backend.BackendNone
	if len(available) > 0 {
		primary = available[0]
	}

	return OverallHealth{
		Status:            status,
		PrimaryBackend:    primary,
		Go:                goHealth,
		Baileys:           baileysHealth,
		AvailableBackends: available,
		LastCheck:         time.Now(),
	}
}
