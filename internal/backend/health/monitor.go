// Package health probes the two WhatsApp bridges and classifies their
// availability. Probes never fail: every outcome, including network
// errors, is converted into a BackendHealth value.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"syscall"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/jacopone/whatsapp-mcp/internal/backend"
)

// DefaultProbeTimeout bounds a single health probe. A backend that takes
// longer than this to answer /health is treated as unreachable.
const DefaultProbeTimeout = 5 * time.Second

// Config holds configuration for the Monitor.
type Config struct {
	// GoURL is the base URL of the Go bridge (default http://localhost:8080).
	GoURL string

	// BaileysURL is the base URL of the Baileys bridge (default http://localhost:8081).
	BaileysURL string

	// ProbeTimeout bounds each health probe (default 5s).
	ProbeTimeout time.Duration

	// Logger for probe outcomes.
	Logger zerolog.Logger
}

// Monitor probes the health endpoints of both bridges. Safe for
// concurrent use; the failure counters and last-known cache are
// diagnostic and follow last-writer-wins semantics.
type Monitor struct {
	client  *http.Client
	urls    map[backend.Backend]string
	timeout time.Duration
	logger  zerolog.Logger

	// lastKnown caches the most recent successful probe per backend,
	// for introspection only. Probes always hit the wire.
	lastKnown *gocache.Cache

	goFailures      atomic.Int64
	baileysFailures atomic.Int64
}

// NewMonitor creates a Monitor with defaults filled in.
func NewMonitor(cfg Config) *Monitor {
	goURL := cfg.GoURL
	if goURL == "" {
		goURL = "http://localhost:8080"
	}
	baileysURL := cfg.BaileysURL
	if baileysURL == "" {
		baileysURL = "http://localhost:8081"
	}
	timeout := cfg.ProbeTimeout
	if timeout == 0 {
		timeout = DefaultProbeTimeout
	}

	return &Monitor{
		client:  &http.Client{},
		timeout: timeout,
		logger:  cfg.Logger,
		urls: map[backend.Backend]string{
			backend.BackendGo:      goURL,
			backend.BackendBaileys: baileysURL,
		},
		lastKnown: gocache.New(gocache.NoExpiration, 0),
	}
}

// healthPayload covers both bridges' health response shapes. The Go
// bridge reports whatsapp_connected/uptime_seconds, the Baileys bridge
// reports connected/uptime.
type healthPayload struct {
	Status            string         `json:"status"`
	WhatsAppConnected *bool          `json:"whatsapp_connected"`
	Connected         *bool          `json:"connected"`
	DatabaseOK        *bool          `json:"database_ok"`
	UptimeSeconds     *float64       `json:"uptime_seconds"`
	Uptime            *float64       `json:"uptime"`
	Details           map[string]any `json:"details"`
}

// normalize folds the two field-name variants into one record.
func (p healthPayload) normalize(b backend.Backend, responseTime float64) BackendHealth {
	status := StatusOK
	if p.Status != "" {
		status = Status(p.Status)
	}

	connected := false
	switch {
	case p.WhatsAppConnected != nil:
		connected = *p.WhatsAppConnected
	case p.Connected != nil:
		connected = *p.Connected
	}

	databaseOK := true
	if p.DatabaseOK != nil {
		databaseOK = *p.DatabaseOK
	}

	var uptime int64
	switch {
	case p.UptimeSeconds != nil:
		uptime = int64(*p.UptimeSeconds)
	case p.Uptime != nil:
		uptime = int64(*p.Uptime)
	}

	return BackendHealth{
		Backend:           b,
		Status:            status,
		WhatsAppConnected: connected,
		DatabaseOK:        databaseOK,
		UptimeSeconds:     uptime,
		LastCheck:         time.Now(),
		ResponseTimeMS:    responseTime,
		Details:           p.Details,
	}
}

// CheckBackend issues one health probe against the given backend.
// It never returns an error: all failure modes are captured in the
// returned BackendHealth.
func (m *Monitor) CheckBackend(ctx context.Context, b backend.Backend) BackendHealth {
	start := time.Now()

	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, m.urls[b]+"/health", http.NoBody)
	if err != nil {
		m.recordFailure(b)
		return m.failedHealth(b, StatusError, err.Error(), 0)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		m.recordFailure(b)
		status, msg, elapsed := classifyProbeError(err, time.Since(start))
		m.logger.Warn().
			Str("backend", string(b)).
			Str("reason", msg).
			Msg("health probe failed")
		return m.failedHealth(b, status, msg, elapsed)
	}
	defer resp.Body.Close()

	responseTime := float64(time.Since(start)) / float64(time.Millisecond)

	if resp.StatusCode != http.StatusOK {
		m.recordFailure(b)
		m.logger.Warn().
			Str("backend", string(b)).
			Int("status_code", resp.StatusCode).
			Msg("health probe returned non-200")
		return m.failedHealth(b, StatusError, fmt.Sprintf("HTTP %d", resp.StatusCode), responseTime)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		m.recordFailure(b)
		return m.failedHealth(b, StatusError, err.Error(), responseTime)
	}

	var payload healthPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		m.recordFailure(b)
		return m.failedHealth(b, StatusError, err.Error(), responseTime)
	}

	h := payload.normalize(b, responseTime)
	m.resetFailures(b)
	m.lastKnown.Set(string(b), h, gocache.NoExpiration)

	m.logger.Debug().
		Str("backend", string(b)).
		Str("status", string(h.Status)).
		Float64("response_time_ms", h.ResponseTimeMS).
		Msg("health probe completed")

	return h
}

// classifyProbeError maps transport errors to a status, message, and
// response time. Connection refusals report a zero response time since
// no round trip happened.
func classifyProbeError(err error, elapsed time.Duration) (Status, string, float64) {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return StatusUnreachable, "Health check timeout", float64(elapsed) / float64(time.Millisecond)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return StatusUnreachable, "Health check timeout", float64(elapsed) / float64(time.Millisecond)
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return StatusUnreachable, "Connection refused", 0
	}
	return StatusError, err.Error(), 0
}

func (m *Monitor) failedHealth(b backend.Backend, status Status, msg string, responseTime float64) BackendHealth {
	return BackendHealth{
		Backend:        b,
		Status:         status,
		LastCheck:      time.Now(),
		ResponseTimeMS: responseTime,
		ErrorMessage:   msg,
	}
}

func (m *Monitor) failureCounter(b backend.Backend) *atomic.Int64 {
	if b == backend.BackendBaileys {
		return &m.baileysFailures
	}
	return &m.goFailures
}

func (m *Monitor) recordFailure(b backend.Backend) {
	m.failureCounter(b).Add(1)
}

func (m *Monitor) resetFailures(b backend.Backend) {
	m.failureCounter(b).Store(0)
}

// FailureCount returns the number of consecutive failed probes for the
// backend since its last success. Diagnostic only.
func (m *Monitor) FailureCount(b backend.Backend) int64 {
	return m.failureCounter(b).Load()
}

// LastKnown returns the most recent successful probe for the backend.
func (m *Monitor) LastKnown(b backend.Backend) (BackendHealth, bool) {
	v, ok := m.lastKnown.Get(string(b))
	if !ok {
		return BackendHealth{}, false
	}
	return v.(BackendHealth), true
}

// CheckAll probes both backends (go first, then baileys) and aggregates
// the results. Each call performs fresh probes.
func (m *Monitor) CheckAll(ctx context.Context) OverallHealth {
	goHealth := m.CheckBackend(ctx, backend.BackendGo)
	baileysHealth := m.CheckBackend(ctx, backend.BackendBaileys)
	return aggregate(goHealth, baileysHealth)
}

// IsAvailable reports whether a fresh probe of the backend finds it able
// to serve traffic. Callers probing both backends should prefer a single
// CheckAll and read availability from the aggregate.
func (m *Monitor) IsAvailable(ctx context.Context, b backend.Backend) bool {
	if !b.Valid() {
		return false
	}
	return m.CheckBackend(ctx, b).Available()
}

// PreferredBackend returns the primary backend from a fresh aggregate
// probe, or false when neither backend is available.
func (m *Monitor) PreferredBackend(ctx context.Context) (backend.Backend, bool) {
	overall := m.CheckAll(ctx)
	if overall.PrimaryBackend == backend.BackendNone {
		return backend.BackendNone, false
	}
	return overall.PrimaryBackend, true
}

// WaitForBackend polls until the backend becomes available or the
// timeout elapses. Returns true on the first available probe.
func (m *Monitor) WaitForBackend(ctx context.Context, b backend.Backend, timeout, pollInterval time.Duration) bool {
	deadline := time.Now().Add(timeout)

	m.logger.Info().
		Str("backend", string(b)).
		Dur("timeout", timeout).
		Msg("waiting for backend to become available")

	for time.Now().Before(deadline) {
		if m.IsAvailable(ctx, b) {
			m.logger.Info().Str("backend", string(b)).Msg("backend is now available")
			return true
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(pollInterval):
		}
	}

	m.logger.Warn().Str("backend", string(b)).Msg("timed out waiting for backend")
	return false
}

// Summary returns a condensed health view for the ops endpoint.
func (m *Monitor) Summary(ctx context.Context) map[string]any {
	overall := m.CheckAll(ctx)

	backendSummary := func(h BackendHealth) map[string]any {
		return map[string]any{
			"status":             h.Status,
			"whatsapp_connected": h.WhatsAppConnected,
			"response_time_ms":   h.ResponseTimeMS,
			"error":              h.ErrorMessage,
		}
	}

	return map[string]any{
		"status":             overall.Status,
		"primary_backend":    overall.PrimaryBackend,
		"available_backends": overall.AvailableBackends,
		"backends": map[string]any{
			string(backend.BackendGo):      backendSummary(overall.Go),
			string(backend.BackendBaileys): backendSummary(overall.Baileys),
		},
		"last_check": overall.LastCheck.Format(time.RFC3339),
	}
}
