package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jacopone/whatsapp-mcp/internal/api/response"
	"github.com/jacopone/whatsapp-mcp/internal/backend"
	"github.com/jacopone/whatsapp-mcp/internal/backend/health"
)

// HealthMonitor probes the bridges for the backends and ops endpoints.
type HealthMonitor interface {
	CheckAll(ctx context.Context) health.OverallHealth
	CheckBackend(ctx context.Context, b backend.Backend) health.BackendHealth
	Summary(ctx context.Context) map[string]any
}

// BackendsHandler handles backend health endpoints.
type BackendsHandler struct {
	monitor HealthMonitor
}

// NewBackendsHandler creates a new BackendsHandler.
func NewBackendsHandler(monitor HealthMonitor) *BackendsHandler {
	return &BackendsHandler{monitor: monitor}
}

// OverallHealth handles GET /v1/backends/health - fresh probes of both
// bridges with the aggregate verdict.
func (h *BackendsHandler) OverallHealth(w http.ResponseWriter, r *http.Request) {
	overall := h.monitor.CheckAll(r.Context())
	response.JSON(w, r, http.StatusOK, overall)
}

// BackendHealth handles GET /v1/backends/{backend}/health - one fresh
// probe of a single bridge.
func (h *BackendsHandler) BackendHealth(w http.ResponseWriter, r *http.Request) {
	b, err := backend.Parse(chi.URLParam(r, "backend"))
	if err != nil {
		response.NotFound(w, r, err.Error())
		return
	}

	result := h.monitor.CheckBackend(r.Context(), b)
	response.JSON(w, r, http.StatusOK, result)
}
