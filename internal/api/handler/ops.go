// Package handler provides HTTP handlers for the coordination API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/jacopone/whatsapp-mcp/internal/api/models"
	"github.com/jacopone/whatsapp-mcp/internal/api/response"
)

// HealthSummarizer provides the condensed backend health view.
type HealthSummarizer interface {
	Summary(ctx context.Context) map[string]any
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	health    HealthSummarizer
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(version, buildTime string, health HealthSummarizer) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		health:    health,
	}
}

// HealthCheck handles GET /v1/ops/health - coordinator liveness.
// Backend availability is reported separately under /v1/backends.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	liveness := models.Liveness{
		Status: "ok",
		Time:   time.Now().UTC(),
		Details: map[string]any{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, liveness)
}

// Summary handles GET /v1/ops/summary - condensed health across the
// coordinator and both bridges. Unlike liveness this probes the wire.
func (h *OpsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary := h.health.Summary(r.Context())
	summary["version"] = h.version
	response.JSON(w, r, http.StatusOK, summary)
}
