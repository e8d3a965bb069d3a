package handler

import (
	"context"
	"net/http"

	"github.com/jacopone/whatsapp-mcp/internal/api/response"
	"github.com/jacopone/whatsapp-mcp/internal/routing"
)

// RoutingInfoSource exposes routing introspection.
type RoutingInfoSource interface {
	RoutingInfo(ctx context.Context) routing.Info
}

// RoutingHandler handles routing introspection endpoints.
type RoutingHandler struct {
	router RoutingInfoSource
}

// NewRoutingHandler creates a new RoutingHandler.
func NewRoutingHandler(router RoutingInfoSource) *RoutingHandler {
	return &RoutingHandler{router: router}
}

// Info handles GET /v1/routing/info - current primary backend,
// availability, and the per-operation strategy table.
func (h *RoutingHandler) Info(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, h.router.RoutingInfo(r.Context()))
}
