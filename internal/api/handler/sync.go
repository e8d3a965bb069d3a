package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jacopone/whatsapp-mcp/internal/api/response"
	"github.com/jacopone/whatsapp-mcp/internal/checkpoint"
	"github.com/jacopone/whatsapp-mcp/internal/dbsync"
)

// Syncer moves transient messages into the durable store.
type Syncer interface {
	SyncMessages(ctx context.Context, chatJID string) dbsync.SyncResult
	SyncAllChats(ctx context.Context) (map[string]dbsync.SyncResult, error)
}

// CheckpointLister lists sync checkpoints.
type CheckpointLister interface {
	List(ctx context.Context) ([]checkpoint.Checkpoint, error)
}

// SyncHandler handles database sync endpoints.
type SyncHandler struct {
	syncer      Syncer
	checkpoints CheckpointLister
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(syncer Syncer, checkpoints CheckpointLister) *SyncHandler {
	return &SyncHandler{syncer: syncer, checkpoints: checkpoints}
}

// SyncChat handles POST /v1/sync/chats/{chatJID} - sync one chat.
func (h *SyncHandler) SyncChat(w http.ResponseWriter, r *http.Request) {
	chatJID := chi.URLParam(r, "chatJID")
	if chatJID == "" {
		response.BadRequest(w, r, "chatJID is required", nil)
		return
	}

	result := h.syncer.SyncMessages(r.Context(), chatJID)
	status := http.StatusOK
	if !result.Success {
		status = http.StatusBadGateway
	}
	response.JSON(w, r, status, result)
}

// SyncAll handles POST /v1/sync/chats - sync every chat with pending
// messages. Per-chat failures are reported in the body, not as an HTTP
// error.
func (h *SyncHandler) SyncAll(w http.ResponseWriter, r *http.Request) {
	results, err := h.syncer.SyncAllChats(r.Context())
	if err != nil {
		response.BadGateway(w, r, err.Error())
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"chats": results})
}

// ListCheckpoints handles GET /v1/sync/checkpoints - checkpoint listing
// ordered by recency.
func (h *SyncHandler) ListCheckpoints(w http.ResponseWriter, r *http.Request) {
	checkpoints, err := h.checkpoints.List(r.Context())
	if err != nil {
		response.InternalError(w, r, err.Error())
		return
	}
	if checkpoints == nil {
		checkpoints = []checkpoint.Checkpoint{}
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"checkpoints": checkpoints})
}
