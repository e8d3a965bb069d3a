package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/jacopone/whatsapp-mcp/internal/api/models"
	"github.com/jacopone/whatsapp-mcp/internal/api/response"
	"github.com/jacopone/whatsapp-mcp/internal/workflow"
)

// WorkflowRunner runs the hybrid community-read workflow.
type WorkflowRunner interface {
	MarkCommunityReadWithHistory(ctx context.Context, communityJID string) workflow.Report
}

// WorkflowsHandler handles workflow endpoints.
type WorkflowsHandler struct {
	runner WorkflowRunner
}

// NewWorkflowsHandler creates a new WorkflowsHandler.
func NewWorkflowsHandler(runner WorkflowRunner) *WorkflowsHandler {
	return &WorkflowsHandler{runner: runner}
}

// CommunityRead handles POST /v1/workflows/community-read - full
// history sync followed by marking the community as read. The report is
// returned with 200 regardless of workflow outcome; per-step results
// carry the detail.
func (h *WorkflowsHandler) CommunityRead(w http.ResponseWriter, r *http.Request) {
	var input models.WorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}
	if input.CommunityJID == "" {
		response.BadRequest(w, r, "community_jid is required", []models.FieldError{
			{Field: "community_jid", Message: "community_jid is required"},
		})
		return
	}

	report := h.runner.MarkCommunityReadWithHistory(r.Context(), input.CommunityJID)
	response.JSON(w, r, http.StatusOK, report)
}
