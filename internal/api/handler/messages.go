package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jacopone/whatsapp-mcp/internal/api/models"
	"github.com/jacopone/whatsapp-mcp/internal/api/response"
	"github.com/jacopone/whatsapp-mcp/internal/backend"
	"github.com/jacopone/whatsapp-mcp/internal/backend/goclient"
	"github.com/jacopone/whatsapp-mcp/internal/routing"
)

// CallRouter dispatches a routed backend call and reports which backend
// served it.
type CallRouter interface {
	RouteWithFallback(ctx context.Context, call routing.Call) (any, backend.Backend, error)
}

// MessageSender sends a text message via the go bridge.
type MessageSender interface {
	SendMessage(ctx context.Context, recipient, message string) (goclient.SendResponse, error)
}

// MessagesHandler handles message endpoints.
type MessagesHandler struct {
	router CallRouter
	sender MessageSender
}

// NewMessagesHandler creates a new MessagesHandler.
func NewMessagesHandler(router CallRouter, sender MessageSender) *MessagesHandler {
	return &MessagesHandler{router: router, sender: sender}
}

// Send handles POST /v1/messages/send - routed send with fallback.
func (h *MessagesHandler) Send(w http.ResponseWriter, r *http.Request) {
	var input models.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	var fieldErrors []models.FieldError
	if input.Recipient == "" {
		fieldErrors = append(fieldErrors, models.FieldError{Field: "recipient", Message: "recipient is required"})
	}
	if input.Message == "" {
		fieldErrors = append(fieldErrors, models.FieldError{Field: "message", Message: "message is required"})
	}
	if len(fieldErrors) > 0 {
		response.BadRequest(w, r, "invalid send request", fieldErrors)
		return
	}

	raw, served, err := h.router.RouteWithFallback(r.Context(), routing.Call{
		Operation: routing.OpSendMessage,
		Go: func(ctx context.Context) (any, error) {
			return h.sender.SendMessage(ctx, input.Recipient, input.Message)
		},
	})
	if err != nil {
		if errors.Is(err, routing.ErrNoBackendAvailable) {
			response.ServiceUnavailable(w, r, err.Error())
			return
		}
		response.BadGateway(w, r, err.Error())
		return
	}

	result, _ := raw.(goclient.SendResponse)
	response.JSON(w, r, http.StatusOK, models.SendMessageResponse{
		Success: result.Success,
		Message: result.Message,
		Backend: string(served),
	})
}
