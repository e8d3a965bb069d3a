package models_test

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacopone/whatsapp-mcp/internal/api/models"
)

func TestProblem_Write(t *testing.T) {
	problem := models.NewBadRequest("req_abc", "invalid send request", []models.FieldError{
		{Field: "recipient", Message: "recipient is required"},
	})
	problem.Instance = "/v1/messages/send"

	w := httptest.NewRecorder()
	problem.Write(w)

	require.Equal(t, 400, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	assert.Equal(t, "req_abc", w.Header().Get("X-Request-Id"))

	var decoded models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded))
	assert.Equal(t, models.ProblemTypeValidation, decoded.Type)
	assert.Equal(t, "invalid send request", decoded.Detail)
	assert.Equal(t, "/v1/messages/send", decoded.Instance)
	require.Len(t, decoded.Errors, 1)
	assert.Equal(t, "recipient", decoded.Errors[0].Field)
}

func TestProblemConstructors(t *testing.T) {
	tests := []struct {
		name    string
		problem *models.Problem
		status  int
	}{
		{"not found", models.NewNotFound("id", "no such backend"), 404},
		{"too many requests", models.NewTooManyRequests("id", "slow down"), 429},
		{"internal", models.NewInternalError("id", "oops"), 500},
		{"bad gateway", models.NewBadGateway("id", "bridge down"), 502},
		{"unavailable", models.NewServiceUnavailable("id", "no backend"), 503},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.problem.Status)
			assert.Equal(t, "id", tt.problem.TraceID)
			assert.NotEmpty(t, tt.problem.Type)
			assert.NotEmpty(t, tt.problem.Title)
		})
	}
}
