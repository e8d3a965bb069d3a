package baileysclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacopone/whatsapp-mcp/internal/backend/baileysclient"
)

func newTestClient(serverURL string) *baileysclient.Client {
	return baileysclient.NewClient(baileysclient.Config{
		BaseURL: serverURL,
		Logger:  zerolog.Nop(),
	})
}

func TestClient_SyncStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/sync/status", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"connected":        true,
			"is_syncing":       true,
			"is_latest":        false,
			"progress_percent": 42.5,
			"messages_synced":  850,
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	status, err := client.SyncStatus(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Connected)
	assert.True(t, status.IsSyncing)
	assert.False(t, status.IsLatest)
	assert.InDelta(t, 42.5, status.ProgressPercent, 0.001)
	assert.Equal(t, 850, status.MessagesSynced)
}

func TestClient_WaitForSyncCompletion_Completes(t *testing.T) {
	var polls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		count := polls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"connected":       true,
			"is_syncing":      count < 3,
			"is_latest":       count >= 3,
			"messages_synced": int(count) * 100,
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	done := client.WaitForSyncCompletion(context.Background(), 5*time.Second, 10*time.Millisecond)
	assert.True(t, done)
	assert.GreaterOrEqual(t, polls.Load(), int32(3))
}

func TestClient_WaitForSyncCompletion_Disconnected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"connected": false})
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	done := client.WaitForSyncCompletion(context.Background(), 5*time.Second, 10*time.Millisecond)
	assert.False(t, done, "lost connection aborts the wait")
}

func TestClient_WaitForSyncCompletion_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"connected":  true,
			"is_syncing": true,
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	done := client.WaitForSyncCompletion(context.Background(), 50*time.Millisecond, 10*time.Millisecond)
	assert.False(t, done)
}

func TestClient_WaitForSyncCompletion_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"connected":  true,
			"is_syncing": true,
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	done := client.WaitForSyncCompletion(ctx, 10*time.Second, 20*time.Millisecond)
	assert.False(t, done)
}

func TestClient_StartHistorySync(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/history/sync", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "123@g.us", body["chat_jid"])
		assert.Equal(t, false, body["resume"])
		assert.Equal(t, float64(1000), body["max_messages"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"chat_jid": "123@g.us",
			"sync_id":  "s-1",
			"status":   "started",
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	state, err := client.StartHistorySync(context.Background(), "123@g.us", false, 1000)
	require.NoError(t, err)
	assert.Equal(t, "s-1", state.SyncID)
	assert.Equal(t, "started", state.Status)
}

func TestClient_PendingMessages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/history/messages", r.URL.Path)
		assert.Equal(t, "123@g.us", r.URL.Query().Get("chat_jid"))
		assert.Equal(t, "1000", r.URL.Query().Get("limit"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"messages": []map[string]any{
				{"id": "m1", "sender": "316123", "content": "hi", "timestamp": 1700000000, "is_from_me": false},
				{"id": "m2", "sender": "316124", "content": "yo", "timestamp": 1700000001, "is_from_me": true},
			},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	messages, err := client.PendingMessages(context.Background(), "123@g.us", 1000)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "m1", messages[0].ID)
	assert.Equal(t, int64(1700000000), messages[0].Timestamp)
	assert.True(t, messages[1].IsFromMe)
}

func TestClient_ListChats(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chats/list", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"chats": []map[string]string{
				{"jid": "123@g.us", "name": "Family"},
				{"jid": "456@g.us", "name": "Work"},
			},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	chats, err := client.ListChats(context.Background())
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, "123@g.us", chats[0].JID)
}

func TestClient_ClearChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/clear", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "123@g.us", body["chat_jid"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"success": true})
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	require.NoError(t, client.ClearChat(context.Background(), "123@g.us"))
}

func TestClient_ClearAll_ReportsBridgeRefusal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "sync in progress"})
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	err := client.ClearAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sync in progress")
}

func TestClient_CancelSync(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/history/sync/123@g.us/cancel", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"success": true})
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	require.NoError(t, client.CancelSync(context.Background(), "123@g.us"))
}
