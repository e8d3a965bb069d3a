// Package baileysclient is the HTTP client for the baileys bridge,
// which owns history retrieval and the transient message store.
package baileysclient

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/jacopone/whatsapp-mcp/internal/backend"
)

// Default timeouts and polling cadence.
const (
	DefaultTimeout      = 10 * time.Second
	DefaultWaitTimeout  = 5 * time.Minute
	DefaultPollInterval = 5 * time.Second
)

// Config holds client configuration.
type Config struct {
	// BaseURL of the baileys bridge. Default: http://localhost:8081
	BaseURL string

	// Timeout for standard operations. Default: DefaultTimeout
	Timeout time.Duration

	// Transport is attached to the underlying HTTP client. Optional.
	Transport http.RoundTripper

	// Logger for request failures.
	Logger zerolog.Logger
}

// Client talks to the baileys bridge. Safe for concurrent use.
type Client struct {
	http   *resty.Client
	logger zerolog.Logger
}

// NewClient creates a baileys bridge client with defaults filled in.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8081"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout)
	if cfg.Transport != nil {
		client.SetTransport(cfg.Transport)
	}

	return &Client{
		http:   client,
		logger: cfg.Logger.With().Str("component", "baileysclient").Logger(),
	}
}

// SyncStatus is the bridge's history sync state.
type SyncStatus struct {
	Connected       bool    `json:"connected"`
	IsSyncing       bool    `json:"is_syncing"`
	IsLatest        bool    `json:"is_latest"`
	ProgressPercent float64 `json:"progress_percent"`
	MessagesSynced  int     `json:"messages_synced"`
	Error           string  `json:"error,omitempty"`
}

// ChatSyncState is the per-chat checkpoint view the bridge reports.
type ChatSyncState struct {
	ChatJID         string `json:"chat_jid"`
	SyncID          string `json:"sync_id,omitempty"`
	Status          string `json:"status,omitempty"`
	MessagesFetched int    `json:"messages_fetched"`
	Error           string `json:"error,omitempty"`
}

// SyncStatus returns the overall history sync state.
func (c *Client) SyncStatus(ctx context.Context) (SyncStatus, error) {
	var out SyncStatus
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/api/sync/status")
	if err := c.check(resp, err, "sync status"); err != nil {
		return SyncStatus{}, err
	}
	return out, nil
}

// WaitForSyncCompletion polls the sync status until the bridge reports
// the history is at latest and no sync is running. Returns false on
// timeout, lost connection, or context cancellation.
func (c *Client) WaitForSyncCompletion(ctx context.Context, timeout, pollInterval time.Duration) bool {
	if timeout == 0 {
		timeout = DefaultWaitTimeout
	}
	if pollInterval == 0 {
		pollInterval = DefaultPollInterval
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		status, err := c.SyncStatus(ctx)
		if err != nil {
			c.logger.Warn().Err(err).Msg("sync status check failed while waiting")
		} else {
			if !status.Connected {
				c.logger.Warn().Msg("baileys bridge not connected, aborting wait")
				return false
			}

			c.logger.Debug().
				Float64("progress_percent", status.ProgressPercent).
				Int("messages_synced", status.MessagesSynced).
				Bool("is_syncing", status.IsSyncing).
				Msg("waiting for history sync")

			if status.IsLatest && !status.IsSyncing {
				return true
			}
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(pollInterval):
		}
	}

	c.logger.Warn().Dur("timeout", timeout).Msg("timed out waiting for history sync")
	return false
}

// StartHistorySync starts (or resumes) history sync for one chat.
func (c *Client) StartHistorySync(ctx context.Context, chatJID string, resume bool, maxMessages int) (ChatSyncState, error) {
	var out ChatSyncState
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"chat_jid":     chatJID,
			"resume":       resume,
			"max_messages": maxMessages,
		}).
		SetResult(&out).
		Post("/history/sync")
	if err := c.check(resp, err, "start history sync"); err != nil {
		return ChatSyncState{}, err
	}
	return out, nil
}

// ChatSyncStatus returns one chat's sync progress.
func (c *Client) ChatSyncStatus(ctx context.Context, chatJID string) (ChatSyncState, error) {
	var out ChatSyncState
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/history/sync/" + chatJID + "/status")
	if err := c.check(resp, err, "chat sync status"); err != nil {
		return ChatSyncState{}, err
	}
	return out, nil
}

// CancelSync cancels an ongoing history sync for a chat.
func (c *Client) CancelSync(ctx context.Context, chatJID string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		Post("/history/sync/" + chatJID + "/cancel")
	return c.check(resp, err, "cancel sync")
}

// ResumeSync resumes an interrupted history sync for a chat.
func (c *Client) ResumeSync(ctx context.Context, chatJID string, maxMessages int) (ChatSyncState, error) {
	var out ChatSyncState
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"max_messages": maxMessages}).
		SetResult(&out).
		Post("/history/sync/" + chatJID + "/resume")
	if err := c.check(resp, err, "resume sync"); err != nil {
		return ChatSyncState{}, err
	}
	return out, nil
}

// PendingMessages returns up to limit messages awaiting sync for a
// chat. Satisfies the sync service's secondary-store fetch.
func (c *Client) PendingMessages(ctx context.Context, chatJID string, limit int) ([]backend.Message, error) {
	var out struct {
		Messages []backend.Message `json:"messages"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("chat_jid", chatJID).
		SetQueryParam("limit", strconv.Itoa(limit)).
		SetResult(&out).
		Get("/history/messages")
	if err := c.check(resp, err, "fetch pending messages"); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// ListChats lists every chat with data in the transient store.
func (c *Client) ListChats(ctx context.Context) ([]backend.Chat, error) {
	var out struct {
		Chats []backend.Chat `json:"chats"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/chats/list")
	if err := c.check(resp, err, "list chats"); err != nil {
		return nil, err
	}
	return out.Chats, nil
}

// ClearChat removes one chat's data from the transient store.
func (c *Client) ClearChat(ctx context.Context, chatJID string) error {
	return c.clear(ctx, map[string]string{"chat_jid": chatJID})
}

// ClearAll removes all data from the transient store.
func (c *Client) ClearAll(ctx context.Context) error {
	return c.clear(ctx, nil)
}

func (c *Client) clear(ctx context.Context, body map[string]string) error {
	var out struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	req := c.http.R().
		SetContext(ctx).
		SetResult(&out)
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Post("/api/clear")
	if err := c.check(resp, err, "clear transient store"); err != nil {
		return err
	}
	if !out.Success {
		return fmt.Errorf("baileys bridge: clear transient store: %s", out.Message)
	}
	return nil
}

func (c *Client) check(resp *resty.Response, err error, op string) error {
	if err != nil {
		c.logger.Error().Err(err).Str("op", op).Msg("baileys bridge request failed")
		return fmt.Errorf("baileys bridge: %s: %w", op, err)
	}
	if resp.IsError() {
		c.logger.Error().
			Str("op", op).
			Int("status", resp.StatusCode()).
			Str("body", resp.String()).
			Msg("baileys bridge returned an error")
		return fmt.Errorf("baileys bridge: %s: HTTP %d", op, resp.StatusCode())
	}
	return nil
}
