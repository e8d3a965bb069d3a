// Package goclient is the HTTP client for the go (whatsmeow) bridge,
// which fronts the durable message store and the send/mark operations.
package goclient

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

// Default timeouts per operation class.
const (
	DefaultTimeout      = 30 * time.Second
	DefaultMediaTimeout = 60 * time.Second
)

// Config holds client configuration.
type Config struct {
	// BaseURL of the go bridge. Default: http://localhost:8080
	BaseURL string

	// Timeout for standard operations. Default: DefaultTimeout
	Timeout time.Duration

	// MediaTimeout for media and multi-group operations.
	// Default: DefaultMediaTimeout
	MediaTimeout time.Duration

	// Transport is attached to the underlying HTTP clients. Optional;
	// the resilience package's transport plugs in here.
	Transport http.RoundTripper

	// Logger for request failures.
	Logger zerolog.Logger
}

// Client talks to the go bridge. Safe for concurrent use.
type Client struct {
	std    *resty.Client
	media  *resty.Client
	logger zerolog.Logger
}

// NewClient creates a go bridge client with defaults filled in.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8080"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MediaTimeout == 0 {
		cfg.MediaTimeout = DefaultMediaTimeout
	}

	std := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout)
	media := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.MediaTimeout)

	if cfg.Transport != nil {
		std.SetTransport(cfg.Transport)
		media.SetTransport(cfg.Transport)
	}

	return &Client{
		std:    std,
		media:  media,
		logger: cfg.Logger.With().Str("component", "goclient").Logger(),
	}
}

// SendResponse is the bridge's acknowledgement for send-class calls.
type SendResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Community is one WhatsApp community known to the bridge.
type Community struct {
	JID  string `json:"jid"`
	Name string `json:"name"`
}

// Group is one group inside a community.
type Group struct {
	JID  string `json:"jid"`
	Name string `json:"name"`
}

// MarkCommunityReadResult reports a multi-group mark-read operation.
type MarkCommunityReadResult struct {
	Success      bool           `json:"success"`
	Message      string         `json:"message"`
	GroupResults map[string]any `json:"group_results,omitempty"`
}

// MessageQuery filters a message listing.
type MessageQuery struct {
	ChatJID      string
	Sender       string
	Content      string
	AfterTime    string
	BeforeTime   string
	Limit        int
	Offset       int
	IncludeMedia bool
	MediaType    string
}

// MessagePage is one page of queried messages.
type MessagePage struct {
	Messages []backend.Message `json:"messages"`
	Total    int               `json:"total"`
}

// MessageStats summarizes the durable store.
type MessageStats struct {
	TotalMessages int `json:"total_messages"`
	TotalChats    int `json:"total_chats"`
	TotalContacts int `json:"total_contacts"`
}

// SendMessage sends a text message to a person or group.
func (c *Client) SendMessage(ctx context.Context, recipient, message string) (SendResponse, error) {
	var out SendResponse
	resp, err := c.std.R().
		SetContext(ctx).
		SetBody(map[string]string{"recipient": recipient, "message": message}).
		SetResult(&out).
		Post("/api/send_message")
	if err := c.check(resp, err, "send message"); err != nil {
		return SendResponse{}, err
	}
	return out, nil
}

// SendFile sends a file attachment.
func (c *Client) SendFile(ctx context.Context, recipient, filePath string) (SendResponse, error) {
	var out SendResponse
	resp, err := c.media.R().
		SetContext(ctx).
		SetBody(map[string]string{"recipient": recipient, "file_path": filePath}).
		SetResult(&out).
		Post("/api/send_file")
	if err := c.check(resp, err, "send file"); err != nil {
		return SendResponse{}, err
	}
	return out, nil
}

// SendAudio sends an audio file as a playable voice message.
func (c *Client) SendAudio(ctx context.Context, recipient, filePath string) (SendResponse, error) {
	var out SendResponse
	resp, err := c.media.R().
		SetContext(ctx).
		SetBody(map[string]string{"recipient": recipient, "file_path": filePath}).
		SetResult(&out).
		Post("/api/send_audio")
	if err := c.check(resp, err, "send audio"); err != nil {
		return SendResponse{}, err
	}
	return out, nil
}

// MarkAsRead marks messages in a chat as read.
func (c *Client) MarkAsRead(ctx context.Context, chatJID string, messageIDs []string, sender string) (SendResponse, error) {
	body := map[string]any{"chat_jid": chatJID, "message_ids": messageIDs}
	if sender != "" {
		body["sender"] = sender
	}

	var out SendResponse
	resp, err := c.std.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post("/api/mark_as_read")
	if err := c.check(resp, err, "mark as read"); err != nil {
		return SendResponse{}, err
	}
	return out, nil
}

// DownloadMedia downloads a message's media and returns the local path.
func (c *Client) DownloadMedia(ctx context.Context, messageID, chatJID string) (string, error) {
	var out struct {
		Success  bool   `json:"success"`
		Message  string `json:"message"`
		FilePath string `json:"file_path"`
	}
	resp, err := c.media.R().
		SetContext(ctx).
		SetBody(map[string]string{"message_id": messageID, "chat_jid": chatJID}).
		SetResult(&out).
		Post("/api/download_media")
	if err := c.check(resp, err, "download media"); err != nil {
		return "", err
	}
	if !out.Success {
		return "", fmt.Errorf("go bridge: download media: %s", out.Message)
	}
	return out.FilePath, nil
}

// ListCommunities lists WhatsApp communities, optionally filtered.
func (c *Client) ListCommunities(ctx context.Context, query string, limit int) ([]Community, error) {
	req := c.std.R().
		SetContext(ctx).
		SetQueryParam("limit", strconv.Itoa(limit))
	if query != "" {
		req.SetQueryParam("query", query)
	}

	var out struct {
		Communities []Community `json:"communities"`
	}
	resp, err := req.SetResult(&out).Get("/api/communities")
	if err := c.check(resp, err, "list communities"); err != nil {
		return nil, err
	}
	return out.Communities, nil
}

// CommunityGroups lists the groups belonging to a community.
func (c *Client) CommunityGroups(ctx context.Context, communityJID string, limit int) ([]Group, error) {
	var out struct {
		Groups []Group `json:"groups"`
	}
	resp, err := c.std.R().
		SetContext(ctx).
		SetQueryParam("limit", strconv.Itoa(limit)).
		SetResult(&out).
		Get("/api/community/" + communityJID + "/groups")
	if err := c.check(resp, err, "get community groups"); err != nil {
		return nil, err
	}
	return out.Groups, nil
}

// MarkCommunityAsRead marks every group in a community as read. The
// bridge fans out to each group, so this uses the longer timeout.
func (c *Client) MarkCommunityAsRead(ctx context.Context, communityJID string) (MarkCommunityReadResult, error) {
	var out MarkCommunityReadResult
	resp, err := c.media.R().
		SetContext(ctx).
		SetResult(&out).
		Post("/api/communities/" + communityJID + "/mark-read")
	if err := c.check(resp, err, "mark community as read"); err != nil {
		return MarkCommunityReadResult{}, err
	}
	return out, nil
}

// QueryMessages lists messages from the durable store with filters.
func (c *Client) QueryMessages(ctx context.Context, q MessageQuery) (MessagePage, error) {
	if q.Limit <= 0 {
		q.Limit = 100
	}

	req := c.std.R().
		SetContext(ctx).
		SetQueryParam("limit", strconv.Itoa(q.Limit)).
		SetQueryParam("offset", strconv.Itoa(q.Offset)).
		SetQueryParam("include_media", strconv.FormatBool(q.IncludeMedia))
	for param, value := range map[string]string{
		"chat_jid":    q.ChatJID,
		"sender":      q.Sender,
		"content":     q.Content,
		"after_time":  q.AfterTime,
		"before_time": q.BeforeTime,
		"media_type":  q.MediaType,
	} {
		if value != "" {
			req.SetQueryParam(param, value)
		}
	}

	var out MessagePage
	resp, err := req.SetResult(&out).Get("/api/messages")
	if err := c.check(resp, err, "query messages"); err != nil {
		return MessagePage{}, err
	}
	return out, nil
}

// Stats returns message statistics from the durable store.
func (c *Client) Stats(ctx context.Context) (MessageStats, error) {
	var out MessageStats
	resp, err := c.std.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/api/stats")
	if err := c.check(resp, err, "get stats"); err != nil {
		return MessageStats{}, err
	}
	return out, nil
}

// ExistingMessageIDs reports which message IDs are already persisted for
// a chat. Satisfies the sync service's primary-store lookup.
func (c *Client) ExistingMessageIDs(ctx context.Context, chatJID string, messageIDs []string) (map[string]struct{}, error) {
	var out struct {
		ExistingIDs []string `json:"existing_ids"`
	}
	resp, err := c.std.R().
		SetContext(ctx).
		SetBody(map[string]any{"chat_jid": chatJID, "message_ids": messageIDs}).
		SetResult(&out).
		Post("/api/messages/check-duplicates")
	if err := c.check(resp, err, "check duplicates"); err != nil {
		return nil, err
	}

	existing := make(map[string]struct{}, len(out.ExistingIDs))
	for _, id := range out.ExistingIDs {
		existing[id] = struct{}{}
	}
	return existing, nil
}

// InsertMessages batch-inserts messages into the durable store and
// returns the accepted count.
func (c *Client) InsertMessages(ctx context.Context, chatJID string, messages []backend.Message) (int, error) {
	if len(messages) == 0 {
		return 0, nil
	}

	var out struct {
		InsertedCount int `json:"inserted_count"`
	}
	resp, err := c.std.R().
		SetContext(ctx).
		SetBody(map[string]any{"chat_jid": chatJID, "messages": messages}).
		SetResult(&out).
		Post("/api/messages/batch")
	if err := c.check(resp, err, "batch insert"); err != nil {
		return 0, err
	}
	return out.InsertedCount, nil
}

func (c *Client) check(resp *resty.Response, err error, op string) error {
	if err != nil {
		c.logger.Error().Err(err).Str("op", op).Msg("go bridge request failed")
		return fmt.Errorf("go bridge: %s: %w", op, err)
	}
	if resp.IsError() {
		c.logger.Error().
			Str("op", op).
			Int("status", resp.StatusCode()).
			Str("body", resp.String()).
			Msg("go bridge returned an error")
		return fmt.Errorf("go bridge: %s: HTTP %d", op, resp.StatusCode())
	}
	return nil
}
