// Package dbsync moves bounded batches of messages from the baileys
// transient store into the go bridge's durable store, deduplicating
// against what is already persisted and recording per-chat checkpoints.
package dbsync

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jacopone/whatsapp-mcp/internal/backend"
)

// DefaultBatchSize bounds how many messages one sync call moves.
const DefaultBatchSize = 1000

// SecondaryStore is the transient message store on the baileys bridge.
type SecondaryStore interface {
	// PendingMessages returns up to limit messages awaiting sync for a chat.
	PendingMessages(ctx context.Context, chatJID string, limit int) ([]backend.Message, error)

	// ListChats returns every chat with data in the transient store.
	ListChats(ctx context.Context) ([]backend.Chat, error)

	// ClearChat removes a chat's data from the transient store.
	ClearChat(ctx context.Context, chatJID string) error
}

// PrimaryStore is the durable message store behind the go bridge.
type PrimaryStore interface {
	// ExistingMessageIDs reports which of the given message IDs are
	// already persisted for the chat.
	ExistingMessageIDs(ctx context.Context, chatJID string, messageIDs []string) (map[string]struct{}, error)

	// InsertMessages batch-inserts messages and reports how many the
	// store accepted. Partial acceptance is not an error.
	InsertMessages(ctx context.Context, chatJID string, messages []backend.Message) (int, error)
}

// Checkpoints records per-chat sync progress. All calls are best-effort
// from the service's point of view.
type Checkpoints interface {
	BeginSync(ctx context.Context, chatJID string) error
	CompleteSync(ctx context.Context, chatJID, lastMessageID string, lastTimestamp int64, messagesSynced int) error
	FailSync(ctx context.Context, chatJID, message string) error
}

// Config holds sync service configuration.
type Config struct {
	// Secondary is the transient store messages are drained from. Required.
	Secondary SecondaryStore

	// Primary is the durable store messages land in. Required.
	Primary PrimaryStore

	// Checkpoints records progress. Optional; nil disables checkpointing.
	Checkpoints Checkpoints

	// BatchSize bounds messages moved per call. Default: DefaultBatchSize
	BatchSize int

	// Logger for sync progress.
	Logger zerolog.Logger
}

// Service drains the transient store chat by chat.
type Service struct {
	secondary   SecondaryStore
	primary     PrimaryStore
	checkpoints Checkpoints
	batchSize   int
	logger      zerolog.Logger
}

// NewService creates a sync service with defaults filled in.
func NewService(cfg Config) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	return &Service{
		secondary:   cfg.Secondary,
		primary:     cfg.Primary,
		checkpoints: cfg.Checkpoints,
		batchSize:   cfg.BatchSize,
		logger:      cfg.Logger.With().Str("component", "dbsync").Logger(),
	}
}

// SyncMessages moves one batch of pending messages for a chat from the
// transient store to the durable store. It never returns an error;
// failures are captured in the SyncResult. Fetch and insert failures are
// fatal to the call, checkpoint and clear failures are logged only.
func (s *Service) SyncMessages(ctx context.Context, chatJID string) SyncResult {
	start := time.Now()
	logger := s.logger.With().Str("chat_jid", chatJID).Logger()

	logger.Info().Msg("starting message sync")

	messages, err := s.secondary.PendingMessages(ctx, chatJID, s.batchSize)
	if err != nil {
		logger.Error().Err(err).Msg("failed to fetch pending messages")
		return s.failed(ctx, chatJID, start, 0, 0, fmt.Sprintf("fetch pending messages: %v", err))
	}

	if len(messages) == 0 {
		logger.Info().Msg("no messages to sync")
		s.clearChat(ctx, chatJID)
		return SyncResult{
			Success:        true,
			ElapsedSeconds: time.Since(start).Seconds(),
		}
	}

	logger.Info().Int("fetched", len(messages)).Msg("fetched pending messages")
	s.beginCheckpoint(ctx, chatJID)

	remaining, deduplicated := s.deduplicate(ctx, chatJID, messages)
	logger.Info().
		Int("duplicates", deduplicated).
		Int("remaining", len(remaining)).
		Msg("deduplicated batch")

	if len(remaining) == 0 {
		logger.Info().Msg("all messages were duplicates, nothing to sync")
		s.clearChat(ctx, chatJID)
		return SyncResult{
			Success:              true,
			MessagesDeduplicated: deduplicated,
			ElapsedSeconds:       time.Since(start).Seconds(),
		}
	}

	// Tag provenance before the batch lands in the durable store.
	for i := range remaining {
		remaining[i].ChatJID = chatJID
		remaining[i].SyncSource = string(backend.BackendBaileys)
	}

	inserted, err := s.primary.InsertMessages(ctx, chatJID, remaining)
	if err != nil {
		logger.Error().Err(err).Msg("failed to insert messages")
		return s.failed(ctx, chatJID, start, 0, deduplicated, fmt.Sprintf("insert messages: %v", err))
	}

	logger.Info().Int("inserted", inserted).Msg("inserted messages")

	last := remaining[len(remaining)-1]
	s.completeCheckpoint(ctx, chatJID, last.ID, last.Timestamp, inserted)
	s.clearChat(ctx, chatJID)

	elapsed := time.Since(start).Seconds()
	throughput := 0.0
	if elapsed > 0 {
		throughput = float64(inserted) / elapsed
	}

	logger.Info().
		Int("synced", inserted).
		Float64("elapsed_seconds", elapsed).
		Float64("throughput_per_second", throughput).
		Msg("sync completed")

	return SyncResult{
		Success:              true,
		MessagesSynced:       inserted,
		MessagesDeduplicated: deduplicated,
		ElapsedSeconds:       elapsed,
		Details: map[string]any{
			"chat_jid":              chatJID,
			"throughput_per_second": throughput,
		},
	}
}

// SyncAllChats syncs every chat present in the transient store,
// sequentially, continuing past per-chat failures. The returned error is
// non-nil only when the chat listing itself fails.
func (s *Service) SyncAllChats(ctx context.Context) (map[string]SyncResult, error) {
	results := make(map[string]SyncResult)

	chats, err := s.secondary.ListChats(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list chats")
		return results, fmt.Errorf("list chats: %w", err)
	}

	s.logger.Info().Int("chats", len(chats)).Msg("syncing all chats")

	for _, chat := range chats {
		result := s.SyncMessages(ctx, chat.JID)
		results[chat.JID] = result

		if !result.Success {
			s.logger.Error().
				Str("chat_jid", chat.JID).
				Str("error", result.ErrorMessage).
				Msg("chat sync failed")
		}
	}

	return results, nil
}

// deduplicate drops messages already persisted for the chat. A failed
// lookup keeps the full batch: duplicates are safer than lost messages.
func (s *Service) deduplicate(ctx context.Context, chatJID string, messages []backend.Message) ([]backend.Message, int) {
	ids := make([]string, len(messages))
	for i, m := range messages {
		ids[i] = m.ID
	}

	existing, err := s.primary.ExistingMessageIDs(ctx, chatJID, ids)
	if err != nil {
		s.logger.Warn().
			Str("chat_jid", chatJID).
			Err(err).
			Msg("deduplication check failed, proceeding with full batch")
		return messages, 0
	}

	remaining := make([]backend.Message, 0, len(messages))
	for _, m := range messages {
		if _, dup := existing[m.ID]; !dup {
			remaining = append(remaining, m)
		}
	}

	return remaining, len(messages) - len(remaining)
}

func (s *Service) failed(ctx context.Context, chatJID string, start time.Time, synced, deduplicated int, message string) SyncResult {
	s.failCheckpoint(ctx, chatJID, message)
	return SyncResult{
		MessagesSynced:       synced,
		MessagesDeduplicated: deduplicated,
		ElapsedSeconds:       time.Since(start).Seconds(),
		ErrorMessage:         message,
	}
}

func (s *Service) beginCheckpoint(ctx context.Context, chatJID string) {
	if s.checkpoints == nil {
		return
	}
	if err := s.checkpoints.BeginSync(ctx, chatJID); err != nil {
		s.logger.Warn().Str("chat_jid", chatJID).Err(err).Msg("failed to mark sync in progress")
	}
}

func (s *Service) completeCheckpoint(ctx context.Context, chatJID, lastID string, lastTimestamp int64, synced int) {
	if s.checkpoints == nil {
		return
	}
	if err := s.checkpoints.CompleteSync(ctx, chatJID, lastID, lastTimestamp, synced); err != nil {
		s.logger.Warn().Str("chat_jid", chatJID).Err(err).Msg("failed to update checkpoint")
	}
}

func (s *Service) failCheckpoint(ctx context.Context, chatJID, message string) {
	if s.checkpoints == nil {
		return
	}
	if err := s.checkpoints.FailSync(ctx, chatJID, message); err != nil {
		s.logger.Warn().Str("chat_jid", chatJID).Err(err).Msg("failed to record sync error")
	}
}

func (s *Service) clearChat(ctx context.Context, chatJID string) {
	if err := s.secondary.ClearChat(ctx, chatJID); err != nil {
		s.logger.Warn().Str("chat_jid", chatJID).Err(err).Msg("failed to clear transient store")
	}
}
