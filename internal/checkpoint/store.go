// Package checkpoint persists per-chat sync progress in a local SQLite
// database owned by the coordinator.
package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no checkpoint exists for a chat.
var ErrNotFound = errors.New("checkpoint not found")

const schema = `
CREATE TABLE IF NOT EXISTS sync_checkpoints (
	chat_jid               TEXT PRIMARY KEY,
	last_synced_message_id TEXT NOT NULL DEFAULT '',
	last_synced_timestamp  INTEGER NOT NULL DEFAULT 0,
	messages_synced        INTEGER NOT NULL DEFAULT 0,
	sync_in_progress       INTEGER NOT NULL DEFAULT 0,
	last_error             TEXT NOT NULL DEFAULT '',
	updated_at             TIMESTAMP NOT NULL
);
`

// Checkpoint is one chat's persisted sync progress.
type Checkpoint struct {
	ChatJID             string    `json:"chat_jid"`
	LastSyncedMessageID string    `json:"last_synced_message_id,omitempty"`
	LastSyncedTimestamp int64     `json:"last_synced_timestamp,omitempty"`
	MessagesSynced      int       `json:"messages_synced"`
	SyncInProgress      bool      `json:"sync_in_progress"`
	LastError           string    `json:"last_error,omitempty"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Store is a SQLite-backed checkpoint store. Safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the checkpoint database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint database: %w", err)
	}

	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply checkpoint schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// BeginSync marks a chat's sync as in progress before a batch moves.
func (s *Store) BeginSync(ctx context.Context, chatJID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_checkpoints (chat_jid, sync_in_progress, updated_at)
		VALUES (?, 1, ?)
		ON CONFLICT(chat_jid) DO UPDATE SET
			sync_in_progress = 1,
			updated_at = excluded.updated_at`,
		chatJID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark sync in progress: %w", err)
	}
	return nil
}

// CompleteSync records a successful batch: the last synced message,
// the cumulative synced count, and a cleared error.
func (s *Store) CompleteSync(ctx context.Context, chatJID, lastMessageID string, lastTimestamp int64, messagesSynced int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_checkpoints
			(chat_jid, last_synced_message_id, last_synced_timestamp, messages_synced, sync_in_progress, last_error, updated_at)
		VALUES (?, ?, ?, ?, 0, '', ?)
		ON CONFLICT(chat_jid) DO UPDATE SET
			last_synced_message_id = excluded.last_synced_message_id,
			last_synced_timestamp = excluded.last_synced_timestamp,
			messages_synced = sync_checkpoints.messages_synced + excluded.messages_synced,
			sync_in_progress = 0,
			last_error = '',
			updated_at = excluded.updated_at`,
		chatJID, lastMessageID, lastTimestamp, messagesSynced, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update checkpoint: %w", err)
	}
	return nil
}

// FailSync records a failed batch without touching sync progress.
func (s *Store) FailSync(ctx context.Context, chatJID, message string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_checkpoints (chat_jid, sync_in_progress, last_error, updated_at)
		VALUES (?, 0, ?, ?)
		ON CONFLICT(chat_jid) DO UPDATE SET
			sync_in_progress = 0,
			last_error = excluded.last_error,
			updated_at = excluded.updated_at`,
		chatJID, message, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("record sync error: %w", err)
	}
	return nil
}

// Get returns one chat's checkpoint, or ErrNotFound.
func (s *Store) Get(ctx context.Context, chatJID string) (Checkpoint, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT chat_jid, last_synced_message_id, last_synced_timestamp,
		       messages_synced, sync_in_progress, last_error, updated_at
		FROM sync_checkpoints
		WHERE chat_jid = ?`,
		chatJID)

	cp, err := scanCheckpoint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Checkpoint{}, ErrNotFound
	}
	if err != nil {
		return Checkpoint{}, fmt.Errorf("query checkpoint: %w", err)
	}
	return cp, nil
}

// List returns all checkpoints ordered by most recently updated.
func (s *Store) List(ctx context.Context) ([]Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chat_jid, last_synced_message_id, last_synced_timestamp,
		       messages_synced, sync_in_progress, last_error, updated_at
		FROM sync_checkpoints
		ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var checkpoints []Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		checkpoints = append(checkpoints, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkpoints: %w", err)
	}

	return checkpoints, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCheckpoint(row scanner) (Checkpoint, error) {
	var cp Checkpoint
	var inProgress int
	err := row.Scan(
		&cp.ChatJID,
		&cp.LastSyncedMessageID,
		&cp.LastSyncedTimestamp,
		&cp.MessagesSynced,
		&inProgress,
		&cp.LastError,
		&cp.UpdatedAt,
	)
	if err != nil {
		return Checkpoint{}, err
	}
	cp.SyncInProgress = inProgress != 0
	return cp, nil
}
