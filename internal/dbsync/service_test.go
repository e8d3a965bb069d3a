package dbsync_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacopone/whatsapp-mcp/internal/backend"
	"github.com/jacopone/whatsapp-mcp/internal/dbsync"
)

type fakeSecondary struct {
	pending     map[string][]backend.Message
	chats       []backend.Chat
	listErr     error
	fetchErr    error
	fetchErrFor map[string]error
	clearErr    error

	cleared []string
}

func (f *fakeSecondary) PendingMessages(_ context.Context, chatJID string, limit int) ([]backend.Message, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if err := f.fetchErrFor[chatJID]; err != nil {
		return nil, err
	}
	msgs := f.pending[chatJID]
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

func (f *fakeSecondary) ListChats(_ context.Context) ([]backend.Chat, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.chats, nil
}

func (f *fakeSecondary) ClearChat(_ context.Context, chatJID string) error {
	if f.clearErr != nil {
		return f.clearErr
	}
	f.cleared = append(f.cleared, chatJID)
	return nil
}

type fakePrimary struct {
	existing  map[string]struct{}
	lookupErr error
	insertErr error

	// insertedCap limits the accepted count to simulate partial inserts.
	insertedCap int

	inserted []backend.Message
}

func (f *fakePrimary) ExistingMessageIDs(_ context.Context, _ string, messageIDs []string) (map[string]struct{}, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	found := make(map[string]struct{})
	for _, id := range messageIDs {
		if _, ok := f.existing[id]; ok {
			found[id] = struct{}{}
		}
	}
	return found, nil
}

func (f *fakePrimary) InsertMessages(_ context.Context, _ string, messages []backend.Message) (int, error) {
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	f.inserted = append(f.inserted, messages...)
	if f.insertedCap > 0 && len(messages) > f.insertedCap {
		return f.insertedCap, nil
	}
	return len(messages), nil
}

type fakeCheckpoints struct {
	beginErr    error
	completeErr error

	begun     []string
	completed []string
	failed    []string
	lastID    string
	lastCount int
}

func (f *fakeCheckpoints) BeginSync(_ context.Context, chatJID string) error {
	if f.beginErr != nil {
		return f.beginErr
	}
	f.begun = append(f.begun, chatJID)
	return nil
}

func (f *fakeCheckpoints) CompleteSync(_ context.Context, chatJID, lastMessageID string, _ int64, messagesSynced int) error {
	if f.completeErr != nil {
		return f.completeErr
	}
	f.completed = append(f.completed, chatJID)
	f.lastID = lastMessageID
	f.lastCount = messagesSynced
	return nil
}

func (f *fakeCheckpoints) FailSync(_ context.Context, chatJID, _ string) error {
	f.failed = append(f.failed, chatJID)
	return nil
}

func testMessages(ids ...string) []backend.Message {
	msgs := make([]backend.Message, len(ids))
	for i, id := range ids {
		msgs[i] = backend.Message{
			ID:        id,
			Sender:    "31612345678",
			Content:   "hello",
			Timestamp: int64(1700000000 + i),
		}
	}
	return msgs
}

func newTestService(secondary *fakeSecondary, primary *fakePrimary, checkpoints *fakeCheckpoints) *dbsync.Service {
	cfg := dbsync.Config{
		Secondary: secondary,
		Primary:   primary,
		Logger:    zerolog.Nop(),
	}
	if checkpoints != nil {
		cfg.Checkpoints = checkpoints
	}
	return dbsync.NewService(cfg)
}

func TestSyncMessages_DeduplicatesAndInserts(t *testing.T) {
	secondary := &fakeSecondary{
		pending: map[string][]backend.Message{
			"123@g.us": testMessages("m1", "m2", "m3"),
		},
	}
	primary := &fakePrimary{existing: map[string]struct{}{"m2": {}}}
	checkpoints := &fakeCheckpoints{}

	svc := newTestService(secondary, primary, checkpoints)
	result := svc.SyncMessages(context.Background(), "123@g.us")

	require.True(t, result.Success)
	assert.Equal(t, 2, result.MessagesSynced)
	assert.Equal(t, 1, result.MessagesDeduplicated)
	assert.Empty(t, result.ErrorMessage)

	require.Len(t, primary.inserted, 2)
	assert.Equal(t, "m1", primary.inserted[0].ID)
	assert.Equal(t, "m3", primary.inserted[1].ID)

	assert.Equal(t, []string{"123@g.us"}, secondary.cleared)
	assert.Equal(t, []string{"123@g.us"}, checkpoints.begun)
	assert.Equal(t, []string{"123@g.us"}, checkpoints.completed)
	assert.Equal(t, "m3", checkpoints.lastID)
	assert.Equal(t, 2, checkpoints.lastCount)

	require.NotNil(t, result.Details)
	assert.Equal(t, "123@g.us", result.Details["chat_jid"])
	assert.Contains(t, result.Details, "throughput_per_second")
}

func TestSyncMessages_TagsProvenance(t *testing.T) {
	secondary := &fakeSecondary{
		pending: map[string][]backend.Message{
			"123@g.us": testMessages("m1"),
		},
	}
	primary := &fakePrimary{}

	svc := newTestService(secondary, primary, nil)
	result := svc.SyncMessages(context.Background(), "123@g.us")

	require.True(t, result.Success)
	require.Len(t, primary.inserted, 1)
	assert.Equal(t, "123@g.us", primary.inserted[0].ChatJID)
	assert.Equal(t, "baileys", primary.inserted[0].SyncSource)
}

func TestSyncMessages_NoPendingMessages(t *testing.T) {
	secondary := &fakeSecondary{pending: map[string][]backend.Message{}}
	primary := &fakePrimary{}
	checkpoints := &fakeCheckpoints{}

	svc := newTestService(secondary, primary, checkpoints)
	result := svc.SyncMessages(context.Background(), "123@g.us")

	require.True(t, result.Success)
	assert.Zero(t, result.MessagesSynced)
	assert.Zero(t, result.MessagesDeduplicated)
	assert.Empty(t, primary.inserted)
	assert.Equal(t, []string{"123@g.us"}, secondary.cleared, "empty chat still cleared")
	assert.Empty(t, checkpoints.begun)
}

func TestSyncMessages_AllDuplicates(t *testing.T) {
	secondary := &fakeSecondary{
		pending: map[string][]backend.Message{
			"123@g.us": testMessages("m1", "m2"),
		},
	}
	primary := &fakePrimary{existing: map[string]struct{}{"m1": {}, "m2": {}}}

	svc := newTestService(secondary, primary, nil)
	result := svc.SyncMessages(context.Background(), "123@g.us")

	require.True(t, result.Success)
	assert.Zero(t, result.MessagesSynced)
	assert.Equal(t, 2, result.MessagesDeduplicated)
	assert.Empty(t, primary.inserted)
	assert.Equal(t, []string{"123@g.us"}, secondary.cleared)
}

func TestSyncMessages_DedupLookupFailureKeepsFullBatch(t *testing.T) {
	secondary := &fakeSecondary{
		pending: map[string][]backend.Message{
			"123@g.us": testMessages("m1", "m2", "m3"),
		},
	}
	primary := &fakePrimary{
		existing:  map[string]struct{}{"m2": {}},
		lookupErr: errors.New("lookup timed out"),
	}

	svc := newTestService(secondary, primary, nil)
	result := svc.SyncMessages(context.Background(), "123@g.us")

	require.True(t, result.Success)
	assert.Equal(t, 3, result.MessagesSynced, "duplicates are safer than lost messages")
	assert.Zero(t, result.MessagesDeduplicated)
	assert.Len(t, primary.inserted, 3)
}

func TestSyncMessages_FetchFailureIsFatal(t *testing.T) {
	secondary := &fakeSecondary{fetchErr: errors.New("connection refused")}
	primary := &fakePrimary{}
	checkpoints := &fakeCheckpoints{}

	svc := newTestService(secondary, primary, checkpoints)
	result := svc.SyncMessages(context.Background(), "123@g.us")

	assert.False(t, result.Success)
	assert.Contains(t, result.ErrorMessage, "connection refused")
	assert.Empty(t, secondary.cleared)
	assert.Equal(t, []string{"123@g.us"}, checkpoints.failed)
}

func TestSyncMessages_InsertFailureIsFatal(t *testing.T) {
	secondary := &fakeSecondary{
		pending: map[string][]backend.Message{
			"123@g.us": testMessages("m1"),
		},
	}
	primary := &fakePrimary{insertErr: errors.New("batch insert rejected")}
	checkpoints := &fakeCheckpoints{}

	svc := newTestService(secondary, primary, checkpoints)
	result := svc.SyncMessages(context.Background(), "123@g.us")

	assert.False(t, result.Success)
	assert.Contains(t, result.ErrorMessage, "batch insert rejected")
	assert.Empty(t, secondary.cleared, "transient store kept on insert failure")
	assert.Equal(t, []string{"123@g.us"}, checkpoints.failed)
}

func TestSyncMessages_PartialInsertAccepted(t *testing.T) {
	secondary := &fakeSecondary{
		pending: map[string][]backend.Message{
			"123@g.us": testMessages("m1", "m2", "m3"),
		},
	}
	primary := &fakePrimary{insertedCap: 2}

	svc := newTestService(secondary, primary, nil)
	result := svc.SyncMessages(context.Background(), "123@g.us")

	require.True(t, result.Success)
	assert.Equal(t, 2, result.MessagesSynced, "partial acceptance reported, not retried")
}

func TestSyncMessages_BestEffortFailuresDoNotFailSync(t *testing.T) {
	secondary := &fakeSecondary{
		pending: map[string][]backend.Message{
			"123@g.us": testMessages("m1"),
		},
		clearErr: errors.New("clear endpoint down"),
	}
	primary := &fakePrimary{}
	checkpoints := &fakeCheckpoints{
		beginErr:    errors.New("checkpoint db locked"),
		completeErr: errors.New("checkpoint db locked"),
	}

	svc := newTestService(secondary, primary, checkpoints)
	result := svc.SyncMessages(context.Background(), "123@g.us")

	require.True(t, result.Success)
	assert.Equal(t, 1, result.MessagesSynced)
	assert.Empty(t, result.ErrorMessage)
}

func TestSyncMessages_BatchSizeBoundsFetch(t *testing.T) {
	secondary := &fakeSecondary{
		pending: map[string][]backend.Message{
			"123@g.us": testMessages("m1", "m2", "m3", "m4", "m5"),
		},
	}
	primary := &fakePrimary{}

	svc := dbsync.NewService(dbsync.Config{
		Secondary: secondary,
		Primary:   primary,
		BatchSize: 2,
		Logger:    zerolog.Nop(),
	})

	result := svc.SyncMessages(context.Background(), "123@g.us")

	require.True(t, result.Success)
	assert.Equal(t, 2, result.MessagesSynced)
}

func TestSyncAllChats_ContinuesPastFailures(t *testing.T) {
	secondary := &fakeSecondary{
		pending: map[string][]backend.Message{
			"ok@g.us": testMessages("m1", "m2"),
		},
		chats: []backend.Chat{
			{JID: "bad@g.us"},
			{JID: "ok@g.us"},
		},
		fetchErrFor: map[string]error{
			"bad@g.us": errors.New("fetch failed"),
		},
	}
	primary := &fakePrimary{}

	svc := newTestService(secondary, primary, nil)

	results, err := svc.SyncAllChats(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.False(t, results["bad@g.us"].Success)
	assert.True(t, results["ok@g.us"].Success, "one failed chat must not abort the rest")
	assert.Equal(t, 2, results["ok@g.us"].MessagesSynced)
}

func TestSyncAllChats_ListFailure(t *testing.T) {
	secondary := &fakeSecondary{listErr: errors.New("listing unavailable")}
	primary := &fakePrimary{}

	svc := newTestService(secondary, primary, nil)

	results, err := svc.SyncAllChats(context.Background())
	assert.Error(t, err)
	assert.Empty(t, results)
}
