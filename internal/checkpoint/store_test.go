package checkpoint_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacopone/whatsapp-mcp/internal/checkpoint"
)

func openTestStore(t *testing.T) *checkpoint.Store {
	t.Helper()

	store, err := checkpoint.Open(filepath.Join(t.TempDir(), "checkpoints.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func TestStore_GetMissing(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Get(context.Background(), "123@g.us")
	assert.ErrorIs(t, err, checkpoint.ErrNotFound)
}

func TestStore_BeginThenComplete(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.BeginSync(ctx, "123@g.us"))

	cp, err := store.Get(ctx, "123@g.us")
	require.NoError(t, err)
	assert.True(t, cp.SyncInProgress)
	assert.Zero(t, cp.MessagesSynced)

	require.NoError(t, store.CompleteSync(ctx, "123@g.us", "m42", 1700000042, 50))

	cp, err = store.Get(ctx, "123@g.us")
	require.NoError(t, err)
	assert.False(t, cp.SyncInProgress)
	assert.Equal(t, "m42", cp.LastSyncedMessageID)
	assert.Equal(t, int64(1700000042), cp.LastSyncedTimestamp)
	assert.Equal(t, 50, cp.MessagesSynced)
	assert.Empty(t, cp.LastError)
	assert.False(t, cp.UpdatedAt.IsZero())
}

func TestStore_CompleteAccumulatesCount(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CompleteSync(ctx, "123@g.us", "m10", 1700000010, 10))
	require.NoError(t, store.CompleteSync(ctx, "123@g.us", "m25", 1700000025, 15))

	cp, err := store.Get(ctx, "123@g.us")
	require.NoError(t, err)
	assert.Equal(t, 25, cp.MessagesSynced)
	assert.Equal(t, "m25", cp.LastSyncedMessageID)
}

func TestStore_FailSyncRecordsError(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CompleteSync(ctx, "123@g.us", "m10", 1700000010, 10))
	require.NoError(t, store.FailSync(ctx, "123@g.us", "insert messages: connection refused"))

	cp, err := store.Get(ctx, "123@g.us")
	require.NoError(t, err)
	assert.False(t, cp.SyncInProgress)
	assert.Equal(t, "insert messages: connection refused", cp.LastError)
	assert.Equal(t, 10, cp.MessagesSynced, "failure must not touch sync progress")
	assert.Equal(t, "m10", cp.LastSyncedMessageID)
}

func TestStore_CompleteClearsError(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.FailSync(ctx, "123@g.us", "transient outage"))
	require.NoError(t, store.CompleteSync(ctx, "123@g.us", "m1", 1700000001, 1))

	cp, err := store.Get(ctx, "123@g.us")
	require.NoError(t, err)
	assert.Empty(t, cp.LastError)
}

func TestStore_ListOrdersByRecency(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CompleteSync(ctx, "a@g.us", "m1", 1, 1))
	require.NoError(t, store.CompleteSync(ctx, "b@g.us", "m2", 2, 2))

	checkpoints, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, checkpoints, 2)

	jids := []string{checkpoints[0].ChatJID, checkpoints[1].ChatJID}
	assert.ElementsMatch(t, []string{"a@g.us", "b@g.us"}, jids)
}

func TestStore_ListEmpty(t *testing.T) {
	store := openTestStore(t)

	checkpoints, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, checkpoints)
}
