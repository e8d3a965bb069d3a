package worker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacopone/whatsapp-mcp/internal/backend"
	"github.com/jacopone/whatsapp-mcp/internal/backend/health"
	"github.com/jacopone/whatsapp-mcp/internal/dbsync"
	"github.com/jacopone/whatsapp-mcp/internal/worker"
)

type stubHealth struct {
	baileysStatus health.Status
}

func (s *stubHealth) CheckAll(_ context.Context) health.OverallHealth {
	return health.OverallHealth{
		Go:      health.BackendHealth{Backend: backend.BackendGo, Status: health.StatusOK},
		Baileys: health.BackendHealth{Backend: backend.BackendBaileys, Status: s.baileysStatus},
	}
}

type stubSyncer struct {
	results map[string]dbsync.SyncResult
	err     error
	calls   int
}

func (s *stubSyncer) SyncAllChats(_ context.Context) (map[string]dbsync.SyncResult, error) {
	s.calls++
	return s.results, s.err
}

func newJob(h *stubHealth, s *stubSyncer) *worker.SyncJob {
	return worker.NewSyncJob(worker.SyncJobConfig{
		Health:  h,
		Syncer:  s,
		Timeout: time.Minute,
		Logger:  zerolog.Nop(),
	})
}

func TestRun_SyncsAndAggregates(t *testing.T) {
	syncer := &stubSyncer{results: map[string]dbsync.SyncResult{
		"a@g.us": {Success: true, MessagesSynced: 40, MessagesDeduplicated: 5},
		"b@g.us": {Success: true, MessagesSynced: 10},
		"c@g.us": {ErrorMessage: "insert messages: connection refused"},
	}}
	job := newJob(&stubHealth{baileysStatus: health.StatusOK}, syncer)

	result := job.Run(context.Background())

	assert.False(t, result.Skipped)
	assert.Equal(t, 2, result.ChatsSynced)
	assert.Equal(t, 1, result.ChatsFailed)
	assert.Equal(t, 50, result.Messages)
	assert.Equal(t, 5, result.Deduplicated)
	require.NoError(t, result.Err)
}

func TestRun_SkipsWhenBaileysDown(t *testing.T) {
	syncer := &stubSyncer{}
	job := newJob(&stubHealth{baileysStatus: health.StatusUnreachable}, syncer)

	result := job.Run(context.Background())

	assert.True(t, result.Skipped)
	assert.Zero(t, syncer.calls)

	metrics := job.MetricsSnapshot()
	assert.Equal(t, int64(1), metrics.TotalRuns)
	assert.Equal(t, int64(1), metrics.SkippedRuns)
}

func TestRun_ErrorRecorded(t *testing.T) {
	syncer := &stubSyncer{err: errors.New("baileys bridge: list chats: HTTP 500")}
	job := newJob(&stubHealth{baileysStatus: health.StatusOK}, syncer)

	result := job.Run(context.Background())

	require.Error(t, result.Err)

	metrics := job.MetricsSnapshot()
	assert.Contains(t, metrics.LastError, "list chats")
}

func TestRun_SuccessClearsLastError(t *testing.T) {
	syncer := &stubSyncer{err: errors.New("transient")}
	job := newJob(&stubHealth{baileysStatus: health.StatusOK}, syncer)

	job.Run(context.Background())
	require.NotEmpty(t, job.MetricsSnapshot().LastError)

	syncer.err = nil
	syncer.results = map[string]dbsync.SyncResult{"a@g.us": {Success: true, MessagesSynced: 1}}
	job.Run(context.Background())

	metrics := job.MetricsSnapshot()
	assert.Empty(t, metrics.LastError)
	assert.Equal(t, int64(2), metrics.TotalRuns)
	assert.Equal(t, int64(1), metrics.MessagesMoved)
	assert.False(t, metrics.LastRunAt.IsZero())
}
