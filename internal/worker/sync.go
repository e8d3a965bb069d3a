// Package worker provides background jobs for the coordination layer.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jacopone/whatsapp-mcp/internal/backend"
	"github.com/jacopone/whatsapp-mcp/internal/backend/health"
	"github.com/jacopone/whatsapp-mcp/internal/dbsync"
)

// HealthChecker provides the pre-run health view.
type HealthChecker interface {
	CheckAll(ctx context.Context) health.OverallHealth
}

// Syncer moves transient messages into the durable store.
type Syncer interface {
	SyncAllChats(ctx context.Context) (map[string]dbsync.SyncResult, error)
}

// SyncJobConfig holds configuration for creating a SyncJob.
type SyncJobConfig struct {
	Health HealthChecker
	Syncer Syncer

	// Timeout bounds one full sync pass. Default: 10 minutes
	Timeout time.Duration

	Logger zerolog.Logger
}

// SyncJob periodically drains the baileys transient store into the
// durable store so messages survive bridge restarts.
type SyncJob struct {
	health  HealthChecker
	syncer  Syncer
	timeout time.Duration
	logger  zerolog.Logger

	mu      sync.RWMutex
	metrics SyncMetrics
}

// SyncMetrics tracks sync job statistics.
type SyncMetrics struct {
	TotalRuns       int64         `json:"total_runs"`
	SkippedRuns     int64         `json:"skipped_runs"`
	ChatsSynced     int64         `json:"chats_synced"`
	ChatsFailed     int64         `json:"chats_failed"`
	MessagesMoved   int64         `json:"messages_moved"`
	MessagesDeduped int64         `json:"messages_deduped"`
	LastRunAt       time.Time     `json:"last_run_at"`
	LastRunDuration time.Duration `json:"last_run_duration"`
	LastError       string        `json:"last_error,omitempty"`
}

// NewSyncJob creates a new sync job.
func NewSyncJob(cfg SyncJobConfig) *SyncJob {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Minute
	}

	return &SyncJob{
		health:  cfg.Health,
		syncer:  cfg.Syncer,
		timeout: cfg.Timeout,
		logger:  cfg.Logger.With().Str("component", "sync_job").Logger(),
	}
}

// RunResult contains the outcome of one sync pass.
type RunResult struct {
	Skipped      bool
	ChatsSynced  int
	ChatsFailed  int
	Messages     int
	Deduplicated int
	Duration     time.Duration
	Err          error
}

// Run executes one sync pass. The run is skipped when the baileys
// bridge is unavailable: there is nothing to drain without it.
func (j *SyncJob) Run(ctx context.Context) RunResult {
	start := time.Now()

	runCtx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	overall := j.health.CheckAll(runCtx)
	if !overall.ForBackend(backend.BackendBaileys).Available() {
		j.logger.Warn().Msg("baileys bridge unavailable, skipping sync run")
		result := RunResult{Skipped: true, Duration: time.Since(start)}
		j.record(result)
		return result
	}

	results, err := j.syncer.SyncAllChats(runCtx)
	if err != nil {
		j.logger.Error().Err(err).Msg("sync run failed")
		result := RunResult{Err: err, Duration: time.Since(start)}
		j.record(result)
		return result
	}

	result := RunResult{Duration: time.Since(start)}
	for _, r := range results {
		if r.Success {
			result.ChatsSynced++
		} else {
			result.ChatsFailed++
		}
		result.Messages += r.MessagesSynced
		result.Deduplicated += r.MessagesDeduplicated
	}
	j.record(result)

	j.logger.Info().
		Int("chats_synced", result.ChatsSynced).
		Int("chats_failed", result.ChatsFailed).
		Int("messages", result.Messages).
		Int("deduplicated", result.Deduplicated).
		Dur("duration", result.Duration).
		Msg("sync run completed")

	return result
}

func (j *SyncJob) record(result RunResult) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.metrics.TotalRuns++
	if result.Skipped {
		j.metrics.SkippedRuns++
	}
	j.metrics.ChatsSynced += int64(result.ChatsSynced)
	j.metrics.ChatsFailed += int64(result.ChatsFailed)
	j.metrics.MessagesMoved += int64(result.Messages)
	j.metrics.MessagesDeduped += int64(result.Deduplicated)
	j.metrics.LastRunAt = time.Now()
	j.metrics.LastRunDuration = result.Duration
	if result.Err != nil {
		j.metrics.LastError = result.Err.Error()
	} else {
		j.metrics.LastError = ""
	}
}

// MetricsSnapshot returns a copy of the current metrics.
func (j *SyncJob) MetricsSnapshot() SyncMetrics {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.metrics
}
