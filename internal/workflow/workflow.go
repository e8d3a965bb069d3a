// Package workflow composes health checking, history retrieval,
// database sync, and routed backend operations into multi-step hybrid
// runs with per-step reporting.
package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jacopone/whatsapp-mcp/internal/backend"
	"github.com/jacopone/whatsapp-mcp/internal/backend/baileysclient"
	"github.com/jacopone/whatsapp-mcp/internal/backend/goclient"
	"github.com/jacopone/whatsapp-mcp/internal/backend/health"
	"github.com/jacopone/whatsapp-mcp/internal/dbsync"
	"github.com/jacopone/whatsapp-mcp/internal/routing"
)

// Default history sync wait parameters.
const (
	DefaultSyncTimeout  = 5 * time.Minute
	DefaultPollInterval = 5 * time.Second
)

// HealthChecker provides the pre-flight health view.
type HealthChecker interface {
	CheckAll(ctx context.Context) health.OverallHealth
}

// HistorySource drives history retrieval on the baileys bridge.
type HistorySource interface {
	SyncStatus(ctx context.Context) (baileysclient.SyncStatus, error)
	WaitForSyncCompletion(ctx context.Context, timeout, pollInterval time.Duration) bool
	ClearAll(ctx context.Context) error
}

// Syncer moves retrieved history into the durable store.
type Syncer interface {
	SyncAllChats(ctx context.Context) (map[string]dbsync.SyncResult, error)
}

// CallRouter dispatches the routed backend operation.
type CallRouter interface {
	RouteCall(ctx context.Context, call routing.Call) (any, error)
}

// CommunityMarker marks a community's groups as read on the go bridge.
type CommunityMarker interface {
	MarkCommunityAsRead(ctx context.Context, communityJID string) (goclient.MarkCommunityReadResult, error)
}

// Config holds orchestrator configuration.
type Config struct {
	Health  HealthChecker
	History HistorySource
	Syncer  Syncer
	Router  CallRouter
	Marker  CommunityMarker

	// SyncTimeout bounds the history sync wait. Default: DefaultSyncTimeout
	SyncTimeout time.Duration

	// PollInterval between history sync status checks.
	// Default: DefaultPollInterval
	PollInterval time.Duration

	Logger zerolog.Logger
}

// Orchestrator runs hybrid workflows across both bridges.
type Orchestrator struct {
	health       HealthChecker
	history      HistorySource
	syncer       Syncer
	router       CallRouter
	marker       CommunityMarker
	syncTimeout  time.Duration
	pollInterval time.Duration
	logger       zerolog.Logger
}

// NewOrchestrator creates an orchestrator with defaults filled in.
func NewOrchestrator(cfg Config) *Orchestrator {
	if cfg.SyncTimeout == 0 {
		cfg.SyncTimeout = DefaultSyncTimeout
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	return &Orchestrator{
		health:       cfg.Health,
		history:      cfg.History,
		syncer:       cfg.Syncer,
		router:       cfg.Router,
		marker:       cfg.Marker,
		syncTimeout:  cfg.SyncTimeout,
		pollInterval: cfg.PollInterval,
		logger:       cfg.Logger.With().Str("component", "workflow").Logger(),
	}
}

// MarkCommunityReadWithHistory retrieves full history via baileys, syncs
// it into the durable store, and marks every group in the community as
// read via the routed go bridge. The step sequence halts at the first
// hard failure, but cleanup of the transient store always runs and is
// always recorded.
// The named return lets the deferred cleanup mutate the report the
// caller actually receives.
func (o *Orchestrator) MarkCommunityReadWithHistory(ctx context.Context, communityJID string) (report Report) {
	report = Report{
		ID:           uuid.New().String(),
		CommunityJID: communityJID,
		StartedAt:    time.Now(),
	}

	logger := o.logger.With().
		Str("workflow_id", report.ID).
		Str("community_jid", communityJID).
		Logger()
	logger.Info().Msg("starting community read workflow")

	// Cleanup is best-effort and runs regardless of earlier failures.
	defer func() {
		report.Steps = append(report.Steps, o.cleanupStep(ctx, logger))
		report.Duration = time.Since(report.StartedAt)
		logger.Info().
			Bool("success", report.Success).
			Dur("duration", report.Duration).
			Msg("community read workflow finished")
	}()

	healthStep, ok := o.healthStep(ctx)
	report.Steps = append(report.Steps, healthStep)
	if !ok {
		report.Message = healthStep.Err
		return report
	}

	historyStep, ok := o.historyStep(ctx, logger)
	report.Steps = append(report.Steps, historyStep)
	if !ok {
		report.Message = fmt.Sprintf("history sync failed: %s", historyStep.Err)
		return report
	}

	syncStep, ok := o.databaseSyncStep(ctx)
	report.Steps = append(report.Steps, syncStep)
	if !ok {
		report.Message = fmt.Sprintf("database sync failed: %s", syncStep.Err)
		return report
	}

	step, result := o.markReadStep(ctx, communityJID)
	report.Steps = append(report.Steps, step)
	if !step.OK {
		report.Message = fmt.Sprintf("mark as read failed: %s", step.Err)
		return report
	}

	report.Success = true
	report.Message = fmt.Sprintf("history synced and community marked as read: %s", result.Message)
	return report
}

func (o *Orchestrator) healthStep(ctx context.Context) (Step, bool) {
	start := time.Now()
	overall := o.health.CheckAll(ctx)

	step := Step{Name: "health_check", StartedAt: start}

	// The hybrid flow needs both bridges: baileys retrieves history,
	// go persists and marks read.
	if overall.Status == health.StatusError ||
		!overall.Go.Available() || !overall.Baileys.Available() {
		step.Duration = time.Since(start)
		step.Err = "one or more backends are not available"
		return step, false
	}

	step.Duration = time.Since(start)
	step.OK = true
	step.Detail = fmt.Sprintf("both backends available, primary %s", overall.PrimaryBackend)
	return step, true
}

func (o *Orchestrator) historyStep(ctx context.Context, logger zerolog.Logger) (Step, bool) {
	start := time.Now()
	step := Step{Name: "history_sync", StartedAt: start}

	status, err := o.history.SyncStatus(ctx)
	if err != nil {
		step.Duration = time.Since(start)
		step.Err = err.Error()
		return step, false
	}

	if !status.Connected {
		step.Duration = time.Since(start)
		step.Err = "baileys bridge not connected to WhatsApp"
		return step, false
	}

	if status.IsLatest && !status.IsSyncing {
		step.Duration = time.Since(start)
		step.OK = true
		step.Detail = fmt.Sprintf("history already synced, %d messages available", status.MessagesSynced)
		return step, true
	}

	logger.Info().Msg("waiting for baileys history sync")
	if !o.history.WaitForSyncCompletion(ctx, o.syncTimeout, o.pollInterval) {
		step.Duration = time.Since(start)
		step.Err = "history sync timed out or failed"
		return step, false
	}

	final, err := o.history.SyncStatus(ctx)
	step.Duration = time.Since(start)
	step.OK = true
	if err == nil {
		step.Detail = fmt.Sprintf("%d messages retrieved", final.MessagesSynced)
	}
	return step, true
}

func (o *Orchestrator) databaseSyncStep(ctx context.Context) (Step, bool) {
	start := time.Now()
	step := Step{Name: "database_sync", StartedAt: start}

	results, err := o.syncer.SyncAllChats(ctx)
	if err != nil {
		step.Duration = time.Since(start)
		step.Err = err.Error()
		return step, false
	}

	var synced, deduplicated, failed int
	for _, result := range results {
		synced += result.MessagesSynced
		deduplicated += result.MessagesDeduplicated
		if !result.Success {
			failed++
		}
	}

	step.Duration = time.Since(start)
	if failed > 0 {
		step.Err = fmt.Sprintf("%d of %d chats failed to sync", failed, len(results))
		return step, false
	}

	step.OK = true
	step.Detail = fmt.Sprintf("%d new messages, %d already existed", synced, deduplicated)
	return step, true
}

func (o *Orchestrator) markReadStep(ctx context.Context, communityJID string) (Step, goclient.MarkCommunityReadResult) {
	start := time.Now()
	step := Step{Name: "mark_as_read", StartedAt: start}

	raw, err := o.router.RouteCall(ctx, routing.Call{
		Operation: routing.OpMarkCommunityAsRead,
		Required:  backend.BackendGo,
		Go: func(ctx context.Context) (any, error) {
			return o.marker.MarkCommunityAsRead(ctx, communityJID)
		},
	})
	step.Duration = time.Since(start)

	if err != nil {
		step.Err = err.Error()
		return step, goclient.MarkCommunityReadResult{}
	}

	result, _ := raw.(goclient.MarkCommunityReadResult)
	if !result.Success {
		step.Err = result.Message
		return step, result
	}

	step.OK = true
	step.Detail = result.Message
	return step, result
}

func (o *Orchestrator) cleanupStep(ctx context.Context, logger zerolog.Logger) Step {
	start := time.Now()
	step := Step{Name: "cleanup", StartedAt: start}

	if err := o.history.ClearAll(ctx); err != nil {
		logger.Warn().Err(err).Msg("failed to clear transient store")
		step.Duration = time.Since(start)
		step.Err = err.Error()
		return step
	}

	step.Duration = time.Since(start)
	step.OK = true
	step.Detail = "transient store cleared"
	return step
}
