// Package routing selects which WhatsApp bridge handles an operation
// based on health status and per-operation strategy, and dispatches
// calls with optional fallback to the other bridge.
package routing

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/jacopone/whatsapp-mcp/internal/backend"
	"github.com/jacopone/whatsapp-mcp/internal/backend/health"
)

// Predefined routing errors.
var (
	// ErrNoBackendAvailable is returned when no bridge can serve the call.
	ErrNoBackendAvailable = errors.New("no backend available")

	// ErrBaileysNotSupported is returned when routing selects baileys but
	// the call has no baileys implementation.
	ErrBaileysNotSupported = errors.New("baileys backend not supported for this operation")
)

// HealthSource provides the health view the router decides on.
// *health.Monitor satisfies it.
type HealthSource interface {
	CheckAll(ctx context.Context) health.OverallHealth
	IsAvailable(ctx context.Context, b backend.Backend) bool
}

// CallFunc is one backend-specific implementation of an operation.
type CallFunc func(ctx context.Context) (any, error)

// Call describes a routable operation. Go is mandatory; Baileys may be
// nil for operations only the go bridge implements. Required pins the
// call to one backend, bypassing strategy selection.
type Call struct {
	Operation OperationType
	Go        CallFunc
	Baileys   CallFunc
	Required  backend.Backend
}

// Config holds router configuration.
type Config struct {
	// Health is the health source decisions are based on. Required.
	Health HealthSource

	// Strategies overrides the per-operation strategy table.
	// Default: DefaultStrategies()
	Strategies map[OperationType]Strategy

	// Logger for routing decisions.
	Logger zerolog.Logger
}

// Router picks a backend per operation and dispatches calls.
type Router struct {
	health     HealthSource
	strategies map[OperationType]Strategy
	logger     zerolog.Logger

	roundRobin atomic.Uint64
}

// NewRouter creates a router with defaults filled in.
func NewRouter(cfg Config) *Router {
	if cfg.Strategies == nil {
		cfg.Strategies = DefaultStrategies()
	}

	return &Router{
		health:     cfg.Health,
		strategies: cfg.Strategies,
		logger:     cfg.Logger.With().Str("component", "router").Logger(),
	}
}

// SelectBackend returns the backend that would serve the operation right
// now, or false when none is available. Selection is driven by a fresh
// health check.
func (r *Router) SelectBackend(ctx context.Context, op OperationType) (backend.Backend, bool) {
	strategy, ok := r.strategies[op]
	if !ok {
		strategy = StrategyPreferGo
	}

	overall := r.health.CheckAll(ctx)
	available := overall.AvailableBackends

	switch strategy {
	case StrategyPrimaryOnly:
		if overall.PrimaryBackend == backend.BackendNone {
			return backend.BackendNone, false
		}
		return overall.PrimaryBackend, true

	case StrategyPreferGo:
		return r.selectWithPreference(backend.BackendGo, backend.BackendBaileys, available, op)

	case StrategyPreferBaileys:
		return r.selectWithPreference(backend.BackendBaileys, backend.BackendGo, available, op)

	case StrategyRoundRobin:
		if len(available) == 0 {
			return backend.BackendNone, false
		}
		idx := r.roundRobin.Add(1) % uint64(len(available))
		return available[idx], true

	case StrategyFastest:
		if fastest, ok := r.selectFastest(overall); ok {
			return fastest, true
		}
		return r.selectWithPreference(backend.BackendGo, backend.BackendBaileys, available, op)
	}

	return backend.BackendNone, false
}

func (r *Router) selectWithPreference(preferred, fallback backend.Backend, available []backend.Backend, op OperationType) (backend.Backend, bool) {
	if contains(available, preferred) {
		return preferred, true
	}
	if contains(available, fallback) {
		r.logger.Info().
			Str("operation", string(op)).
			Str("preferred", string(preferred)).
			Str("selected", string(fallback)).
			Msg("preferred backend unavailable, using fallback")
		return fallback, true
	}
	return backend.BackendNone, false
}

// selectFastest compares probe times when both bridges are usable.
// Ties go to baileys: the comparison is strictly less-than.
func (r *Router) selectFastest(overall health.OverallHealth) (backend.Backend, bool) {
	if !overall.Go.Available() || !overall.Baileys.Available() {
		return backend.BackendNone, false
	}
	if overall.Go.ResponseTimeMS < overall.Baileys.ResponseTimeMS {
		return backend.BackendGo, true
	}
	return backend.BackendBaileys, true
}

// RouteCall selects a backend for the call and invokes its function.
// When Required is set, only that backend is considered. Returns
// ErrNoBackendAvailable without invoking anything when no backend can
// serve the call.
func (r *Router) RouteCall(ctx context.Context, call Call) (any, error) {
	var selected backend.Backend

	if call.Required != "" {
		if !r.health.IsAvailable(ctx, call.Required) {
			r.logger.Warn().
				Str("operation", string(call.Operation)).
				Str("required", string(call.Required)).
				Msg("required backend is not available")
			return nil, ErrNoBackendAvailable
		}
		selected = call.Required
	} else {
		b, ok := r.SelectBackend(ctx, call.Operation)
		if !ok {
			r.logger.Error().
				Str("operation", string(call.Operation)).
				Msg("no backend available for operation")
			return nil, ErrNoBackendAvailable
		}
		selected = b
	}

	switch selected {
	case backend.BackendGo:
		r.logger.Debug().
			Str("operation", string(call.Operation)).
			Msg("routing to go backend")
		return call.Go(ctx)

	case backend.BackendBaileys:
		if call.Baileys == nil {
			r.logger.Error().
				Str("operation", string(call.Operation)).
				Msg("baileys implementation not provided")
			return nil, ErrBaileysNotSupported
		}
		r.logger.Debug().
			Str("operation", string(call.Operation)).
			Msg("routing to baileys backend")
		return call.Baileys(ctx)
	}

	return nil, ErrNoBackendAvailable
}

// RouteWithFallback routes the call and, when the selected backend's
// function fails in flight, retries once on the other backend if it is
// currently available. The primary error is returned unchanged when no
// alternate exists. The returned backend is the one that actually
// served the call.
func (r *Router) RouteWithFallback(ctx context.Context, call Call) (any, backend.Backend, error) {
	primary, ok := r.SelectBackend(ctx, call.Operation)
	if !ok {
		return nil, backend.BackendNone, ErrNoBackendAvailable
	}

	pinned := call
	pinned.Required = primary

	result, err := r.RouteCall(ctx, pinned)
	if err == nil {
		return result, primary, nil
	}

	r.logger.Warn().
		Str("operation", string(call.Operation)).
		Str("primary", string(primary)).
		Err(err).
		Msg("primary backend failed, trying fallback")

	overall := r.health.CheckAll(ctx)
	fallback := backend.BackendNone
	for _, b := range overall.AvailableBackends {
		if b != primary {
			fallback = b
			break
		}
	}

	if fallback == backend.BackendNone {
		r.logger.Error().
			Str("operation", string(call.Operation)).
			Msg("no fallback backend available")
		return nil, backend.BackendNone, err
	}

	pinned.Required = fallback
	result, err = r.RouteCall(ctx, pinned)
	if err != nil {
		return nil, backend.BackendNone, err
	}
	return result, fallback, nil
}

// IsOperationAvailable reports whether any backend can serve the
// operation right now.
func (r *Router) IsOperationAvailable(ctx context.Context, op OperationType) bool {
	_, ok := r.SelectBackend(ctx, op)
	return ok
}

// Info is the routing introspection snapshot.
type Info struct {
	PrimaryBackend    backend.Backend            `json:"primary_backend"`
	AvailableBackends []backend.Backend          `json:"available_backends"`
	Strategies        map[OperationType]Strategy `json:"routing_strategies"`
	BackendHealth     map[string]BackendSummary  `json:"backend_health"`
}

// BackendSummary is the per-backend slice of Info.
type BackendSummary struct {
	Status         health.Status `json:"status"`
	ResponseTimeMS float64       `json:"response_time_ms"`
}

// RoutingInfo returns the current routing state and strategy table.
func (r *Router) RoutingInfo(ctx context.Context) Info {
	overall := r.health.CheckAll(ctx)

	strategies := make(map[OperationType]Strategy, len(r.strategies))
	for op, s := range r.strategies {
		strategies[op] = s
	}

	return Info{
		PrimaryBackend:    overall.PrimaryBackend,
		AvailableBackends: overall.AvailableBackends,
		Strategies:        strategies,
		BackendHealth: map[string]BackendSummary{
			string(backend.BackendGo): {
				Status:         overall.Go.Status,
				ResponseTimeMS: overall.Go.ResponseTimeMS,
			},
			string(backend.BackendBaileys): {
				Status:         overall.Baileys.Status,
				ResponseTimeMS: overall.Baileys.ResponseTimeMS,
			},
		},
	}
}

func contains(backends []backend.Backend, b backend.Backend) bool {
	for _, x := range backends {
		if x == b {
			return true
		}
	}
	return false
}
