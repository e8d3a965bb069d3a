// Package api provides the HTTP API for the coordination layer.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/jacopone/whatsapp-mcp/internal/api/handler"
	"github.com/jacopone/whatsapp-mcp/internal/api/middleware"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version   string
	BuildTime string
	Logger    zerolog.Logger
	Metrics   *middleware.Metrics

	Monitor     handler.HealthMonitor
	Router      handler.CallRouter
	RoutingInfo handler.RoutingInfoSource
	Sender      handler.MessageSender
	Syncer      handler.Syncer
	Checkpoints handler.CheckpointLister
	Workflows   handler.WorkflowRunner
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing())
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Monitor)
	backendsHandler := handler.NewBackendsHandler(cfg.Monitor)
	routingHandler := handler.NewRoutingHandler(cfg.RoutingInfo)
	messagesHandler := handler.NewMessagesHandler(cfg.Router, cfg.Sender)
	syncHandler := handler.NewSyncHandler(cfg.Syncer, cfg.Checkpoints)
	workflowsHandler := handler.NewWorkflowsHandler(cfg.Workflows)

	// Sync and workflow runs hit both bridges, keep them on the
	// stricter limit.
	expensiveRateLimit := middleware.RateLimitByIP(middleware.ExpensiveRateLimit)
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.With(standardRateLimit).Get("/summary", opsHandler.Summary)
		})

		r.Route("/backends", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/health", backendsHandler.OverallHealth)
			r.Get("/{backend}/health", backendsHandler.BackendHealth)
		})

		r.Route("/routing", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/info", routingHandler.Info)
		})

		r.With(standardRateLimit).Post("/messages/send", messagesHandler.Send)

		r.Route("/sync", func(r chi.Router) {
			r.With(expensiveRateLimit).Post("/chats", syncHandler.SyncAll)
			r.With(expensiveRateLimit).Post("/chats/{chatJID}", syncHandler.SyncChat)
			r.With(standardRateLimit).Get("/checkpoints", syncHandler.ListCheckpoints)
		})

		r.With(expensiveRateLimit).Post("/workflows/community-read", workflowsHandler.CommunityRead)
	})

	return r
}
