// Package main provides the entrypoint for the coordination API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/jacopone/whatsapp-mcp/internal/api"
	"github.com/jacopone/whatsapp-mcp/internal/api/middleware"
	"github.com/jacopone/whatsapp-mcp/internal/backend/baileysclient"
	"github.com/jacopone/whatsapp-mcp/internal/backend/goclient"
	"github.com/jacopone/whatsapp-mcp/internal/backend/health"
	"github.com/jacopone/whatsapp-mcp/internal/checkpoint"
	"github.com/jacopone/whatsapp-mcp/internal/config"
	"github.com/jacopone/whatsapp-mcp/internal/dbsync"
	"github.com/jacopone/whatsapp-mcp/internal/resilience"
	"github.com/jacopone/whatsapp-mcp/internal/routing"
	"github.com/jacopone/whatsapp-mcp/internal/telemetry"
	"github.com/jacopone/whatsapp-mcp/internal/workflow"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "whatsapp-mcp-api"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting coordination API")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.OTELEnabled {
		log.Info().
			Str("otlp_endpoint", cfg.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	// Bridge clients share a retrying transport with a per-bridge
	// circuit breaker.
	goTransport := resilience.NewTransport(resilience.TransportConfig{
		Name:       "go-bridge",
		MaxRetries: uint64(cfg.MaxRetries),
	})
	baileysTransport := resilience.NewTransport(resilience.TransportConfig{
		Name:       "baileys-bridge",
		MaxRetries: uint64(cfg.MaxRetries),
	})

	goClient := goclient.NewClient(goclient.Config{
		BaseURL:      cfg.GoBridgeURL,
		Timeout:      cfg.RequestTimeout,
		MediaTimeout: cfg.MediaTimeout,
		Transport:    goTransport,
		Logger:       log,
	})
	baileysClient := baileysclient.NewClient(baileysclient.Config{
		BaseURL:   cfg.BaileysBridgeURL,
		Timeout:   cfg.BaileysTimeout,
		Transport: baileysTransport,
		Logger:    log,
	})

	monitor := health.NewMonitor(health.Config{
		GoURL:        cfg.GoBridgeURL,
		BaileysURL:   cfg.BaileysBridgeURL,
		ProbeTimeout: cfg.ProbeTimeout,
		Logger:       log,
	})

	router := routing.NewRouter(routing.Config{
		Health:     monitor,
		Strategies: cfg.Strategies(),
		Logger:     log,
	})
	log.Info().Msg("router initialized")

	checkpoints, err := checkpoint.Open(cfg.CheckpointDBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.CheckpointDBPath).Msg("failed to open checkpoint store")
	}
	defer func() {
		if closeErr := checkpoints.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("failed to close checkpoint store")
		}
	}()
	log.Info().Str("path", cfg.CheckpointDBPath).Msg("checkpoint store opened")

	syncService := dbsync.NewService(dbsync.Config{
		Secondary:   baileysClient,
		Primary:     goClient,
		Checkpoints: checkpoints,
		BatchSize:   cfg.SyncBatchSize,
		Logger:      log,
	})
	log.Info().Msg("database sync service initialized")

	orchestrator := workflow.NewOrchestrator(workflow.Config{
		Health:       monitor,
		History:      baileysClient,
		Syncer:       syncService,
		Router:       router,
		Marker:       goClient,
		SyncTimeout:  cfg.SyncWaitTimeout,
		PollInterval: cfg.SyncPollInterval,
		Logger:       log,
	})
	log.Info().Msg("workflow orchestrator initialized")

	apiRouter := api.NewRouter(api.RouterConfig{
		Version:     Version,
		BuildTime:   BuildTime,
		Logger:      log,
		Metrics:     metrics,
		Monitor:     monitor,
		Router:      router,
		RoutingInfo: router,
		Sender:      goClient,
		Syncer:      syncService,
		Checkpoints: checkpoints,
		Workflows:   orchestrator,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      apiRouter,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * cfg.SyncWaitTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
