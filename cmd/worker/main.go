// Package main provides the entrypoint for the background sync worker.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/jacopone/whatsapp-mcp/internal/backend/baileysclient"
	"github.com/jacopone/whatsapp-mcp/internal/backend/goclient"
	"github.com/jacopone/whatsapp-mcp/internal/backend/health"
	"github.com/jacopone/whatsapp-mcp/internal/checkpoint"
	"github.com/jacopone/whatsapp-mcp/internal/config"
	"github.com/jacopone/whatsapp-mcp/internal/dbsync"
	"github.com/jacopone/whatsapp-mcp/internal/resilience"
	"github.com/jacopone/whatsapp-mcp/internal/telemetry"
	"github.com/jacopone/whatsapp-mcp/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "whatsapp-mcp-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting sync worker")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	goClient := goclient.NewClient(goclient.Config{
		BaseURL:      cfg.GoBridgeURL,
		Timeout:      cfg.RequestTimeout,
		MediaTimeout: cfg.MediaTimeout,
		Transport: resilience.NewTransport(resilience.TransportConfig{
			Name:       "go-bridge",
			MaxRetries: uint64(cfg.MaxRetries),
		}),
		Logger: log,
	})
	baileysClient := baileysclient.NewClient(baileysclient.Config{
		BaseURL: cfg.BaileysBridgeURL,
		Timeout: cfg.BaileysTimeout,
		Transport: resilience.NewTransport(resilience.TransportConfig{
			Name:       "baileys-bridge",
			MaxRetries: uint64(cfg.MaxRetries),
		}),
		Logger: log,
	})

	monitor := health.NewMonitor(health.Config{
		GoURL:        cfg.GoBridgeURL,
		BaileysURL:   cfg.BaileysBridgeURL,
		ProbeTimeout: cfg.ProbeTimeout,
		Logger:       log,
	})

	checkpoints, err := checkpoint.Open(cfg.CheckpointDBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.CheckpointDBPath).Msg("failed to open checkpoint store")
	}
	defer func() {
		if closeErr := checkpoints.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("failed to close checkpoint store")
		}
	}()

	syncService := dbsync.NewService(dbsync.Config{
		Secondary:   baileysClient,
		Primary:     goClient,
		Checkpoints: checkpoints,
		BatchSize:   cfg.SyncBatchSize,
		Logger:      log,
	})

	job := worker.NewSyncJob(worker.SyncJobConfig{
		Health: monitor,
		Syncer: syncService,
		Logger: log,
	})

	// Liveness and metrics endpoint for the orchestrator.
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":  "healthy",
			"version": Version,
		})
	})
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(job.MetricsSnapshot())
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("health server error")
		}
	}()

	go func() {
		log.Info().
			Dur("interval", cfg.WorkerInterval).
			Msg("sync loop started")

		// Run once at startup so a fresh deploy drains the backlog
		// without waiting a full interval.
		job.Run(ctx)

		ticker := time.NewTicker(cfg.WorkerInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("sync loop stopped")
				return
			case <-ticker.C:
				job.Run(ctx)
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
