// Package config loads coordination-layer configuration from the
// environment, with an optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/jacopone/whatsapp-mcp/internal/routing"
)

// Defaults for the two bridge endpoints and their timeouts.
const (
	DefaultGoBridgeURL      = "http://localhost:8080"
	DefaultBaileysBridgeURL = "http://localhost:8081"

	DefaultRequestTimeout = 30 * time.Second
	DefaultMediaTimeout   = 60 * time.Second
	DefaultBaileysTimeout = 10 * time.Second
	DefaultProbeTimeout   = 5 * time.Second
)

// Config holds the full runtime configuration.
type Config struct {
	// Port the coordination API listens on.
	Port string

	// GoBridgeURL is the base URL of the whatsmeow bridge.
	GoBridgeURL string

	// BaileysBridgeURL is the base URL of the Baileys bridge.
	BaileysBridgeURL string

	// RequestTimeout applies to standard bridge operations.
	RequestTimeout time.Duration

	// MediaTimeout applies to media upload and download operations.
	MediaTimeout time.Duration

	// BaileysTimeout applies to baileys bridge requests.
	BaileysTimeout time.Duration

	// ProbeTimeout bounds a single health probe.
	ProbeTimeout time.Duration

	// DefaultStrategy overrides the routing strategy for operations
	// without an explicit per-operation entry. Empty keeps the built-in
	// defaults.
	DefaultStrategy routing.Strategy

	// CheckpointDBPath is the SQLite file recording sync progress.
	CheckpointDBPath string

	// SyncBatchSize caps messages fetched per chat per sync pass.
	SyncBatchSize int

	// SyncWaitTimeout bounds waiting for baileys history sync.
	SyncWaitTimeout time.Duration

	// SyncPollInterval between history sync status checks.
	SyncPollInterval time.Duration

	// WorkerInterval between background database sync passes.
	WorkerInterval time.Duration

	// MaxRetries for bridge requests. Zero disables retries.
	MaxRetries int

	Environment string

	OTLPEndpoint string
	OTELEnabled  bool
}

// Load reads configuration from the environment. A .env file in the
// working directory is applied first when present; real environment
// variables take precedence over it.
func Load() (Config, error) {
	// Best-effort: running without a .env file is the normal
	// production case.
	_ = godotenv.Load()

	cfg := Config{
		Port:             getEnvOrDefault("APP_PORT", "8082"),
		GoBridgeURL:      getEnvOrDefault("GO_BRIDGE_URL", DefaultGoBridgeURL),
		BaileysBridgeURL: getEnvOrDefault("BAILEYS_BRIDGE_URL", DefaultBaileysBridgeURL),
		CheckpointDBPath: getEnvOrDefault("CHECKPOINT_DB_PATH", "whatsapp-sync.db"),
		Environment:      getEnvOrDefault("APP_ENV", "development"),
		OTLPEndpoint:     getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTELEnabled:      os.Getenv("OTEL_ENABLED") == "true",
	}

	var err error
	if cfg.RequestTimeout, err = durationFromEnv("REQUEST_TIMEOUT", DefaultRequestTimeout); err != nil {
		return Config{}, err
	}
	if cfg.MediaTimeout, err = durationFromEnv("MEDIA_TIMEOUT", DefaultMediaTimeout); err != nil {
		return Config{}, err
	}
	if cfg.BaileysTimeout, err = durationFromEnv("BAILEYS_TIMEOUT", DefaultBaileysTimeout); err != nil {
		return Config{}, err
	}
	if cfg.ProbeTimeout, err = durationFromEnv("HEALTH_PROBE_TIMEOUT", DefaultProbeTimeout); err != nil {
		return Config{}, err
	}
	if cfg.SyncWaitTimeout, err = durationFromEnv("SYNC_WAIT_TIMEOUT", 5*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.SyncPollInterval, err = durationFromEnv("SYNC_POLL_INTERVAL", 5*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.WorkerInterval, err = durationFromEnv("WORKER_SYNC_INTERVAL", 15*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.SyncBatchSize, err = intFromEnv("SYNC_BATCH_SIZE", 1000); err != nil {
		return Config{}, err
	}
	if cfg.MaxRetries, err = intFromEnv("BRIDGE_MAX_RETRIES", 0); err != nil {
		return Config{}, err
	}

	if raw := os.Getenv("ROUTING_DEFAULT_STRATEGY"); raw != "" {
		strategy := routing.Strategy(raw)
		if !strategy.Valid() {
			return Config{}, fmt.Errorf("invalid ROUTING_DEFAULT_STRATEGY %q", raw)
		}
		cfg.DefaultStrategy = strategy
	}

	return cfg, nil
}

// Strategies returns the per-operation routing table, with the
// configured default strategy applied where set.
func (c Config) Strategies() map[routing.OperationType]routing.Strategy {
	strategies := routing.DefaultStrategies()
	if c.DefaultStrategy == "" {
		return strategies
	}
	for op, strategy := range strategies {
		// Full history sync stays pinned to baileys regardless of the
		// configured default.
		if strategy == routing.StrategyPreferBaileys {
			continue
		}
		strategies[op] = c.DefaultStrategy
	}
	return strategies
}

func durationFromEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}

func intFromEnv(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return n, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
