package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacopone/whatsapp-mcp/internal/config"
	"github.com/jacopone/whatsapp-mcp/internal/routing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "8082", cfg.Port)
	assert.Equal(t, config.DefaultGoBridgeURL, cfg.GoBridgeURL)
	assert.Equal(t, config.DefaultBaileysBridgeURL, cfg.BaileysBridgeURL)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 60*time.Second, cfg.MediaTimeout)
	assert.Equal(t, 10*time.Second, cfg.BaileysTimeout)
	assert.Equal(t, 5*time.Second, cfg.ProbeTimeout)
	assert.Equal(t, 1000, cfg.SyncBatchSize)
	assert.Equal(t, "whatsapp-sync.db", cfg.CheckpointDBPath)
	assert.Empty(t, cfg.DefaultStrategy)
	assert.False(t, cfg.OTELEnabled)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GO_BRIDGE_URL", "http://go-bridge:9000")
	t.Setenv("BAILEYS_BRIDGE_URL", "http://baileys:9001")
	t.Setenv("REQUEST_TIMEOUT", "45s")
	t.Setenv("SYNC_BATCH_SIZE", "250")
	t.Setenv("ROUTING_DEFAULT_STRATEGY", "round_robin")
	t.Setenv("OTEL_ENABLED", "true")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "http://go-bridge:9000", cfg.GoBridgeURL)
	assert.Equal(t, "http://baileys:9001", cfg.BaileysBridgeURL)
	assert.Equal(t, 45*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 250, cfg.SyncBatchSize)
	assert.Equal(t, routing.StrategyRoundRobin, cfg.DefaultStrategy)
	assert.True(t, cfg.OTELEnabled)
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("REQUEST_TIMEOUT", "soon")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REQUEST_TIMEOUT")
}

func TestLoad_InvalidBatchSize(t *testing.T) {
	t.Setenv("SYNC_BATCH_SIZE", "lots")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SYNC_BATCH_SIZE")
}

func TestLoad_InvalidStrategy(t *testing.T) {
	t.Setenv("ROUTING_DEFAULT_STRATEGY", "coin_flip")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ROUTING_DEFAULT_STRATEGY")
}

func TestStrategies_DefaultTable(t *testing.T) {
	cfg := config.Config{}

	strategies := cfg.Strategies()

	assert.Equal(t, routing.DefaultStrategies(), strategies)
}

func TestStrategies_OverrideKeepsHistoryPin(t *testing.T) {
	cfg := config.Config{DefaultStrategy: routing.StrategyFastest}

	strategies := cfg.Strategies()

	assert.Equal(t, routing.StrategyFastest, strategies[routing.OpSendMessage])
	assert.Equal(t, routing.StrategyFastest, strategies[routing.OpListChats])
	assert.Equal(t, routing.StrategyPreferBaileys, strategies[routing.OpSyncFullHistory])
}
