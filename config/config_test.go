package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmallet07/rideflow/infra/logger"
)

const sampleYAML = `
mqtt:
  broker: tcp://localhost:1883
postgres:
  dsn: postgres://rideflow@localhost/rideflow
redis:
  addr: localhost:6379
dispatch:
  total_budget_seconds: 120
  retry_backoff_seconds: 10
  candidate_limit: 10
  rounds:
    - radius_m: 800
      interval_ms: 20000
    - radius_m: 1500
      interval_ms: 20000
metrics:
  prometheus_enabled: true
jobs:
  penalty_reset_at: "03:30"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadYAML(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, "rideflow-dispatch", cfg.MQTT.ClientID, "default applied")
	assert.Equal(t, 120, cfg.Dispatch.TotalBudgetSeconds)
	require.Len(t, cfg.Dispatch.Rounds, 2)
	assert.Equal(t, float64(800), cfg.Dispatch.Rounds[0].RadiusMeters)
	assert.Equal(t, 20000, cfg.Dispatch.Rounds[0].IntervalMS)
	assert.Equal(t, "03:30", cfg.Jobs.PenaltyResetAt)
	assert.Equal(t, ":9402", cfg.Metrics.PrometheusAddr, "default applied")
}

func TestLoadRejectsMissingBroker(t *testing.T) {
	_, err := Load(writeConfig(t, `
mqtt: {}
postgres:
  dsn: postgres://x
`))
	require.Error(t, err)
}

func TestLoadRejectsBadRound(t *testing.T) {
	_, err := Load(writeConfig(t, `
mqtt:
  broker: tcp://localhost:1883
postgres:
  dsn: postgres://x
dispatch:
  rounds:
    - radius_m: -5
      interval_ms: 1000
`))
	require.Error(t, err)
}

func TestLoadRejectsBadResetTime(t *testing.T) {
	_, err := Load(writeConfig(t, `
mqtt:
  broker: tcp://localhost:1883
postgres:
  dsn: postgres://x
jobs:
  penalty_reset_at: "25:99"
`))
	require.Error(t, err)
}

func TestLoadUnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("x = 1"), 0o600))
	_, err := Load(path)
	require.Error(t, err)
}

func TestRoundCacheServesConfiguredLadder(t *testing.T) {
	path := writeConfig(t, sampleYAML)
	cache, err := NewRoundCache(path, []RoundEntry{
		{RadiusMeters: 800, IntervalMS: 20000},
		{RadiusMeters: 1500, IntervalMS: 20000},
	}, logger.NopLogger{})
	require.NoError(t, err)
	defer func() { _ = cache.Close() }()

	rounds := cache.Rounds()
	require.Len(t, rounds, 2)
	assert.Equal(t, float64(800), rounds[0].RadiusMeters)
	assert.Equal(t, 20*time.Second, rounds[0].Interval)
}

func TestRoundCacheFallsBackToDefaults(t *testing.T) {
	path := writeConfig(t, sampleYAML)
	cache, err := NewRoundCache(path, nil, logger.NopLogger{})
	require.NoError(t, err)
	defer func() { _ = cache.Close() }()

	rounds := cache.Rounds()
	require.NotEmpty(t, rounds, "empty ladder must fall back to defaults")
}

func TestRoundCacheReload(t *testing.T) {
	path := writeConfig(t, sampleYAML)
	cache, err := NewRoundCache(path, []RoundEntry{{RadiusMeters: 800, IntervalMS: 20000}}, logger.NopLogger{})
	require.NoError(t, err)
	defer func() { _ = cache.Close() }()

	updated := `
dispatch:
  rounds:
    - radius_m: 1200
      interval_ms: 15000
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))
	require.Eventually(t, func() bool {
		r := cache.Rounds()
		return len(r) == 1 && r[0].RadiusMeters == 1200
	}, 3*time.Second, 20*time.Millisecond, "ladder not hot-reloaded")
}
