package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadParsesAllSections(t *testing.T) {
	path := writeTempConfig(t, `
fusion:
  enable_temporal_analysis: true
  fusion_thresholds:
    human: 0.35
sync:
  tolerance_ms: 25
  strategy: software-timestamp
distributor:
  max_clients: 50
  per_subscriber_highwatermark: 256
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Fusion.EnableTemporalAnalysis)
	assert.Equal(t, 0.35, cfg.Fusion.FusionThresholds.Human)
	assert.Equal(t, 25, cfg.Sync.ToleranceMs)
	assert.Equal(t, "software-timestamp", cfg.Sync.Strategy)
	assert.Equal(t, 50, cfg.Distributor.MaxClients)
	assert.Equal(t, 256, cfg.Distributor.PerSubscriberHighWatermark)
}

func TestLoadAppliesDefaultsForMissingFields(t *testing.T) {
	path := writeTempConfig(t, `fusion:
  enable_quality_assessment: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.3, cfg.Fusion.FusionThresholds.Human)
	assert.Equal(t, 0.2, cfg.Fusion.FusionThresholds.Environmental)
	assert.Equal(t, 10, cfg.Sync.ToleranceMs)
	assert.Equal(t, 1024, cfg.Distributor.PerSubscriberHighWatermark)
	assert.Equal(t, 64, cfg.Batcher.MaxBatchSize)
	assert.Equal(t, "_pupil-mobile._tcp", cfg.Discovery.ServiceName)
}

func TestLoadReturnsErrorForMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}

func TestDurationHelpersConvertFromMilliseconds(t *testing.T) {
	sess := SessionConfig{ReconnectIntervalMs: 5000, MaxIntervalMs: 30000}
	assert.Equal(t, 5000*1e6, float64(sess.ReconnectInterval()))
	assert.Equal(t, 30000*1e6, float64(sess.MaxInterval()))
}
