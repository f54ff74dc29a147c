// Package config loads the runtime's YAML configuration, spec.md §6.
// Grounded on the teacher's internal/application/config.go
// LoadXConfig(path)/yaml.v3 shape, generalized from one config file per
// concern to a single root document with one section per component.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// FusionConfig configures the Fusion Engine (C6), spec.md §6.
type FusionConfig struct {
	EnableTemporalAnalysis bool               `yaml:"enable_temporal_analysis"`
	EnableQualityAssessment bool              `yaml:"enable_quality_assessment"`
	FusionThresholds       FusionThresholds   `yaml:"fusion_thresholds"`
	MaxHistory             int                `yaml:"max_history"`
}

// FusionThresholds are the per-trigger-type quality gates, spec.md §4.6.
type FusionThresholds struct {
	Human         float64 `yaml:"human"`
	Environmental float64 `yaml:"environmental"`
	Situational   float64 `yaml:"situational"`
}

// StreamConfig configures Stream Nodes (C4), spec.md §6.
type StreamConfig struct {
	SampleRateHz            float64 `yaml:"sample_rate_hz"`
	BufferSize              int     `yaml:"buffer_size"`
	WindowMs                int     `yaml:"window_ms"`
	EnableMemoryOptimization bool   `yaml:"enable_memory_optimization"`
	EnableAdaptiveBatching  bool    `yaml:"enable_adaptive_batching"`
}

// SessionConfig configures Device Sessions (C8), spec.md §6.
type SessionConfig struct {
	AutoReconnect        bool    `yaml:"auto_reconnect"`
	ReconnectIntervalMs  int     `yaml:"reconnect_interval_ms"`
	MaxReconnectAttempts int     `yaml:"max_reconnect_attempts"`
	BackoffMultiplier    float64 `yaml:"backoff_multiplier"`
	MaxIntervalMs        int     `yaml:"max_interval_ms"`
	MockMode             bool    `yaml:"mock_mode"`
}

// SyncConfig configures the Sync Engine (C5), spec.md §6.
type SyncConfig struct {
	ToleranceMs int    `yaml:"tolerance_ms"`
	Strategy    string `yaml:"strategy"`
	BufferSize  int    `yaml:"buffer_size"`
}

// DistributorConfig configures the Distributor (C10), spec.md §6.
type DistributorConfig struct {
	MaxClients                int  `yaml:"max_clients"`
	Compression                bool `yaml:"compression"`
	PerSubscriberHighWatermark int  `yaml:"per_subscriber_highwatermark"`
}

// BatcherConfig configures the Adaptive Batcher (C11), spec.md §4.11. Not
// named in the recognized-options list of spec.md §6, but carried the same
// way: captured into component state at construction, no global mutable
// configuration.
type BatcherConfig struct {
	BaseIntervalMs  int `yaml:"base_interval_ms"`
	MaxBatchSize    int `yaml:"max_batch_size"`
	TargetLatencyMs int `yaml:"target_latency_ms"`
}

// DiscoveryConfig configures Discovery (C9).
type DiscoveryConfig struct {
	ServiceName     string  `yaml:"service_name"`
	WindowMs        int     `yaml:"window_ms"`
	UnseenTimeoutMs int     `yaml:"unseen_timeout_ms"`
	ScanRateHz      float64 `yaml:"scan_rate_hz"`
	MockEnabled     bool    `yaml:"mock_enabled"`
}

// RedisConfig configures the optional RedisBroker backing the
// Distributor, SPEC_FULL.md §3.
type RedisConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	DB      int    `yaml:"db"`
}

// Config is the root document, one section per component, spec.md §6.
type Config struct {
	Fusion      FusionConfig      `yaml:"fusion"`
	Stream      StreamConfig      `yaml:"stream"`
	Session     SessionConfig     `yaml:"session"`
	Sync        SyncConfig        `yaml:"sync"`
	Distributor DistributorConfig `yaml:"distributor"`
	Batcher     BatcherConfig     `yaml:"batcher"`
	Discovery   DiscoveryConfig   `yaml:"discovery"`
	Redis       RedisConfig       `yaml:"redis"`
}

// Default returns a Config with every documented default applied and no
// file read, for callers that run without a config file.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and parses the YAML document at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()
	return &c, nil
}

// applyDefaults fills zero-valued fields with the documented defaults so
// a partial config file (or none) still produces a runnable system.
func (c *Config) applyDefaults() {
	if c.Fusion.FusionThresholds.Human == 0 {
		c.Fusion.FusionThresholds.Human = 0.3
	}
	if c.Fusion.FusionThresholds.Environmental == 0 {
		c.Fusion.FusionThresholds.Environmental = 0.2
	}
	if c.Fusion.MaxHistory == 0 {
		c.Fusion.MaxHistory = 1000
	}
	if c.Stream.BufferSize == 0 {
		c.Stream.BufferSize = 500
	}
	if c.Session.ReconnectIntervalMs == 0 {
		c.Session.ReconnectIntervalMs = 5000
	}
	if c.Session.MaxReconnectAttempts == 0 {
		c.Session.MaxReconnectAttempts = 10
	}
	if c.Session.BackoffMultiplier == 0 {
		c.Session.BackoffMultiplier = 1.5
	}
	if c.Session.MaxIntervalMs == 0 {
		c.Session.MaxIntervalMs = 30000
	}
	if c.Sync.ToleranceMs == 0 {
		c.Sync.ToleranceMs = 10
	}
	if c.Sync.Strategy == "" {
		c.Sync.Strategy = "hardware-timestamp"
	}
	if c.Sync.BufferSize == 0 {
		c.Sync.BufferSize = 100
	}
	if c.Distributor.PerSubscriberHighWatermark == 0 {
		c.Distributor.PerSubscriberHighWatermark = 1024
	}
	if c.Batcher.BaseIntervalMs == 0 {
		c.Batcher.BaseIntervalMs = 5
	}
	if c.Batcher.MaxBatchSize == 0 {
		c.Batcher.MaxBatchSize = 64
	}
	if c.Batcher.TargetLatencyMs == 0 {
		c.Batcher.TargetLatencyMs = 10
	}
	if c.Discovery.ServiceName == "" {
		c.Discovery.ServiceName = "_pupil-mobile._tcp"
	}
	if c.Discovery.WindowMs == 0 {
		c.Discovery.WindowMs = 7000
	}
	if c.Discovery.UnseenTimeoutMs == 0 {
		c.Discovery.UnseenTimeoutMs = 60000
	}
	if c.Discovery.ScanRateHz == 0 {
		c.Discovery.ScanRateHz = 1
	}
}

// ReconnectInterval returns Session.ReconnectIntervalMs as a Duration.
func (c SessionConfig) ReconnectInterval() time.Duration {
	return time.Duration(c.ReconnectIntervalMs) * time.Millisecond
}

// MaxInterval returns Session.MaxIntervalMs as a Duration.
func (c SessionConfig) MaxInterval() time.Duration {
	return time.Duration(c.MaxIntervalMs) * time.Millisecond
}

// Window returns Discovery.WindowMs as a Duration.
func (c DiscoveryConfig) Window() time.Duration {
	return time.Duration(c.WindowMs) * time.Millisecond
}

// UnseenTimeout returns Discovery.UnseenTimeoutMs as a Duration.
func (c DiscoveryConfig) UnseenTimeout() time.Duration {
	return time.Duration(c.UnseenTimeoutMs) * time.Millisecond
}

// BaseInterval returns Batcher.BaseIntervalMs as a Duration.
func (c BatcherConfig) BaseInterval() time.Duration {
	return time.Duration(c.BaseIntervalMs) * time.Millisecond
}

// TargetLatency returns Batcher.TargetLatencyMs as a Duration.
func (c BatcherConfig) TargetLatency() time.Duration {
	return time.Duration(c.TargetLatencyMs) * time.Millisecond
}
