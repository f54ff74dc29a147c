package quality

import "github.com/synopticon/telemetry-fusion/internal/types"

// SourceConfig is the per-(source,type) weighting used by the assessor,
// spec.md §4.2 Table 1.
type SourceConfig struct {
	Weight            float64
	ExpectedLatencyMs float64
	Reliability       float64
}

// DefaultSourceConfigs is Table 1 — Source defaults.
var DefaultSourceConfigs = map[types.Key]SourceConfig{
	{Source: types.SourceHuman, Type: types.TypePhysiological}: {Weight: 0.9, ExpectedLatencyMs: 100, Reliability: 0.95},
	{Source: types.SourceHuman, Type: types.TypeBehavioral}:    {Weight: 0.8, ExpectedLatencyMs: 200, Reliability: 0.85},
	{Source: types.SourceHuman, Type: types.TypeSelfReport}:    {Weight: 0.6, ExpectedLatencyMs: 1000, Reliability: 0.70},
	{Source: types.SourceHuman, Type: types.TypePerformance}:   {Weight: 0.85, ExpectedLatencyMs: 150, Reliability: 0.90},

	{Source: types.SourceSimulator, Type: types.TypeTelemetry}:   {Weight: 0.95, ExpectedLatencyMs: 16, Reliability: 0.98},
	{Source: types.SourceSimulator, Type: types.TypeSystems}:     {Weight: 0.9, ExpectedLatencyMs: 50, Reliability: 0.95},
	{Source: types.SourceSimulator, Type: types.TypeDynamics}:    {Weight: 0.92, ExpectedLatencyMs: 20, Reliability: 0.97},
	{Source: types.SourceSimulator, Type: types.TypeEnvironment}: {Weight: 0.8, ExpectedLatencyMs: 100, Reliability: 0.85},

	{Source: types.SourceExternal, Type: types.TypeWeather}:       {Weight: 0.75, ExpectedLatencyMs: 5000, Reliability: 0.80},
	{Source: types.SourceExternal, Type: types.TypeTraffic}:       {Weight: 0.85, ExpectedLatencyMs: 1000, Reliability: 0.90},
	{Source: types.SourceExternal, Type: types.TypeNavigation}:    {Weight: 0.9, ExpectedLatencyMs: 500, Reliability: 0.92},
	{Source: types.SourceExternal, Type: types.TypeCommunication}: {Weight: 0.7, ExpectedLatencyMs: 200, Reliability: 0.85},
}

// defaultUnknownConfig backs any (source,type) pair absent from Table 1.
var defaultUnknownConfig = SourceConfig{Weight: 0.5, ExpectedLatencyMs: 500, Reliability: 0.5}

// ConfigFor returns the Table 1 entry for key, or a conservative default for
// an unrecognized (source,type) pair.
func ConfigFor(key types.Key) SourceConfig {
	if cfg, ok := DefaultSourceConfigs[key]; ok {
		return cfg
	}
	return defaultUnknownConfig
}
