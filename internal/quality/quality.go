// Package quality implements the multi-dimensional confidence scorer (C2):
// staleness, completeness, consistency and plausibility, combined into a
// single Quality value that travels with every Sample. Assess is a pure
// function — same inputs always produce the same outputs — grounded on the
// scoring shape of the teacher's internal/quality/validator.go (freshness /
// completeness / consistency / anomaly-free weights) adapted to this
// runtime's (source,type) domain instead of price/volume data.
package quality

import (
	"math"

	"github.com/synopticon/telemetry-fusion/internal/types"
)

const (
	wStaleness    = 0.3
	wCompleteness = 0.3
	wConsistency  = 0.2
	wPlausibility = 0.2

	thresholdStaleness    = 0.5
	thresholdCompleteness = 0.7
	thresholdConsistency  = 0.5
	thresholdPlausibility = 0.5

	plausibilityWindowNs = int64(5 * 60 * 1e9) // ±5 minutes
)

// Assessor scores samples against Table 1 source defaults. It holds no
// mutable state; Assess is a pure function of (sample, ingestTimeNs, nowNs).
type Assessor struct {
	configs map[types.Key]SourceConfig
}

// NewAssessor builds an Assessor from the given (source,type) config table,
// falling back to DefaultSourceConfigs for keys not present.
func NewAssessor(configs map[types.Key]SourceConfig) *Assessor {
	merged := make(map[types.Key]SourceConfig, len(DefaultSourceConfigs)+len(configs))
	for k, v := range DefaultSourceConfigs {
		merged[k] = v
	}
	for k, v := range configs {
		merged[k] = v
	}
	return &Assessor{configs: merged}
}

// Assess computes the Quality for sample. nowNs is the caller's current
// monotonic clock reading (normally clock.Clock.NowNs()).
func (a *Assessor) Assess(sample types.Sample, nowNs int64) types.Quality {
	cfg := a.configFor(sample.Key)

	staleness := stalenessScore(sample.IngestTimeNs-sample.TimestampNs, cfg.ExpectedLatencyMs)
	completeness := completenessScore(sample)
	consistency, consistencyIssues := consistencyScore(sample)
	plausibility, plausibilityIssues := plausibilityScore(sample, nowNs)

	q := wStaleness*staleness + wCompleteness*completeness + wConsistency*consistency + wPlausibility*plausibility
	confidence := q * cfg.Reliability

	var issues []string
	if staleness < thresholdStaleness {
		issues = append(issues, "stale")
	}
	if completeness < thresholdCompleteness {
		issues = append(issues, "incomplete")
	}
	if consistency < thresholdConsistency {
		issues = append(issues, consistencyIssues...)
	}
	if plausibility < thresholdPlausibility {
		issues = append(issues, plausibilityIssues...)
	}

	return types.Quality{
		Quality:      clamp01(q),
		Confidence:   clamp01(confidence),
		Staleness:    staleness,
		Completeness: completeness,
		Consistency:  consistency,
		Plausibility: plausibility,
		Issues:       issues,
	}
}

func (a *Assessor) configFor(key types.Key) SourceConfig {
	if cfg, ok := a.configs[key]; ok {
		return cfg
	}
	return ConfigFor(key)
}

// stalenessScore: 1.0 at age<=expected, 0.0 at age>=10*expected, linear
// between. Age is expressed directly in the same units as expectedMs via
// nanosecond inputs converted at the boundary.
func stalenessScore(ageNs int64, expectedMs float64) float64 {
	ageMs := float64(ageNs) / 1e6
	if ageMs <= expectedMs {
		return 1.0
	}
	cutoff := 10 * expectedMs
	if ageMs >= cutoff {
		return 0.0
	}
	return (cutoff - ageMs) / (cutoff - expectedMs)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func finite3(v [3]float64) bool {
	return finite(v[0]) && finite(v[1]) && finite(v[2])
}
