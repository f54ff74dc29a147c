package quality

import (
	"math"

	"github.com/synopticon/telemetry-fusion/internal/types"
)

const gravityMs2 = 9.80665

// plausibilityScore checks the sample's timestamp is within ±5 minutes of
// now and penalizes "extreme-but-possible" domain values, spec.md §4.2.
func plausibilityScore(s types.Sample, nowNs int64) (float64, []string) {
	var issues []string
	score := 1.0

	delta := s.TimestampNs - nowNs
	if delta < 0 {
		delta = -delta
	}
	if delta > plausibilityWindowNs {
		// spec.md §4.1: out-of-order samples more than 5 minutes removed
		// from now are dropped outright, not merely penalized.
		return 0, []string{"timestamp-out-of-window"}
	}

	switch {
	case s.Key.Source == types.SourceSimulator && s.Key.Type == types.TypeTelemetry && s.Payload.Telemetry != nil:
		p := s.Payload.Telemetry
		mag := math.Sqrt(p.Acceleration[0]*p.Acceleration[0] + p.Acceleration[1]*p.Acceleration[1] + p.Acceleration[2]*p.Acceleration[2])
		if mag > 5*gravityMs2 {
			issues = append(issues, "extreme-acceleration")
			score -= 0.3
		}

	case s.Key.Source == types.SourceExternal && s.Key.Type == types.TypeWeather && s.Payload.Weather != nil:
		p := s.Payload.Weather
		if p.WindSpeed > 100 {
			issues = append(issues, "extreme-wind")
			score -= 0.3
		}
		if p.Visibility < 100 {
			issues = append(issues, "extreme-low-visibility")
			score -= 0.3
		}

	case s.Key.Source == types.SourceSimulator && s.Key.Type == types.TypeEnvironment && s.Payload.Environment != nil:
		p := s.Payload.Environment
		if p.WindSpeed > 100 {
			issues = append(issues, "extreme-wind")
			score -= 0.3
		}
		if p.Visibility < 100 {
			issues = append(issues, "extreme-low-visibility")
			score -= 0.3
		}
	}

	return clamp01(score), issues
}
