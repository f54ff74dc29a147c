package quality

import "github.com/synopticon/telemetry-fusion/internal/types"

// bound is an inclusive [Min,Max] range check, spec.md §6.
type bound struct{ Min, Max float64 }

func (b bound) violated(v float64) bool { return v < b.Min || v > b.Max }

var (
	boundHeartRate  = bound{30, 220}
	boundAltitude   = bound{-500, 50000}
	boundVisibility = bound{0, 50000}
	boundAirspeed   = bound{0, 1000}
	boundWorkload   = bound{0, 100}
)

// consistencyScore runs per-(source,type) bounds checks plus cross-field
// rules, returning a score in [0.1,1] and the issue tags that pushed it
// down. Weights are drawn from {0.2, 0.25, 0.3} per spec.md §4.2.
func consistencyScore(s types.Sample) (float64, []string) {
	var issues []string
	var penalty float64

	switch {
	case s.Key.Source == types.SourceHuman && s.Key.Type == types.TypePhysiological && s.Payload.Physiological != nil:
		p := s.Payload.Physiological
		if boundHeartRate.violated(p.HeartRate) {
			issues = append(issues, "heart-rate-out-of-bounds")
			penalty += 0.3
		}
		if p.HeartRate > 180 && p.HRV > 50 {
			issues = append(issues, "heart-rate-hrv-inconsistent")
			penalty += 0.25
		}

	case s.Key.Source == types.SourceHuman && s.Key.Type == types.TypeSelfReport && s.Payload.SelfReport != nil:
		p := s.Payload.SelfReport
		if boundWorkload.violated(p.WorkloadRating) {
			issues = append(issues, "workload-out-of-bounds")
			penalty += 0.2
		}

	case s.Key.Source == types.SourceSimulator && s.Key.Type == types.TypeDynamics && s.Payload.Dynamics != nil:
		p := s.Payload.Dynamics
		if boundAltitude.violated(p.Altitude) {
			issues = append(issues, "altitude-out-of-bounds")
			penalty += 0.3
		}
		if boundAirspeed.violated(p.Airspeed) {
			issues = append(issues, "airspeed-out-of-bounds")
			penalty += 0.25
		}

	case s.Key.Source == types.SourceSimulator && s.Key.Type == types.TypeEnvironment && s.Payload.Environment != nil:
		p := s.Payload.Environment
		if boundVisibility.violated(p.Visibility) {
			issues = append(issues, "visibility-out-of-bounds")
			penalty += 0.2
		}

	case s.Key.Source == types.SourceExternal && s.Key.Type == types.TypeWeather && s.Payload.Weather != nil:
		p := s.Payload.Weather
		if boundVisibility.violated(p.Visibility) {
			issues = append(issues, "visibility-out-of-bounds")
			penalty += 0.2
		}
	}

	score := 1 - penalty
	if score < 0.1 {
		score = 0.1
	}
	return score, issues
}
