package quality

import "github.com/synopticon/telemetry-fusion/internal/types"

// completenessScore is the fraction of a (source,type)'s required fields
// that are present, non-null and finite. Unknown (source,type) pairs
// require only {timestamp}, which every Sample always carries.
func completenessScore(s types.Sample) float64 {
	checks := requiredFields(s)
	if len(checks) == 0 {
		return 1.0 // {timestamp} only, always satisfied
	}
	present := 0
	for _, ok := range checks {
		if ok {
			present++
		}
	}
	return float64(present) / float64(len(checks))
}

// requiredFields returns one bool per required field for s.Key, each true
// iff that field is present and finite in s.Payload. Nil for unknown
// (source,type) pairs, whose only requirement ({timestamp}) is handled by
// the caller.
func requiredFields(s types.Sample) []bool {
	switch s.Key.Source {
	case types.SourceHuman:
		switch s.Key.Type {
		case types.TypePhysiological:
			p := s.Payload.Physiological
			return []bool{p != nil && finite(p.HeartRate)}
		case types.TypeBehavioral:
			p := s.Payload.Behavioral
			return []bool{p != nil && finite(p.GazeX) && finite(p.GazeY)}
		case types.TypeSelfReport:
			p := s.Payload.SelfReport
			return []bool{p != nil && finite(p.WorkloadRating)}
		case types.TypePerformance:
			p := s.Payload.Performance
			return []bool{p != nil && finite(p.ErrorRate), p != nil && finite(p.TaskCompletion)}
		}
	case types.SourceSimulator:
		switch s.Key.Type {
		case types.TypeTelemetry:
			p := s.Payload.Telemetry
			return []bool{p != nil && finite3(p.Position), p != nil && finite3(p.Velocity)}
		case types.TypeSystems:
			p := s.Payload.Systems
			return []bool{p != nil && finite(p.EngineRPM)}
		case types.TypeDynamics:
			p := s.Payload.Dynamics
			return []bool{p != nil && finite(p.Altitude), p != nil && finite(p.Airspeed)}
		case types.TypeEnvironment:
			p := s.Payload.Environment
			return []bool{p != nil && finite(p.Visibility)}
		}
	case types.SourceExternal:
		switch s.Key.Type {
		case types.TypeWeather:
			p := s.Payload.Weather
			return []bool{p != nil && finite(p.Temperature), p != nil && finite(p.WindSpeed)}
		case types.TypeTraffic:
			p := s.Payload.Traffic
			return []bool{p != nil}
		case types.TypeNavigation:
			p := s.Payload.Navigation
			return []bool{p != nil && finite(p.DistanceToWaypointNM)}
		case types.TypeCommunication:
			p := s.Payload.Communication
			return []bool{p != nil}
		}
	}
	return nil
}
