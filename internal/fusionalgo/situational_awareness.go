package fusionalgo

import "github.com/synopticon/telemetry-fusion/internal/types"

// epsilon guards the demand/capability ratio against a near-zero
// denominator, spec.md §4.7 ("ratio = demand/max(capability,ε)").
const epsilon = 1e-6

// SituationalAwareness computes the situational-awareness FusionResult
// variant from the prior human-state and environmental results plus the
// latest simulator/telemetry sample's scene complexity, spec.md §4.7.
// demand and capability are left as "f"/"g" in the spec; this engine
// documents the chosen forms here: demand is an even blend of
// environmental risk and scene complexity, capability is an even blend of
// spare cognitive capacity and spare fatigue reserve.
func SituationalAwareness(env *types.EnvironmentalResult, human *types.HumanStateResult, telemetry types.Sample) *types.SituationalAwarenessResult {
	complexity := 0.0
	if telemetry.Payload.Telemetry != nil {
		complexity = clamp01(telemetry.Payload.Telemetry.Complexity)
	}

	demand := clamp01(0.5*env.TotalRisk + 0.5*complexity)
	capability := clamp01(0.5*(1-human.CognitiveLoad) + 0.5*(1-human.Fatigue))

	ratio := demand / max(capability, epsilon)
	level := 1 - clampRange(ratio-1, 0, 1)

	status := saStatus(ratio)

	return &types.SituationalAwarenessResult{
		Level:           level,
		Demand:          demand,
		Capability:      capability,
		Ratio:           ratio,
		Status:          status,
		Recommendations: saRecommendations(status),
	}
}

func saStatus(ratio float64) types.SAStatus {
	switch {
	case ratio > 1.5:
		return types.SAOverload
	case ratio > 1.0:
		return types.SAHighLoad
	case ratio > 0.7:
		return types.SAModerateLoad
	default:
		return types.SALowLoad
	}
}

func saRecommendations(status types.SAStatus) []string {
	switch status {
	case types.SAOverload:
		return []string{"reduce-task-load", "request-assistance", "simplify-environment"}
	case types.SAHighLoad:
		return []string{"monitor-closely", "defer-non-critical-tasks"}
	case types.SAModerateLoad:
		return []string{"maintain-awareness"}
	default:
		return []string{"nominal"}
	}
}

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
