package fusionalgo

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/synopticon/telemetry-fusion/internal/types"
)

func enriched(q float64, payload types.Payload) *types.EnrichedSample {
	return &types.EnrichedSample{
		Sample:  types.Sample{Payload: payload},
		Quality: types.Quality{Quality: q},
	}
}

func TestHumanStateWeightedBlendWithAllModalities(t *testing.T) {
	in := HumanStateInputs{
		Physiological: enriched(0.9, types.Payload{Physiological: &types.PhysiologicalPayload{HeartRate: 160, HRV: 20}}),
		Behavioral:    enriched(0.8, types.Payload{Behavioral: &types.BehavioralPayload{BlinkRate: 30, ReactionTimeMs: 800}}),
		SelfReport:    enriched(0.6, types.Payload{SelfReport: &types.SelfReportPayload{WorkloadRating: 100}}),
		Performance:   enriched(0.5, types.Payload{Performance: &types.PerformancePayload{ErrorRate: 1, TaskCompletion: 0}}),
	}
	result := HumanState(in)
	// All four modalities maxed out -> cognitive_load should be ~1.
	assert.InDelta(t, 1.0, result.CognitiveLoad, 1e-6)
	assert.InDelta(t, 1.0, result.Fatigue, 1e-6)
	assert.InDelta(t, 1.0, result.Stress, 1e-6)
	assert.ElementsMatch(t, []string{"human/physiological", "human/behavioral", "human/self_report", "human/performance"}, result.Sources)

	conf := HumanStateConfidence(in)
	assert.InDelta(t, (0.9+0.8+0.6+0.5)/4, conf, 1e-9)
}

func TestHumanStateMissingModalityRedistributesWeight(t *testing.T) {
	in := HumanStateInputs{
		Behavioral: enriched(0.8, types.Payload{Behavioral: &types.BehavioralPayload{BlinkRate: 30, ReactionTimeMs: 800}}),
	}
	result := HumanState(in)
	assert.InDelta(t, 1.0, result.CognitiveLoad, 1e-6)
	assert.Equal(t, []string{"human/behavioral"}, result.Sources)
}

func TestEnvironmentalRecommendationBuckets(t *testing.T) {
	high := Environmental(EnvironmentalInputs{
		Weather: enriched(0.9, types.Payload{Weather: &types.WeatherPayload{WindSpeed: 60, Visibility: 500}}),
	})
	assert.Equal(t, types.RecommendHighCaution, high.Recommendation)

	calm := Environmental(EnvironmentalInputs{
		Weather: enriched(0.9, types.Payload{Weather: &types.WeatherPayload{WindSpeed: 2, Visibility: 10000}}),
	})
	assert.Equal(t, types.RecommendProceedNormal, calm.Recommendation)
}

func TestEnvironmentalNoInputsIsZeroRisk(t *testing.T) {
	result := Environmental(EnvironmentalInputs{})
	assert.Equal(t, 0.0, result.TotalRisk)
	assert.Empty(t, result.RiskFactors)
}

func TestSituationalAwarenessStatusBuckets(t *testing.T) {
	env := &types.EnvironmentalResult{TotalRisk: 0.9}
	human := &types.HumanStateResult{CognitiveLoad: 0.9, Fatigue: 0.9}
	telemetry := types.Sample{Payload: types.Payload{Telemetry: &types.TelemetryPayload{Complexity: 0.9}}}

	result := SituationalAwareness(env, human, telemetry)
	assert.Equal(t, types.SAOverload, result.Status)
	assert.Greater(t, result.Ratio, 1.5)
	assert.NotEmpty(t, result.Recommendations)
}

func TestSituationalAwarenessLowLoadWhenCapable(t *testing.T) {
	env := &types.EnvironmentalResult{TotalRisk: 0.1}
	human := &types.HumanStateResult{CognitiveLoad: 0.1, Fatigue: 0.1}
	telemetry := types.Sample{Payload: types.Payload{Telemetry: &types.TelemetryPayload{Complexity: 0.1}}}

	result := SituationalAwareness(env, human, telemetry)
	assert.Equal(t, types.SALowLoad, result.Status)
	assert.Less(t, result.Ratio, 0.7)
}
