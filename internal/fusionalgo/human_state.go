// Package fusionalgo implements the Fusion Algorithms (C7): pure functions
// from the latest EnrichedSamples to a FusionResult variant. Nothing here
// touches the clock, a store or a channel — every function is a plain
// value transform, grounded on the teacher's internal/domain/scoring
// composite-weighting shape, generalized from price-signal weights to
// telemetry-fusion ones.
package fusionalgo

import (
	"math"

	"github.com/synopticon/telemetry-fusion/internal/types"
)

// Per-modality weight sets for the three human-state scores, spec.md §4.7.
// cognitive_load is specified exactly; fatigue and stress use "analogous"
// weight sets documented here: fatigue leans on physiology+self-report
// (fatigue is primarily felt and measured physiologically), stress leans
// on physiology+behavior (stress shows up as arousal and motor noise
// before a subject self-reports it).
var (
	cognitiveLoadWeights = modalityWeights{behavioral: 0.4, performance: 0.3, physio: 0.2, selfReport: 0.1}
	fatigueWeights       = modalityWeights{physio: 0.4, selfReport: 0.3, behavioral: 0.2, performance: 0.1}
	stressWeights        = modalityWeights{physio: 0.4, behavioral: 0.3, selfReport: 0.2, performance: 0.1}
)

type modalityWeights struct {
	behavioral, performance, physio, selfReport float64
}

// modalityScores is the per-modality [0,1] load derived from one sample's
// payload, or (0, false) if that modality's sample is absent.
type modalityScores struct {
	behavioral, performance, physio, selfReport float64
	hasBehavioral, hasPerformance, hasPhysio, hasSelfReport bool
}

// HumanStateInputs names the latest EnrichedSample seen for each human
// modality; a nil pointer means that modality has no sample yet.
type HumanStateInputs struct {
	Physiological *types.EnrichedSample
	Behavioral    *types.EnrichedSample
	SelfReport    *types.EnrichedSample
	Performance   *types.EnrichedSample
}

// HumanState computes the human-state FusionResult variant from whichever
// of the four modalities are present. At least one must be present; the
// Fusion Engine's human-state trigger guarantees this before calling in.
func HumanState(in HumanStateInputs) *types.HumanStateResult {
	scores := modalityScores{}
	qualities := make([]float64, 0, 4)
	sources := make([]string, 0, 4)

	if in.Physiological != nil {
		scores.physio = physioLoad(in.Physiological.Sample)
		scores.hasPhysio = true
		qualities = append(qualities, in.Physiological.Quality.Quality)
		sources = append(sources, "human/physiological")
	}
	if in.Behavioral != nil {
		scores.behavioral = behavioralLoad(in.Behavioral.Sample)
		scores.hasBehavioral = true
		qualities = append(qualities, in.Behavioral.Quality.Quality)
		sources = append(sources, "human/behavioral")
	}
	if in.SelfReport != nil {
		scores.selfReport = selfReportLoad(in.SelfReport.Sample)
		scores.hasSelfReport = true
		qualities = append(qualities, in.SelfReport.Quality.Quality)
		sources = append(sources, "human/self_report")
	}
	if in.Performance != nil {
		scores.performance = performanceLoad(in.Performance.Sample)
		scores.hasPerformance = true
		qualities = append(qualities, in.Performance.Quality.Quality)
		sources = append(sources, "human/performance")
	}

	cognitiveLoad := weightedBlend(scores, cognitiveLoadWeights)
	fatigue := weightedBlend(scores, fatigueWeights)
	stress := weightedBlend(scores, stressWeights)
	overall := (cognitiveLoad + fatigue + stress) / 3

	return &types.HumanStateResult{
		CognitiveLoad: cognitiveLoad,
		Fatigue:       fatigue,
		Stress:        stress,
		OverallState:  overall,
		Sources:       sources,
	}
}

// HumanStateConfidence is the mean of the present source qualities,
// spec.md §4.7 ("confidence = mean of present-source qualities").
func HumanStateConfidence(in HumanStateInputs) float64 {
	sum, n := 0.0, 0
	for _, s := range []*types.EnrichedSample{in.Physiological, in.Behavioral, in.SelfReport, in.Performance} {
		if s != nil {
			sum += s.Quality.Quality
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// weightedBlend combines present modality scores with w, renormalizing by
// the sum of weights whose modality is actually present — absent
// modalities redistribute their share rather than pulling the result
// toward zero.
func weightedBlend(s modalityScores, w modalityWeights) float64 {
	sum, weight := 0.0, 0.0
	if s.hasBehavioral {
		sum += w.behavioral * s.behavioral
		weight += w.behavioral
	}
	if s.hasPerformance {
		sum += w.performance * s.performance
		weight += w.performance
	}
	if s.hasPhysio {
		sum += w.physio * s.physio
		weight += w.physio
	}
	if s.hasSelfReport {
		sum += w.selfReport * s.selfReport
		weight += w.selfReport
	}
	if weight == 0 {
		return 0
	}
	return clamp01(sum / weight)
}

// physioLoad blends heart rate (elevated = loaded) and HRV (suppressed =
// loaded) into [0,1]. Resting HR ~60bpm maps to 0, ~160bpm to 1; HRV above
// 80ms maps to 0 load, below 20ms to 1 load.
func physioLoad(s types.Sample) float64 {
	p := s.Payload.Physiological
	if p == nil {
		return 0
	}
	hrLoad := normalize(p.HeartRate, 60, 160)
	hrvLoad := 1 - normalize(p.HRV, 20, 80)
	return clamp01((hrLoad + hrvLoad) / 2)
}

// behavioralLoad blends blink rate and reaction time; elevated blink rate
// and slower reaction time indicate higher load.
func behavioralLoad(s types.Sample) float64 {
	p := s.Payload.Behavioral
	if p == nil {
		return 0
	}
	blinkLoad := normalize(p.BlinkRate, 10, 30)
	reactionLoad := normalize(p.ReactionTimeMs, 200, 800)
	return clamp01((blinkLoad + reactionLoad) / 2)
}

// selfReportLoad is the NASA-TLX-style workload rating, 0-100 -> [0,1].
func selfReportLoad(s types.Sample) float64 {
	p := s.Payload.SelfReport
	if p == nil {
		return 0
	}
	return clamp01(p.WorkloadRating / 100)
}

// performanceLoad blends error rate (higher = loaded) and task completion
// (lower = loaded).
func performanceLoad(s types.Sample) float64 {
	p := s.Payload.Performance
	if p == nil {
		return 0
	}
	errorLoad := clamp01(p.ErrorRate)
	completionLoad := clamp01(1 - p.TaskCompletion)
	return clamp01((errorLoad + completionLoad) / 2)
}

func normalize(v, lo, hi float64) float64 {
	if hi == lo {
		return 0
	}
	return clamp01((v - lo) / (hi - lo))
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
