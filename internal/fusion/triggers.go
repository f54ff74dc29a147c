package fusion

import (
	"fmt"
	"strings"

	"github.com/synopticon/telemetry-fusion/internal/fusionalgo"
	"github.com/synopticon/telemetry-fusion/internal/types"
)

var (
	keyHumanPhysio      = types.Key{Source: types.SourceHuman, Type: types.TypePhysiological}
	keyHumanBehavioral  = types.Key{Source: types.SourceHuman, Type: types.TypeBehavioral}
	keyHumanSelfReport  = types.Key{Source: types.SourceHuman, Type: types.TypeSelfReport}
	keyHumanPerformance = types.Key{Source: types.SourceHuman, Type: types.TypePerformance}
	keyExternalWeather  = types.Key{Source: types.SourceExternal, Type: types.TypeWeather}
	keyExternalTraffic  = types.Key{Source: types.SourceExternal, Type: types.TypeTraffic}
	keySimTelemetry     = types.Key{Source: types.SourceSimulator, Type: types.TypeTelemetry}
)

// maybeTriggerFusions evaluates the three triggers in document order,
// spec.md §4.6 step 2. Each trigger that fires runs its algorithm, stamps
// the result, stores it, and emits fusion_completed + prediction_update.
func (e *Engine) maybeTriggerFusions() {
	e.tryHumanState()
	e.tryEnvironmental()
	e.trySituationalAwareness()
}

// tryHumanState fires if any of {physiological, behavioral, performance}
// is present with quality >= HumanThreshold, spec.md §4.6.
func (e *Engine) tryHumanState() {
	physio, hasPhysio := e.Latest(keyHumanPhysio)
	behavioral, hasBehavioral := e.Latest(keyHumanBehavioral)
	performance, hasPerformance := e.Latest(keyHumanPerformance)
	selfReport, hasSelfReport := e.Latest(keyHumanSelfReport)

	qualifies := (hasPhysio && physio.Quality.Quality >= e.cfg.HumanThreshold) ||
		(hasBehavioral && behavioral.Quality.Quality >= e.cfg.HumanThreshold) ||
		(hasPerformance && performance.Quality.Quality >= e.cfg.HumanThreshold)
	if !qualifies {
		return
	}

	in := fusionalgo.HumanStateInputs{}
	if hasPhysio {
		in.Physiological = &physio
	}
	if hasBehavioral {
		in.Behavioral = &behavioral
	}
	if hasSelfReport {
		in.SelfReport = &selfReport
	}
	if hasPerformance {
		in.Performance = &performance
	}

	human := fusionalgo.HumanState(in)
	if !e.signatureChanged(types.FusionHumanState, strings.Join(human.Sources, ",")) {
		return
	}
	confidence := fusionalgo.HumanStateConfidence(in)

	result := &types.FusionResult{
		FusionType:  types.FusionHumanState,
		TimestampNs: e.clk.NowNs(),
		Confidence:  confidence,
		Human:       human,
	}
	e.publishResult(types.FusionHumanState, result)
}

// tryEnvironmental fires if any of {weather, traffic} is present with
// quality >= EnvThreshold, spec.md §4.6.
func (e *Engine) tryEnvironmental() {
	weather, hasWeather := e.Latest(keyExternalWeather)
	traffic, hasTraffic := e.Latest(keyExternalTraffic)

	qualifies := (hasWeather && weather.Quality.Quality >= e.cfg.EnvThreshold) ||
		(hasTraffic && traffic.Quality.Quality >= e.cfg.EnvThreshold)
	if !qualifies {
		return
	}

	in := fusionalgo.EnvironmentalInputs{}
	if hasWeather {
		in.Weather = &weather
	}
	if hasTraffic {
		in.Traffic = &traffic
	}

	env := fusionalgo.Environmental(in)
	factorTypes := make([]string, len(env.RiskFactors))
	for i, f := range env.RiskFactors {
		factorTypes[i] = f.Type
	}
	if !e.signatureChanged(types.FusionEnvironmental, strings.Join(factorTypes, ",")) {
		return
	}
	confidence := fusionalgo.EnvironmentalConfidence(in)

	result := &types.FusionResult{
		FusionType:  types.FusionEnvironmental,
		TimestampNs: e.clk.NowNs(),
		Confidence:  confidence,
		Env:         env,
	}
	e.publishResult(types.FusionEnvironmental, result)
}

// trySituationalAwareness fires iff results for both human-state and
// environmental exist AND a simulator/telemetry sample exists, spec.md
// §4.6.
func (e *Engine) trySituationalAwareness() {
	human, hasHuman := e.LatestResult(types.FusionHumanState)
	env, hasEnv := e.LatestResult(types.FusionEnvironmental)
	telemetry, hasTelemetry := e.Latest(keySimTelemetry)
	if !hasHuman || !hasEnv || !hasTelemetry {
		return
	}

	sig := fmt.Sprintf("%p|%p|%d", human, env, telemetry.IngestedAtNs)
	if !e.signatureChanged(types.FusionSituationalAwareness, sig) {
		return
	}

	sa := fusionalgo.SituationalAwareness(env.Env, human.Human, telemetry.Sample)
	confidence := (human.Confidence + env.Confidence) / 2

	result := &types.FusionResult{
		FusionType:  types.FusionSituationalAwareness,
		TimestampNs: e.clk.NowNs(),
		Confidence:  confidence,
		SA:          sa,
	}
	e.publishResult(types.FusionSituationalAwareness, result)
}

// publishResult stamps the timestamp (already set by caller), runs the
// optional Enhancer, stores it as the latest result of its type, updates
// metrics and emits fusion_completed + prediction_update. Timestamps are
// monotonic per fusion_type because the engine is single-writer per type
// (Fusion Engine runs triggers on the ingestion task of the producing
// stream, spec.md §5) and clk.NowNs() is non-decreasing.
func (e *Engine) publishResult(t types.FusionType, result *types.FusionResult) {
	if e.Enhancer != nil {
		e.Enhancer(t, result)
	}

	e.mu.Lock()
	e.results[t] = result
	e.totalFusions++
	e.fusionsByType[t]++
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.RecordFusion(string(t), result.Confidence)
	}

	e.emit(Event{Kind: EventFusionCompleted, Result: result})
	e.emit(Event{Kind: EventPredictionUpdate, Result: result})
}
