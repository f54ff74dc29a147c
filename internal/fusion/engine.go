// Package fusion implements the Fusion Engine (C6): it orchestrates
// quality assessment, the latest-by-key map, the Temporal Store and the
// Fusion Algorithms into the ingest -> maybe_trigger_fusions pipeline,
// spec.md §4.6. Grounded on the teacher's internal/domain/scoring
// composite orchestration shape (compute inputs, run weighted algorithm,
// stamp and publish a result) and on internal/application's single
// short-lived-lock state-map pattern.
package fusion

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/synopticon/telemetry-fusion/internal/clock"
	"github.com/synopticon/telemetry-fusion/internal/fusionalgo"
	"github.com/synopticon/telemetry-fusion/internal/metrics"
	"github.com/synopticon/telemetry-fusion/internal/quality"
	"github.com/synopticon/telemetry-fusion/internal/temporal"
	"github.com/synopticon/telemetry-fusion/internal/types"
)

// Default trigger thresholds, spec.md §4.6.
const (
	DefaultHumanThreshold = 0.3
	DefaultEnvThreshold   = 0.2
)

// emaAlpha is the smoothing factor for the processing-time EMA metric,
// spec.md §4.6.
const emaAlpha = 0.1

// Config configures trigger thresholds and Temporal Store sizing,
// spec.md §6 (Fusion).
type Config struct {
	HumanThreshold float64
	EnvThreshold   float64
	MaxHistory     int
}

func (c Config) withDefaults() Config {
	if c.HumanThreshold <= 0 {
		c.HumanThreshold = DefaultHumanThreshold
	}
	if c.EnvThreshold <= 0 {
		c.EnvThreshold = DefaultEnvThreshold
	}
	if c.MaxHistory <= 0 {
		c.MaxHistory = temporal.DefaultCapacity
	}
	return c
}

// EventKind identifies a Fusion Engine lifecycle event.
type EventKind string

const (
	EventDataIngested   EventKind = "data_ingested"
	EventFusionCompleted EventKind = "fusion_completed"
	EventPredictionUpdate EventKind = "prediction_update"
)

// Event is a lightweight notification the engine emits alongside storing
// results internally.
type Event struct {
	Kind   EventKind
	Key    types.Key
	Result *types.FusionResult
}

// Metrics is a point-in-time snapshot of the engine's counters,
// spec.md §4.6.
type Metrics struct {
	TotalIngestions int64
	TotalFusions    int64
	FusionsByType   map[types.FusionType]int64
	AvgProcessingNs float64
}

// Engine orchestrates the fusion pipeline for one runtime instance.
type Engine struct {
	cfg      Config
	clk      clock.Clock
	assessor *quality.Assessor
	store    *temporal.Store
	log      zerolog.Logger
	metrics  *metrics.Registry

	mu            sync.Mutex
	latest        map[types.Key]types.EnrichedSample
	results       map[types.FusionType]*types.FusionResult
	lastSignature map[types.FusionType]string

	totalIngestions int64
	totalFusions    int64
	fusionsByType   map[types.FusionType]int64
	avgProcessingNs float64

	events chan Event

	// Enhancer optionally enriches a freshly computed FusionResult with
	// temporal context or an explanation before it is published, spec.md
	// §4.6 ("optionally enriches ... from external collaborators, by
	// interface"). Nil is a valid, common case.
	Enhancer func(types.FusionType, *types.FusionResult)
}

// NewEngine builds a Fusion Engine over an existing Quality Assessor and
// Temporal Store (both are independently owned components per spec.md
// §4.1/§4.3's ownership rules; the engine only borrows references).
func NewEngine(cfg Config, clk clock.Clock, assessor *quality.Assessor, store *temporal.Store, log zerolog.Logger) *Engine {
	return &Engine{
		cfg:           cfg.withDefaults(),
		clk:           clk,
		assessor:      assessor,
		store:         store,
		log:           log.With().Str("component", "fusion-engine").Logger(),
		latest:        make(map[types.Key]types.EnrichedSample),
		results:       make(map[types.FusionType]*types.FusionResult),
		lastSignature: make(map[types.FusionType]string),
		fusionsByType: make(map[types.FusionType]int64),
		events:        make(chan Event, 256),
	}
}

// Events returns the engine's event channel.
func (e *Engine) Events() <-chan Event { return e.events }

// SetMetrics wires a Registry for ingest/fusion instrumentation. Nil (the
// default) runs the engine with no metrics overhead, used throughout this
// package's own tests.
func (e *Engine) SetMetrics(m *metrics.Registry) { e.metrics = m }

// Ingest assesses quality, builds an EnrichedSample, stores it in the
// latest-by-key map and the Temporal Store, emits data_ingested, then
// evaluates the fusion triggers. spec.md §4.6 step 1.
func (e *Engine) Ingest(key types.Key, sample types.Sample) types.EnrichedSample {
	startNs := e.clk.NowNs()
	sample.Key = key
	sample.IngestTimeNs = startNs
	q := e.assessor.Assess(sample, startNs)
	enriched := types.EnrichedSample{Sample: sample, Quality: q, IngestedAtNs: startNs}

	e.mu.Lock()
	e.latest[key] = enriched
	e.totalIngestions++
	e.mu.Unlock()

	e.store.Insert(key.String(), types.Point{
		Value:       seriesValue(sample),
		Quality:     q.Quality,
		TimestampNs: sample.TimestampNs,
	})

	e.emit(Event{Kind: EventDataIngested, Key: key, Result: nil})

	if e.metrics != nil {
		e.metrics.RecordIngest(string(key.Source), string(key.Type), q.Quality)
	}

	e.maybeTriggerFusions()

	e.mu.Lock()
	elapsed := float64(e.clk.NowNs() - startNs)
	if e.avgProcessingNs == 0 {
		e.avgProcessingNs = elapsed
	} else {
		e.avgProcessingNs = emaAlpha*elapsed + (1-emaAlpha)*e.avgProcessingNs
	}
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.RecordFusionProcessing(time.Duration(e.clk.NowNs() - startNs))
	}

	return enriched
}

// seriesValue extracts the single scalar the Temporal Store tracks for a
// sample. Telemetry-fusion payloads are multi-field; the Temporal Store
// operates on one representative scalar per key, so each (source,type)
// picks its primary signal here (documented per-type, not guessed).
func seriesValue(s types.Sample) float64 {
	switch {
	case s.Payload.Physiological != nil:
		return s.Payload.Physiological.HeartRate
	case s.Payload.Behavioral != nil:
		return s.Payload.Behavioral.ReactionTimeMs
	case s.Payload.SelfReport != nil:
		return s.Payload.SelfReport.WorkloadRating
	case s.Payload.Performance != nil:
		return s.Payload.Performance.ErrorRate
	case s.Payload.Telemetry != nil:
		return s.Payload.Telemetry.Complexity
	case s.Payload.Systems != nil:
		return s.Payload.Systems.EngineRPM
	case s.Payload.Dynamics != nil:
		return s.Payload.Dynamics.Altitude
	case s.Payload.Environment != nil:
		return s.Payload.Environment.Visibility
	case s.Payload.Weather != nil:
		return s.Payload.Weather.WindSpeed
	case s.Payload.Traffic != nil:
		return float64(s.Payload.Traffic.NearbyCount)
	case s.Payload.Navigation != nil:
		return s.Payload.Navigation.CrossTrackErrorNM
	case s.Payload.Communication != nil:
		return s.Payload.Communication.ChannelLoad
	default:
		return 0
	}
}

// signatureChanged reports whether sig differs from the last signature a
// trigger of type t fired with, recording sig as the new baseline. A
// trigger calls this right before publishing so that re-evaluating the
// same gating predicate against an unchanged set of contributing samples
// (e.g. an unrelated key's ingest re-running every trigger) does not
// re-publish an identical fusion_completed event, spec.md §8 scenario 3.
func (e *Engine) signatureChanged(t types.FusionType, sig string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastSignature[t] == sig {
		return false
	}
	e.lastSignature[t] = sig
	return true
}

func (e *Engine) emit(ev Event) {
	select {
	case e.events <- ev:
	default:
	}
}

// Latest returns the current EnrichedSample for key, if any.
func (e *Engine) Latest(key types.Key) (types.EnrichedSample, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.latest[key]
	return s, ok
}

// LatestResult returns the most recent FusionResult of the given type.
func (e *Engine) LatestResult(t types.FusionType) (*types.FusionResult, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.results[t]
	return r, ok
}

// Metrics returns a snapshot of the engine's counters, spec.md §4.6.
func (e *Engine) Metrics() Metrics {
	e.mu.Lock()
	defer e.mu.Unlock()
	byType := make(map[types.FusionType]int64, len(e.fusionsByType))
	for k, v := range e.fusionsByType {
		byType[k] = v
	}
	return Metrics{
		TotalIngestions: e.totalIngestions,
		TotalFusions:    e.totalFusions,
		FusionsByType:   byType,
		AvgProcessingNs: e.avgProcessingNs,
	}
}
