// Package pipeline wires Device Sessions, the Fusion Engine, and the
// Distributor into one data flow: Device Session -> (optional Adaptive
// Batcher) -> Fusion Engine (Quality Assessor + Temporal Store) ->
// Distributor. No Stream Node or Sync Engine stage is part of this flow;
// decoded samples go straight to fusion.Engine.Ingest. It is intentionally thin: each
// component is independently testable, so this package's own tests focus
// on the decode step and the wiring, not on re-testing the components.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/synopticon/telemetry-fusion/internal/batcher"
	"github.com/synopticon/telemetry-fusion/internal/clock"
	"github.com/synopticon/telemetry-fusion/internal/distributor"
	"github.com/synopticon/telemetry-fusion/internal/fusion"
	"github.com/synopticon/telemetry-fusion/internal/session"
	"github.com/synopticon/telemetry-fusion/internal/types"
)

// gazeFrame mirrors the JSON schema session.GazeGenerator emits and the
// eye-tracker's real websocket payload, spec.md §6.
type gazeFrame struct {
	TimestampNs int64   `json:"timestamp_ns"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Confidence  float64 `json:"confidence"`
	Worn        bool    `json:"worn"`
}

// aircraftFrame mirrors session.AircraftGenerator's mock telemetry.
type aircraftFrame struct {
	TimestampNs int64      `json:"timestamp_ns"`
	Position    [3]float64 `json:"position"`
	Velocity    [3]float64 `json:"velocity"`
	HeadingDeg  float64    `json:"heading_deg"`
}

// DecodeGaze turns a mock/real eye-tracker JSON frame into a behavioral
// Sample. Only the timestamp and gaze x/y are carried over: the frame's
// confidence and worn fields are decoded but not used, so a low-confidence
// frame yields the same Sample as any other.
func DecodeGaze(deviceID string, raw []byte) (types.Sample, error) {
	var f gazeFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return types.Sample{}, fmt.Errorf("decode gaze frame: %w", err)
	}
	key := types.Key{Source: types.SourceHuman, Type: types.TypeBehavioral}
	return types.Sample{
		Key:         key,
		TimestampNs: f.TimestampNs,
		Payload: types.Payload{Behavioral: &types.BehavioralPayload{
			GazeX: f.X,
			GazeY: f.Y,
		}},
	}, nil
}

// DecodeAircraft turns a mock/real simulator telemetry frame into a
// simulator/telemetry Sample.
func DecodeAircraft(raw []byte) (types.Sample, error) {
	var f aircraftFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return types.Sample{}, fmt.Errorf("decode aircraft frame: %w", err)
	}
	key := types.Key{Source: types.SourceSimulator, Type: types.TypeTelemetry}
	return types.Sample{
		Key:         key,
		TimestampNs: f.TimestampNs,
		Payload: types.Payload{Telemetry: &types.TelemetryPayload{
			Position:   f.Position,
			Velocity:   f.Velocity,
			HeadingDeg: f.HeadingDeg,
		}},
	}, nil
}

// weatherFrame mirrors a VATSIM-style polled weather payload, spec.md §4.10:
// a wall-clock-stamped JSON document pulled over HTTPS rather than pushed
// over a Device Session's framed transport.
type weatherFrame struct {
	ReportedAtWallNs int64   `json:"reported_at_unix_ns"`
	Temperature      float64 `json:"temperature"`
	WindSpeed        float64 `json:"wind_speed"`
	Visibility       float64 `json:"visibility"`
	Precip           float64 `json:"precip"`
}

// DecodeWeather turns one polled external/weather JSON document into a
// Sample, normalizing its source-reported wall-clock timestamp to local
// monotonic time via tracker, spec.md §4.1: external wall-clock sources
// (weather, VATSIM) have their per-source offset learned from the first
// five samples and corrected from then on, rather than trusted as-is.
func DecodeWeather(tracker *clock.SkewTracker, sourceKey string, raw []byte) (types.Sample, error) {
	var f weatherFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return types.Sample{}, fmt.Errorf("decode weather frame: %w", err)
	}
	key := types.Key{Source: types.SourceExternal, Type: types.TypeWeather}
	return types.Sample{
		Key:         key,
		TimestampNs: tracker.Normalize(sourceKey, f.ReportedAtWallNs),
		Payload: types.Payload{Weather: &types.WeatherPayload{
			Temperature: f.Temperature,
			WindSpeed:   f.WindSpeed,
			Visibility:  f.Visibility,
			Precip:      f.Precip,
		}},
	}, nil
}

// Decoder turns one raw transport frame into a typed Sample.
type Decoder func(raw []byte) (types.Sample, error)

// envelope is the replay file's line format: an explicit (source,type)
// key plus a payload object matching the corresponding typed payload
// struct's JSON field names, spec.md §3's Sample model made literal for
// file-based replay.
type envelope struct {
	Source      types.Source     `json:"source"`
	Type        types.SampleType `json:"type"`
	TimestampNs int64            `json:"timestamp_ns"`
	Payload     json.RawMessage  `json:"payload"`
}

// DecodeEnvelope decodes one replay-file line into a Sample, dispatching
// the payload by (source,type) to the matching typed payload struct.
func DecodeEnvelope(raw []byte) (types.Sample, error) {
	var e envelope
	if err := json.Unmarshal(raw, &e); err != nil {
		return types.Sample{}, fmt.Errorf("decode envelope: %w", err)
	}
	key := types.Key{Source: e.Source, Type: e.Type}
	payload, err := decodePayload(key, e.Payload)
	if err != nil {
		return types.Sample{}, err
	}
	return types.Sample{Key: key, TimestampNs: e.TimestampNs, Payload: payload}, nil
}

func decodePayload(key types.Key, raw json.RawMessage) (types.Payload, error) {
	var payload types.Payload
	var err error
	switch key.Type {
	case types.TypePhysiological:
		p := &types.PhysiologicalPayload{}
		err = json.Unmarshal(raw, p)
		payload.Physiological = p
	case types.TypeBehavioral:
		p := &types.BehavioralPayload{}
		err = json.Unmarshal(raw, p)
		payload.Behavioral = p
	case types.TypeSelfReport:
		p := &types.SelfReportPayload{}
		err = json.Unmarshal(raw, p)
		payload.SelfReport = p
	case types.TypePerformance:
		p := &types.PerformancePayload{}
		err = json.Unmarshal(raw, p)
		payload.Performance = p
	case types.TypeTelemetry:
		p := &types.TelemetryPayload{}
		err = json.Unmarshal(raw, p)
		payload.Telemetry = p
	case types.TypeSystems:
		p := &types.SystemsPayload{}
		err = json.Unmarshal(raw, p)
		payload.Systems = p
	case types.TypeDynamics:
		p := &types.DynamicsPayload{}
		err = json.Unmarshal(raw, p)
		payload.Dynamics = p
	case types.TypeEnvironment:
		p := &types.EnvironmentPayload{}
		err = json.Unmarshal(raw, p)
		payload.Environment = p
	case types.TypeWeather:
		p := &types.WeatherPayload{}
		err = json.Unmarshal(raw, p)
		payload.Weather = p
	case types.TypeTraffic:
		p := &types.TrafficPayload{}
		err = json.Unmarshal(raw, p)
		payload.Traffic = p
	case types.TypeNavigation:
		p := &types.NavigationPayload{}
		err = json.Unmarshal(raw, p)
		payload.Navigation = p
	case types.TypeCommunication:
		p := &types.CommunicationPayload{}
		err = json.Unmarshal(raw, p)
		payload.Communication = p
	default:
		p := &types.OpaquePayload{}
		err = json.Unmarshal(raw, p)
		payload.Opaque = p
	}
	if err != nil {
		return types.Payload{}, fmt.Errorf("decode payload for %s: %w", key, err)
	}
	return payload, nil
}

// ReplayLine decodes and ingests one envelope line directly into a Fusion
// Engine, bypassing the Device Session layer entirely — used by the
// replay CLI command to drive the pipeline from a canned sample file.
func ReplayLine(engine *fusion.Engine, raw []byte) error {
	sample, err := DecodeEnvelope(raw)
	if err != nil {
		return err
	}
	engine.Ingest(sample.Key, sample)
	return nil
}

// Runtime binds a set of Device Sessions to a shared Fusion Engine and
// republishes every resulting FusionResult to the Distributor.
type Runtime struct {
	log     zerolog.Logger
	engine  *fusion.Engine
	distrib *distributor.Distributor
}

// NewRuntime builds a Runtime over an already-constructed Fusion Engine
// and Distributor.
func NewRuntime(engine *fusion.Engine, distrib *distributor.Distributor, log zerolog.Logger) *Runtime {
	return &Runtime{log: log.With().Str("component", "pipeline").Logger(), engine: engine, distrib: distrib}
}

// AttachSession wires sess's incoming frames through decode into the
// Fusion Engine, logging (not dropping the session) on decode failure —
// a single malformed frame must not take the whole device offline.
func (r *Runtime) AttachSession(sess *session.Session, decode Decoder) {
	sess.OnMessage(func(raw []byte) {
		sample, err := decode(raw)
		if err != nil {
			r.log.Warn().Err(err).Msg("dropping undecodable frame")
			return
		}
		r.engine.Ingest(sample.Key, sample)
	})
}

// AttachSessionBatched wires sess's incoming frames through decode into an
// Adaptive Batcher (C11) instead of ingesting one-by-one, for high-rate
// streams (e.g. a 200Hz eye-tracker) where per-frame ingestion latency
// would dominate. Run the returned Batcher via its Run method on a
// long-lived goroutine; cancelling ctx stops it.
func (r *Runtime) AttachSessionBatched(ctx context.Context, sess *session.Session, decode Decoder, cfg batcher.Config) *batcher.Batcher {
	b := batcher.New(cfg, sess.Clock(), func(ctx context.Context, batch []any) {
		for _, v := range batch {
			sample := v.(types.Sample)
			r.engine.Ingest(sample.Key, sample)
		}
	})
	sess.OnMessage(func(raw []byte) {
		sample, err := decode(raw)
		if err != nil {
			r.log.Warn().Err(err).Msg("dropping undecodable frame")
			return
		}
		b.Enqueue(sample)
	})
	go b.Run(ctx)
	return b
}

// PublishFusionEvents drains the Fusion Engine's event stream and
// republishes every fusion_completed result to the Distributor under a
// topic named after its fusion type, until the event channel closes.
func (r *Runtime) PublishFusionEvents() {
	for ev := range r.engine.Events() {
		if ev.Kind != fusion.EventFusionCompleted || ev.Result == nil {
			continue
		}
		topic := string(ev.Result.FusionType)
		body, err := json.Marshal(ev.Result)
		if err != nil {
			r.log.Warn().Err(err).Str("topic", topic).Msg("failed to marshal fusion result")
			continue
		}
		r.distrib.Publish(topic, body, distributor.PublishOptions{Reliability: distributor.ReliabilityBestEffort})
	}
}
