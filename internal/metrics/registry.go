// Package metrics exposes the runtime's Prometheus instrumentation.
// Grounded on internal/interfaces/http/metrics.go's MetricsRegistry shape
// (HistogramVec/GaugeVec/CounterVec fields plus Record*/Increment*
// helpers), generalized from the teacher's fixed trading-pipeline metric
// set to the fusion runtime's C4/C6/C8/C10/C11 concerns. Unlike the
// teacher, which registers against the global prometheus.DefaultRegisterer
// (fine for a single long-lived process, but panics if a test builds a
// second registry in the same binary), this registry is built against its
// own prometheus.Registry so multiple instances can coexist in tests.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every metric the runtime emits.
type Registry struct {
	registry *prometheus.Registry

	// Per-(source,type) ingestion and buffer pressure. SamplesIngested and
	// SampleQuality are fed by fusion.Engine.Ingest; SamplesDropped and
	// BufferOccupancy have no caller in this module.
	SamplesIngested   *prometheus.CounterVec
	SamplesDropped    *prometheus.CounterVec
	BufferOccupancy   *prometheus.GaugeVec
	SampleQuality     *prometheus.GaugeVec

	// Fusion Engine (C6): trigger activity and processing latency.
	FusionsTriggered  *prometheus.CounterVec
	FusionConfidence  *prometheus.GaugeVec
	FusionProcessing  prometheus.Histogram

	// Device Session (C8): connection state and reconnect activity.
	SessionState      *prometheus.GaugeVec
	ReconnectAttempts *prometheus.CounterVec
	HeartbeatMisses   *prometheus.CounterVec

	// Distributor (C10): per-topic fan-out and backpressure.
	FramesPublished *prometheus.CounterVec
	FramesDropped   *prometheus.CounterVec
	SubscribersActive prometheus.Gauge

	// Adaptive Batcher (C11): coalescing behavior.
	BatchSize    prometheus.Histogram
	BatchLatency prometheus.Histogram
}

// New builds a Registry backed by a fresh prometheus.Registry.
func New() *Registry {
	reg := prometheus.NewRegistry()
	m := &Registry{
		registry: reg,

		SamplesIngested: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "telemetry_samples_ingested_total",
				Help: "Total samples ingested by source and type",
			},
			[]string{"source", "type"},
		),
		SamplesDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "telemetry_samples_dropped_total",
				Help: "Total samples dropped by source, type, and reason",
			},
			[]string{"source", "type", "reason"},
		),
		BufferOccupancy: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "telemetry_buffer_occupancy",
				Help: "Current ring buffer occupancy by source and type",
			},
			[]string{"source", "type"},
		),
		SampleQuality: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "telemetry_sample_quality",
				Help: "Most recent quality score by source and type",
			},
			[]string{"source", "type"},
		),

		FusionsTriggered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "telemetry_fusions_triggered_total",
				Help: "Total fusion results produced by fusion type",
			},
			[]string{"fusion_type"},
		),
		FusionConfidence: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "telemetry_fusion_confidence",
				Help: "Most recent fusion confidence by fusion type",
			},
			[]string{"fusion_type"},
		),
		FusionProcessing: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "telemetry_fusion_processing_seconds",
				Help:    "Time spent in Engine.Ingest per sample",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
			},
		),

		SessionState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "telemetry_session_state",
				Help: "Current session state (0=disconnected,1=connecting,2=connected,3=disconnecting,4=error,5=failed)",
			},
			[]string{"device_id"},
		),
		ReconnectAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "telemetry_reconnect_attempts_total",
				Help: "Total reconnect attempts by device",
			},
			[]string{"device_id"},
		),
		HeartbeatMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "telemetry_heartbeat_misses_total",
				Help: "Total heartbeat-miss detections by device",
			},
			[]string{"device_id"},
		),

		FramesPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "telemetry_frames_published_total",
				Help: "Total frames published by topic",
			},
			[]string{"topic"},
		),
		FramesDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "telemetry_frames_dropped_total",
				Help: "Total frames dropped by topic and reliability mode",
			},
			[]string{"topic", "reliability"},
		),
		SubscribersActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "telemetry_subscribers_active",
				Help: "Current number of active distributor subscriptions",
			},
		),

		BatchSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "telemetry_batch_size",
				Help:    "Items drained per adaptive batcher tick",
				Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128},
			},
		),
		BatchLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "telemetry_batch_latency_seconds",
				Help:    "Mean in-queue latency observed per adaptive batcher tick",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
			},
		),
	}

	reg.MustRegister(
		m.SamplesIngested, m.SamplesDropped, m.BufferOccupancy, m.SampleQuality,
		m.FusionsTriggered, m.FusionConfidence, m.FusionProcessing,
		m.SessionState, m.ReconnectAttempts, m.HeartbeatMisses,
		m.FramesPublished, m.FramesDropped, m.SubscribersActive,
		m.BatchSize, m.BatchLatency,
	)
	return m
}

// Gatherer exposes the underlying registry directly, for callers that want
// to fold it into a larger multi-registry gatherer.
func (m *Registry) Gatherer() prometheus.Gatherer { return m.registry }

// MetricsHandler returns an HTTP handler serving this registry's metrics
// in the Prometheus text exposition format, wired by cmd/telemetryrun's
// run command rather than the teacher's global promhttp.Handler() (this
// registry is per-instance, not the default one promhttp.Handler() reads).
func (m *Registry) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// sessionStateValue maps a Device Session state to its gauge value.
func sessionStateValue(state string) float64 {
	switch state {
	case "disconnected":
		return 0
	case "connecting":
		return 1
	case "connected":
		return 2
	case "disconnecting":
		return 3
	case "error":
		return 4
	case "failed":
		return 5
	default:
		return -1
	}
}

// RecordSessionState sets the session-state gauge for deviceID.
func (m *Registry) RecordSessionState(deviceID, state string) {
	m.SessionState.WithLabelValues(deviceID).Set(sessionStateValue(state))
}

// RecordFusionProcessing observes one Engine.Ingest call's duration.
func (m *Registry) RecordFusionProcessing(d time.Duration) {
	m.FusionProcessing.Observe(d.Seconds())
}

// RecordBatch observes one adaptive-batcher tick's size and mean latency.
func (m *Registry) RecordBatch(size int, latency time.Duration) {
	m.BatchSize.Observe(float64(size))
	m.BatchLatency.Observe(latency.Seconds())
}

// RecordIngest updates the ingestion counters/gauges for one ingested
// sample: the per-(source,type) ingest counter and its most recent
// quality score.
func (m *Registry) RecordIngest(source, sampleType string, quality float64) {
	m.SamplesIngested.WithLabelValues(source, sampleType).Inc()
	m.SampleQuality.WithLabelValues(source, sampleType).Set(quality)
}

// RecordDrop increments the per-(source,type,reason) drop counter.
func (m *Registry) RecordDrop(source, sampleType, reason string) {
	m.SamplesDropped.WithLabelValues(source, sampleType, reason).Inc()
}

// RecordBufferOccupancy sets the current ring buffer occupancy gauge for
// a (source,type) stream.
func (m *Registry) RecordBufferOccupancy(source, sampleType string, occupancy int) {
	m.BufferOccupancy.WithLabelValues(source, sampleType).Set(float64(occupancy))
}

// RecordFusion updates the per-fusion-type trigger counter and most
// recent confidence gauge.
func (m *Registry) RecordFusion(fusionType string, confidence float64) {
	m.FusionsTriggered.WithLabelValues(fusionType).Inc()
	m.FusionConfidence.WithLabelValues(fusionType).Set(confidence)
}

// RecordReconnectAttempt increments the per-device reconnect counter.
func (m *Registry) RecordReconnectAttempt(deviceID string) {
	m.ReconnectAttempts.WithLabelValues(deviceID).Inc()
}

// RecordHeartbeatMiss increments the per-device heartbeat-miss counter.
func (m *Registry) RecordHeartbeatMiss(deviceID string) {
	m.HeartbeatMisses.WithLabelValues(deviceID).Inc()
}

// RecordPublish increments the per-topic published-frame counter.
func (m *Registry) RecordPublish(topic string) {
	m.FramesPublished.WithLabelValues(topic).Inc()
}

// RecordFrameDrop increments the per-(topic,reliability) dropped-frame
// counter.
func (m *Registry) RecordFrameDrop(topic, reliability string) {
	m.FramesDropped.WithLabelValues(topic, reliability).Inc()
}

// SetSubscribersActive sets the current active-subscription gauge.
func (m *Registry) SetSubscribersActive(n int) {
	m.SubscribersActive.Set(float64(n))
}
