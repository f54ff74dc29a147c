package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordIngestSetsCounterAndGauge(t *testing.T) {
	m := New()
	m.RecordIngest("human", "physiological", 0.8)
	m.RecordIngest("human", "physiological", 0.6)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SamplesIngested.WithLabelValues("human", "physiological")))
	assert.Equal(t, 0.6, testutil.ToFloat64(m.SampleQuality.WithLabelValues("human", "physiological")))
}

func TestRecordFusionSetsCounterAndGauge(t *testing.T) {
	m := New()
	m.RecordFusion("human-state", 0.7)
	m.RecordFusion("human-state", 0.9)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.FusionsTriggered.WithLabelValues("human-state")))
	assert.Equal(t, 0.9, testutil.ToFloat64(m.FusionConfidence.WithLabelValues("human-state")))
}

func TestSubscribersActiveTracksSetCalls(t *testing.T) {
	m := New()
	m.SetSubscribersActive(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SubscribersActive))
	m.SetSubscribersActive(1)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SubscribersActive))
}

func TestMetricsHandlerServesRegisteredMetrics(t *testing.T) {
	m := New()
	m.RecordReconnectAttempt("mock-eye-tracker")
	assert.NotNil(t, m.MetricsHandler())

	rec := httptest.NewRecorder()
	m.MetricsHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `telemetry_reconnect_attempts_total{device_id="mock-eye-tracker"} 1`)
}
