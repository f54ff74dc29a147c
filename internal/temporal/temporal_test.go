package temporal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synopticon/telemetry-fusion/internal/types"
)

func TestSeriesInsertBoundedAndOrdered(t *testing.T) {
	s := NewSeries(5)
	for i := 0; i < 10; i++ {
		s.Insert(types.Point{Value: float64(i), Quality: 1, TimestampNs: int64(i) * int64(1e9)})
	}
	require.Equal(t, 5, s.Len())
	points := s.Points()
	for i := 1; i < len(points); i++ {
		assert.GreaterOrEqual(t, points[i].TimestampNs, points[i-1].TimestampNs)
	}
	// Oldest 5 evicted FIFO; remaining values should be 5..9.
	assert.Equal(t, float64(5), points[0].Value)
}

func TestSeriesInsertOutOfOrder(t *testing.T) {
	s := NewSeries(10)
	s.Insert(types.Point{Value: 1, TimestampNs: 1000})
	s.Insert(types.Point{Value: 3, TimestampNs: 3000})
	s.Insert(types.Point{Value: 2, TimestampNs: 2000}) // arrives late
	points := s.Points()
	require.Len(t, points, 3)
	assert.Equal(t, []int64{1000, 2000, 3000}, []int64{points[0].TimestampNs, points[1].TimestampNs, points[2].TimestampNs})
}

func TestTrendInsufficientData(t *testing.T) {
	st := NewStore(100)
	st.Insert("k", types.Point{Value: 1, Quality: 1, TimestampNs: 0})
	st.Insert("k", types.Point{Value: 2, Quality: 1, TimestampNs: int64(1e9)})
	trend := st.Trend("k", int64(2*1e9), int64(60*1e9))
	assert.Equal(t, types.TrendInsufficientData, trend.Direction)
}

func TestTrendDetectionIncreasing(t *testing.T) {
	st := NewStore(100)
	var lastTs int64
	for i := 0; i < 20; i++ {
		ts := int64(i) * int64(1e9) // 1 sample/sec over 19s, per spec scenario 2
		st.Insert("human-physiological", types.Point{Value: 60 + float64(i), Quality: 1.0, TimestampNs: ts})
		lastTs = ts
	}
	trend := st.Trend("human-physiological", lastTs, int64(60*1e9))
	assert.Equal(t, types.TrendIncreasing, trend.Direction)
	assert.InDelta(t, 1.0, trend.Slope, 0.1)
	assert.Greater(t, trend.Confidence, 0.7)
}

func TestTrendCacheServesWithinTTL(t *testing.T) {
	st := NewStore(100)
	for i := 0; i < 5; i++ {
		st.Insert("k", types.Point{Value: float64(i), Quality: 1, TimestampNs: int64(i) * int64(1e9)})
	}
	t1 := st.Trend("k", int64(5*1e9), int64(60*1e9))
	// Insert would normally invalidate, but we call Trend directly twice
	// without inserting to confirm the cache returns the identical result.
	t2 := st.Trend("k", int64(5*1e9)+1, int64(60*1e9))
	assert.Equal(t, t1, t2)
}

func TestForecastLowConfidenceFallsBackToMean(t *testing.T) {
	st := NewStore(100)
	// Noisy, flat-ish series with low confidence trend.
	vals := []float64{10, 50, 5, 45, 12, 48}
	for i, v := range vals {
		st.Insert("noisy", types.Point{Value: v, Quality: 0.1, TimestampNs: int64(i) * int64(1e9)})
	}
	fc := st.Predict("noisy", int64(len(vals))*int64(1e9), 5000, 0.99)
	assert.Equal(t, 0.1, fc.Confidence)
}

func TestAnomaliesCapToFive(t *testing.T) {
	st := NewStore(100)
	for i := 0; i < 20; i++ {
		v := 10.0
		if i%2 == 0 {
			v = 1000.0 // alternate wild outliers
		}
		st.Insert("spiky", types.Point{Value: v, Quality: 1, TimestampNs: int64(i) * int64(1e9)})
	}
	anomalies := st.Anomalies("spiky", 0)
	assert.LessOrEqual(t, len(anomalies), 5)
}
