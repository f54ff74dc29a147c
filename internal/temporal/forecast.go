package temporal

import (
	"math"

	"github.com/synopticon/telemetry-fusion/internal/types"
)

// Predict forecasts forecastMs into the future for key, per spec.md §4.3.
// If the current trend's confidence is below minConfidence, the series
// mean is returned with a flat low confidence instead.
func (st *Store) Predict(key string, nowNs int64, forecastMs int64, minConfidence float64) types.Forecast {
	s := st.Series(key)
	if s == nil || s.Len() == 0 {
		return types.Forecast{Confidence: 0.1}
	}
	points := s.Points()
	mean, std := meanStd(points)

	trend := st.Trend(key, nowNs, 0)
	seconds := float64(forecastMs) / 1000

	if trend.Confidence < minConfidence {
		return types.Forecast{PredictedValue: mean, Confidence: 0.1}
	}

	predicted := mean + trend.Slope*seconds
	uncertainty := std * math.Sqrt(seconds/60)

	return types.Forecast{
		PredictedValue: predicted,
		Confidence:     trend.Confidence,
		Uncertainty:    uncertainty,
		CI95Low:        predicted - 1.96*uncertainty,
		CI95High:       predicted + 1.96*uncertainty,
	}
}
