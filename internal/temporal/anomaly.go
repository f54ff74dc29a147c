package temporal

import (
	"math"
	"sort"

	"github.com/synopticon/telemetry-fusion/internal/types"
)

const maxAnomalies = 5

// Anomalies returns up to the top-5 anomalies for key's current points
// across all three kinds (outliers, quality drops, trend breaks), sorted by
// descending score, per spec.md §4.3.
func (st *Store) Anomalies(key string, outlierSigma float64) []types.Anomaly {
	s := st.Series(key)
	if s == nil {
		return nil
	}
	points := s.Points()
	if len(points) == 0 {
		return nil
	}
	if outlierSigma <= 0 {
		outlierSigma = 3.0
	}

	var found []types.Anomaly
	found = append(found, outlierAnomalies(points, outlierSigma)...)
	found = append(found, qualityDropAnomalies(points)...)
	found = append(found, trendBreakAnomalies(points)...)

	sort.Slice(found, func(i, j int) bool { return found[i].Score > found[j].Score })
	if len(found) > maxAnomalies {
		found = found[:maxAnomalies]
	}
	return found
}

func outlierAnomalies(points []types.Point, sigma float64) []types.Anomaly {
	n := len(points)
	if n < 2 {
		return nil
	}
	mean, std := meanStd(points)
	if std == 0 {
		return nil
	}
	var out []types.Anomaly
	for i, p := range points {
		dev := math.Abs(p.Value-mean) / std
		if dev > sigma {
			out = append(out, types.Anomaly{
				Kind: types.AnomalyOutlier, Index: i, TimestampNs: p.TimestampNs,
				Value: p.Value, Score: dev,
			})
		}
	}
	return out
}

func qualityDropAnomalies(points []types.Point) []types.Anomaly {
	var out []types.Anomaly
	for i, p := range points {
		if p.Quality < 0.3 {
			out = append(out, types.Anomaly{
				Kind: types.AnomalyQualityDrop, Index: i, TimestampNs: p.TimestampNs,
				Value: p.Value, Score: 0.3 - p.Quality,
			})
		}
	}
	return out
}

// trendBreakAnomalies flags points where the local 4-point slope changes by
// more than one standard deviation of all local slopes.
func trendBreakAnomalies(points []types.Point) []types.Anomaly {
	n := len(points)
	if n < 8 {
		return nil
	}
	localSlope := func(i int) float64 {
		return (points[i+3].Value - points[i].Value) / 3
	}
	var slopes []float64
	for i := 0; i+3 < n; i++ {
		slopes = append(slopes, localSlope(i))
	}
	if len(slopes) < 2 {
		return nil
	}
	var sum float64
	for _, sl := range slopes {
		sum += sl
	}
	mean := sum / float64(len(slopes))
	var ss float64
	for _, sl := range slopes {
		ss += (sl - mean) * (sl - mean)
	}
	std := math.Sqrt(ss / float64(len(slopes)))
	if std == 0 {
		return nil
	}

	var out []types.Anomaly
	for i := 1; i < len(slopes); i++ {
		change := math.Abs(slopes[i] - slopes[i-1])
		if change > std {
			idx := i + 3
			out = append(out, types.Anomaly{
				Kind: types.AnomalyTrendBreak, Index: idx, TimestampNs: points[idx].TimestampNs,
				Value: points[idx].Value, Score: change / std,
			})
		}
	}
	return out
}

func meanStd(points []types.Point) (mean, std float64) {
	n := float64(len(points))
	var sum float64
	for _, p := range points {
		sum += p.Value
	}
	mean = sum / n
	var ss float64
	for _, p := range points {
		ss += (p.Value - mean) * (p.Value - mean)
	}
	std = math.Sqrt(ss / n)
	return mean, std
}
