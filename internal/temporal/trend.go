package temporal

import (
	"math"

	"github.com/synopticon/telemetry-fusion/internal/types"
)

// Trend computes (or returns the cached) trend for key over the trailing
// window ending at nowNs, per spec.md §4.3. windowNs<=0 defaults to 60s.
func (st *Store) Trend(key string, nowNs int64, windowNs int64) types.Trend {
	if windowNs <= 0 {
		windowNs = int64(60 * 1e9)
	}

	st.mu.RLock()
	if cached, ok := st.trendCache[key]; ok && nowNs-cached.computedAtNs < TrendCacheTTLNs {
		st.mu.RUnlock()
		return cached.trend
	}
	s, ok := st.series[key]
	st.mu.RUnlock()
	if !ok {
		return types.Trend{Direction: types.TrendInsufficientData}
	}

	points := s.Window(nowNs, windowNs)
	trend := computeTrend(points, float64(windowNs)/1e9)

	st.mu.Lock()
	st.trendCache[key] = cachedTrend{trend: trend, computedAtNs: nowNs}
	st.mu.Unlock()

	return trend
}

func computeTrend(points []types.Point, windowSeconds float64) types.Trend {
	n := len(points)
	if n < 3 {
		return types.Trend{Direction: types.TrendInsufficientData, SampleCount: n}
	}

	x := make([]float64, n)
	y := make([]float64, n)
	w := make([]float64, n)
	qualitySum := 0.0
	for i, p := range points {
		x[i] = float64(i)
		y[i] = p.Value
		w[i] = p.Quality
		qualitySum += p.Quality
	}
	// Normalize weights so sum(w) == n.
	if qualitySum <= 0 {
		for i := range w {
			w[i] = 1
		}
	} else {
		scale := float64(n) / qualitySum
		for i := range w {
			w[i] *= scale
		}
	}

	slope, intercept, stdErr := weightedLinearRegression(x, y, w)
	_, r2 := ordinaryLinearRegression(x, y)

	t := math.Abs(slope) / math.Max(stdErr, 1e-3)

	direction := types.TrendStable
	switch {
	case t < 1.5:
		direction = types.TrendStable
	case slope > 0.01:
		direction = types.TrendIncreasing
	case slope < -0.01:
		direction = types.TrendDecreasing
	default:
		direction = types.TrendStable
	}

	meanQuality := qualitySum / float64(n)
	sampleSizeScore := clamp01(float64(n) / 10)
	spanSeconds := (points[n-1].TimestampNs - points[0].TimestampNs) / int64(1e9)
	coverageScore := clamp01(float64(spanSeconds) / windowSeconds)
	significanceScore := clamp01(t / 2)

	confidence := (sampleSizeScore + r2 + meanQuality + coverageScore + significanceScore) / 5

	return types.Trend{
		Direction:     direction,
		Slope:         slope,
		Intercept:     intercept,
		StandardError: stdErr,
		Confidence:    confidence,
		SampleCount:   n,
	}
}

// weightedLinearRegression fits y = slope*x + intercept with weights w,
// returning the slope's standard error.
func weightedLinearRegression(x, y, w []float64) (slope, intercept, stdErr float64) {
	n := float64(len(x))
	var sw, swx, swy float64
	for i := range x {
		sw += w[i]
		swx += w[i] * x[i]
		swy += w[i] * y[i]
	}
	xbar := swx / sw
	ybar := swy / sw

	var sxx, sxy float64
	for i := range x {
		dx := x[i] - xbar
		sxx += w[i] * dx * dx
		sxy += w[i] * dx * (y[i] - ybar)
	}
	if sxx == 0 {
		return 0, ybar, 0
	}
	slope = sxy / sxx
	intercept = ybar - slope*xbar

	var sse float64
	for i := range x {
		resid := y[i] - (slope*x[i] + intercept)
		sse += w[i] * resid * resid
	}
	if n <= 2 {
		return slope, intercept, 0
	}
	variance := sse / (n - 2)
	stdErr = math.Sqrt(variance / sxx)
	return slope, intercept, stdErr
}

// ordinaryLinearRegression fits an unweighted y = slope*x + intercept and
// returns the slope plus the regression's R².
func ordinaryLinearRegression(x, y []float64) (slope, r2 float64) {
	n := float64(len(x))
	var sx, sy float64
	for i := range x {
		sx += x[i]
		sy += y[i]
	}
	xbar := sx / n
	ybar := sy / n

	var sxx, sxy, syy float64
	for i := range x {
		dx := x[i] - xbar
		dy := y[i] - ybar
		sxx += dx * dx
		sxy += dx * dy
		syy += dy * dy
	}
	if sxx == 0 {
		return 0, 0
	}
	slope = sxy / sxx
	intercept := ybar - slope*xbar

	if syy == 0 {
		return slope, 1
	}
	var sse float64
	for i := range x {
		resid := y[i] - (slope*x[i] + intercept)
		sse += resid * resid
	}
	r2 = 1 - sse/syy
	return slope, clamp01(r2)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
