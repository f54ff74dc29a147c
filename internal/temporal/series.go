// Package temporal implements the Temporal Store (C3): bounded per-series
// ring buffers with trend, anomaly and forecast analysis. Grounded on the
// teacher's ring-buffer/eviction idiom (bounded slices with oldest-eviction)
// generalized from price history to arbitrary named numeric series.
package temporal

import (
	"sort"
	"sync"

	"github.com/synopticon/telemetry-fusion/internal/types"
)

// DefaultCapacity is the default bound N on a Series, spec.md §3.
const DefaultCapacity = 1000

// Series is a bounded, time-ordered sequence of (value, quality, timestamp)
// points. It is not safe for concurrent use by itself — Store.Insert
// writes to it under the store's lock, while Trend, Anomalies and Predict
// read it after releasing that lock.
type Series struct {
	capacity int
	points   []types.Point
}

// NewSeries creates an empty Series bounded at capacity (DefaultCapacity if
// capacity<=0).
func NewSeries(capacity int) *Series {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Series{capacity: capacity}
}

// Insert binary-searches the insertion index (tolerating out-of-order
// arrival) and evicts the oldest point FIFO if the series is over capacity
// afterward. Invariant: len(points) <= capacity and timestamps are
// non-decreasing after insertion.
func (s *Series) Insert(p types.Point) {
	idx := sort.Search(len(s.points), func(i int) bool {
		return s.points[i].TimestampNs >= p.TimestampNs
	})
	s.points = append(s.points, types.Point{})
	copy(s.points[idx+1:], s.points[idx:])
	s.points[idx] = p

	if len(s.points) > s.capacity {
		s.points = s.points[len(s.points)-s.capacity:]
	}
}

// Len returns the current number of points.
func (s *Series) Len() int { return len(s.points) }

// Points returns a copy of the current points, oldest first.
func (s *Series) Points() []types.Point {
	out := make([]types.Point, len(s.points))
	copy(out, s.points)
	return out
}

// Window returns the points within the last duration ending at nowNs.
func (s *Series) Window(nowNs int64, durationNs int64) []types.Point {
	cutoff := nowNs - durationNs
	idx := sort.Search(len(s.points), func(i int) bool {
		return s.points[i].TimestampNs >= cutoff
	})
	return s.Points()[idx:]
}

// Store owns one Series per key. A single store-wide RWMutex guards the
// series map, Insert's writes and the trend cache.
type Store struct {
	mu         sync.RWMutex
	series     map[string]*Series
	trendCache map[string]cachedTrend
	capacity   int
}

type cachedTrend struct {
	trend     types.Trend
	computedAtNs int64
}

// TrendCacheTTLNs is how long a computed Trend is reused, spec.md §4.3.
const TrendCacheTTLNs = int64(30 * 1e9)

// NewStore creates a Store whose series are all bounded at capacity
// (DefaultCapacity if capacity<=0).
func NewStore(capacity int) *Store {
	return &Store{
		series:     make(map[string]*Series),
		trendCache: make(map[string]cachedTrend),
		capacity:   capacity,
	}
}

// Insert appends a point to the named series, creating it if absent, and
// invalidates any cached trend for that key.
func (st *Store) Insert(key string, p types.Point) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.series[key]
	if !ok {
		s = NewSeries(st.capacity)
		st.series[key] = s
	}
	s.Insert(p)
	delete(st.trendCache, key)
}

// Series returns the named series, or nil if it does not exist.
func (st *Store) Series(key string) *Series {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.series[key]
}
