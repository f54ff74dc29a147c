// Package stream implements the Stream Node (C4): a per-source bounded
// temporal buffer, processor chain and subscriber fan-out. Grounded on the
// teacher's stub_bus.go topic/subscriber shape, generalized from byte-slice
// messages to typed EnrichedSample values and given an explicit bounded
// ring buffer instead of an unbounded map-of-slices.
package stream

import (
	"sort"

	"github.com/synopticon/telemetry-fusion/internal/types"
)

// RingBuffer is a fixed-capacity circular buffer of EnrichedSamples bounded
// by both a count N and a time window W, spec.md §4.4.
type RingBuffer struct {
	capacity  int
	windowNs  int64
	items     []types.EnrichedSample
}

// NewRingBuffer creates a RingBuffer bounded by capacity items and windowNs
// nanoseconds of age.
func NewRingBuffer(capacity int, windowNs int64) *RingBuffer {
	return &RingBuffer{capacity: capacity, windowNs: windowNs}
}

// Insert admits a sample: drops points older than now-W, appends the new
// one in timestamp order, then evicts the oldest if over capacity. Returns
// true if an item was evicted solely due to capacity (used by the caller to
// count backpressure drops).
func (r *RingBuffer) Insert(nowNs int64, s types.EnrichedSample) (evictedByCapacity bool) {
	if r.windowNs > 0 {
		cutoff := nowNs - r.windowNs
		kept := r.items[:0]
		for _, it := range r.items {
			if it.Sample.TimestampNs >= cutoff {
				kept = append(kept, it)
			}
		}
		r.items = kept
	}

	idx := sort.Search(len(r.items), func(i int) bool {
		return r.items[i].Sample.TimestampNs >= s.Sample.TimestampNs
	})
	r.items = append(r.items, types.EnrichedSample{})
	copy(r.items[idx+1:], r.items[idx:])
	r.items[idx] = s

	if r.capacity > 0 && len(r.items) > r.capacity {
		r.items = r.items[len(r.items)-r.capacity:]
		return true
	}
	return false
}

// Latest returns up to the k most recent samples, newest first.
func (r *RingBuffer) Latest(k int) []types.EnrichedSample {
	n := len(r.items)
	if k > n {
		k = n
	}
	out := make([]types.EnrichedSample, k)
	for i := 0; i < k; i++ {
		out[i] = r.items[n-1-i]
	}
	return out
}

// InWindow returns all samples within the last windowMs milliseconds of
// nowNs, oldest first.
func (r *RingBuffer) InWindow(nowNs int64, windowMs int64) []types.EnrichedSample {
	cutoff := nowNs - windowMs*int64(1e6)
	idx := sort.Search(len(r.items), func(i int) bool {
		return r.items[i].Sample.TimestampNs >= cutoff
	})
	out := make([]types.EnrichedSample, len(r.items)-idx)
	copy(out, r.items[idx:])
	return out
}

// Closest returns the sample whose timestamp is nearest tsNs, if one exists
// within toleranceMs; otherwise ok is false.
func (r *RingBuffer) Closest(tsNs int64, toleranceMs int64) (sample types.EnrichedSample, ok bool) {
	if len(r.items) == 0 {
		return types.EnrichedSample{}, false
	}
	toleranceNs := toleranceMs * int64(1e6)

	idx := sort.Search(len(r.items), func(i int) bool {
		return r.items[i].Sample.TimestampNs >= tsNs
	})

	bestDelta := int64(-1)
	var best types.EnrichedSample
	consider := func(i int) {
		if i < 0 || i >= len(r.items) {
			return
		}
		delta := r.items[i].Sample.TimestampNs - tsNs
		if delta < 0 {
			delta = -delta
		}
		if bestDelta == -1 || delta < bestDelta {
			bestDelta = delta
			best = r.items[i]
		}
	}
	consider(idx - 1) // on a tie the earlier sample wins
	consider(idx)

	if bestDelta == -1 || bestDelta > toleranceNs {
		return types.EnrichedSample{}, false
	}
	return best, true
}

// Len returns the current number of buffered items.
func (r *RingBuffer) Len() int { return len(r.items) }
