package sync

import (
	"sort"

	"github.com/synopticon/telemetry-fusion/internal/types"
)

// syncItem is one buffered sample tagged with the timestamp the engine's
// configured Strategy anchors matching on.
type syncItem struct {
	sample types.EnrichedSample
	syncTs int64
}

// syncBuffer is a small ordered-by-syncTs buffer, one per registered
// stream, capped at a fixed depth (spec.md §4.5: 100 samples/stream).
type syncBuffer struct {
	capacity int
	items    []syncItem
}

func newSyncBuffer(capacity int) *syncBuffer {
	return &syncBuffer{capacity: capacity}
}

func (b *syncBuffer) insert(it syncItem) {
	idx := sort.Search(len(b.items), func(i int) bool {
		return b.items[i].syncTs >= it.syncTs
	})
	b.items = append(b.items, syncItem{})
	copy(b.items[idx+1:], b.items[idx:])
	b.items[idx] = it

	if b.capacity > 0 && len(b.items) > b.capacity {
		b.items = b.items[len(b.items)-b.capacity:]
	}
}

// closest returns the buffered item nearest anchorTs, if one exists within
// toleranceMs; otherwise ok is false.
func (b *syncBuffer) closest(anchorTs int64, toleranceMs int64) (syncItem, bool) {
	if len(b.items) == 0 {
		return syncItem{}, false
	}
	toleranceNs := toleranceMs * int64(1e6)

	idx := sort.Search(len(b.items), func(i int) bool {
		return b.items[i].syncTs >= anchorTs
	})

	bestDelta := int64(-1)
	var best syncItem
	consider := func(i int) {
		if i < 0 || i >= len(b.items) {
			return
		}
		delta := b.items[i].syncTs - anchorTs
		if delta < 0 {
			delta = -delta
		}
		if bestDelta == -1 || delta < bestDelta {
			bestDelta = delta
			best = b.items[i]
		}
	}
	consider(idx)
	consider(idx - 1)

	if bestDelta == -1 || bestDelta > toleranceNs {
		return syncItem{}, false
	}
	return best, true
}
