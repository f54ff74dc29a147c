// Package sync implements the Sync Engine (C5): cross-stream time
// alignment. Every new sample is treated as an anchor; if every other
// registered stream has a sample within tolerance Δ of the anchor, a
// synchronized tuple is emitted. spec.md §9 notes the source buffer stores
// "bufferTimestamp" while matching code assumes "timestamp" — this engine
// carries both explicitly per item and documents which one each strategy
// anchors on.
package sync

import (
	"context"
	"sync"

	"github.com/synopticon/telemetry-fusion/internal/clock"
	"github.com/synopticon/telemetry-fusion/internal/types"
)

// Strategy selects which timestamp a sample's anchor role uses.
type Strategy string

const (
	// HardwareTimestamp anchors on the sample's own source timestamp.
	HardwareTimestamp Strategy = "hardware_timestamp"
	// SoftwareTimestamp anchors on the Stream Node's ingestion time.
	SoftwareTimestamp Strategy = "software_timestamp"
	// ArrivalTime anchors on the order the Sync Engine itself received
	// the sample, independent of any upstream timestamp.
	ArrivalTime Strategy = "arrival_time"
)

// DefaultToleranceMs is Δ, spec.md §4.5.
const DefaultToleranceMs = 10

// DefaultBufferSize is the per-stream ordered buffer depth, spec.md §4.5.
const DefaultBufferSize = 100

// Config configures the Sync Engine, spec.md §6 (Sync).
type Config struct {
	ToleranceMs int64
	Strategy    Strategy
	BufferSize  int
}

func (c Config) withDefaults() Config {
	if c.ToleranceMs <= 0 {
		c.ToleranceMs = DefaultToleranceMs
	}
	if c.Strategy == "" {
		c.Strategy = HardwareTimestamp
	}
	if c.BufferSize <= 0 {
		c.BufferSize = DefaultBufferSize
	}
	return c
}

// Tuple is a cross-stream synchronized set of samples, one per registered
// stream, whose anchor-relative spread is within tolerance.
type Tuple struct {
	Samples   map[types.Key]types.EnrichedSample
	Quality   float64
	AnchorKey types.Key
	AnchorTs  int64
}

// Engine matches samples across registered streams within a tolerance
// window. It is safe for concurrent use.
type Engine struct {
	mu       sync.Mutex
	cfg      Config
	clk      clock.Clock
	buffers  map[types.Key]*syncBuffer
	seq      int64
	onTuple  func(Tuple)
	lastAnchorNs map[types.Key]int64 // cleared by RemoveStream; Ingest neither reads nor writes it
}

// NewEngine builds a Sync Engine. onTuple is invoked synchronously from
// whichever goroutine calls Ingest/Run for each emitted tuple; it must not
// block.
func NewEngine(cfg Config, clk clock.Clock, onTuple func(Tuple)) *Engine {
	return &Engine{
		cfg:     cfg.withDefaults(),
		clk:     clk,
		buffers: make(map[types.Key]*syncBuffer),
		onTuple: onTuple,
		lastAnchorNs: make(map[types.Key]int64),
	}
}

// RegisterStream adds key to the set of streams the engine aligns.
// Cancellation-safe: removing a stream (RemoveStream) stops it from
// participating in future tuples without revoking in-flight ones.
func (e *Engine) RegisterStream(key types.Key) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.buffers[key]; !ok {
		e.buffers[key] = newSyncBuffer(e.cfg.BufferSize)
	}
}

// RemoveStream removes key's buffer and its participation in future tuples.
func (e *Engine) RemoveStream(key types.Key) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.buffers, key)
	delete(e.lastAnchorNs, key)
}

// anchorTs computes the anchor timestamp for a newly-ingested sample under
// the engine's configured strategy.
func (e *Engine) anchorTs(s types.EnrichedSample) int64 {
	switch e.cfg.Strategy {
	case SoftwareTimestamp:
		return s.IngestedAtNs
	case ArrivalTime:
		e.seq++
		return e.seq
	default: // HardwareTimestamp
		return s.Sample.TimestampNs
	}
}

// Ingest treats sample as a new anchor candidate for its key's stream. If
// every other registered stream has a sample within tolerance, it emits a
// synchronized Tuple via onTuple and returns it.
func (e *Engine) Ingest(key types.Key, sample types.EnrichedSample) (Tuple, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	buf, ok := e.buffers[key]
	if !ok {
		buf = newSyncBuffer(e.cfg.BufferSize)
		e.buffers[key] = buf
	}
	anchorTs := e.anchorTs(sample)
	buf.insert(syncItem{sample: sample, syncTs: anchorTs})

	if len(e.buffers) < 2 {
		return Tuple{}, false
	}

	matches := make(map[types.Key]types.EnrichedSample, len(e.buffers))
	matches[key] = sample
	minTs, maxTs := anchorTs, anchorTs

	for otherKey, otherBuf := range e.buffers {
		if otherKey == key {
			continue
		}
		item, found := otherBuf.closest(anchorTs, e.cfg.ToleranceMs)
		if !found {
			return Tuple{}, false
		}
		matches[otherKey] = item.sample
		if item.syncTs < minTs {
			minTs = item.syncTs
		}
		if item.syncTs > maxTs {
			maxTs = item.syncTs
		}
	}

	toleranceNs := e.cfg.ToleranceMs * int64(1e6)
	if maxTs-minTs > toleranceNs {
		// Every individual match was within tolerance of the anchor, but a
		// straddling pair (one on each side of the anchor) can still put
		// the overall span outside Δ; reject rather than emit a tuple that
		// would violate the span invariant.
		return Tuple{}, false
	}

	spreadMs := float64(maxTs-minTs) / 1e6
	quality := 1 - spreadMs/float64(e.cfg.ToleranceMs)
	if quality < 0 {
		quality = 0
	}

	tuple := Tuple{Samples: matches, Quality: quality, AnchorKey: key, AnchorTs: anchorTs}
	if e.onTuple != nil {
		e.onTuple(tuple)
	}
	return tuple, true
}

// Run consumes (key, sample) pairs from in until ctx is cancelled, calling
// Ingest for each — the engine's single matcher task reading a merged
// channel, spec.md §5.
func (e *Engine) Run(ctx context.Context, in <-chan KeyedSample) {
	for {
		select {
		case <-ctx.Done():
			return
		case ks, ok := <-in:
			if !ok {
				return
			}
			e.Ingest(ks.Key, ks.Sample)
		}
	}
}

// KeyedSample pairs a sample with the stream key it arrived on, used to
// merge multiple Stream Node subscriptions onto the Sync Engine's single
// matcher task.
type KeyedSample struct {
	Key    types.Key
	Sample types.EnrichedSample
}
