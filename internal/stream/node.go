package stream

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/synopticon/telemetry-fusion/internal/types"
)

// Processor is one capability stage in a Stream Node's processor chain.
// An error aborts the pipeline for that sample and the Node emits an
// "error" event; it never poisons the node itself (spec.md §7).
type Processor interface {
	Process(s types.EnrichedSample) (types.EnrichedSample, error)
}

// ProcessorFunc adapts a plain function to the Processor interface.
type ProcessorFunc func(types.EnrichedSample) (types.EnrichedSample, error)

func (f ProcessorFunc) Process(s types.EnrichedSample) (types.EnrichedSample, error) { return f(s) }

// EventKind identifies a Stream Node lifecycle event.
type EventKind string

const (
	EventBackpressure EventKind = "backpressure"
	EventError        EventKind = "error"
	EventDegraded     EventKind = "degraded"
	EventSubscriberDropped EventKind = "subscriber-dropped"
)

// Event is a lightweight notification surfaced alongside the data path.
type Event struct {
	Kind    EventKind
	Key     types.Key
	Err     error
	TimestampNs int64
}

const (
	subscriberQueueSize = 64
	errorWindowSize     = 200
	degradedErrorRatio  = 0.5
)

// subscription is one subscriber's bounded delivery channel.
type subscription struct {
	id int64
	ch chan types.EnrichedSample
}

// Node is a Stream Node (C4): it ingests one (source,type)'s raw samples,
// runs them through a processor chain, buffers the result and fans it out
// to subscribers. It never blocks the producer: a full buffer drops the
// oldest unread item (drop-oldest backpressure).
type Node struct {
	key        types.Key
	log        zerolog.Logger
	chain      []Processor
	buffer     *RingBuffer

	mu          sync.Mutex
	subs        []subscription
	nextSubID   int64
	recentErrs  []bool // ring of last N process outcomes, true=error
	degraded    bool

	events chan Event

	droppedCount   atomic.Int64
	processedCount atomic.Int64
}

// Config configures a Node's ring buffer bounds, spec.md §4.4/§6 (Stream).
type Config struct {
	BufferSize int
	WindowMs   int64
}

// NewNode creates a Node for key with the given processor chain.
func NewNode(key types.Key, cfg Config, chain []Processor, log zerolog.Logger) *Node {
	windowNs := int64(0)
	if cfg.WindowMs > 0 {
		windowNs = cfg.WindowMs * int64(1e6)
	}
	return &Node{
		key:    key,
		log:    log.With().Str("component", "stream-node").Str("key", key.String()).Logger(),
		chain:  chain,
		buffer: NewRingBuffer(cfg.BufferSize, windowNs),
		events: make(chan Event, 256),
	}
}

// Events returns the Node's event channel. Readers must drain it promptly;
// it is only used for diagnostics, never for the data path.
func (n *Node) Events() <-chan Event { return n.events }

// Process runs sample through the processor chain, buffers and publishes
// the result. At-most-once per input. Never blocks the caller.
func (n *Node) Process(nowNs int64, sample types.EnrichedSample) {
	enriched := sample
	for _, stage := range n.chain {
		out, err := stage.Process(enriched)
		if err != nil {
			n.recordOutcome(true)
			n.emit(Event{Kind: EventError, Key: n.key, Err: err, TimestampNs: nowNs})
			return
		}
		enriched = out
	}
	n.recordOutcome(false)
	n.processedCount.Add(1)

	if evicted := n.buffer.Insert(nowNs, enriched); evicted {
		n.droppedCount.Add(1)
		n.emit(Event{Kind: EventBackpressure, Key: n.key, TimestampNs: nowNs})
	}

	n.publish(enriched)
}

// publish fans enriched out to a snapshot of current subscribers. A
// subscriber whose queue is full is dropped (with a log + event) rather
// than allowed to stall the fan-out.
func (n *Node) publish(enriched types.EnrichedSample) {
	n.mu.Lock()
	snapshot := make([]subscription, len(n.subs))
	copy(snapshot, n.subs)
	n.mu.Unlock()

	for _, sub := range snapshot {
		select {
		case sub.ch <- enriched:
		default:
			n.dropSubscriber(sub.id)
			n.emit(Event{Kind: EventSubscriberDropped, Key: n.key, TimestampNs: enriched.Sample.IngestTimeNs})
			n.log.Warn().Int64("subscriber_id", sub.id).Msg("subscriber backlog exceeded capacity, dropped")
		}
	}
}

// Subscribe registers a new bounded subscriber and returns its channel plus
// an unsubscribe token (a closure, not a shared-list mutation from the
// caller's side — spec.md §9).
func (n *Node) Subscribe() (<-chan types.EnrichedSample, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextSubID++
	id := n.nextSubID
	ch := make(chan types.EnrichedSample, subscriberQueueSize)
	n.subs = append(n.subs, subscription{id: id, ch: ch})
	return ch, func() { n.unsubscribe(id) }
}

func (n *Node) unsubscribe(id int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	filtered := n.subs[:0]
	for _, s := range n.subs {
		if s.id != id {
			filtered = append(filtered, s)
		} else {
			close(s.ch)
		}
	}
	n.subs = filtered
}

func (n *Node) dropSubscriber(id int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	filtered := n.subs[:0]
	for _, s := range n.subs {
		if s.id != id {
			filtered = append(filtered, s)
		} else {
			close(s.ch)
		}
	}
	n.subs = filtered
}

func (n *Node) emit(e Event) {
	select {
	case n.events <- e:
	default:
	}
}

// recordOutcome tracks the last errorWindowSize process outcomes and marks
// the node degraded once error rate exceeds 50%, spec.md §7.
func (n *Node) recordOutcome(isErr bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.recentErrs = append(n.recentErrs, isErr)
	if len(n.recentErrs) > errorWindowSize {
		n.recentErrs = n.recentErrs[len(n.recentErrs)-errorWindowSize:]
	}
	if len(n.recentErrs) < errorWindowSize {
		return
	}
	errs := 0
	for _, e := range n.recentErrs {
		if e {
			errs++
		}
	}
	wasDegraded := n.degraded
	n.degraded = float64(errs)/float64(len(n.recentErrs)) > degradedErrorRatio
	if n.degraded && !wasDegraded {
		n.emit(Event{Kind: EventDegraded, Key: n.key})
	}
}

// Degraded reports whether more than half of the last 200 samples errored.
func (n *Node) Degraded() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.degraded
}

// Buffer exposes the Node's ring buffer for direct reads (latest/in-window/
// closest), e.g. from the Sync Engine.
func (n *Node) Buffer() *RingBuffer { return n.buffer }

// Stats returns simple throughput counters.
func (n *Node) Stats() (processed, dropped int64) {
	return n.processedCount.Load(), n.droppedCount.Load()
}
