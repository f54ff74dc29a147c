// Package distributor implements the Distributor (C10): typed, topic-based
// publish/subscribe with per-subscriber reliability semantics, spec.md
// §4.10. Grounded on the Stream Node's copy-on-write subscriber list and
// bounded-channel backpressure (internal/stream/node.go), generalized from
// one (source,type) topic to an arbitrary set of caller-chosen topics, and
// on the teacher's WebSocketClient subscription-table shape
// (internal/providers/kraken/websocket.go) for subscribe/unsubscribe.
package distributor

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/synopticon/telemetry-fusion/internal/metrics"
)

// Reliability selects how a publish treats a slow subscriber, spec.md §4.10.
type Reliability string

const (
	ReliabilityBestEffort Reliability = "best-effort"
	ReliabilityGuaranteed Reliability = "guaranteed"
)

// DefaultHighWatermark bounds a guaranteed subscription's queue,
// spec.md §4.10/§6.
const DefaultHighWatermark = 1024

// PublishOptions configures one Publish call, spec.md §4.10.
type PublishOptions struct {
	Priority    int
	Reliability Reliability
	Compress    bool
}

// Frame is one distributed payload; the Distributor treats it as opaque
// bytes plus a topic tag, spec.md §9 (Opaque is accepted by the
// Distributor even for unknown/typed payloads already serialized upstream).
type Frame struct {
	Topic string
	Bytes []byte
}

// SubscriberMetrics is the per-subscription counters, spec.md §4.10.
type SubscriberMetrics struct {
	Bytes          int64
	Frames         int64
	Drops          int64
	LastDeliveryNs int64
}

// subscriber is one registered client's topic filter and delivery queue.
type subscriber struct {
	clientID    string
	topics      map[string]bool
	quality     string
	queue       chan Frame
	highWater   int
	closed      bool
	closeReason string

	mu      sync.Mutex
	metrics SubscriberMetrics
}

// Broker is the pluggable fan-out fabric behind Distributor. MemoryBroker
// is the default in-process implementation; RedisBroker (redisbroker.go)
// optionally bridges to an external pub/sub fabric, SPEC_FULL.md §3.
type Broker interface {
	Publish(topic string, frame Frame)
}

// Distributor is the typed topic pub/sub hub.
type Distributor struct {
	log           zerolog.Logger
	highWatermark int
	metrics       *metrics.Registry

	mu   sync.RWMutex
	subs map[string]*subscriber // client id -> subscriber

	broker Broker
}

// SetMetrics wires a Registry for publish/subscriber instrumentation. Nil
// (the default) disables it.
func (d *Distributor) SetMetrics(m *metrics.Registry) { d.metrics = m }

// New builds a Distributor. highWatermark<=0 uses DefaultHighWatermark.
// broker may be nil to use only the in-process subscriber fan-out.
func New(highWatermark int, broker Broker, log zerolog.Logger) *Distributor {
	if highWatermark <= 0 {
		highWatermark = DefaultHighWatermark
	}
	return &Distributor{
		log:           log.With().Str("component", "distributor").Logger(),
		highWatermark: highWatermark,
		subs:          make(map[string]*subscriber),
		broker:        broker,
	}
}

// Subscribe registers clientID for topics, spec.md §4.10. An empty
// clientID is assigned a fresh one via google/uuid.
func (d *Distributor) Subscribe(topics []string, clientID string, quality string) (string, <-chan Frame) {
	if clientID == "" {
		clientID = uuid.NewString()
	}
	topicSet := make(map[string]bool, len(topics))
	for _, t := range topics {
		topicSet[t] = true
	}
	sub := &subscriber{
		clientID:  clientID,
		topics:    topicSet,
		quality:   quality,
		queue:     make(chan Frame, d.highWatermark),
		highWater: d.highWatermark,
	}

	d.mu.Lock()
	d.subs[clientID] = sub
	count := len(d.subs)
	d.mu.Unlock()

	if d.metrics != nil {
		d.metrics.SetSubscribersActive(count)
	}

	return clientID, sub.queue
}

// Unsubscribe removes clientID and closes its delivery queue.
func (d *Distributor) Unsubscribe(clientID string) {
	d.mu.Lock()
	sub, ok := d.subs[clientID]
	if ok {
		delete(d.subs, clientID)
	}
	count := len(d.subs)
	d.mu.Unlock()
	if ok {
		closeSubscriber(sub, "")
	}
	if d.metrics != nil {
		d.metrics.SetSubscribersActive(count)
	}
}

// Publish fans frame out to every subscriber whose topic filter matches,
// applying best-effort or guaranteed delivery semantics, spec.md §4.10.
func (d *Distributor) Publish(topic string, frame []byte, opts PublishOptions) {
	f := Frame{Topic: topic, Bytes: frame}

	d.mu.RLock()
	snapshot := make([]*subscriber, 0, len(d.subs))
	for _, sub := range d.subs {
		if sub.topics[topic] {
			snapshot = append(snapshot, sub)
		}
	}
	d.mu.RUnlock()

	for _, sub := range snapshot {
		d.deliver(sub, f, opts)
	}

	if d.broker != nil {
		d.broker.Publish(topic, f)
	}
}

func (d *Distributor) deliver(sub *subscriber, f Frame, opts PublishOptions) {
	sub.mu.Lock()
	if sub.closed {
		sub.mu.Unlock()
		return
	}
	sub.mu.Unlock()

	select {
	case sub.queue <- f:
		sub.mu.Lock()
		sub.metrics.Bytes += int64(len(f.Bytes))
		sub.metrics.Frames++
		sub.mu.Unlock()
		if d.metrics != nil {
			d.metrics.RecordPublish(f.Topic)
		}
		return
	default:
	}

	switch opts.Reliability {
	case ReliabilityGuaranteed:
		// Queue is at the high-watermark: close the subscription rather
		// than silently dropping, spec.md §4.10.
		sub.mu.Lock()
		sub.metrics.Drops++
		sub.mu.Unlock()
		closeSubscriber(sub, "slow-consumer")
		d.mu.Lock()
		delete(d.subs, sub.clientID)
		count := len(d.subs)
		d.mu.Unlock()
		if d.metrics != nil {
			d.metrics.RecordFrameDrop(f.Topic, string(opts.Reliability))
			d.metrics.SetSubscribersActive(count)
		}
		d.log.Warn().Str("client_id", sub.clientID).Msg("guaranteed subscriber exceeded high watermark, closed")
	default: // best-effort
		sub.mu.Lock()
		sub.metrics.Drops++
		sub.mu.Unlock()
		if d.metrics != nil {
			d.metrics.RecordFrameDrop(f.Topic, string(opts.Reliability))
		}
	}
}

func closeSubscriber(sub *subscriber, reason string) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return
	}
	sub.closed = true
	sub.closeReason = reason
	close(sub.queue)
}

// Metrics returns a snapshot of clientID's delivery counters.
func (d *Distributor) Metrics(clientID string) (SubscriberMetrics, bool) {
	d.mu.RLock()
	sub, ok := d.subs[clientID]
	d.mu.RUnlock()
	if !ok {
		return SubscriberMetrics{}, false
	}
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return sub.metrics, true
}
