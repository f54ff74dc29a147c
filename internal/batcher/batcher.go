// Package batcher implements the Adaptive Batcher (C11): latency-targeted
// coalescing for high-rate streams, spec.md §4.11. Grounded on the Stream
// Node's single-queue-plus-processor-task shape (internal/stream/node.go),
// generalized from "drain one item per tick" to "drain up to an
// adaptively-sized batch per tick".
package batcher

import (
	"context"
	"sync"
	"time"

	"github.com/synopticon/telemetry-fusion/internal/clock"
	"github.com/synopticon/telemetry-fusion/internal/metrics"
)

// DefaultBaseInterval is the tick cadence for a 200Hz stream, spec.md §4.11.
const DefaultBaseInterval = 5 * time.Millisecond

// DefaultMaxBatchSize bounds a single drain.
const DefaultMaxBatchSize = 64

// DefaultTargetLatency is the mean in-queue latency the adapter aims for.
const DefaultTargetLatency = 10 * time.Millisecond

// Process consumes one adaptively-sized batch. Implementations should not
// block past a tick's worth of work; the Batcher awaits completion before
// adapting batch size from this call's observed latency.
type Process func(ctx context.Context, batch []any)

// Config configures tick cadence, batch bounds, and the target latency,
// spec.md §4.11/§6.
type Config struct {
	BaseInterval  time.Duration
	MaxBatchSize  int
	TargetLatency time.Duration
}

func (c Config) withDefaults() Config {
	if c.BaseInterval <= 0 {
		c.BaseInterval = DefaultBaseInterval
	}
	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = DefaultMaxBatchSize
	}
	if c.TargetLatency <= 0 {
		c.TargetLatency = DefaultTargetLatency
	}
	return c
}

// Metrics is the cumulative report, spec.md §4.11.
type Metrics struct {
	Batches    int64
	Items      int64
	AvgBatch   float64
	AvgLatency time.Duration
}

// item pairs a queued value with the time it entered the queue, so the
// Batcher can measure in-queue latency at drain time.
type item struct {
	value      any
	enqueuedNs int64
}

// Batcher drains a queue on a fixed tick, sizing each drain to keep mean
// in-queue latency near Config.TargetLatency.
type Batcher struct {
	cfg     Config
	clk     clock.Clock
	process Process
	reg     *metrics.Registry

	mu        sync.Mutex
	queue     []item
	batchSize int

	metricsMu sync.Mutex
	metrics   Metrics
}

// SetMetrics wires a Registry for per-tick batch-size/latency
// instrumentation. Nil (the default) disables it.
func (b *Batcher) SetMetrics(m *metrics.Registry) { b.reg = m }

// New builds a Batcher. process is invoked synchronously from the tick
// loop with each drained batch.
func New(cfg Config, clk clock.Clock, process Process) *Batcher {
	cfg = cfg.withDefaults()
	return &Batcher{
		cfg:       cfg,
		clk:       clk,
		process:   process,
		batchSize: cfg.MaxBatchSize,
	}
}

// Enqueue appends v to the pending queue for the next tick's drain.
func (b *Batcher) Enqueue(v any) {
	b.mu.Lock()
	b.queue = append(b.queue, item{value: v, enqueuedNs: b.clk.NowNs()})
	b.mu.Unlock()
}

// Run ticks at Config.BaseInterval until ctx is cancelled, draining and
// adapting batch size each tick.
func (b *Batcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.clk.After(b.cfg.BaseInterval):
			b.tick(ctx)
		}
	}
}

// tick drains up to the current batch size, runs process, and adapts the
// batch size from the drained items' mean in-queue latency, spec.md §4.11.
func (b *Batcher) tick(ctx context.Context) {
	b.mu.Lock()
	n := b.batchSize
	if n > len(b.queue) {
		n = len(b.queue)
	}
	if n == 0 {
		b.mu.Unlock()
		return
	}
	drained := b.queue[:n]
	b.queue = b.queue[n:]
	b.mu.Unlock()

	now := b.clk.NowNs()
	var totalLatencyNs int64
	values := make([]any, n)
	for i, it := range drained {
		values[i] = it.value
		totalLatencyNs += now - it.enqueuedNs
	}
	meanLatency := time.Duration(totalLatencyNs / int64(n))

	if b.process != nil {
		b.process(ctx, values)
	}

	b.adapt(meanLatency)
	b.recordMetrics(n, meanLatency)
	if b.reg != nil {
		b.reg.RecordBatch(n, meanLatency)
	}
}

// adapt shrinks the batch size by 1 (min 1) if mean latency exceeds the
// target, or grows it by 1 (max MaxBatchSize) if it is under half the
// target, spec.md §4.11.
func (b *Batcher) adapt(meanLatency time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case meanLatency > b.cfg.TargetLatency:
		if b.batchSize > 1 {
			b.batchSize--
		}
	case meanLatency < b.cfg.TargetLatency/2:
		if b.batchSize < b.cfg.MaxBatchSize {
			b.batchSize++
		}
	}
}

func (b *Batcher) recordMetrics(n int, meanLatency time.Duration) {
	b.metricsMu.Lock()
	defer b.metricsMu.Unlock()
	b.metrics.Batches++
	b.metrics.Items += int64(n)
	b.metrics.AvgBatch = float64(b.metrics.Items) / float64(b.metrics.Batches)
	if b.metrics.Batches == 1 {
		b.metrics.AvgLatency = meanLatency
	} else {
		b.metrics.AvgLatency = (b.metrics.AvgLatency*time.Duration(b.metrics.Batches-1) + meanLatency) / time.Duration(b.metrics.Batches)
	}
}

// Metrics returns a snapshot of cumulative batching statistics.
func (b *Batcher) Metrics() Metrics {
	b.metricsMu.Lock()
	defer b.metricsMu.Unlock()
	return b.metrics
}

// BatchSize returns the current adaptive batch size, for tests and
// diagnostics.
func (b *Batcher) BatchSize() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.batchSize
}
