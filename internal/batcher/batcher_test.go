package batcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synopticon/telemetry-fusion/internal/clock"
)

func runTicks(t *testing.T, b *Batcher, clk *clock.VirtualClock, ctx context.Context, n int, interval time.Duration) {
	t.Helper()
	for i := 0; i < n; i++ {
		clk.Advance(interval)
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBatcherDrainsUpToBatchSizeEachTick(t *testing.T) {
	clk := clock.NewVirtualClock(0, 0)
	var mu sync.Mutex
	var seen [][]any
	b := New(Config{BaseInterval: time.Millisecond, MaxBatchSize: 4, TargetLatency: time.Second}, clk, func(ctx context.Context, batch []any) {
		mu.Lock()
		cp := append([]any(nil), batch...)
		seen = append(seen, cp)
		mu.Unlock()
	})

	for i := 0; i < 10; i++ {
		b.Enqueue(i)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	runTicks(t, b, clk, ctx, 1, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)
	assert.LessOrEqual(t, len(seen[0]), 4)
}

func TestBatcherShrinksBatchSizeWhenLatencyExceedsTarget(t *testing.T) {
	clk := clock.NewVirtualClock(0, 0)
	b := New(Config{BaseInterval: time.Millisecond, MaxBatchSize: 10, TargetLatency: time.Microsecond}, clk, func(ctx context.Context, batch []any) {})
	require.Equal(t, 10, b.BatchSize())

	b.Enqueue("x")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	runTicks(t, b, clk, ctx, 1, time.Millisecond)

	assert.Equal(t, 9, b.BatchSize(), "observed latency far exceeds a microsecond target, batch size should shrink")
}

func TestBatcherGrowsBatchSizeWhenLatencyWellBelowTarget(t *testing.T) {
	clk := clock.NewVirtualClock(0, 0)
	b := New(Config{BaseInterval: time.Millisecond, MaxBatchSize: 10, TargetLatency: time.Hour}, clk, func(ctx context.Context, batch []any) {})
	b.mu.Lock()
	b.batchSize = 3
	b.mu.Unlock()

	b.Enqueue("x")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	runTicks(t, b, clk, ctx, 1, time.Millisecond)

	assert.Equal(t, 4, b.BatchSize(), "latency near zero is well under target/2, batch size should grow")
}

func TestBatcherReportsMetrics(t *testing.T) {
	clk := clock.NewVirtualClock(0, 0)
	b := New(Config{BaseInterval: time.Millisecond, MaxBatchSize: 10, TargetLatency: time.Second}, clk, func(ctx context.Context, batch []any) {})

	for i := 0; i < 5; i++ {
		b.Enqueue(i)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	runTicks(t, b, clk, ctx, 1, time.Millisecond)

	m := b.Metrics()
	assert.Equal(t, int64(1), m.Batches)
	assert.Equal(t, int64(5), m.Items)
	assert.InDelta(t, 5.0, m.AvgBatch, 1e-9)
}
