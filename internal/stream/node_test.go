package stream

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synopticon/telemetry-fusion/internal/types"
)

func sampleAt(ts int64) types.EnrichedSample {
	return types.EnrichedSample{Sample: types.Sample{TimestampNs: ts}, IngestedAtNs: ts}
}

func TestRingBufferEvictsOldestOverCapacity(t *testing.T) {
	rb := NewRingBuffer(3, 0)
	for i := int64(0); i < 5; i++ {
		rb.Insert(i, sampleAt(i))
	}
	assert.Equal(t, 3, rb.Len())
	latest := rb.Latest(3)
	assert.Equal(t, int64(4), latest[0].Sample.TimestampNs)
}

func TestRingBufferWindowAdmission(t *testing.T) {
	rb := NewRingBuffer(100, 10) // 10ns window
	rb.Insert(0, sampleAt(0))
	rb.Insert(20, sampleAt(20)) // drops the first (0 < 20-10)
	assert.Equal(t, 1, rb.Len())
}

func TestRingBufferClosestWithinTolerance(t *testing.T) {
	rb := NewRingBuffer(10, 0)
	rb.Insert(0, sampleAt(100))
	rb.Insert(0, sampleAt(200))
	s, ok := rb.Closest(150, 60)
	require.True(t, ok)
	assert.Equal(t, int64(100), s.Sample.TimestampNs)

	_, ok = rb.Closest(500*int64(1e6), 10) // 500ms, far outside 10ms of either sample
	assert.False(t, ok)
}

func TestNodeProcessOrderPreservedToSubscribers(t *testing.T) {
	n := NewNode(types.Key{Source: types.SourceSimulator, Type: types.TypeTelemetry}, Config{BufferSize: 100}, nil, zerolog.Nop())
	ch, unsub := n.Subscribe()
	defer unsub()

	for i := int64(0); i < 5; i++ {
		n.Process(i, sampleAt(i))
	}

	for i := int64(0); i < 5; i++ {
		got := <-ch
		assert.Equal(t, i, got.Sample.TimestampNs)
	}
}

func TestNodeProcessorErrorAbortsWithoutPoisoning(t *testing.T) {
	boom := errors.New("boom")
	chain := []Processor{ProcessorFunc(func(s types.EnrichedSample) (types.EnrichedSample, error) {
		if s.Sample.TimestampNs == 1 {
			return s, boom
		}
		return s, nil
	})}
	n := NewNode(types.Key{}, Config{BufferSize: 10}, chain, zerolog.Nop())
	n.Process(0, sampleAt(0))
	n.Process(1, sampleAt(1))
	n.Process(2, sampleAt(2))

	processed, _ := n.Stats()
	assert.Equal(t, int64(2), processed)
	assert.Equal(t, 2, n.Buffer().Len())
}

func TestNodeBackpressureDropsOldest(t *testing.T) {
	n := NewNode(types.Key{}, Config{BufferSize: 2}, nil, zerolog.Nop())
	events := n.Events()
	n.Process(0, sampleAt(0))
	n.Process(1, sampleAt(1))
	n.Process(2, sampleAt(2))

	_, dropped := n.Stats()
	assert.Equal(t, int64(1), dropped)

	select {
	case ev := <-events:
		assert.Equal(t, EventBackpressure, ev.Kind)
	default:
		t.Fatal("expected a backpressure event")
	}
}

func TestNodeSlowSubscriberDropped(t *testing.T) {
	n := NewNode(types.Key{}, Config{BufferSize: 1000}, nil, zerolog.Nop())
	_, unsub := n.Subscribe()
	defer unsub()

	for i := int64(0); i < subscriberQueueSize+5; i++ {
		n.Process(i, sampleAt(i))
	}
	n.mu.Lock()
	remaining := len(n.subs)
	n.mu.Unlock()
	assert.Equal(t, 0, remaining)
}
