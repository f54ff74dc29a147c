package distributor

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribePublishDeliversMatchingTopicOnly(t *testing.T) {
	d := New(4, nil, zerolog.Nop())
	id, queue := d.Subscribe([]string{"gaze"}, "", "hd")

	d.Publish("gaze", []byte("g1"), PublishOptions{Reliability: ReliabilityBestEffort})
	d.Publish("telemetry", []byte("t1"), PublishOptions{Reliability: ReliabilityBestEffort})

	select {
	case f := <-queue:
		assert.Equal(t, "gaze", f.Topic)
		assert.Equal(t, "g1", string(f.Bytes))
	default:
		t.Fatal("expected a frame on the gaze topic")
	}

	select {
	case f := <-queue:
		t.Fatalf("unexpected second frame delivered: %+v", f)
	default:
	}

	metrics, ok := d.Metrics(id)
	require.True(t, ok)
	assert.Equal(t, int64(1), metrics.Frames)
	assert.Equal(t, int64(0), metrics.Drops)
}

func TestBestEffortDropsWhenQueueFull(t *testing.T) {
	d := New(1, nil, zerolog.Nop())
	id, queue := d.Subscribe([]string{"gaze"}, "", "hd")

	d.Publish("gaze", []byte("g1"), PublishOptions{Reliability: ReliabilityBestEffort})
	d.Publish("gaze", []byte("g2"), PublishOptions{Reliability: ReliabilityBestEffort})

	metrics, ok := d.Metrics(id)
	require.True(t, ok, "best-effort drop must not close the subscription")
	assert.Equal(t, int64(1), metrics.Frames)
	assert.Equal(t, int64(1), metrics.Drops)

	f := <-queue
	assert.Equal(t, "g1", string(f.Bytes), "the first frame should have been kept, the second dropped")
}

func TestGuaranteedClosesSubscriptionOnHighWatermark(t *testing.T) {
	d := New(1, nil, zerolog.Nop())
	id, queue := d.Subscribe([]string{"gaze"}, "", "hd")

	d.Publish("gaze", []byte("g1"), PublishOptions{Reliability: ReliabilityGuaranteed})
	d.Publish("gaze", []byte("g2"), PublishOptions{Reliability: ReliabilityGuaranteed})

	_, stillKnown := d.Metrics(id)
	assert.False(t, stillKnown, "exceeding the high watermark on a guaranteed subscription must close it")

	f, open := <-queue
	require.True(t, open, "the queued first frame should still be readable after close")
	assert.Equal(t, "g1", string(f.Bytes))

	_, open = <-queue
	assert.False(t, open, "the channel must be closed after a slow-consumer eviction")
}

func TestUnsubscribeClosesQueueAndStopsDelivery(t *testing.T) {
	d := New(4, nil, zerolog.Nop())
	id, queue := d.Subscribe([]string{"gaze"}, "client-1", "hd")
	assert.Equal(t, "client-1", id)

	d.Unsubscribe(id)
	d.Publish("gaze", []byte("g1"), PublishOptions{Reliability: ReliabilityBestEffort})

	_, open := <-queue
	assert.False(t, open)

	_, ok := d.Metrics(id)
	assert.False(t, ok)
}

func TestMemoryBrokerRecordsLastFramePerTopic(t *testing.T) {
	broker := NewMemoryBroker()
	d := New(4, broker, zerolog.Nop())

	d.Publish("gaze", []byte("g1"), PublishOptions{Reliability: ReliabilityBestEffort})
	d.Publish("gaze", []byte("g2"), PublishOptions{Reliability: ReliabilityBestEffort})

	f, ok := broker.Last("gaze")
	require.True(t, ok)
	assert.Equal(t, "g2", string(f.Bytes))

	_, ok = broker.Last("telemetry")
	assert.False(t, ok)
}
