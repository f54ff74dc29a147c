package discovery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synopticon/telemetry-fusion/internal/clock"
)

type scriptedScanner struct {
	calls   int
	results [][]Device
}

func (s *scriptedScanner) Scan(ctx context.Context) ([]Device, error) {
	idx := s.calls
	if idx >= len(s.results) {
		idx = len(s.results) - 1
	}
	s.calls++
	return s.results[idx], nil
}

func TestDiscoveryEmitsFoundOnFirstSighting(t *testing.T) {
	clk := clock.NewVirtualClock(0, 0)
	dev := Device{ID: "dev-1", Address: "10.0.0.1", Port: 8080}
	scanner := &scriptedScanner{results: [][]Device{{dev}}}
	d := New(Config{ScanRateHz: 1000, UnseenTimeout: 10 * time.Millisecond, Window: 20 * time.Millisecond}, scanner, clk)

	var events []Event
	done := make(chan struct{})
	go func() {
		for ev := range d.Events() {
			events = append(events, ev)
		}
		close(done)
	}()

	d.Run(context.Background())
	close(d.events)
	<-done

	require.NotEmpty(t, events)
	assert.Equal(t, EventFound, events[0].Kind)
	assert.Equal(t, "dev-1", events[0].Device.ID)
	assert.Len(t, d.Known(), 1, "device reported on every scan within the window should stay known, not lost")
}

func TestDiscoveryLostAfterUnseenTimeout(t *testing.T) {
	clk := clock.NewVirtualClock(0, 0)
	dev := Device{ID: "dev-1", Address: "10.0.0.1", Port: 8080}
	d := New(Config{ScanRateHz: 1000, UnseenTimeout: 10 * time.Millisecond}, nil, clk)

	d.reconcile([]Device{dev})
	require.Len(t, d.Known(), 1)

	clk.Advance(20 * time.Millisecond)
	d.reconcile(nil)

	assert.Empty(t, d.Known())
}

func TestDiscoverySynthesizesMockWhenNoneFound(t *testing.T) {
	clk := clock.NewVirtualClock(0, 0)
	scanner := &scriptedScanner{results: [][]Device{{}}}
	d := New(Config{ScanRateHz: 1000, Window: 5 * time.Millisecond, MockEnabled: true}, scanner, clk)

	d.Run(context.Background())
	known := d.Known()
	require.Len(t, known, 1)
	assert.Equal(t, "mock-eye-tracker-0", known[0].ID)
}

func TestDiscoveryNoMockWhenDisabled(t *testing.T) {
	clk := clock.NewVirtualClock(0, 0)
	scanner := &scriptedScanner{results: [][]Device{{}}}
	d := New(Config{ScanRateHz: 1000, Window: 5 * time.Millisecond, MockEnabled: false}, scanner, clk)

	d.Run(context.Background())
	assert.Empty(t, d.Known())
}
