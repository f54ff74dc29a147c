package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synopticon/telemetry-fusion/internal/clock"
)

func TestMockTransportGazeGeneratorProducesValidFrames(t *testing.T) {
	clk := clock.NewVirtualClock(0, 0)
	mt := NewMockTransport(clk, GazeGenerator, 42)

	require.NoError(t, mt.Connect(context.Background()))
	frame, err := mt.Receive(context.Background())
	require.NoError(t, err)
	assert.Contains(t, string(frame), `"x"`)
	assert.Contains(t, string(frame), `"confidence"`)
}

func TestMockTransportIsDeterministicForSameSeed(t *testing.T) {
	clk1 := clock.NewVirtualClock(0, 0)
	clk2 := clock.NewVirtualClock(0, 0)
	a := NewMockTransport(clk1, GazeGenerator, 7)
	b := NewMockTransport(clk2, GazeGenerator, 7)

	fa, _ := a.Receive(context.Background())
	fb, _ := b.Receive(context.Background())
	assert.Equal(t, fa, fb)
}
