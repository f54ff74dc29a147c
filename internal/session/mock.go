package session

import (
	"context"
	"encoding/json"
	"math"
	"math/rand"

	"github.com/synopticon/telemetry-fusion/internal/clock"
)

// MockTransport is a deterministic Transport that never touches the
// network, used when no real device is reachable, spec.md §4.8. Each
// Receive call returns the next frame from Generator immediately, already
// encoded; frames are not paced to any sample rate.
type MockTransport struct {
	clk       clock.Clock
	generator Generator
	rnd       *rand.Rand
	seq       int
}

// Generator produces one mock frame's bytes given a sample sequence
// number and the clock's current monotonic nanoseconds.
type Generator func(seq int, nowNs int64, rnd *rand.Rand) []byte

// DefaultEyeTrackerHz and DefaultAircraftHz are the nominal device rates,
// spec.md §4.8. MockTransport does not pace frames to either rate;
// GazeGenerator uses DefaultEyeTrackerHz only as the number of frames per
// gaze circle.
const (
	DefaultEyeTrackerHz = 200
	DefaultAircraftHz   = 30
)

// NewMockTransport builds a MockTransport using the given Generator. seed
// makes the synthesized stream reproducible across test runs.
func NewMockTransport(clk clock.Clock, generator Generator, seed int64) *MockTransport {
	return &MockTransport{clk: clk, generator: generator, rnd: rand.New(rand.NewSource(seed))}
}

func (m *MockTransport) Connect(ctx context.Context) error { return nil }

func (m *MockTransport) Send(ctx context.Context, frame []byte) bool { return true }

func (m *MockTransport) Receive(ctx context.Context) ([]byte, error) {
	m.seq++
	return m.generator(m.seq, m.clk.NowNs(), m.rnd), nil
}

func (m *MockTransport) Close() error { return nil }

// GazeGenerator synthesizes a smooth circular gaze path, one full circle
// every DefaultEyeTrackerHz frames, schema per spec.md §6.
func GazeGenerator(seq int, nowNs int64, rnd *rand.Rand) []byte {
	angle := float64(seq) * 2 * math.Pi / DefaultEyeTrackerHz
	x := 0.5 + 0.3*math.Cos(angle)
	y := 0.5 + 0.3*math.Sin(angle)
	return jsonFrame(map[string]any{
		"timestamp_ns": nowNs,
		"x":            x,
		"y":            y,
		"confidence":   0.95 + 0.05*rnd.Float64(),
		"worn":         true,
	})
}

// AircraftGenerator synthesizes straight-and-level flight telemetry, one
// frame per call.
func AircraftGenerator(seq int, nowNs int64, rnd *rand.Rand) []byte {
	return jsonFrame(map[string]any{
		"timestamp_ns": nowNs,
		"position":     []float64{0, float64(seq) * 0.01, 3000},
		"velocity":     []float64{100, 0, 0},
		"heading_deg":  90.0,
	})
}

// DefaultWeatherHz mirrors spec.md §6's VATSIM poll rate (~0.2 Hz, i.e.
// once every five seconds).
const DefaultWeatherHz = 0.2

// WeatherGenerator synthesizes a slowly-drifting external/weather report,
// stamped with the clock's wall-clock reading rather than its monotonic
// one — real weather/VATSIM feeds report wall-clock time, which is the
// whole reason clock.SkewTracker exists to correct it back to local
// monotonic time, spec.md §4.1.
func WeatherGenerator(clk clock.Clock) Generator {
	return func(seq int, nowNs int64, rnd *rand.Rand) []byte {
		return jsonFrame(map[string]any{
			"reported_at_unix_ns": clk.WallNs(),
			"temperature":         15 + 5*math.Sin(float64(seq)/20),
			"wind_speed":          5 + 2*rnd.Float64(),
			"visibility":          9000.0,
			"precip":              0.0,
		})
	}
}

func jsonFrame(v map[string]any) []byte {
	// encoding/json never fails on map[string]any built from primitive
	// values, so the error is intentionally discarded here.
	out, _ := json.Marshal(v)
	return out
}
