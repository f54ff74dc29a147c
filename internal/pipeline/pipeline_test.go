package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synopticon/telemetry-fusion/internal/clock"
	"github.com/synopticon/telemetry-fusion/internal/distributor"
	"github.com/synopticon/telemetry-fusion/internal/fusion"
	"github.com/synopticon/telemetry-fusion/internal/quality"
	"github.com/synopticon/telemetry-fusion/internal/session"
	"github.com/synopticon/telemetry-fusion/internal/temporal"
	"github.com/synopticon/telemetry-fusion/internal/types"
)

func TestDecodeGazeProducesBehavioralSample(t *testing.T) {
	raw := []byte(`{"timestamp_ns":1000,"x":0.4,"y":0.6,"confidence":0.97,"worn":true}`)
	s, err := DecodeGaze("dev-1", raw)
	require.NoError(t, err)
	assert.Equal(t, types.SourceHuman, s.Key.Source)
	assert.Equal(t, types.TypeBehavioral, s.Key.Type)
	require.NotNil(t, s.Payload.Behavioral)
	assert.Equal(t, 0.4, s.Payload.Behavioral.GazeX)
}

func TestDecodeAircraftProducesTelemetrySample(t *testing.T) {
	raw := []byte(`{"timestamp_ns":2000,"position":[1,2,3],"velocity":[100,0,0],"heading_deg":90}`)
	s, err := DecodeAircraft(raw)
	require.NoError(t, err)
	assert.Equal(t, types.SourceSimulator, s.Key.Source)
	assert.Equal(t, types.TypeTelemetry, s.Key.Type)
	require.NotNil(t, s.Payload.Telemetry)
	assert.Equal(t, 90.0, s.Payload.Telemetry.HeadingDeg)
}

func TestDecodeGazeRejectsMalformedJSON(t *testing.T) {
	_, err := DecodeGaze("dev-1", []byte(`not-json`))
	assert.Error(t, err)
}

func TestDecodeWeatherNormalizesSourceWallClock(t *testing.T) {
	clk := clock.NewVirtualClock(1_000_000_000, 1_700_000_000_000_000_000)
	tracker := clock.NewSkewTracker(clk)

	// The source clock runs 3 seconds ahead of local wall time, every
	// sample it reports from here on.
	sourceAheadNs := int64(3 * time.Second)

	frame := func(reportedAtWallNs int64) []byte {
		return []byte(fmt.Sprintf(`{"reported_at_unix_ns":%d,"temperature":15,"wind_speed":5,"visibility":9000,"precip":0}`, reportedAtWallNs))
	}

	// First five samples learn the offset; each sample's TimestampNs is
	// "now" until the offset is learned.
	for i := 0; i < 5; i++ {
		s, err := DecodeWeather(tracker, "vatsim", frame(clk.WallNs()+sourceAheadNs))
		require.NoError(t, err)
		assert.Equal(t, clk.NowNs(), s.TimestampNs)
		clk.Advance(time.Second)
	}

	// A sixth sample, arriving with the same 3s-ahead skew, is corrected
	// back to local monotonic "now" rather than trusted as 3s in the future.
	s, err := DecodeWeather(tracker, "vatsim", frame(clk.WallNs()+sourceAheadNs))
	require.NoError(t, err)
	assert.InDelta(t, clk.NowNs(), s.TimestampNs, float64(time.Millisecond))
	assert.Equal(t, types.SourceExternal, s.Key.Source)
	assert.Equal(t, types.TypeWeather, s.Key.Type)
	require.NotNil(t, s.Payload.Weather)
}

func TestAttachSessionIngestsDecodedFrames(t *testing.T) {
	clk := clock.NewVirtualClock(0, 0)
	engine := fusion.NewEngine(fusion.Config{}, clk, quality.NewAssessor(nil), temporal.NewStore(100), zerolog.Nop())
	distrib := distributor.New(4, nil, zerolog.Nop())
	rt := NewRuntime(engine, distrib, zerolog.Nop())

	mock := session.NewMockTransport(clk, session.GazeGenerator, 1)
	sess := session.New("mock-eye-tracker", session.Config{}, mock, clk, zerolog.Nop())
	rt.AttachSession(sess, func(raw []byte) (types.Sample, error) { return DecodeGaze("mock-eye-tracker", raw) })

	sess.Connect(context.Background())
	defer sess.Disconnect()

	assert.Eventually(t, func() bool {
		return engine.Metrics().TotalIngestions > 0
	}, time.Second, 5*time.Millisecond)
}
