package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/synopticon/telemetry-fusion/internal/types"
)

func TestPlausibilityHardDropsOutOfWindowTimestamp(t *testing.T) {
	s := types.Sample{
		Key:         types.Key{Source: types.SourceSimulator, Type: types.TypeTelemetry},
		TimestampNs: 0,
		Payload: types.Payload{Telemetry: &types.TelemetryPayload{
			Position: [3]float64{0, 0, 0},
			Velocity: [3]float64{0, 0, 0},
		}},
	}

	t.Run("within window scores fully plausible", func(t *testing.T) {
		score, issues := plausibilityScore(s, int64(4*60*1e9)) // 4 minutes away
		assert.Equal(t, 1.0, score)
		assert.Empty(t, issues)
	})

	t.Run("delta just over five minutes hard-drops to zero, spec.md §4.1", func(t *testing.T) {
		score, issues := plausibilityScore(s, int64(5*60*1e9)+1)
		assert.Equal(t, 0.0, score)
		assert.Contains(t, issues, "timestamp-out-of-window")
	})
}

func TestPlausibilityHardDropOverridesDomainPenalties(t *testing.T) {
	// An out-of-window sample that would also trip the extreme-acceleration
	// penalty still scores exactly 0, not 1.0-0.3 - the boundary check
	// returns before the domain-specific switch runs.
	s := types.Sample{
		Key:         types.Key{Source: types.SourceSimulator, Type: types.TypeTelemetry},
		TimestampNs: 0,
		Payload: types.Payload{Telemetry: &types.TelemetryPayload{
			Acceleration: [3]float64{100, 100, 100},
		}},
	}
	score, issues := plausibilityScore(s, int64(6*60*1e9))
	assert.Equal(t, 0.0, score)
	assert.Equal(t, []string{"timestamp-out-of-window"}, issues)
}
