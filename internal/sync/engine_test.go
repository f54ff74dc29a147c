package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synopticon/telemetry-fusion/internal/clock"
	"github.com/synopticon/telemetry-fusion/internal/types"
)

var (
	keyA = types.Key{Source: types.SourceSimulator, Type: types.TypeTelemetry}
	keyB = types.Key{Source: types.SourceSimulator, Type: types.TypeSystems}
	keyC = types.Key{Source: types.SourceSimulator, Type: types.TypeDynamics}
)

func msSample(ms int64) types.EnrichedSample {
	ts := ms * int64(1e6)
	return types.EnrichedSample{Sample: types.Sample{TimestampNs: ts}, IngestedAtNs: ts}
}

func TestSyncEngineScenario5NoTupleThenMatch(t *testing.T) {
	clk := clock.NewVirtualClock(0, 0)
	var tuples []Tuple
	e := NewEngine(Config{ToleranceMs: 10}, clk, func(tup Tuple) {
		tuples = append(tuples, tup)
	})
	e.RegisterStream(keyA)
	e.RegisterStream(keyB)
	e.RegisterStream(keyC)

	_, matchedA := e.Ingest(keyA, msSample(1000))
	assert.False(t, matchedA)

	_, matchedB := e.Ingest(keyB, msSample(1004))
	assert.False(t, matchedB)

	// C@1011: span against A(1000) would be 11ms > Δ=10ms, so no tuple yet.
	_, matchedC := e.Ingest(keyC, msSample(1011))
	assert.False(t, matchedC)
	assert.Empty(t, tuples)

	// A fresh C sample at 1009ms is within tolerance of both A and B.
	tup, matchedC2 := e.Ingest(keyC, msSample(1009))
	require.True(t, matchedC2)
	require.Len(t, tuples, 1)
	assert.InDelta(t, 0.1, tup.Quality, 1e-9)
	assert.Equal(t, int64(1000*1e6), tup.Samples[keyA].Sample.TimestampNs)
	assert.Equal(t, int64(1004*1e6), tup.Samples[keyB].Sample.TimestampNs)
	assert.Equal(t, int64(1009*1e6), tup.Samples[keyC].Sample.TimestampNs)
}

func TestSyncEngineTupleSpanNeverExceedsTolerance(t *testing.T) {
	clk := clock.NewVirtualClock(0, 0)
	var tuples []Tuple
	e := NewEngine(Config{ToleranceMs: 10}, clk, func(tup Tuple) {
		tuples = append(tuples, tup)
	})
	e.RegisterStream(keyA)
	e.RegisterStream(keyB)

	e.Ingest(keyA, msSample(995))
	e.Ingest(keyB, msSample(1015)) // each within 10ms of a hypothetical anchor at 1005, but 20ms apart from each other

	assert.Empty(t, tuples, "straddling matches whose combined span exceeds tolerance must not be emitted")
	for _, tup := range tuples {
		var minTs, maxTs int64 = -1, -1
		for _, s := range tup.Samples {
			ts := s.Sample.TimestampNs
			if minTs == -1 || ts < minTs {
				minTs = ts
			}
			if maxTs == -1 || ts > maxTs {
				maxTs = ts
			}
		}
		assert.LessOrEqual(t, maxTs-minTs, int64(10*1e6))
	}
}

func TestSyncEngineRemoveStreamStopsParticipation(t *testing.T) {
	clk := clock.NewVirtualClock(0, 0)
	matched := 0
	e := NewEngine(Config{ToleranceMs: 10}, clk, func(Tuple) { matched++ })
	e.RegisterStream(keyA)
	e.RegisterStream(keyB)
	e.RemoveStream(keyB)

	e.Ingest(keyA, msSample(1000))
	assert.Equal(t, 0, matched)
}

func TestSyncEngineSingleStreamNeverEmits(t *testing.T) {
	clk := clock.NewVirtualClock(0, 0)
	e := NewEngine(Config{}, clk, nil)
	e.RegisterStream(keyA)
	_, matched := e.Ingest(keyA, msSample(1000))
	assert.False(t, matched)
}
