package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVirtualClockAdvanceFiresWaiters(t *testing.T) {
	vc := NewVirtualClock(0, 0)
	ch := vc.After(100 * time.Millisecond)

	select {
	case <-ch:
		t.Fatal("fired before deadline")
	default:
	}

	vc.Advance(50 * time.Millisecond)
	select {
	case <-ch:
		t.Fatal("fired early")
	default:
	}

	vc.Advance(60 * time.Millisecond)
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("waiter never fired")
	}
	assert.Equal(t, int64(110*time.Millisecond), vc.NowNs())
}

func TestSkewTrackerLearnsMedianOffset(t *testing.T) {
	vc := NewVirtualClock(0, 1_000_000_000)
	tr := NewSkewTracker(vc)

	// Source clock runs 200ms behind local wall clock; feed five samples.
	offsets := []int64{190, 200, 210, 200, 200}
	for _, off := range offsets {
		sourceWall := vc.WallNs() - int64(off)*int64(time.Millisecond)
		tr.Normalize("external/weather", sourceWall)
		vc.Advance(10 * time.Millisecond)
	}

	// Sixth sample should now use the learned (median) offset.
	sourceWall := vc.WallNs() - 200*int64(time.Millisecond)
	got := tr.Normalize("external/weather", sourceWall)
	require.InDelta(t, vc.NowNs(), got, float64(2*time.Millisecond))
}
