package aggregate

import (
	"testing"
	"time"

	"github.com/cong-or/hud/internal/symbol"
	"github.com/stretchr/testify/require"
)

func frame(fn string) symbol.ResolvedFrame {
	return symbol.ResolvedFrame{BinaryIdentity: "/bin/app", FunctionName: fn, HasDebugInfo: true}
}

func TestObserveMergesIdenticalStacks(t *testing.T) {
	a := New()
	base := time.Unix(1000, 0)

	a.Observe(Observation{Frames: []symbol.ResolvedFrame{frame("spin")}, WorkerIndex: 0, DurationNS: 10_000_000, Timestamp: base})
	a.Observe(Observation{Frames: []symbol.ResolvedFrame{frame("spin")}, WorkerIndex: 1, DurationNS: 20_000_000, Timestamp: base.Add(time.Second)})

	require.Equal(t, 1, a.Len())
	snap := a.Snapshot(base.Add(2 * time.Second))
	require.Len(t, snap.Hotspots, 1)
	h := snap.Hotspots[0]
	require.EqualValues(t, 30_000_000, h.TotalNS)
	require.EqualValues(t, 2, h.HitCount)
	require.Equal(t, 2, h.WorkerCount)
}

func TestObserveDistinguishesDifferentStacks(t *testing.T) {
	a := New()
	now := time.Now()
	a.Observe(Observation{Frames: []symbol.ResolvedFrame{frame("a")}, DurationNS: 5, Timestamp: now})
	a.Observe(Observation{Frames: []symbol.ResolvedFrame{frame("b")}, DurationNS: 5, Timestamp: now})
	require.Equal(t, 2, a.Len())
}

func TestSnapshotSortOrder(t *testing.T) {
	a := New()
	now := time.Now()
	a.Observe(Observation{Frames: []symbol.ResolvedFrame{frame("small")}, DurationNS: 10, Timestamp: now})
	a.Observe(Observation{Frames: []symbol.ResolvedFrame{frame("big")}, DurationNS: 1000, Timestamp: now})
	a.Observe(Observation{Frames: []symbol.ResolvedFrame{frame("tied-a")}, DurationNS: 500, Timestamp: now})
	a.Observe(Observation{Frames: []symbol.ResolvedFrame{frame("tied-a")}, DurationNS: 0, Timestamp: now})
	a.Observe(Observation{Frames: []symbol.ResolvedFrame{frame("tied-b")}, DurationNS: 500, Timestamp: now})

	snap := a.Snapshot(now)
	require.Equal(t, "big", snap.Hotspots[0].Representative[0].FunctionName)
	// tied-a has 500+0=500 total over 2 hits, tied-b has 500 over 1 hit;
	// equal totals break ties by hit count descending.
	require.Equal(t, "tied-a", snap.Hotspots[1].Representative[0].FunctionName)
}

func TestRollingWindowDecaysToZero(t *testing.T) {
	a := New(WithWindow(30 * time.Second))
	start := time.Unix(0, 0)
	a.Observe(Observation{Frames: []symbol.ResolvedFrame{frame("spin")}, DurationNS: 100, Timestamp: start})

	visible := a.Snapshot(start.Add(10 * time.Second))
	require.Len(t, visible.Hotspots, 1)
	require.EqualValues(t, 100, visible.Hotspots[0].TotalNS)

	decayed := a.Snapshot(start.Add(31 * time.Second))
	require.Empty(t, decayed.Hotspots)
}

func TestDegradedFramesKeyByFileOffset(t *testing.T) {
	a := New()
	now := time.Now()
	f1 := symbol.ResolvedFrame{BinaryIdentity: "/bin/app", FileOffset: 0x100, HasDebugInfo: false}
	f2 := symbol.ResolvedFrame{BinaryIdentity: "/bin/app", FileOffset: 0x200, HasDebugInfo: false}
	a.Observe(Observation{Frames: []symbol.ResolvedFrame{f1}, DurationNS: 1, Timestamp: now})
	a.Observe(Observation{Frames: []symbol.ResolvedFrame{f2}, DurationNS: 1, Timestamp: now})
	require.Equal(t, 2, a.Len())
}

func TestWithDepthLimitsKey(t *testing.T) {
	a := New(WithDepth(1))
	now := time.Now()
	a.Observe(Observation{Frames: []symbol.ResolvedFrame{frame("inner"), frame("outerA")}, DurationNS: 1, Timestamp: now})
	a.Observe(Observation{Frames: []symbol.ResolvedFrame{frame("inner"), frame("outerB")}, DurationNS: 1, Timestamp: now})
	require.Equal(t, 1, a.Len(), "stacks sharing the first frame should collapse when depth=1")
}

func TestIncompleteFramesCounted(t *testing.T) {
	a := New()
	now := time.Now()
	require.EqualValues(t, 0, a.IncompleteFrames())

	a.Observe(Observation{Frames: []symbol.ResolvedFrame{frame("ok")}, DurationNS: 1, Timestamp: now})
	require.EqualValues(t, 0, a.IncompleteFrames())

	a.Observe(Observation{DurationNS: 1, Timestamp: now, FrameIncomplete: true})
	a.Observe(Observation{DurationNS: 1, Timestamp: now, FrameIncomplete: true})
	require.EqualValues(t, 2, a.IncompleteFrames())
}
