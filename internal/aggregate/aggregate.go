// Package aggregate maintains the rolling set of distinct blocking sites
// observed during a session (spec.md §4.6, C8).
package aggregate

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cong-or/hud/internal/schema"
	"github.com/cong-or/hud/internal/symbol"
)

// Observation is one BLOCKING_DETECTED occurrence handed to the
// aggregator by the event pump.
type Observation struct {
	Frames      []symbol.ResolvedFrame
	PID         uint32
	TID         uint32
	WorkerIndex uint32
	Detection   schema.DetectionMethod
	DurationNS  uint64
	Timestamp   time.Time

	// FrameIncomplete marks an observation whose stack handle failed to
	// resolve (spec.md §4.5 step 2): the hotspot is still counted, but
	// under a degraded key, and the occurrence is tallied on the
	// aggregator so the status line can surface it.
	FrameIncomplete bool
}

// Hotspot is a distinct blocking site, keyed by its resolved call stack
// up to the aggregator's configured depth (spec.md §3, §4.6).
type Hotspot struct {
	Key             string
	TotalNS         uint64
	HitCount        uint64
	Workers         map[uint32]struct{}
	FirstSeen       time.Time
	LastSeen        time.Time
	Representative  []symbol.ResolvedFrame

	// observations backs the rolling-window filter (spec.md §4.6) and the
	// Chrome-trace exporter: each entry is consulted lazily at read time
	// rather than evicted eagerly.
	observations []timedObservation
}

type timedObservation struct {
	at          time.Time
	dur         uint64
	pid         uint32
	tid         uint32
	workerIndex uint32
	detection   schema.DetectionMethod
}

// TimedObservation is the exported read-only view of one recorded
// occurrence, used by the Chrome-trace exporter.
type TimedObservation struct {
	At          time.Time
	DurationNS  uint64
	PID         uint32
	TID         uint32
	WorkerIndex uint32
	Detection   schema.DetectionMethod
}

// Observations returns every recorded occurrence of this hotspot, oldest
// first, irrespective of the rolling window (the exporter writes full
// session history regardless of the live view's visibility filter).
func (h *Hotspot) Observations() []TimedObservation {
	out := make([]TimedObservation, len(h.observations))
	for i, o := range h.observations {
		out[i] = TimedObservation{At: o.at, DurationNS: o.dur, PID: o.pid, TID: o.tid, WorkerIndex: o.workerIndex, Detection: o.detection}
	}
	return out
}

// WorkerCount returns the number of distinct workers this hotspot has
// been observed on.
func (h *Hotspot) WorkerCount() int { return len(h.Workers) }

// workerIDs returns the sorted set of worker indices this hotspot has
// been observed on, backing the dashboard's worker-filter view.
func (h *Hotspot) workerIDs() []uint32 {
	out := make([]uint32, 0, len(h.Workers))
	for w := range h.Workers {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Aggregator owns the hotspot set. It is written exclusively by the
// event pump goroutine and read by the presentation goroutine through a
// lock-protected snapshot (spec.md §5, §9).
type Aggregator struct {
	mu       sync.RWMutex
	hotspots map[string]*Hotspot
	window   time.Duration // 0 means unbounded (spec.md §4.6)
	depth    int           // 0 means full stack

	incompleteFrames atomic.Int64
}

// Option configures an Aggregator at construction.
type Option func(*Aggregator)

// WithWindow sets the rolling visibility window (spec.md §4.6). Zero
// (the default) disables it.
func WithWindow(d time.Duration) Option {
	return func(a *Aggregator) { a.window = d }
}

// WithDepth limits the keying comparison to the first n frames
// (innermost first). Zero (the default) compares the full stack.
func WithDepth(n int) Option {
	return func(a *Aggregator) { a.depth = n }
}

// New constructs an empty Aggregator.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{hotspots: make(map[string]*Hotspot)}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Observe folds one BLOCKING_DETECTED observation into the hotspot set
// (spec.md §4.6 Updates).
func (a *Aggregator) Observe(obs Observation) {
	key := stackKey(obs.Frames, a.depth)

	a.mu.Lock()
	defer a.mu.Unlock()

	if obs.FrameIncomplete {
		a.incompleteFrames.Add(1)
	}

	h, ok := a.hotspots[key]
	if !ok {
		h = &Hotspot{
			Key:            key,
			Workers:        make(map[uint32]struct{}),
			FirstSeen:      obs.Timestamp,
			Representative: obs.Frames,
		}
		a.hotspots[key] = h
	}

	h.TotalNS += obs.DurationNS
	h.HitCount++
	h.Workers[obs.WorkerIndex] = struct{}{}
	h.LastSeen = obs.Timestamp
	if h.Representative == nil {
		h.Representative = obs.Frames
	}
	h.observations = append(h.observations, timedObservation{
		at: obs.Timestamp, dur: obs.DurationNS,
		pid: obs.PID, tid: obs.TID, workerIndex: obs.WorkerIndex, detection: obs.Detection,
	})
}

// ExportHotspot is the accessor the Chrome-trace exporter and replay
// loader use to read full session history, independent of the live
// view's rolling-window visibility filter.
type ExportHotspot struct {
	Key            string
	Representative []symbol.ResolvedFrame
	Observations   []TimedObservation
}

// Export returns every hotspot's full observation history.
func (a *Aggregator) Export() []ExportHotspot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]ExportHotspot, 0, len(a.hotspots))
	for _, h := range a.hotspots {
		out = append(out, ExportHotspot{Key: h.Key, Representative: h.Representative, Observations: h.Observations()})
	}
	return out
}

// Len returns the number of distinct hotspots tracked, irrespective of
// the rolling window.
func (a *Aggregator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.hotspots)
}

// IncompleteFrames returns the running count of observations whose stack
// handle failed to resolve (spec.md §4.5 step 2), surfaced on the status
// line alongside EventsDropped/DebugInfoFrac.
func (a *Aggregator) IncompleteFrames() int64 {
	return a.incompleteFrames.Load()
}

// Snapshot is a read-only, sorted view of the aggregator's hotspots at a
// point in time, suitable for a single frame render (spec.md §4.6 Sort
// order, §9 Ownership).
type Snapshot struct {
	Hotspots []SnapshotHotspot
	At       time.Time
}

// SnapshotHotspot is the externally visible view of a Hotspot, with the
// rolling-window filter already applied to TotalNS/HitCount if
// configured (spec.md §4.6).
type SnapshotHotspot struct {
	Key            string
	TotalNS        uint64
	HitCount       uint64
	WorkerCount    int
	WorkerIDs      []uint32
	FirstSeen      time.Time
	LastSeen       time.Time
	Representative []symbol.ResolvedFrame
}

// Snapshot returns hotspots in descending order of total accumulated
// time, ties broken by hit count (spec.md §4.6 Sort order). When a
// rolling window is configured, totals reflect only observations within
// the last Window of now; this is a lazy filter, not an eviction, so
// memory for stale observations is retained until the process exits
// (spec.md §4.6 Rolling window, §9 Open question i).
func (a *Aggregator) Snapshot(now time.Time) Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]SnapshotHotspot, 0, len(a.hotspots))
	for _, h := range a.hotspots {
		total, hits, first, last := h.visible(now, a.window)
		if a.window > 0 && hits == 0 {
			continue
		}
		out = append(out, SnapshotHotspot{
			Key:            h.Key,
			TotalNS:        total,
			HitCount:       hits,
			WorkerCount:    h.WorkerCount(),
			WorkerIDs:      h.workerIDs(),
			FirstSeen:      first,
			LastSeen:       last,
			Representative: h.Representative,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalNS != out[j].TotalNS {
			return out[i].TotalNS > out[j].TotalNS
		}
		return out[i].HitCount > out[j].HitCount
	})

	return Snapshot{Hotspots: out, At: now}
}

// visible computes the window-filtered total/count/first/last for a
// hotspot. With window == 0 the full history is visible.
func (h *Hotspot) visible(now time.Time, window time.Duration) (total, hits uint64, first, last time.Time) {
	if window <= 0 {
		return h.TotalNS, h.HitCount, h.FirstSeen, h.LastSeen
	}
	cutoff := now.Add(-window)
	for _, o := range h.observations {
		if o.at.Before(cutoff) {
			continue
		}
		total += o.dur
		hits++
		if first.IsZero() || o.at.Before(first) {
			first = o.at
		}
		if o.at.After(last) {
			last = o.at
		}
	}
	return total, hits, first, last
}

// stackKey normalizes a resolved frame sequence into the hotspot keying
// signature of spec.md §4.6: frames agree up to depth (0 = full stack);
// a frame without debug info participates by file offset rather than
// function name, since its function label is only a best-effort guess.
func stackKey(frames []symbol.ResolvedFrame, depth int) string {
	n := len(frames)
	if depth > 0 && depth < n {
		n = depth
	}
	parts := make([]string, 0, n)
	for i := 0; i < n; i++ {
		f := frames[i]
		if f.HasDebugInfo {
			parts = append(parts, f.BinaryIdentity+"!"+f.FunctionName)
		} else {
			parts = append(parts, f.BinaryIdentity+"@"+strconv.FormatUint(f.FileOffset, 16))
		}
	}
	return strings.Join(parts, ";")
}
