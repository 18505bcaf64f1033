package ui

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/cong-or/hud/internal/aggregate"
	"github.com/cong-or/hud/internal/symbol"
)

// LoadReplay reads a previously exported trace document and rebuilds an
// Aggregator from its begin/end record pairs, pairing them by
// (pid, tid, name) in encounter order (spec.md §4.7 Replay: "no kernel
// attach occurs in this mode").
func LoadReplay(path string) (*aggregate.Aggregator, Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("ui: open replay file: %w", err)
	}
	defer f.Close()

	var doc traceDocument
	if err := json.NewDecoder(f).Decode(&doc); err != nil {
		return nil, Stats{}, fmt.Errorf("ui: decode replay file: %w", err)
	}

	aggregator := aggregate.New()
	type key struct {
		pid, tid uint32
		name     string
	}
	pending := make(map[key]traceEvent)

	for _, ev := range doc.TraceEvents {
		k := key{pid: ev.PID, tid: ev.TID, name: ev.Name}
		switch ev.Ph {
		case "B":
			pending[k] = ev
		case "E":
			begin, ok := pending[k]
			if !ok {
				continue
			}
			delete(pending, k)
			durationNS := uint64(ev.TS-begin.TS) * 1000
			aggregator.Observe(aggregate.Observation{
				Frames:      []symbol.ResolvedFrame{{FunctionName: ev.Name, HasDebugInfo: true, BinaryIdentity: "[replay]"}},
				PID:         ev.PID,
				TID:         ev.TID,
				WorkerIndex: ev.Args.WorkerIndex,
				Detection:   tagToDetection(ev.Args.Detection),
				DurationNS:  durationNS,
				Timestamp:   time.UnixMicro(ev.TS),
			})
		}
	}

	stats := doc.HudStats
	stats.Replay = true
	return aggregator, stats, nil
}
