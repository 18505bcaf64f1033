package ui

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/cong-or/hud/internal/aggregate"
	"github.com/cong-or/hud/internal/schema"
)

// traceDocument is the top-level Chrome-trace-event JSON shape (spec.md
// §6 Export format).
type traceDocument struct {
	TraceEvents []traceEvent `json:"traceEvents"`
	HudStats    Stats        `json:"hudStats"`
}

type traceEvent struct {
	Name string     `json:"name"`
	Cat  string     `json:"cat"`
	Ph   string     `json:"ph"`
	TS   int64      `json:"ts"`
	PID  uint32     `json:"pid"`
	TID  uint32     `json:"tid"`
	Args traceArgs  `json:"args"`
}

type traceArgs struct {
	WorkerIndex uint32 `json:"worker_index"`
	Detection   int    `json:"detection"`
}

// detectionTag maps schema.DetectionMethod to the numeric args.detection
// tag of spec.md §6 (1=marker, 2=scheduler, 3=execution, 4=sample).
func detectionTag(d schema.DetectionMethod) int {
	switch d {
	case schema.DetectionMarker:
		return 1
	case schema.DetectionScheduler:
		return 2
	case schema.DetectionExecution:
		return 3
	case schema.DetectionSample:
		return 4
	default:
		return 0
	}
}

func tagToDetection(tag int) schema.DetectionMethod {
	switch tag {
	case 1:
		return schema.DetectionMarker
	case 2:
		return schema.DetectionScheduler
	case 3:
		return schema.DetectionExecution
	case 4:
		return schema.DetectionSample
	default:
		return schema.DetectionNone
	}
}

// Export writes every aggregated observation in the session (not limited
// to the live view's rolling window) as a Chrome-trace-event JSON
// document to path.
func Export(aggregator *aggregate.Aggregator, stats Stats, path string) error {
	doc := traceDocument{HudStats: stats}
	hotspots := aggregator.Export()

	for _, h := range hotspots {
		name := h.Key
		if len(h.Representative) > 0 {
			name = h.Representative[0].FunctionName
		}
		for _, obs := range h.Observations {
			endUS := obs.At.UnixMicro()
			beginUS := endUS - int64(obs.DurationNS)/1000
			args := traceArgs{WorkerIndex: obs.WorkerIndex, Detection: detectionTag(obs.Detection)}
			doc.TraceEvents = append(doc.TraceEvents,
				traceEvent{Name: name, Cat: "execution", Ph: "B", TS: beginUS, PID: obs.PID, TID: obs.TID, Args: args},
				traceEvent{Name: name, Cat: "execution", Ph: "E", TS: endUS, PID: obs.PID, TID: obs.TID, Args: args},
			)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("ui: create export file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("ui: encode export: %w", err)
	}
	return nil
}
