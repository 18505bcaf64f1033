// Package config holds the profiler's run configuration, assembled from
// the command-line surface described in spec.md §6 and passed down into
// every other component instead of each one reaching for flags directly.
package config

import "time"

// Config is the union of every knob the external argument parser
// collects before handing control to the profiling pipeline.
type Config struct {
	// Target selection. Exactly one of PID or ProcessName is set unless
	// Replay is non-empty, in which case neither is used.
	PID         int
	ProcessName string

	// Detection policy (C3's configuration singleton).
	Threshold time.Duration

	// Aggregator visibility (C8). Zero means unbounded.
	RollingWindow time.Duration

	// Worker discovery override (C5 step 1). Empty defers to the
	// fallback chain.
	WorkerPrefix string

	// RuntimeSignatures are the frame-pattern strings used by C5's
	// stack-based classification fallback (step 3).
	RuntimeSignatures []string

	// Session cap enforced by the main thread (§5). Zero means run
	// until interrupted.
	Duration time.Duration

	// Presentation (C9).
	ExportPath  string
	ReplayPath  string
	Headless    bool
	Warmup      int
	SampleEMA   float64

	// LogLevel mirrors the teacher's env-var-driven verbosity knob,
	// read from HUD_LOG_LEVEL by cmd/hud and never affecting collected
	// data (§6 Environmental).
	LogLevel string
}

// DefaultThreshold is the detection threshold used when the operator
// does not override it (spec.md GLOSSARY: "Detection threshold").
const DefaultThreshold = 5 * time.Millisecond

// DefaultSampleFrequencyHz is the CPU-sample probe's firing rate. 99Hz is
// chosen deliberately off the common 100Hz tick to avoid aliasing
// against periodic kernel activity (spec.md §4.1).
const DefaultSampleFrequencyHz = 99

// WorkerDiscoveryWindow bounds step 3 of the discovery fallback chain
// (spec.md §4.3, §5).
const WorkerDiscoveryWindow = 500 * time.Millisecond

// DefaultRuntimeSignatures are the frame-pattern strings matched against
// resolved stacks during stack-based worker classification. They target
// the predominant Tokio-style async runtime's scheduler and blocking
// pool symbols.
var DefaultRuntimeSignatures = []string{
	"tokio::runtime::scheduler",
	"tokio::runtime::blocking",
	"tokio::park",
}

// DefaultWorkerPrefixes are the two canonical thread-name prefixes tried
// by C5 step 2, covering the runtime's worker-thread naming across major
// versions.
var DefaultWorkerPrefixes = []string{
	"tokio-runtime-w", // 15-byte comm truncation of "tokio-runtime-worker-N"
	"tokio-runtim",    // shorter 12-byte prefix
}

// Validate reports the first configuration error, mirroring the
// teacher's inline flag validation in cmd/consumption/main.go.
func (c Config) Validate() error {
	switch {
	case c.ReplayPath != "" && (c.PID != 0 || c.ProcessName != ""):
		return errMutuallyExclusive
	case c.ReplayPath == "" && c.PID == 0 && c.ProcessName == "":
		return errNoTarget
	case c.Threshold <= 0:
		return errBadThreshold
	case c.RollingWindow < 0:
		return errBadWindow
	case c.Headless && c.ReplayPath == "" && c.ExportPath == "":
		return errHeadlessNeedsExport
	}
	return nil
}
