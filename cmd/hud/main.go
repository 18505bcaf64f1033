//go:build linux

// Command hud is a zero-instrumentation blocking profiler for async
// runtimes: point it at a PID or process name and it attaches kernel
// probes, classifies worker threads, and renders a live dashboard of
// where those threads stall (spec.md §1, §6, C9).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cong-or/hud/internal/aggregate"
	"github.com/cong-or/hud/internal/config"
	"github.com/cong-or/hud/internal/discover"
	"github.com/cong-or/hud/internal/kernel"
	"github.com/cong-or/hud/internal/pump"
	"github.com/cong-or/hud/internal/symbol"
	"github.com/cong-or/hud/internal/ui"
	"github.com/cong-or/hud/pkg/system/util"
)

// Exit codes per spec.md §6: zero on clean termination, a general
// non-zero code on fatal attach/capability failure, a distinct code when
// the target process cannot be found or exits mid-setup.
const (
	exitOK = iota
	exitGeneral
	exitTargetNotFound
)

type opts struct {
	pid          int
	processName  string
	thresholdMS  int
	rollingSecs  int
	workerPrefix string
	durationSecs int
	exportPath   string
	replayPath   string
	headless     bool
	warmup       int
	sampleEMA    float64
}

func main() {
	var o opts

	root := &cobra.Command{
		Use:   "hud [--pid PID | --process-name NAME | --replay FILE]",
		Short: "Zero-instrumentation blocking profiler for async runtimes",
		Long: `hud attaches kernel tracepoints and perf-event samplers to a running
process, discovers its async worker threads without any target-side
instrumentation, and surfaces where those threads block past a
configurable threshold.

Examples:
  hud --pid 4242 --threshold 5
  hud --process-name my-service --headless --duration 30 --export trace.json
  hud --replay trace.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), o)
		},
		SilenceUsage: true,
	}

	root.Flags().IntVar(&o.pid, "pid", 0, "target process identifier")
	root.Flags().StringVar(&o.processName, "process-name", "", "target process name, resolved through the process listing")
	root.Flags().IntVar(&o.thresholdMS, "threshold", 5, "blocking-detection threshold in milliseconds")
	root.Flags().IntVar(&o.rollingSecs, "rolling-window", 0, "aggregator visibility window in seconds (0 = unbounded)")
	root.Flags().StringVar(&o.workerPrefix, "worker-prefix", "", "override worker-thread discovery with an explicit comm prefix")
	root.Flags().IntVar(&o.durationSecs, "duration", 0, "stop the session after this many seconds (0 = run until interrupted)")
	root.Flags().StringVar(&o.exportPath, "export", "", "write a Chrome-trace-event JSON file on exit")
	root.Flags().StringVar(&o.replayPath, "replay", "", "replay a previously exported trace instead of attaching to a target")
	root.Flags().BoolVar(&o.headless, "headless", false, "suppress the terminal dashboard")
	root.Flags().IntVar(&o.warmup, "warmup", 0, "number of initial ring-buffer records kept out of the hotspot aggregator")
	root.Flags().Float64Var(&o.sampleEMA, "sample-ema", 0.3, "EMA alpha applied to the status line's events/sec readout")

	if err := root.Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(exitCodeFor(err))
	}
}

func exitCodeFor(err error) int {
	switch {
	case errors.Is(err, kernel.ErrTargetGone):
		return exitTargetNotFound
	case errors.Is(err, kernel.ErrCapability), errors.Is(err, kernel.ErrAttachFatal):
		return exitGeneral
	case err != nil:
		return exitGeneral
	default:
		return exitOK
	}
}

func run(ctx context.Context, o opts) error {
	slog.SetLogLoggerLevel(logLevelFromEnv())

	cfg := config.Config{
		PID:               o.pid,
		ProcessName:       o.processName,
		Threshold:         time.Duration(o.thresholdMS) * time.Millisecond,
		RollingWindow:     time.Duration(o.rollingSecs) * time.Second,
		WorkerPrefix:      o.workerPrefix,
		RuntimeSignatures: config.DefaultRuntimeSignatures,
		Duration:          time.Duration(o.durationSecs) * time.Second,
		ExportPath:        o.exportPath,
		ReplayPath:        o.replayPath,
		Headless:          o.headless,
		Warmup:            o.warmup,
		SampleEMA:         o.sampleEMA,
		LogLevel:          os.Getenv("HUD_LOG_LEVEL"),
	}

	if cfg.PID == 0 && cfg.ProcessName != "" && cfg.ReplayPath == "" {
		pid, err := resolvePIDByName(cfg.ProcessName)
		if err != nil {
			return fmt.Errorf("%w: %v", kernel.ErrTargetGone, err)
		}
		cfg.PID = pid
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	fmt.Println(hostSummaryLine())

	if cfg.ReplayPath != "" {
		return runReplay(cfg)
	}

	ctx, stop := signalContext(ctx)
	defer stop()

	if cfg.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Duration)
		defer cancel()
	}

	return runLive(ctx, cfg)
}

func runReplay(cfg config.Config) error {
	aggregator, stats, err := ui.LoadReplay(cfg.ReplayPath)
	if err != nil {
		return err
	}
	if cfg.Headless {
		snap := aggregator.Snapshot(time.Now())
		for _, h := range snap.Hotspots {
			fmt.Printf("%-10d %s\n", h.TotalNS, hotspotFrameLabel(h))
		}
		return nil
	}
	model := ui.New(aggregator, func() ui.Stats { return stats })
	_, err = tea.NewProgram(model).Run()
	return err
}

func runLive(ctx context.Context, cfg config.Config) error {
	engineLog, err := newEngineLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer engineLog.Sync()

	loader := kernel.NewLoader(engineLog)
	discoverer := discover.New(cfg, nil)

	session, err := loader.Attach(ctx, cfg.PID, uint64(cfg.Threshold.Nanoseconds()), discoverer)
	if err != nil {
		return err
	}
	defer session.Close()

	symbolizer, err := symbol.NewSymbolizer(cfg.PID)
	if err != nil {
		return fmt.Errorf("build symbolizer: %w", err)
	}

	fmt.Printf("target pid=%d cpu=%.1f%%\n", cfg.PID, targetCPUPercent(cfg.PID, 50*time.Millisecond))

	aggregator := aggregate.New(aggregate.WithWindow(cfg.RollingWindow))
	updates := make(chan struct{}, 1)
	p := pump.New(session.Events, session.Stack, symbolizer, aggregator, engineLog, updates)
	p.SetWarmup(cfg.Warmup)

	pumpErrCh := make(chan error, 1)
	go func() { pumpErrCh <- p.Run(ctx, 0) }()

	rateEMA := util.NewEMA(cfg.SampleEMA)
	lastSeen, lastAt := int64(0), time.Now()
	statsFn := func() ui.Stats {
		seen := p.Parsed()
		now := time.Now()
		dt := now.Sub(lastAt).Seconds()
		rate := 0.0
		if dt > 0 {
			rate = rateEMA.Next(util.SafeDiv(float64(seen-lastSeen), dt))
		}
		lastSeen, lastAt = seen, now

		return ui.Stats{
			EventsSeen:       seen,
			EventsDropped:    p.Dropped(),
			WorkerCount:      len(session.Workers),
			DebugInfoFrac:    symbolizer.DebugInfoFraction(),
			EventsPerSec:     rate,
			IncompleteFrames: aggregator.IncompleteFrames(),
		}
	}

	var runErr error
	if cfg.Headless {
		runErr = ui.RunHeadless(ctx, aggregator, statsFn, cfg.ExportPath, cfg.Duration, engineLog)
	} else {
		model := ui.New(aggregator, statsFn)
		program := tea.NewProgram(model, tea.WithContext(ctx))
		_, runErr = program.Run()
		if cfg.ExportPath != "" {
			if exportErr := ui.Export(aggregator, statsFn(), cfg.ExportPath); exportErr != nil {
				engineLog.Warn("export failed", zap.Error(exportErr))
			}
		}
	}

	if pumpErr := <-pumpErrCh; pumpErr != nil && runErr == nil {
		runErr = pumpErr
	}
	return runErr
}

// signalContext mirrors the teacher's Ctrl-C handling in
// cmd/consumption/main.go: signal.NotifyContext wrapping the run context.
func signalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
}

func hotspotFrameLabel(h aggregate.SnapshotHotspot) string {
	if len(h.Representative) == 0 {
		return h.Key
	}
	return h.Representative[0].FunctionName
}

func resolvePIDByName(name string) (int, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		raw, err := os.ReadFile(filepath.Join("/proc", e.Name(), "comm"))
		if err != nil {
			continue
		}
		if strings.TrimSpace(string(raw)) == name {
			return pid, nil
		}
	}
	return 0, fmt.Errorf("no process named %q", name)
}

func logLevelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("HUD_LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newEngineLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	switch strings.ToLower(level) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	return cfg.Build()
}
