package ui

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cong-or/hud/internal/aggregate"
)

// RunHeadless suppresses the terminal interface: it blocks until duration
// elapses (zero means until ctx is canceled) or ctx.Done() fires, then
// writes an export file, mirroring the teacher's signal-driven
// `select{ case <-ctx.Done(): ...; case <-ticker.C: ... }` shutdown shape
// (spec.md §4.7 Headless mode).
func RunHeadless(ctx context.Context, aggregator *aggregate.Aggregator, statsFn StatsFunc, exportPath string, duration time.Duration, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}

	if duration > 0 {
		timer := time.NewTimer(duration)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
	} else {
		<-ctx.Done()
	}

	snapshot := aggregator.Snapshot(time.Now())
	var stats Stats
	if statsFn != nil {
		stats = statsFn()
	}

	log.Info("headless session ending",
		zap.Int("hotspots", len(snapshot.Hotspots)),
		zap.Int64("events_seen", stats.EventsSeen),
		zap.Int64("events_dropped", stats.EventsDropped),
	)

	return Export(aggregator, stats, exportPath)
}
