// Package pump drains kernel-captured events off the ring buffer,
// symbolizes their stacks, and forwards observations into the hotspot
// aggregator (spec.md §4.5, C7).
package pump

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cilium/ebpf/ringbuf"
	"go.uber.org/zap"

	"github.com/cong-or/hud/internal/aggregate"
	"github.com/cong-or/hud/internal/schema"
	"github.com/cong-or/hud/internal/symbol"
)

// defaultWatchdog matches the teacher-adjacent reference's "no events
// parsed" health check interval, generalized from its 15s constant.
const defaultWatchdog = 15 * time.Second

// Reader is the ring-buffer surface Pump depends on, satisfied by
// *ringbuf.Reader (kernel.Session.Events).
type Reader interface {
	Read() (ringbuf.Record, error)
	Close() error
}

// StackResolver looks up a captured stack handle's instruction pointers,
// satisfied by kernel.Session.Stack.
type StackResolver func(id uint32) (schema.StackTrace, error)

type blockingSpan struct {
	startNS uint64
	stackID uint64
}

// Pump drains raw kernel events, symbolizes stacks, forwards observations
// to the aggregator, and notifies a live-display channel with
// non-blocking backpressure (spec.md §4.5's four steps and drop policy).
type Pump struct {
	reader     Reader
	stacks     StackResolver
	symbolizer *symbol.Symbolizer
	aggregator *aggregate.Aggregator
	log        *zap.Logger
	updates    chan<- struct{}

	parsed   atomic.Int64
	dropped  atomic.Int64
	blocking map[uint32]blockingSpan
	warmup   int64
}

// New constructs a Pump. updates may be nil; when non-nil it receives a
// non-blocking notification after every observation, driving the live
// dashboard's redraw. A full channel drops the notification, never the
// observation itself: Dropped() counts these drops for the status line.
func New(reader Reader, stacks StackResolver, symbolizer *symbol.Symbolizer, aggregator *aggregate.Aggregator, log *zap.Logger, updates chan<- struct{}) *Pump {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pump{
		reader:     reader,
		stacks:     stacks,
		symbolizer: symbolizer,
		aggregator: aggregator,
		log:        log,
		updates:    updates,
		blocking:   make(map[uint32]blockingSpan),
	}
}

// Parsed returns the number of records successfully decoded so far.
func (p *Pump) Parsed() int64 { return p.parsed.Load() }

// SetWarmup keeps any observation arising from the first n parsed records
// (of every kind) from reaching the aggregator, mirroring the teacher's
// "skip printing and accumulation" warmup window (cmd/consumption/main.go).
// Parsed() still counts every record.
func (p *Pump) SetWarmup(n int) { p.warmup = int64(n) }

// Dropped returns the number of redraw notifications dropped because the
// updates channel was full.
func (p *Pump) Dropped() int64 { return p.dropped.Load() }

// Run drains the ring buffer until ctx is canceled or the reader closes,
// logging a warning if no event has been parsed within watchdog of
// starting (teacher's "no events after N seconds" health check,
// generalized from a fixed interval to a caller-supplied one; <=0 uses
// defaultWatchdog).
func (p *Pump) Run(ctx context.Context, watchdog time.Duration) error {
	if watchdog <= 0 {
		watchdog = defaultWatchdog
	}
	start := time.Now()
	ticker := time.NewTicker(watchdog)
	defer ticker.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.drain(ctx)
	}()

	for {
		select {
		case <-done:
			return ctx.Err()
		case <-ticker.C:
			if p.parsed.Load() == 0 {
				p.log.Warn("no events parsed from ring buffer yet",
					zap.Duration("elapsed", time.Since(start)))
			}
		}
	}
}

func (p *Pump) drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		raw, err := p.reader.Read()
		if err != nil {
			if errors.Is(err, ringbuf.ErrClosed) || errors.Is(err, io.EOF) || strings.Contains(err.Error(), "closed") {
				return
			}
			p.log.Warn("ring buffer read failed", zap.Error(err))
			continue
		}

		record, err := schema.DecodeRecord(raw.RawSample)
		if err != nil {
			p.log.Warn("decode record failed", zap.Error(err))
			continue
		}
		p.parsed.Add(1)
		p.handle(record)
	}
}

// handle implements spec.md §4.5's event routing: scheduler and sample
// detections observe immediately, marker start/end pairs are matched by
// thread ID before producing a single observation for the span between
// them.
func (p *Pump) handle(rec schema.Record) {
	switch rec.Kind {
	case schema.KindBlockingDetected, schema.KindCPUSample:
		p.observe(rec)
	case schema.KindBlockingStart:
		p.blocking[rec.TID] = blockingSpan{startNS: rec.TimestampNS, stackID: rec.StackID}
	case schema.KindBlockingEnd:
		span, ok := p.blocking[rec.TID]
		if !ok {
			return
		}
		delete(p.blocking, rec.TID)
		p.observe(schema.Record{
			PID:         rec.PID,
			TID:         rec.TID,
			Kind:        schema.KindBlockingDetected,
			Detection:   schema.DetectionMarker,
			StackID:     span.stackID,
			DurationNS:  rec.TimestampNS - span.startNS,
			TimestampNS: rec.TimestampNS,
			WorkerIndex: rec.WorkerIndex,
		})
	default:
		// EXECUTION_START/END and TASK_* events are scheduler bookkeeping
		// the kernel side already folds into BLOCKING_DETECTED; nothing
		// further to observe here.
	}
}

func (p *Pump) observe(rec schema.Record) {
	if p.parsed.Load() <= p.warmup {
		return
	}
	frames, incomplete := p.resolveStack(rec.StackID)
	p.aggregator.Observe(aggregate.Observation{
		Frames:          frames,
		PID:             rec.PID,
		TID:             rec.TID,
		WorkerIndex:     rec.WorkerIndex,
		Detection:       rec.Detection,
		DurationNS:      rec.DurationNS,
		Timestamp:       time.Unix(0, int64(rec.TimestampNS)),
		FrameIncomplete: incomplete,
	})

	if p.updates == nil {
		return
	}
	select {
	case p.updates <- struct{}{}:
	default:
		p.dropped.Add(1)
	}
}

// resolveStack looks up and symbolizes a captured stack handle. The
// second return value reports a frame-incomplete lookup miss (spec.md
// §4.5 step 2): a record that named a stack but whose handle no longer
// resolves, as opposed to a record that never carried one.
func (p *Pump) resolveStack(stackID uint64) ([]symbol.ResolvedFrame, bool) {
	if stackID == schema.NoStack || p.stacks == nil || p.symbolizer == nil {
		return nil, false
	}
	trace, err := p.stacks(uint32(stackID))
	if err != nil {
		p.log.Debug("stack lookup failed", zap.Uint64("stack_id", stackID), zap.Error(err))
		return nil, true
	}
	addrs := trace.Addresses()
	frames := make([]symbol.ResolvedFrame, 0, len(addrs))
	for _, ip := range addrs {
		frames = append(frames, p.symbolizer.Resolve(ip))
	}
	return frames, false
}
