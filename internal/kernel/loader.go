//go:build linux

package kernel

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
	"github.com/cilium/ebpf/ringbuf"
	"github.com/cilium/ebpf/rlimit"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/cong-or/hud/internal/schema"
)

// WorkerDiscoverer resolves the kernel thread IDs hud should instrument
// for a target process (C5, spec.md §4.2 discovery step). Implemented by
// internal/discover.
type WorkerDiscoverer interface {
	Discover(ctx context.Context, pid int) ([]uint32, error)
}

// Session holds every live kernel resource a Loader attached. Close
// releases programs, maps, links and perf-event file descriptors.
type Session struct {
	objects hudObjects
	links   []link.Link
	perfFDs []int
	log     *zap.Logger

	// Events yields raw ring-buffer records; the pump package drains and
	// decodes them.
	Events *ringbuf.Reader
	// Workers is the final discovered worker thread ID set.
	Workers []uint32
	// Stack resolves a captured stack handle into its instruction pointers.
	Stack func(id uint32) (schema.StackTrace, error)
}

// Close releases every kernel resource in reverse acquisition order. Safe
// to call once; subsequent calls are a no-op.
func (s *Session) Close() error {
	var errs []error
	if s.Events != nil {
		if err := s.Events.Close(); err != nil {
			errs = append(errs, err)
		}
		s.Events = nil
	}
	for _, fd := range s.perfFDs {
		if err := unix.Close(fd); err != nil {
			errs = append(errs, err)
		}
	}
	s.perfFDs = nil
	for _, l := range s.links {
		if err := l.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.links = nil
	if err := s.objects.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Loader loads hud's BPF object bundle and attaches its detection
// programs to a target process, following spec.md §4.2's attach sequence
// (C4): remove the memlock limit, load objects, publish configuration,
// discover workers, attach the scheduler tracepoint, open one perf-event
// sampler per worker thread, and best-effort attach the marker uprobes.
type Loader struct {
	log *zap.Logger
}

// NewLoader constructs a Loader. A nil logger is replaced with a no-op one.
func NewLoader(log *zap.Logger) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{log: log}
}

// Attach loads, configures and attaches hud's kernel programs for pid,
// using discoverer to resolve the worker thread set before per-thread
// sampling programs are opened.
func (l *Loader) Attach(ctx context.Context, pid int, thresholdNS uint64, discoverer WorkerDiscoverer) (*Session, error) {
	if err := rlimit.RemoveMemlock(); err != nil {
		l.log.Warn("remove memlock rlimit failed, continuing", zap.Error(err))
	}

	var objs hudObjects
	if err := loadHudObjects(&objs, nil); err != nil {
		if errors.Is(err, os.ErrPermission) {
			return nil, fmt.Errorf("%w: %v", ErrCapability, err)
		}
		return nil, fmt.Errorf("kernel: load objects: %w", err)
	}

	cfg := schema.ConfigSingleton{
		TargetPID:   uint32(pid),
		ThresholdNS: thresholdNS,
		Flags:       schema.FlagSchedulerEnabled | schema.FlagSamplingEnabled | schema.FlagMarkersEnabled,
	}
	if err := writeConfig(objs.Config, cfg); err != nil {
		_ = objs.Close()
		return nil, err
	}

	workers, err := discoverer.Discover(ctx, pid)
	if err != nil {
		_ = objs.Close()
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %v", ErrTargetGone, err)
		}
		return nil, fmt.Errorf("kernel: discover workers: %w", err)
	}
	for _, tid := range workers {
		if err := addWorker(objs.WorkerSet, tid); err != nil {
			l.log.Warn("worker registration failed", zap.Uint32("tid", tid), zap.Error(err))
		}
	}

	sess := &Session{
		objects: objs,
		Workers: workers,
		log:     l.log,
		Stack: func(id uint32) (schema.StackTrace, error) {
			return lookupStack(objs.StackTraces, id)
		},
	}

	schedLink, err := link.Tracepoint("sched", "sched_switch", objs.SchedSwitch, nil)
	if err != nil {
		_ = sess.Close()
		return nil, fmt.Errorf("%w: sched_switch tracepoint attach: %v", ErrAttachFatal, err)
	}
	sess.links = append(sess.links, schedLink)

	attached := 0

	for _, tid := range workers {
		fd, err := openPerfSample(int(tid))
		if err != nil {
			l.log.Warn("perf_event open failed", zap.Uint32("tid", tid), zap.Error(err))
			continue
		}
		perfLink, err := link.AttachRawLink(link.RawLinkOptions{
			Target:  fd,
			Program: objs.CpuSample,
			Attach:  ebpf.AttachPerfEvent,
		})
		if err != nil {
			if ioctlErr := attachPerfIoctl(fd, objs.CpuSample); ioctlErr != nil {
				l.log.Warn("perf_event attach failed", zap.Uint32("tid", tid), zap.Error(ioctlErr))
				_ = unix.Close(fd)
				continue
			}
			sess.perfFDs = append(sess.perfFDs, fd)
			attached++
			continue
		}
		sess.links = append(sess.links, perfLink)
		sess.perfFDs = append(sess.perfFDs, fd)
		attached++
	}

	if uprobeLink, err := attachMarkerUprobe(pid, "trace_blocking_start", objs.TraceBlockingStart); err == nil {
		sess.links = append(sess.links, uprobeLink)
		attached++
	} else {
		l.log.Warn("trace_blocking_start marker unavailable", zap.Error(err))
	}
	if uprobeLink, err := attachMarkerUprobe(pid, "trace_blocking_end", objs.TraceBlockingEnd); err == nil {
		sess.links = append(sess.links, uprobeLink)
		attached++
	} else {
		l.log.Warn("trace_blocking_end marker unavailable", zap.Error(err))
	}

	if attached == 0 {
		l.log.Warn("no per-worker perf samplers or markers attached, scheduler-path detection only")
	}

	reader, err := ringbuf.NewReader(objs.Events)
	if err != nil {
		_ = sess.Close()
		return nil, fmt.Errorf("kernel: open ringbuf reader: %w", err)
	}
	sess.Events = reader

	return sess, nil
}
