// Package schema defines the fixed-layout record and map-key types shared
// between the kernel-resident probes and the userspace pipeline.
//
// Every type here must stay pointer-free and naturally aligned: the BPF
// verifier rejects programs that write anything else into a map, and the
// userspace side decodes these bytes with a plain binary.Read rather than
// unsafe pointer casts.
package schema

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// MaxStackDepth bounds the number of instruction pointers captured per
// stack trace, matching the C side's MAX_STACK_DEPTH constant.
const MaxStackDepth = 127

// NoStack is the sentinel StackID meaning "no stack was captured".
const NoStack uint64 = ^uint64(0)

// EventKind tags the kind of occurrence a Record describes.
type EventKind uint8

const (
	KindUnknown EventKind = iota
	KindTaskSpawn
	KindTaskPollStart
	KindTaskPollEnd
	KindBlockingStart
	KindBlockingEnd
	KindBlockingDetected
	KindCPUSample
	KindExecutionStart
	KindExecutionEnd
)

func (k EventKind) String() string {
	switch k {
	case KindTaskSpawn:
		return "TASK_SPAWN"
	case KindTaskPollStart:
		return "TASK_POLL_START"
	case KindTaskPollEnd:
		return "TASK_POLL_END"
	case KindBlockingStart:
		return "BLOCKING_START"
	case KindBlockingEnd:
		return "BLOCKING_END"
	case KindBlockingDetected:
		return "BLOCKING_DETECTED"
	case KindCPUSample:
		return "CPU_SAMPLE"
	case KindExecutionStart:
		return "EXECUTION_START"
	case KindExecutionEnd:
		return "EXECUTION_END"
	default:
		return "UNKNOWN"
	}
}

// DetectionMethod tags how a blocking observation was produced. The
// numeric values match the Chrome-trace export's args.detection tag.
type DetectionMethod uint8

const (
	DetectionNone DetectionMethod = iota
	DetectionMarker
	DetectionScheduler
	DetectionExecution
	DetectionSample
)

func (d DetectionMethod) String() string {
	switch d {
	case DetectionMarker:
		return "marker"
	case DetectionScheduler:
		return "scheduler"
	case DetectionExecution:
		return "execution"
	case DetectionSample:
		return "sample"
	default:
		return "none"
	}
}

// Record is the fixed-size event emitted by the kernel probes into the
// ring buffer. Field order mirrors the C struct hud_event_t in
// bpf/hud.bpf.c; do not reorder without updating both sides.
//
//	struct hud_event_t {
//	    u32 pid;
//	    u32 tid;
//	    u64 timestamp_ns;
//	    u8  kind;
//	    u8  detection;
//	    u8  _pad0[6];
//	    u64 stack_id;
//	    u64 duration_ns;
//	    u32 worker_index;
//	    u32 cpu;
//	    u8  reserved[16];
//	};
type Record struct {
	PID         uint32
	TID         uint32
	TimestampNS uint64
	Kind        EventKind
	Detection   DetectionMethod
	_           [6]byte
	StackID     uint64
	DurationNS  uint64
	WorkerIndex uint32
	CPU         uint32
	Reserved    [16]byte
}

// RecordSize is the wire size of Record, asserted by TestRecordSize.
const RecordSize = 4 + 4 + 8 + 1 + 1 + 6 + 8 + 8 + 4 + 4 + 16

// HasStack reports whether the record carries a usable stack handle.
func (r Record) HasStack() bool { return r.StackID != NoStack }

// DecodeRecord parses a single fixed-layout record out of b, as read from
// the ring buffer. It never allocates beyond the returned value.
func DecodeRecord(b []byte) (Record, error) {
	if len(b) < RecordSize {
		return Record{}, fmt.Errorf("schema: short record: got %d bytes, want %d", len(b), RecordSize)
	}
	var r Record
	if err := binary.Read(bytes.NewReader(b[:RecordSize]), binary.LittleEndian, &r); err != nil {
		return Record{}, fmt.Errorf("schema: decode record: %w", err)
	}
	return r, nil
}

// Encode serializes r back to its wire layout. Used by tests and by the
// replay path when re-deriving events from an export.
func (r Record) Encode() []byte {
	buf := new(bytes.Buffer)
	buf.Grow(RecordSize)
	_ = binary.Write(buf, binary.LittleEndian, r)
	return buf.Bytes()
}

// StackKey is the map key used to look up a captured stack trace in the
// kernel-resident stack dictionary (C3).
type StackKey uint32

// ThreadKey is the map key used for per-thread state (worker set,
// scheduler state) in the kernel-resident maps (C3).
type ThreadKey uint32

// StackTrace is an ordered list of instruction pointers, innermost first,
// as captured by the kernel and handed to userspace through the stack
// dictionary.
type StackTrace struct {
	IPs [MaxStackDepth]uint64
	Len uint32
}

// Addresses returns the populated prefix of the stack trace.
func (s StackTrace) Addresses() []uint64 {
	n := int(s.Len)
	if n > len(s.IPs) {
		n = len(s.IPs)
	}
	return s.IPs[:n]
}

// ThreadState is the per-worker scheduler bookkeeping maintained
// exclusively by the scheduler tracepoint probe (C3).
type ThreadState struct {
	LastOnCPUNS  uint64
	LastOffCPUNS uint64
	State        ThreadRunState
}

// ThreadRunState mirrors the coarse state tags the sched_switch probe
// stores in thread_state (0 on CPU, 1 sleeping, 2 runnable).
type ThreadRunState uint8

const (
	StateRunning ThreadRunState = iota
	StateSleeping
	StateRunnable
	StateUnknown
)

// ConfigSingleton is the single configuration record written into the
// kernel-resident config map by the loader (C4) before attach.
type ConfigSingleton struct {
	TargetPID   uint32
	ThresholdNS uint64
	Flags       uint32
}

// Configuration flag bits stored in ConfigSingleton.Flags.
const (
	FlagMarkersEnabled uint32 = 1 << iota
	FlagSchedulerEnabled
	FlagSamplingEnabled
)
