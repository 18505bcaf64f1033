//go:build linux

package kernel

import "errors"

// Sentinel errors surfaced by Loader, matching spec.md §7's exit-code
// taxonomy (capability failure, target-gone, attach-fatal).
var (
	// ErrCapability means the process lacks CAP_BPF/CAP_PERFMON or the
	// kernel was built without the needed BPF features.
	ErrCapability = errors.New("kernel: insufficient capability to load BPF programs")

	// ErrTargetGone means the target PID exited before or during attach.
	ErrTargetGone = errors.New("kernel: target process exited before attach completed")

	// ErrAttachFatal means the sched_switch tracepoint failed to attach, so
	// no scheduler-path detection is possible (as opposed to a per-worker
	// sampler or a best-effort uprobe being unavailable, which only warns).
	ErrAttachFatal = errors.New("kernel: scheduler tracepoint could not be attached")
)
