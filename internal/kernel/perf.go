//go:build linux

package kernel

import (
	"fmt"

	"github.com/cilium/ebpf"
	"golang.org/x/sys/unix"
)

// sampleFrequencyHz is the fixed periodic CPU-sample rate (spec.md §4.1;
// no command-line flag changes it), matching ab30ed60's
// PerfEventOpen(..., PerfBitFreq).
const sampleFrequencyHz = 99

// openPerfSample opens a per-thread software CPU-clock perf event at
// sampleFrequencyHz, disabled until the BPF program is attached. Mirrors
// the retrieval pack's perf_event setup (cca01ac8, ab30ed60).
func openPerfSample(tid int) (int, error) {
	attr := unix.PerfEventAttr{
		Type:   unix.PERF_TYPE_SOFTWARE,
		Config: unix.PERF_COUNT_SW_CPU_CLOCK,
		Sample: sampleFrequencyHz,
		Bits:   unix.PerfBitFreq | unix.PerfBitDisabled,
	}
	fd, err := unix.PerfEventOpen(&attr, tid, -1, -1, 0)
	if err != nil {
		return -1, fmt.Errorf("kernel: perf_event_open tid=%d: %w", tid, err)
	}
	return fd, nil
}

// attachPerfIoctl attaches prog to an already-open perf event fd and
// enables it via the classic ioctl pair, for kernels whose cilium/ebpf
// version can't establish a bpf_link on PERF_EVENT.
func attachPerfIoctl(fd int, prog *ebpf.Program) error {
	if err := unix.IoctlSetInt(fd, unix.PERF_EVENT_IOC_SET_BPF, prog.FD()); err != nil {
		return fmt.Errorf("kernel: PERF_EVENT_IOC_SET_BPF: %w", err)
	}
	if err := unix.IoctlSetInt(fd, unix.PERF_EVENT_IOC_ENABLE, 0); err != nil {
		return fmt.Errorf("kernel: PERF_EVENT_IOC_ENABLE: %w", err)
	}
	return nil
}
