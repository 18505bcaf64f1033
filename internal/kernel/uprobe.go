//go:build linux

package kernel

import (
	"fmt"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
)

// attachMarkerUprobe attaches prog to symbol inside the executable backing
// pid, if the target exports that symbol. Returning an error here is
// expected and non-fatal: markers are a best-effort detection method
// (spec.md §4.2, Non-goals), so callers fall back to scheduler/sample
// detection when this fails.
func attachMarkerUprobe(pid int, symbol string, prog *ebpf.Program) (link.Link, error) {
	exe, err := link.OpenExecutable(fmt.Sprintf("/proc/%d/exe", pid))
	if err != nil {
		return nil, fmt.Errorf("kernel: open executable for uprobe: %w", err)
	}
	l, err := exe.Uprobe(symbol, prog, nil)
	if err != nil {
		return nil, fmt.Errorf("kernel: attach uprobe %s: %w", symbol, err)
	}
	return l, nil
}
