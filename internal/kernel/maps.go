//go:build linux

package kernel

import (
	"encoding/binary"
	"fmt"

	"github.com/cilium/ebpf"
	"github.com/cong-or/hud/internal/schema"
)

// writeConfig installs the single configuration record read by every
// kernel-resident probe (spec.md §3 Configuration singleton, C3/C4).
func writeConfig(m *ebpf.Map, cfg schema.ConfigSingleton) error {
	var zero uint32
	value := struct {
		TargetPID   uint32
		ThresholdNS uint64
		Flags       uint32
	}{cfg.TargetPID, cfg.ThresholdNS, cfg.Flags}
	if err := m.Update(&zero, &value, ebpf.UpdateAny); err != nil {
		return fmt.Errorf("kernel: write config: %w", err)
	}
	return nil
}

// addWorker marks tid as a worker thread in the kernel-resident worker
// set; presence of the key is the only thing that matters (C3).
func addWorker(m *ebpf.Map, tid uint32) error {
	var present uint8 = 1
	if err := m.Update(&tid, &present, ebpf.UpdateAny); err != nil {
		return fmt.Errorf("kernel: add worker %d: %w", tid, err)
	}
	return nil
}

// removeWorker deletes tid from the worker set, e.g. once a thread exits.
func removeWorker(m *ebpf.Map, tid uint32) error {
	if err := m.Delete(&tid); err != nil {
		return fmt.Errorf("kernel: remove worker %d: %w", tid, err)
	}
	return nil
}

// lookupStack resolves a stack handle captured by bpf_get_stackid into its
// ordered instruction-pointer list (C3 stack-trace dictionary).
func lookupStack(m *ebpf.Map, id uint32) (schema.StackTrace, error) {
	raw := make([]byte, schema.MaxStackDepth*8)
	if err := m.Lookup(&id, &raw); err != nil {
		return schema.StackTrace{}, fmt.Errorf("kernel: lookup stack %d: %w", id, err)
	}
	return decodeStackBytes(raw), nil
}

// decodeStackBytes turns a raw BPF_MAP_TYPE_STACK_TRACE value into a
// StackTrace, stopping at the first all-zero slot: the kernel never
// populates a hole partway through a captured stack.
func decodeStackBytes(raw []byte) schema.StackTrace {
	var trace schema.StackTrace
	n := 0
	for i := 0; i < schema.MaxStackDepth && (i+1)*8 <= len(raw); i++ {
		ip := binary.LittleEndian.Uint64(raw[i*8 : i*8+8])
		if ip == 0 {
			break
		}
		trace.IPs[i] = ip
		n++
	}
	trace.Len = uint32(n)
	return trace
}
