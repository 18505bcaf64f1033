//go:build linux

package main

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/prometheus/procfs"
	"golang.org/x/sys/unix"

	"github.com/cong-or/hud/internal/humanize"
	"github.com/cong-or/hud/internal/procstat"
)

// hostSummaryLine prints a one-line host banner ahead of attach, the way
// the teacher's cmd/consumption prints a host/kernel/cpu/mem header
// before its sampling loop starts. Boot time comes from procfs (C9,
// status-line host summary); kernel release comes from uname since
// procfs exposes no direct equivalent.
func hostSummaryLine() string {
	host, _ := os.Hostname()

	var uts unix.Utsname
	release := "unknown"
	if err := unix.Uname(&uts); err == nil {
		release = cstr(uts.Release[:])
	}

	uptime := "unknown"
	mem := "unknown"
	if fs, err := procfs.NewDefaultFS(); err == nil {
		if stat, err := fs.Stat(); err == nil && stat.BootTime > 0 {
			uptime = time.Since(time.Unix(int64(stat.BootTime), 0)).Round(time.Second).String()
		}
		if mi, err := fs.Meminfo(); err == nil && mi.MemTotal != nil {
			mem = humanize.Bytes(*mi.MemTotal * 1024).String()
		}
	}

	return fmt.Sprintf("hud — host=%s kernel=%s cpus=%d mem=%s uptime=%s", host, release, runtime.NumCPU(), mem, uptime)
}

// targetCPUPercent samples the target process's CPU-time counters twice
// across a short window and returns its utilization (spec.md C9
// Supplemented features: target process CPU% alongside the blocking
// hotspot view).
func targetCPUPercent(pid int, window time.Duration) float64 {
	first, err := procstat.Read(pid)
	if err != nil {
		return 0
	}
	time.Sleep(window)
	second, err := procstat.Read(pid)
	if err != nil {
		return 0
	}
	return procstat.Percent(first, second, procstat.ClockTicks())
}

func cstr(b []byte) string {
	n := 0
	for n < len(b) && b[n] != 0 {
		n++
	}
	return string(b[:n])
}
