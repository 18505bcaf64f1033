//go:build linux

// Package procstat samples a target process's CPU-time counters from
// /proc/<pid>/stat, adapted from the teacher's pkg/system/proc reader to
// surface the profiled process's own CPU utilization on hud's startup
// banner (spec.md C9, Supplemented features).
package procstat

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cong-or/hud/pkg/system/util"
)

// Sample holds the two CPU-time counters Read reports, in
// jiffies (clock ticks), at one point in time.
type Sample struct {
	UTime uint64
	STime uint64
	At    time.Time
}

// ClockTicks returns jiffies per second, honoring CLK_TCK for tests and
// falling back to the common 100Hz default (no cgo sysconf in pure Go).
func ClockTicks() int {
	if v, _ := strconv.Atoi(os.Getenv("CLK_TCK")); v > 0 {
		return v
	}
	return 100
}

// Read parses /proc/<pid>/stat and extracts the utime/stime fields.
// comm (the 2nd field) is parenthesized and may itself contain spaces or
// closing parens, so everything up to the last ") " is skipped rather
// than split on whitespace directly.
func Read(pid int) (Sample, error) {
	f, err := os.Open(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return Sample{}, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		return Sample{}, fmt.Errorf("procstat: empty stat for pid %d", pid)
	}
	line := sc.Text()

	i := strings.LastIndex(line, ") ")
	if i < 0 {
		return Sample{}, fmt.Errorf("procstat: malformed stat for pid %d", pid)
	}
	fields := strings.Fields(line[i+2:])
	if len(fields) < 13 {
		return Sample{}, fmt.Errorf("procstat: short stat for pid %d", pid)
	}

	utime, err := strconv.ParseUint(fields[11], 10, 64)
	if err != nil {
		return Sample{}, err
	}
	stime, err := strconv.ParseUint(fields[12], 10, 64)
	if err != nil {
		return Sample{}, err
	}
	return Sample{UTime: utime, STime: stime, At: time.Now()}, nil
}

// Percent computes CPU utilization between two samples as a percentage
// of one core; the result is not clamped, so a process busy on several
// cores reports more than 100. Negative or zero elapsed time returns 0.
func Percent(prev, cur Sample, clockTicks int) float64 {
	elapsed := cur.At.Sub(prev.At).Seconds()
	if elapsed <= 0 || clockTicks <= 0 {
		return 0
	}
	deltaTicks := util.DeltaU64(cur.UTime, prev.UTime) + util.DeltaU64(cur.STime, prev.STime)
	return 100 * util.SafeDiv(float64(deltaTicks), float64(clockTicks)) / elapsed
}
