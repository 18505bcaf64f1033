package symbol

import (
	"fmt"
	"os"

	"github.com/google/pprof/profile"
)

// MapEntry describes one mapped region of a process's address space, as
// parsed once at attach time from /proc/<pid>/maps (spec.md §3, C6's
// memory-map entry).
type MapEntry struct {
	Start      uint64
	End        uint64
	FileOffset uint64
	Path       string
	Executable bool
}

// Contains reports whether ip falls within [Start, End).
func (m MapEntry) Contains(ip uint64) bool {
	return ip >= m.Start && ip < m.End
}

// ParseMaps snapshots the target's memory map. It is called exactly once,
// at profiling start, per spec.md §3's lifecycle note: the profiler does
// not track later mmap/munmap activity in the target.
//
// Parsing is delegated to google/pprof's own /proc/<pid>/maps reader so
// the hot path shares exactly the mapping semantics pprof-producing tools
// in the ecosystem already rely on.
func ParseMaps(pid int) ([]MapEntry, error) {
	path := fmt.Sprintf("/proc/%d/maps", pid)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("symbol: open %s: %w", path, err)
	}
	defer f.Close()

	mappings, err := profile.ParseProcMaps(f)
	if err != nil {
		return nil, fmt.Errorf("symbol: parse %s: %w", path, err)
	}

	entries := make([]MapEntry, 0, len(mappings))
	for _, m := range mappings {
		if m.File == "" {
			continue
		}
		entries = append(entries, MapEntry{
			Start:      m.Start,
			End:        m.Limit,
			FileOffset: m.Offset,
			Path:       m.File,
			Executable: true,
		})
	}
	return entries, nil
}

// findMap returns the entry containing ip, or false if none matches
// (spec.md §4.4 step 1).
func findMap(entries []MapEntry, ip uint64) (MapEntry, bool) {
	for _, e := range entries {
		if e.Contains(ip) {
			return e, true
		}
	}
	return MapEntry{}, false
}
