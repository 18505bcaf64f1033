// Package humanize formats raw counters for the status line and startup
// banner, adapted from the teacher's pkg/types.Bytes (spec.md C9 status
// line, Supplemented features: host-summary memory readout).
package humanize

import "fmt"

// Bytes is a size in bytes with a human-readable rendering.
type Bytes uint64

// String returns an automatic-unit rendering (B, KB, MB, GB, TB).
func (b Bytes) String() string {
	const unit = 1024
	v := float64(b)
	switch {
	case b >= 1<<40:
		return fmt.Sprintf("%.2f TB", v/(1<<40))
	case b >= 1<<30:
		return fmt.Sprintf("%.2f GB", v/(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.2f MB", v/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.2f KB", v/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
