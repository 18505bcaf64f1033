package ui

import "github.com/charmbracelet/lipgloss"

// Severity thresholds for hotspot coloration (spec.md §4.7): green below
// 10ms total blocking attributed to a site, amber 10-50ms, red above.
const (
	severityAmberThresholdNS = 10_000_000
	severityRedThresholdNS   = 50_000_000
)

var (
	styleGreen = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	styleAmber = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	styleRed   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)

	styleHeader   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("236")).Padding(0, 1)
	styleStatus   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	styleSelected = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("39"))
	styleDim      = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	stylePlain    = lipgloss.NewStyle()
)

// severityStyle picks the coloration for a hotspot's total blocking time.
func severityStyle(totalNS uint64) lipgloss.Style {
	switch {
	case totalNS >= severityRedThresholdNS:
		return styleRed
	case totalNS >= severityAmberThresholdNS:
		return styleAmber
	default:
		return styleGreen
	}
}
