package ui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/cong-or/hud/internal/aggregate"
	"github.com/cong-or/hud/internal/symbol"
)

func seedAggregator() *aggregate.Aggregator {
	a := aggregate.New()
	now := time.Now()
	a.Observe(aggregate.Observation{
		Frames:      []symbol.ResolvedFrame{{FunctionName: "spin_loop", BinaryIdentity: "/bin/app", HasDebugInfo: true}},
		WorkerIndex: 1,
		DurationNS:  20_000_000,
		Timestamp:   now,
	})
	a.Observe(aggregate.Observation{
		Frames:      []symbol.ResolvedFrame{{FunctionName: "read_file", BinaryIdentity: "/bin/app", HasDebugInfo: true}},
		WorkerIndex: 2,
		DurationNS:  1_000_000,
		Timestamp:   now,
	})
	return a
}

func advance(m Model) Model {
	updated, _ := m.Update(frameMsg(time.Now()))
	return updated.(Model)
}

func TestDashboardAnalysisToSearchToDrillDown(t *testing.T) {
	m := New(seedAggregator(), nil)
	m = advance(m)
	require.Equal(t, viewAnalysis, m.state)

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("/")})
	m = updated.(Model)
	require.Equal(t, viewSearch, m.state)

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("spin")})
	m = updated.(Model)
	require.Equal(t, "spin", m.searchQuery)

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(Model)
	require.Equal(t, viewDrillDown, m.state)

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = updated.(Model)
	require.Equal(t, viewAnalysis, m.state)
}

func TestDashboardSearchFiltersHotspots(t *testing.T) {
	m := New(seedAggregator(), nil)
	m = advance(m)
	require.Len(t, m.visibleHotspots(), 2)

	m.state = viewSearch
	m.searchQuery = "spin"
	require.Len(t, m.visibleHotspots(), 1)
	require.Equal(t, "spin_loop", hotspotLabel(m.visibleHotspots()[0]))
}

func TestDashboardWorkerFilterNarrowsList(t *testing.T) {
	m := New(seedAggregator(), nil)
	m = advance(m)
	workers := m.discoveredWorkers()
	require.ElementsMatch(t, []uint32{1, 2}, workers)

	m.workerFilter[1] = true
	hotspots := m.visibleHotspots()
	require.Len(t, hotspots, 1)
	require.Equal(t, "spin_loop", hotspotLabel(hotspots[0]))
}

func TestDashboardQuitOnQ(t *testing.T) {
	m := New(seedAggregator(), nil)
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	m = updated.(Model)
	require.True(t, m.quitting)
	require.NotNil(t, cmd)
}

func TestSeverityStyleThresholds(t *testing.T) {
	require.Equal(t, styleGreen, severityStyle(5_000_000))
	require.Equal(t, styleAmber, severityStyle(20_000_000))
	require.Equal(t, styleRed, severityStyle(100_000_000))
}

func TestFormatDuration(t *testing.T) {
	require.Equal(t, "500us", formatDuration(500_000))
	require.Equal(t, "1.5ms", formatDuration(1_500_000))
	require.Equal(t, "2.00s", formatDuration(2_000_000_000))
}
