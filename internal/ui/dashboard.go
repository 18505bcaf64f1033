// Package ui implements hud's three presentation surfaces: the live
// dashboard, headless mode, and replay (spec.md §4.7, C9).
package ui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/cong-or/hud/internal/aggregate"
)

// frameInterval targets the 60-FPS render budget of spec.md §4.7.
const frameInterval = time.Second / 60

// viewState is the dashboard's view machine (spec.md §4.7).
type viewState int

const (
	viewAnalysis viewState = iota
	viewDrillDown
	viewSearch
	viewWorkerFilter
)

func (v viewState) String() string {
	switch v {
	case viewDrillDown:
		return "drill-down"
	case viewSearch:
		return "search"
	case viewWorkerFilter:
		return "worker-filter"
	default:
		return "analysis"
	}
}

// Stats is the status-line data the pump/loader report back to the
// dashboard each frame (spec.md §4.7 status line).
type Stats struct {
	EventsSeen       int64
	EventsDropped    int64
	WorkerCount      int
	DebugInfoFrac    float64
	EventsPerSec     float64
	IncompleteFrames int64
	Replay           bool
}

// StatsFunc is polled once per frame to refresh the status line.
type StatsFunc func() Stats

// Model is the bubbletea model driving the live dashboard.
type Model struct {
	aggregator *aggregate.Aggregator
	statsFn    StatsFunc

	state  viewState
	cursor int

	searchQuery  string
	workerFilter map[uint32]bool

	snapshot aggregate.Snapshot
	stats    Stats

	width, height int
	quitting      bool
}

// New constructs a dashboard Model reading live data from aggregator and
// status counters from statsFn.
func New(aggregator *aggregate.Aggregator, statsFn StatsFunc) Model {
	return Model{
		aggregator:   aggregator,
		statsFn:      statsFn,
		state:        viewAnalysis,
		workerFilter: make(map[uint32]bool),
	}
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg { return frameMsg(t) })
}

type frameMsg time.Time

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case frameMsg:
		m.snapshot = m.aggregator.Snapshot(time.Time(msg))
		if m.statsFn != nil {
			m.stats = m.statsFn()
		}
		if m.cursor >= len(m.visibleHotspots()) {
			m.cursor = 0
		}
		return m, tick()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.state {
	case viewAnalysis:
		return m.handleAnalysisKey(msg)
	case viewDrillDown:
		if msg.Type == tea.KeyEsc {
			m.state = viewAnalysis
		}
		return m, nil
	case viewSearch:
		return m.handleSearchKey(msg)
	case viewWorkerFilter:
		return m.handleWorkerFilterKey(msg)
	}
	return m, nil
}

func (m Model) handleAnalysisKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit
	case "/":
		m.state = viewSearch
		m.searchQuery = ""
	case "w":
		m.state = viewWorkerFilter
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.visibleHotspots())-1 {
			m.cursor++
		}
	case "enter":
		if len(m.visibleHotspots()) > 0 {
			m.state = viewDrillDown
		}
	}
	return m, nil
}

func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.state = viewAnalysis
		m.searchQuery = ""
	case tea.KeyEnter:
		m.state = viewDrillDown
	case tea.KeyBackspace:
		if len(m.searchQuery) > 0 {
			m.searchQuery = m.searchQuery[:len(m.searchQuery)-1]
		}
	case tea.KeyRunes:
		m.searchQuery += string(msg.Runes)
		m.cursor = 0
	}
	return m, nil
}

func (m Model) handleWorkerFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc, tea.KeyEnter:
		m.state = viewAnalysis
	case tea.KeySpace:
		workers := m.discoveredWorkers()
		if m.cursor < len(workers) {
			w := workers[m.cursor]
			m.workerFilter[w] = !m.workerFilter[w]
		}
	case tea.KeyUp:
		if m.cursor > 0 {
			m.cursor--
		}
	case tea.KeyDown:
		if m.cursor < len(m.discoveredWorkers())-1 {
			m.cursor++
		}
	}
	return m, nil
}

// visibleHotspots applies the active search filter and, when any worker is
// checked in the worker-filter view, narrows the list to hotspots
// observed on at least one checked worker.
func (m Model) visibleHotspots() []aggregate.SnapshotHotspot {
	checked := m.checkedWorkers()
	var out []aggregate.SnapshotHotspot
	for _, h := range m.snapshot.Hotspots {
		if m.searchQuery != "" && !strings.Contains(strings.ToLower(hotspotLabel(h)), strings.ToLower(m.searchQuery)) {
			continue
		}
		if len(checked) > 0 && !anyWorkerIn(h.WorkerIDs, checked) {
			continue
		}
		out = append(out, h)
	}
	return out
}

func (m Model) checkedWorkers() map[uint32]bool {
	checked := make(map[uint32]bool)
	for w, on := range m.workerFilter {
		if on {
			checked[w] = true
		}
	}
	return checked
}

func anyWorkerIn(ids []uint32, set map[uint32]bool) bool {
	for _, id := range ids {
		if set[id] {
			return true
		}
	}
	return false
}

// discoveredWorkers returns the sorted union of worker IDs seen across
// every current hotspot, backing the worker-filter view's checklist.
func (m Model) discoveredWorkers() []uint32 {
	seen := make(map[uint32]struct{})
	for _, h := range m.snapshot.Hotspots {
		for _, w := range h.WorkerIDs {
			seen[w] = struct{}{}
		}
	}
	out := make([]uint32, 0, len(seen))
	for w := range seen {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func hotspotLabel(h aggregate.SnapshotHotspot) string {
	if len(h.Representative) == 0 {
		return h.Key
	}
	return h.Representative[0].FunctionName
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	switch m.state {
	case viewDrillDown:
		return m.renderDrillDown()
	case viewSearch:
		return m.renderList("search: " + m.searchQuery)
	case viewWorkerFilter:
		return m.renderWorkerFilter()
	default:
		return m.renderList("hud")
	}
}

func (m Model) renderHeader(title string) string {
	return styleHeader.Render(title)
}

func (m Model) renderStatusLine() string {
	indicator := "live"
	if m.stats.Replay {
		indicator = "replay"
	}
	return styleStatus.Render(fmt.Sprintf(
		"events=%d (%.1f/s) dropped=%d incomplete-frames=%d workers=%d hotspots=%d debug-info=%.0f%% [%s]",
		m.stats.EventsSeen, m.stats.EventsPerSec, m.stats.EventsDropped, m.stats.IncompleteFrames,
		m.stats.WorkerCount, len(m.snapshot.Hotspots), m.stats.DebugInfoFrac*100, indicator,
	))
}

func (m Model) renderList(title string) string {
	var b strings.Builder
	b.WriteString(m.renderHeader(title))
	b.WriteString("\n\n")

	hotspots := m.visibleHotspots()
	for i, h := range hotspots {
		row := fmt.Sprintf("%-8s %6dx  %s", formatDuration(h.TotalNS), h.HitCount, hotspotLabel(h))
		style := severityStyle(h.TotalNS)
		if i == m.cursor {
			style = styleSelected
		}
		b.WriteString(style.Render(row))
		b.WriteString("\n")
	}
	if len(hotspots) == 0 {
		b.WriteString(styleDim.Render("no hotspots observed yet"))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.renderStatusLine())
	return b.String()
}

func (m Model) renderDrillDown() string {
	hotspots := m.visibleHotspots()
	if m.cursor >= len(hotspots) {
		m.state = viewAnalysis
		return m.renderList("hud")
	}
	h := hotspots[m.cursor]

	var b strings.Builder
	b.WriteString(m.renderHeader("drill-down: " + hotspotLabel(h)))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "total:  %s\n", formatDuration(h.TotalNS))
	fmt.Fprintf(&b, "hits:   %d\n", h.HitCount)
	fmt.Fprintf(&b, "workers: %d\n", h.WorkerCount)
	fmt.Fprintf(&b, "first:  %s\n", h.FirstSeen.Format(time.RFC3339))
	fmt.Fprintf(&b, "last:   %s\n\n", h.LastSeen.Format(time.RFC3339))
	b.WriteString("stack:\n")
	for _, f := range h.Representative {
		label := f.FunctionName
		if !f.HasDebugInfo {
			label = styleDim.Render(label)
		}
		fmt.Fprintf(&b, "  %s (%s)\n", label, f.BinaryIdentity)
	}
	b.WriteString("\n")
	b.WriteString(styleStatus.Render("esc: back"))
	return b.String()
}

func (m Model) renderWorkerFilter() string {
	var b strings.Builder
	b.WriteString(m.renderHeader("worker filter"))
	b.WriteString("\n\n")
	workers := m.discoveredWorkers()
	if len(workers) == 0 {
		b.WriteString(styleDim.Render("no workers discovered yet"))
	}
	for i, w := range workers {
		mark := "[ ]"
		if m.workerFilter[w] {
			mark = "[x]"
		}
		row := fmt.Sprintf("%s worker %d", mark, w)
		style := stylePlain
		if i == m.cursor {
			style = styleSelected
		}
		b.WriteString(style.Render(row))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(styleStatus.Render("space: toggle  enter/esc: back"))
	return b.String()
}

func formatDuration(ns uint64) string {
	d := time.Duration(ns)
	switch {
	case d >= time.Second:
		return fmt.Sprintf("%.2fs", d.Seconds())
	case d >= time.Millisecond:
		return fmt.Sprintf("%.1fms", float64(d)/float64(time.Millisecond))
	default:
		return fmt.Sprintf("%dus", d.Microseconds())
	}
}
