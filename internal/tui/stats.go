package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/skillroute/internal/engine"
	"github.com/ShayCichocki/skillroute/pkg/models"
)

// StatsView displays registry totals, graph shape and per-role load.
type StatsView struct {
	stats    *engine.Stats
	capacity map[models.Role]int
	width    int
	height   int

	labelStyle    lipgloss.Style
	valueStyle    lipgloss.Style
	headerStyle   lipgloss.Style
	progressFull  lipgloss.Style
	progressEmpty lipgloss.Style
	warningStyle  lipgloss.Style
	mutedStyle    lipgloss.Style
}

// NewStatsView creates a StatsView. profiles supply per-role capacity for the
// load bars.
func NewStatsView(profiles []models.AgentProfile) *StatsView {
	capacity := make(map[models.Role]int, len(profiles))
	for _, p := range profiles {
		capacity[p.Role] = p.MaxConcurrent
	}
	return &StatsView{
		capacity: capacity,
		width:    40,
		height:   20,

		labelStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(12),

		valueStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Bold(true),

		headerStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("15")).
			Bold(true).
			MarginBottom(1),

		progressFull: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")),

		progressEmpty: lipgloss.NewStyle().
			Foreground(lipgloss.Color("238")),

		warningStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")),

		mutedStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true),
	}
}

// SetStats replaces the displayed stats.
func (s *StatsView) SetStats(st *engine.Stats) {
	s.stats = st
}

// SetSize updates the view dimensions.
func (s *StatsView) SetSize(width, height int) {
	s.width = width
	s.height = height
}

// View renders the stats panel.
func (s *StatsView) View() string {
	var b strings.Builder

	b.WriteString(s.headerStyle.Render("Registry"))
	b.WriteString("\n")

	if s.stats == nil {
		b.WriteString(s.mutedStyle.Render("  No snapshot loaded"))
		return s.frame(b.String())
	}
	st := s.stats

	b.WriteString(s.renderRow("Version:", s.valueStyle.Render(fmt.Sprintf("%d", st.SnapshotVersion))))
	b.WriteString("\n")
	b.WriteString(s.renderRow("Loaded:", s.valueStyle.Render(formatAge(time.Since(st.LoadedAt)))))
	b.WriteString("\n")
	b.WriteString(s.renderRow("Skills:", s.valueStyle.Render(fmt.Sprintf("%d", st.Skills))))
	b.WriteString("\n")
	b.WriteString(s.renderRow("Edges:", s.valueStyle.Render(fmt.Sprintf("%d", st.Edges))))
	b.WriteString("\n")

	cycles := s.valueStyle.Render("0")
	if len(st.Cycles) > 0 {
		cycles = s.warningStyle.Render(fmt.Sprintf("%d", len(st.Cycles)))
	}
	b.WriteString(s.renderRow("Cycles:", cycles))
	b.WriteString("\n")
	b.WriteString(s.renderRow("Cached:", s.valueStyle.Render(fmt.Sprintf("%d routes", st.CacheEntries))))
	b.WriteString("\n\n")

	b.WriteString(s.labelStyle.Render("Complexity"))
	b.WriteString("\n")
	for _, bucket := range []string{"low", "medium", "high"} {
		n := st.Complexity[bucket]
		pct := 0.0
		if st.Skills > 0 {
			pct = float64(n) / float64(st.Skills) * 100
		}
		b.WriteString(fmt.Sprintf("  %-7s %s %d\n", bucket, s.renderProgressBar(pct, s.barWidth()), n))
	}

	b.WriteString("\n")
	b.WriteString(s.labelStyle.Render("Roles"))
	b.WriteString("\n")
	for _, r := range st.Roles {
		b.WriteString(s.renderRole(r))
		b.WriteString("\n")
	}

	return s.frame(b.String())
}

func (s *StatsView) frame(content string) string {
	return lipgloss.NewStyle().
		Padding(1, 2).
		Width(s.width).
		Render(content)
}

func (s *StatsView) barWidth() int {
	w := s.width - 24
	if w < 5 {
		w = 5
	}
	if w > 20 {
		w = 20
	}
	return w
}

func (s *StatsView) renderRole(r models.AgentLoadState) string {
	limit := s.capacity[r.Role]
	pct := 0.0
	if limit > 0 {
		pct = float64(r.Active) / float64(limit) * 100
	}
	line := fmt.Sprintf("  %-10s %s %d/%d", r.Role, s.renderProgressBar(pct, s.barWidth()), r.Active, limit)
	if r.Failed > 0 {
		line += " " + s.warningStyle.Render(fmt.Sprintf("%d failed", r.Failed))
	}
	return line
}

func (s *StatsView) renderRow(label, value string) string {
	return s.labelStyle.Render(label) + " " + value
}

// renderProgressBar renders a progress bar.
func (s *StatsView) renderProgressBar(pct float64, width int) string {
	if pct > 100 {
		pct = 100
	}
	if pct < 0 {
		pct = 0
	}

	filled := int(pct / 100 * float64(width))
	empty := width - filled

	fullStyle := s.progressFull
	if pct >= 100 {
		fullStyle = s.warningStyle
	}

	return fullStyle.Render(strings.Repeat("█", filled)) +
		s.progressEmpty.Render(strings.Repeat("░", empty))
}

// formatAge renders a duration the way the header clock does.
func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh%dm ago", int(d.Hours()), int(d.Minutes())%60)
	}
}
