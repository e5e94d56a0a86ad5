package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/skillroute/internal/reload"
)

// LogLevel represents the severity of a log line.
type LogLevel string

const (
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
)

// PanelLogEntry is one line in the batch log.
type PanelLogEntry struct {
	Timestamp time.Time
	Level     LogLevel
	// SourceID is empty for batch summary lines.
	SourceID string
	Message  string
}

// LogsPanel displays a scrollable log of reload batches.
type LogsPanel struct {
	logs         []PanelLogEntry
	errorsOnly   bool
	scrollOffset int
	autoScroll   bool
	width        int
	height       int
	maxLogs      int

	titleStyle   lipgloss.Style
	filterStyle  lipgloss.Style
	infoStyle    lipgloss.Style
	warnStyle    lipgloss.Style
	errorStyle   lipgloss.Style
	timeStyle    lipgloss.Style
	sourceStyle  lipgloss.Style
	messageStyle lipgloss.Style
}

// NewLogsPanel creates a new LogsPanel instance.
func NewLogsPanel() *LogsPanel {
	return &LogsPanel{
		autoScroll: true,
		maxLogs:    500,
		width:      80,
		height:     12,

		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Padding(0, 1),

		filterStyle: lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1),

		infoStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")), // Green

		warnStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")), // Orange

		errorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")), // Red

		timeStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),

		sourceStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("63")), // Blue

		messageStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")),
	}
}

// AddBatch appends a summary line and one line per source outcome.
func (p *LogsPanel) AddBatch(b reload.BatchResult) {
	ts := b.FinishedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	level := LogLevelInfo
	if b.Count(reload.StateFailed) > 0 {
		level = LogLevelWarn
	}
	p.add(PanelLogEntry{
		Timestamp: ts,
		Level:     level,
		Message:   batchSummary(b),
	})
	for _, o := range b.Outcomes {
		p.add(outcomeEntry(ts, o))
	}
	if p.autoScroll {
		p.scrollToBottom()
	}
}

// AddLog appends a free-form line.
func (p *LogsPanel) AddLog(entry PanelLogEntry) {
	p.add(entry)
	if p.autoScroll {
		p.scrollToBottom()
	}
}

func (p *LogsPanel) add(entry PanelLogEntry) {
	p.logs = append(p.logs, entry)
	if len(p.logs) > p.maxLogs {
		p.logs = p.logs[len(p.logs)-p.maxLogs:]
	}
}

func batchSummary(b reload.BatchResult) string {
	id := b.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("batch %s: %d new, %d reloaded, %d removed, %d failed, %d unchanged",
		id,
		b.Count(reload.StateNew),
		b.Count(reload.StateReloaded),
		b.Count(reload.StateRemoved),
		b.Count(reload.StateFailed),
		b.Count(reload.StateUnchanged),
	)
}

func outcomeEntry(ts time.Time, o reload.Outcome) PanelLogEntry {
	entry := PanelLogEntry{
		Timestamp: ts,
		Level:     LogLevelInfo,
		SourceID:  o.SourceID,
		Message:   string(o.State),
	}
	if o.SkillName != "" {
		entry.Message += " " + o.SkillName
	}
	switch o.State {
	case reload.StateFailed:
		entry.Level = LogLevelError
		entry.Message += ": " + o.Reason
	case reload.StateRemoved:
		entry.Level = LogLevelWarn
	}
	return entry
}

// SetSize updates the panel dimensions.
func (p *LogsPanel) SetSize(width, height int) {
	p.width = width
	p.height = height
}

// Update handles scrolling and the failures-only toggle.
func (p *LogsPanel) Update(msg tea.Msg) (*LogsPanel, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return p, nil
	}
	switch key.String() {
	case "up":
		if p.scrollOffset > 0 {
			p.scrollOffset--
			p.autoScroll = false
		}
	case "down":
		if p.scrollOffset < len(p.filteredLogs())-p.visibleLines() {
			p.scrollOffset++
		}
		if p.scrollOffset >= len(p.filteredLogs())-p.visibleLines() {
			p.autoScroll = true
		}
	case "tab":
		p.errorsOnly = !p.errorsOnly
		p.scrollToBottom()
	}
	return p, nil
}

func (p *LogsPanel) visibleLines() int {
	lines := p.height - 4 // title and borders
	if lines < 1 {
		lines = 1
	}
	return lines
}

func (p *LogsPanel) scrollToBottom() {
	p.scrollOffset = len(p.filteredLogs()) - p.visibleLines()
	if p.scrollOffset < 0 {
		p.scrollOffset = 0
	}
}

func (p *LogsPanel) filteredLogs() []PanelLogEntry {
	if !p.errorsOnly {
		return p.logs
	}
	var out []PanelLogEntry
	for _, e := range p.logs {
		if e.Level == LogLevelError {
			out = append(out, e)
		}
	}
	return out
}

// View renders the panel.
func (p *LogsPanel) View() string {
	var b strings.Builder

	b.WriteString(p.titleStyle.Render("Reloads"))
	filter := " [all]"
	if p.errorsOnly {
		filter = " [failures]"
	}
	if p.autoScroll {
		filter += " (auto)"
	}
	b.WriteString(p.filterStyle.Render(filter))
	b.WriteString("\n")

	filtered := p.filteredLogs()
	if len(filtered) == 0 {
		b.WriteString(lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true).
			Render("  Waiting for changes"))
	} else {
		end := p.scrollOffset + p.visibleLines()
		if end > len(filtered) {
			end = len(filtered)
		}
		for i := p.scrollOffset; i < end; i++ {
			b.WriteString(p.renderLogLine(filtered[i]))
			b.WriteString("\n")
		}
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(p.width - 2).
		Height(p.height - 2).
		Render(b.String())
}

func (p *LogsPanel) renderLogLine(entry PanelLogEntry) string {
	parts := []string{p.timeStyle.Render(entry.Timestamp.Format("15:04:05"))}

	levelStyle := p.infoStyle
	levelIcon := "I"
	switch entry.Level {
	case LogLevelWarn:
		levelStyle = p.warnStyle
		levelIcon = "W"
	case LogLevelError:
		levelStyle = p.errorStyle
		levelIcon = "E"
	}
	parts = append(parts, levelStyle.Render(levelIcon))

	if entry.SourceID != "" {
		parts = append(parts, p.sourceStyle.Render("["+entry.SourceID+"]"))
	}

	maxMsgLen := p.width - 25
	if maxMsgLen < 20 {
		maxMsgLen = 20
	}
	msg := entry.Message
	if len(msg) > maxMsgLen {
		msg = msg[:maxMsgLen-3] + "..."
	}
	parts = append(parts, p.messageStyle.Render(msg))

	return strings.Join(parts, " ")
}

// LogCount returns the total number of lines.
func (p *LogsPanel) LogCount() int {
	return len(p.logs)
}

// FilteredCount returns the number of lines shown under the current filter.
func (p *LogsPanel) FilteredCount() int {
	return len(p.filteredLogs())
}
