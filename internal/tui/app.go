package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/skillroute/internal/engine"
	"github.com/ShayCichocki/skillroute/internal/reload"
	"github.com/ShayCichocki/skillroute/pkg/models"
)

// resultLimit caps the ranked skills shown for a task.
const resultLimit = 5

// Catalogue is the read side of the engine the watch view needs.
type Catalogue interface {
	Recommend(task string, limit int) ([]models.Recommendation, error)
	Stats() (*engine.Stats, error)
	Profiles() []models.AgentProfile
}

// BatchMsg carries one reload event into the program.
type BatchMsg struct {
	Event reload.Event
}

// EventsClosedMsg is sent when the event channel closes.
type EventsClosedMsg struct{}

// waitForEvent blocks on the next reload event.
func waitForEvent(events <-chan reload.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return EventsClosedMsg{}
		}
		return BatchMsg{Event: ev}
	}
}

// WatchApp is the bubbletea model for the watch view.
type WatchApp struct {
	catalogue Catalogue
	events    <-chan reload.Event

	header  *Header
	footer  *Footer
	input   *InputField
	logs    *LogsPanel
	stats   *StatsView
	spinner spinner.Model

	query   string
	results []models.Recommendation
	batches int
	closed  bool

	width    int
	height   int
	quitting bool

	resultStyle lipgloss.Style
	scoreStyle  lipgloss.Style
	mutedStyle  lipgloss.Style
}

// NewWatchApp creates the watch view over catalogue, fed by events.
func NewWatchApp(catalogue Catalogue, events <-chan reload.Event, root string) *WatchApp {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#4ECDC4"))

	a := &WatchApp{
		catalogue: catalogue,
		events:    events,
		header:    NewHeader(root),
		footer:    NewFooter(),
		input:     NewInputField(),
		logs:      NewLogsPanel(),
		stats:     NewStatsView(catalogue.Profiles()),
		spinner:   sp,
		width:     100,
		height:    30,

		resultStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")),
		scoreStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")).
			Bold(true),
		mutedStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true),
	}
	a.refreshStats()
	return a
}

// Init implements tea.Model.
func (a *WatchApp) Init() tea.Cmd {
	return tea.Batch(a.spinner.Tick, waitForEvent(a.events), a.input.Focus())
}

// Update implements tea.Model.
func (a *WatchApp) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc", "ctrl+c":
			a.quitting = true
			return a, tea.Quit
		case "up", "down", "tab":
			a.logs.Update(msg)
			return a, nil
		}
		var cmd tea.Cmd
		a.input, cmd = a.input.Update(msg)
		return a, cmd

	case tea.WindowSizeMsg:
		a.resize(msg.Width, msg.Height)
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case QuerySubmittedMsg:
		a.query = msg.Task
		a.rank()
		return a, nil

	case BatchMsg:
		a.batches++
		a.logs.AddBatch(msg.Event.Batch)
		a.refreshStats()
		if a.query != "" {
			a.rank()
		}
		return a, waitForEvent(a.events)

	case EventsClosedMsg:
		a.closed = true
		a.footer.SetMessage("watcher stopped", true)
		return a, nil
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

func (a *WatchApp) rank() {
	recs, err := a.catalogue.Recommend(a.query, resultLimit)
	if err != nil {
		a.results = nil
		a.footer.SetMessage(err.Error(), true)
		return
	}
	a.results = recs
	a.footer.SetMessage(fmt.Sprintf("%d matches for %q", len(recs), a.query), false)
}

func (a *WatchApp) refreshStats() {
	st, err := a.catalogue.Stats()
	if err != nil {
		a.footer.SetMessage(err.Error(), true)
		return
	}
	a.stats.SetStats(st)
}

func (a *WatchApp) resize(width, height int) {
	a.width = width
	a.height = height

	statsWidth := width / 3
	if statsWidth < 30 {
		statsWidth = 30
	}
	mainWidth := width - statsWidth
	if mainWidth < 20 {
		mainWidth = 20
	}

	a.header.SetWidth(width)
	a.footer.SetWidth(width)
	a.input.SetWidth(mainWidth)
	a.stats.SetSize(statsWidth, height-4)

	logsHeight := (height - 4) / 2
	if logsHeight < 6 {
		logsHeight = 6
	}
	a.logs.SetSize(mainWidth, logsHeight)
}

// View implements tea.Model.
func (a *WatchApp) View() string {
	if a.quitting {
		return ""
	}

	main := lipgloss.JoinVertical(lipgloss.Left,
		a.input.View(),
		a.viewResults(),
		a.logs.View(),
	)
	body := lipgloss.JoinHorizontal(lipgloss.Top, main, a.stats.View())

	return lipgloss.JoinVertical(lipgloss.Left,
		a.header.View(a.spinner.View()),
		body,
		a.footer.View(),
	)
}

func (a *WatchApp) viewResults() string {
	if a.query == "" {
		return a.mutedStyle.Render("  No task entered") + "\n"
	}
	if len(a.results) == 0 {
		return a.mutedStyle.Render("  No skill matches "+fmt.Sprintf("%q", a.query)) + "\n"
	}

	var b strings.Builder
	for i, r := range a.results {
		b.WriteString(fmt.Sprintf("  %d. %s %s\n",
			i+1,
			a.scoreStyle.Render(fmt.Sprintf("%.2f", r.Score)),
			a.resultStyle.Render(r.Skill.Name),
		))
	}
	return b.String()
}

// Results returns the ranked skills for the current task.
func (a *WatchApp) Results() []models.Recommendation {
	return a.results
}

// Batches returns the number of reload batches received.
func (a *WatchApp) Batches() int {
	return a.batches
}
