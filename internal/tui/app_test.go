package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ShayCichocki/skillroute/internal/engine"
	"github.com/ShayCichocki/skillroute/internal/reload"
	"github.com/ShayCichocki/skillroute/pkg/models"
)

type fakeCatalogue struct {
	recs      []models.Recommendation
	err       error
	queries   []string
	statCalls int
}

func (f *fakeCatalogue) Recommend(task string, limit int) ([]models.Recommendation, error) {
	f.queries = append(f.queries, task)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.recs) > limit {
		return f.recs[:limit], nil
	}
	return f.recs, nil
}

func (f *fakeCatalogue) Stats() (*engine.Stats, error) {
	f.statCalls++
	return &engine.Stats{
		SnapshotVersion: uint64(f.statCalls),
		LoadedAt:        time.Now(),
		Skills:          2,
		Complexity:      map[string]int{"low": 2},
		Roles:           []models.AgentLoadState{{Role: models.RoleResearcher, Active: 1}},
	}, nil
}

func (f *fakeCatalogue) Profiles() []models.AgentProfile {
	return []models.AgentProfile{{Role: models.RoleResearcher, MaxConcurrent: 3}}
}

func newTestApp(cat *fakeCatalogue) (*WatchApp, chan reload.Event) {
	events := make(chan reload.Event, 1)
	return NewWatchApp(cat, events, "/tmp/skills"), events
}

func TestWatchApp_QueryRanksSkills(t *testing.T) {
	cat := &fakeCatalogue{recs: []models.Recommendation{
		{Skill: &models.Skill{Name: "email-integration"}, Score: 0.9},
		{Skill: &models.Skill{Name: "memory-search"}, Score: 0.3},
	}}
	app, _ := newTestApp(cat)

	app.Update(QuerySubmittedMsg{Task: "send email"})

	if len(app.Results()) != 2 {
		t.Fatalf("Results = %d, want 2", len(app.Results()))
	}
	if !strings.Contains(app.View(), "email-integration") {
		t.Error("View should list the ranked skill")
	}
}

func TestWatchApp_BatchRefreshesAndReranks(t *testing.T) {
	cat := &fakeCatalogue{}
	app, events := newTestApp(cat)
	app.Update(QuerySubmittedMsg{Task: "search memory"})

	_, cmd := app.Update(BatchMsg{Event: reload.Event{Batch: sampleBatch()}})

	if app.Batches() != 1 {
		t.Errorf("Batches = %d, want 1", app.Batches())
	}
	if len(cat.queries) != 2 {
		t.Errorf("Queries = %v, want the task ranked again after the batch", cat.queries)
	}
	if cat.statCalls != 2 {
		t.Errorf("Stats calls = %d, want 2", cat.statCalls)
	}
	if app.logs.LogCount() != 4 {
		t.Errorf("LogCount = %d, want 4", app.logs.LogCount())
	}
	if cmd == nil {
		t.Fatal("Batch should re-arm the event wait")
	}

	close(events)
	if _, ok := cmd().(EventsClosedMsg); !ok {
		t.Error("Closed channel should yield EventsClosedMsg")
	}
}

func TestWatchApp_RecommendError(t *testing.T) {
	cat := &fakeCatalogue{err: errors.New("registry not loaded")}
	app, _ := newTestApp(cat)

	app.Update(QuerySubmittedMsg{Task: "anything"})

	if app.Results() != nil {
		t.Error("Results should be cleared on error")
	}
	if !strings.Contains(app.footer.View(), "registry not loaded") {
		t.Error("Footer should show the error")
	}
}

func TestWatchApp_Quit(t *testing.T) {
	app, _ := newTestApp(&fakeCatalogue{})

	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEsc})

	if cmd == nil {
		t.Fatal("Esc should return a quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("Esc should quit")
	}
	if app.View() != "" {
		t.Error("View should be empty after quitting")
	}
}

func TestWatchApp_Resize(t *testing.T) {
	app, _ := newTestApp(&fakeCatalogue{})

	app.Update(tea.WindowSizeMsg{Width: 120, Height: 40})

	if app.input.width != 80 {
		t.Errorf("Input width = %d, want 80", app.input.width)
	}
	if app.logs.height != 18 {
		t.Errorf("Logs height = %d, want 18", app.logs.height)
	}
}
