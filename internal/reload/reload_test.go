package reload

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/skillroute/internal/ingest"
	"github.com/ShayCichocki/skillroute/internal/registry"
)

func doc(name, desc string, deps ...string) string {
	out := "---\nname: " + name + "\ndescription: " + desc + "\n"
	if len(deps) > 0 {
		out += "dependencies: ["
		for i, d := range deps {
			if i > 0 {
				out += ", "
			}
			out += d
		}
		out += "]\n"
	}
	return out + "---\n\nBody.\n"
}

func write(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
}

type fixture struct {
	root  string
	store *registry.Store
	bus   *Bus
	sup   *Supervisor
}

func setup(t *testing.T, debounce time.Duration) *fixture {
	t.Helper()
	root := t.TempDir()
	write(t, root, "email/SKILL.md", doc("email-integration", "Send email."))
	write(t, root, "memory/SKILL.md", doc("memory-search", "Search memory."))
	write(t, root, "docs.md", doc("documentation-system", "Generate docs.", "memory-search"))

	loader := ingest.NewLoader(ingest.LoaderOptions{Root: root})
	skills, _, err := loader.LoadAll(context.Background())
	require.NoError(t, err)

	store := registry.NewStore()
	store.Publish(registry.NewSnapshot(skills, nil, nil))

	bus := NewBus(nil)
	sup, err := New(loader, store, bus, Config{Debounce: debounce, Exclude: []string{"**/*.tmp", "scratch/**"}})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sup.Close()
		bus.Close()
	})
	return &fixture{root: root, store: store, bus: bus, sup: sup}
}

func names(t *testing.T, store *registry.Store) []string {
	t.Helper()
	snap, err := store.Current()
	require.NoError(t, err)
	var out []string
	for _, s := range snap.Skills() {
		out = append(out, s.Name)
	}
	return out
}

func TestFlush_BatchOutcomes(t *testing.T) {
	f := setup(t, time.Hour)

	// Touch without changing content.
	f.sup.Notify(filepath.Join(f.root, "email", "SKILL.md"), OpWrite)
	// Real change.
	write(t, f.root, "memory/SKILL.md", doc("memory-search", "Search long-term memory."))
	f.sup.Notify(filepath.Join(f.root, "memory", "SKILL.md"), OpWrite)
	// Removal.
	require.NoError(t, os.Remove(filepath.Join(f.root, "docs.md")))
	f.sup.Notify(filepath.Join(f.root, "docs.md"), OpRemove)
	// New source.
	write(t, f.root, "calendar/SKILL.md", doc("calendar-sync", "Sync calendar."))
	f.sup.Notify(filepath.Join(f.root, "calendar", "SKILL.md"), OpCreate)
	// Broken source.
	write(t, f.root, "broken/SKILL.md", "no front matter")
	f.sup.Notify(filepath.Join(f.root, "broken", "SKILL.md"), OpCreate)

	assert.Equal(t, 5, f.sup.Pending())
	assert.Equal(t, StateQueued, f.sup.Status()["memory"])

	result, ran, err := f.sup.Flush()
	require.NoError(t, err)
	require.True(t, ran)
	assert.NotEmpty(t, result.ID)

	byID := make(map[string]Outcome)
	for _, o := range result.Outcomes {
		byID[o.SourceID] = o
	}
	assert.Equal(t, StateUnchanged, byID["email"].State)
	assert.Equal(t, StateReloaded, byID["memory"].State)
	assert.Equal(t, StateRemoved, byID["docs"].State)
	assert.Equal(t, StateNew, byID["calendar"].State)
	assert.Equal(t, StateFailed, byID["broken"].State)
	assert.NotEmpty(t, byID["broken"].Reason)
	assert.True(t, result.Changed())

	assert.Equal(t, []string{"calendar-sync", "email-integration", "memory-search"}, names(t, f.store))
	snap, _ := f.store.Current()
	assert.Equal(t, result.SnapshotVersion, snap.Version())
	mem, _ := snap.Get("memory-search")
	assert.Equal(t, "Search long-term memory.", mem.Description)
	assert.Empty(t, snap.Graph().Dependents("memory-search"))

	assert.Zero(t, f.sup.Pending())
	assert.Equal(t, StateFailed, f.sup.Status()["broken"])

	_, ran, err = f.sup.Flush()
	require.NoError(t, err)
	assert.False(t, ran)
}

func TestFlush_MatchesFreshScan(t *testing.T) {
	f := setup(t, time.Hour)

	write(t, f.root, "webhook.md", doc("webhook-relay", "Relay webhooks.", "email-integration"))
	f.sup.Notify(filepath.Join(f.root, "webhook.md"), OpCreate)
	require.NoError(t, os.RemoveAll(filepath.Join(f.root, "memory")))
	f.sup.Notify(filepath.Join(f.root, "memory"), OpRemove)

	_, _, err := f.sup.Flush()
	require.NoError(t, err)

	fresh, _, err := ingest.NewLoader(ingest.LoaderOptions{Root: f.root}).LoadAll(context.Background())
	require.NoError(t, err)
	var want []string
	for _, s := range fresh {
		want = append(want, s.Name)
	}
	assert.Equal(t, want, names(t, f.store))

	snap, _ := f.store.Current()
	assert.Equal(t, []string{"email-integration"}, snap.Graph().Dependencies("webhook-relay"))
}

func TestFlush_DuplicateNameFails(t *testing.T) {
	f := setup(t, time.Hour)

	write(t, f.root, "copy/SKILL.md", doc("email-integration", "Another email skill."))
	f.sup.Notify(filepath.Join(f.root, "copy", "SKILL.md"), OpCreate)

	result, _, err := f.sup.Flush()
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, StateFailed, result.Outcomes[0].State)
	assert.Contains(t, result.Outcomes[0].Reason, "duplicate")

	snap, _ := f.store.Current()
	email, _ := snap.Get("email-integration")
	assert.Equal(t, "email", email.SourceID)
}

func TestRescan_WaitsForRunningBatch(t *testing.T) {
	f := setup(t, time.Hour)
	before, err := f.store.Current()
	require.NoError(t, err)

	// Hold the batch lock as an in-flight batch would.
	f.sup.reloadMu.Lock()
	write(t, f.root, "calendar/SKILL.md", doc("calendar-sync", "Sync calendar."))

	type rescanResult struct {
		snap *registry.Snapshot
		err  error
	}
	done := make(chan rescanResult, 1)
	go func() {
		snap, _, err := f.sup.Rescan(context.Background())
		done <- rescanResult{snap: snap, err: err}
	}()

	select {
	case <-done:
		f.sup.reloadMu.Unlock()
		t.Fatal("rescan published while a batch held the lock")
	case <-time.After(50 * time.Millisecond):
	}
	cur, _ := f.store.Current()
	assert.Equal(t, before.Version(), cur.Version())

	f.sup.reloadMu.Unlock()
	var res rescanResult
	select {
	case res = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("rescan did not finish")
	}
	require.NoError(t, res.err)
	assert.Greater(t, res.snap.Version(), before.Version())
	assert.Contains(t, names(t, f.store), "calendar-sync")
}

func TestRescan_LaterBatchBuildsOnRescan(t *testing.T) {
	f := setup(t, time.Hour)

	write(t, f.root, "memory/SKILL.md", doc("memory-search", "Search long-term memory."))
	f.sup.Notify(filepath.Join(f.root, "memory", "SKILL.md"), OpWrite)
	write(t, f.root, "calendar/SKILL.md", doc("calendar-sync", "Sync calendar."))

	snap, warnings, err := f.sup.Rescan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, 4, snap.Len())
	assert.Equal(t, 1, f.sup.Pending())

	result, ran, err := f.sup.Flush()
	require.NoError(t, err)
	require.True(t, ran)
	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, StateUnchanged, result.Outcomes[0].State)

	// The batch must not roll back what the rescan published.
	assert.Equal(t, []string{"calendar-sync", "documentation-system", "email-integration", "memory-search"}, names(t, f.store))
	cur, _ := f.store.Current()
	mem, _ := cur.Get("memory-search")
	assert.Equal(t, "Search long-term memory.", mem.Description)
}

func TestNotify_IgnoresUnrelatedPaths(t *testing.T) {
	f := setup(t, time.Hour)

	f.sup.Notify(filepath.Join(f.root, "email", "draft.tmp"), OpWrite)
	f.sup.Notify(filepath.Join(f.root, "scratch", "notes.md"), OpWrite)
	f.sup.Notify(filepath.Join(f.root, ".git", "HEAD"), OpWrite)
	f.sup.Notify(filepath.Join(filepath.Dir(f.root), "elsewhere.md"), OpWrite)
	assert.Zero(t, f.sup.Pending())

	// A missing source that was never loaded produces no outcome.
	f.sup.Notify("ghost.md", OpRemove)
	assert.Equal(t, 1, f.sup.Pending())
	result, ran, err := f.sup.Flush()
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Empty(t, result.Outcomes)
	assert.False(t, result.Changed())
}

func TestDebounce_PublishesOneEvent(t *testing.T) {
	f := setup(t, 30*time.Millisecond)
	events, unsubscribe := f.bus.Subscribe(4)
	defer unsubscribe()

	write(t, f.root, "calendar/SKILL.md", doc("calendar-sync", "Sync calendar."))
	for i := 0; i < 5; i++ {
		f.sup.Notify(filepath.Join(f.root, "calendar", "SKILL.md"), OpWrite)
	}

	var ev Event
	select {
	case ev = <-events:
	case <-time.After(2 * time.Second):
		t.Fatal("no reload event published")
	}
	require.Len(t, ev.Batch.Outcomes, 1)
	assert.Equal(t, StateNew, ev.Batch.Outcomes[0].State)
	_, ok := ev.Snapshot.Get("calendar-sync")
	assert.True(t, ok)

	select {
	case extra := <-events:
		t.Fatalf("unexpected second batch %s", extra.Batch.ID)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestStart_WatchesFilesystem(t *testing.T) {
	f := setup(t, 20*time.Millisecond)
	events, unsubscribe := f.bus.Subscribe(8)
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, f.sup.Start(ctx))

	write(t, f.root, "notify.md", doc("notify-hub", "Notify people."))

	require.Eventually(t, func() bool {
		snap, err := f.store.Current()
		if err != nil {
			return false
		}
		_, ok := snap.Get("notify-hub")
		return ok
	}, 3*time.Second, 20*time.Millisecond)

	select {
	case <-events:
	case <-time.After(time.Second):
		t.Fatal("no event published")
	}
}

func TestNew_InvalidExclude(t *testing.T) {
	loader := ingest.NewLoader(ingest.LoaderOptions{Root: t.TempDir()})
	_, err := New(loader, registry.NewStore(), nil, Config{Exclude: []string{"[unclosed"}})
	assert.ErrorIs(t, err, ErrInvalidPattern)
}

func TestClose_StopsFlush(t *testing.T) {
	f := setup(t, time.Hour)
	require.NoError(t, f.sup.Close())
	_, _, err := f.sup.Flush()
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, f.sup.Close())
}

func TestBus_FanOutAndUnsubscribe(t *testing.T) {
	bus := NewBus(nil)
	a, unsubA := bus.Subscribe(1)
	b, unsubB := bus.Subscribe(1)
	defer unsubB()

	bus.Publish(Event{Batch: BatchResult{ID: "one"}})
	assert.Equal(t, "one", (<-a).Batch.ID)
	assert.Equal(t, "one", (<-b).Batch.ID)

	unsubA()
	_, open := <-a
	assert.False(t, open)

	bus.Publish(Event{Batch: BatchResult{ID: "two"}})
	assert.Equal(t, "two", (<-b).Batch.ID)

	// b is full after this; the next publish is dropped for it.
	bus.Publish(Event{Batch: BatchResult{ID: "three"}})
	bus.Publish(Event{Batch: BatchResult{ID: "four"}})
	assert.Equal(t, uint64(1), bus.Dropped())

	bus.Close()
	bus.Publish(Event{Batch: BatchResult{ID: "five"}})
}
