package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/skillroute/internal/compose"
	"github.com/ShayCichocki/skillroute/internal/config"
	"github.com/ShayCichocki/skillroute/internal/recommend"
	"github.com/ShayCichocki/skillroute/internal/registry"
	"github.com/ShayCichocki/skillroute/internal/reload"
	"github.com/ShayCichocki/skillroute/internal/router"
	"github.com/ShayCichocki/skillroute/pkg/models"
)

const (
	emailDoc = `---
name: email-integration
description: Send messages over SMTP.
status: production
tags: [domain:email, action:send]
---

Body.
`
	memoryDoc = `---
name: memory-search
description: Search long-term memory for stored notes.
status: development
tags: [domain:memory, action:search]
---

Body.
`
	docsDoc = `---
name: documentation-system
description: Produce structured write-ups.
status: development
dependencies: [memory-search]
tags: [action:generate]
---

Body.
`
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
}

func skillRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "email/SKILL.md", emailDoc)
	writeFile(t, root, "memory/SKILL.md", memoryDoc)
	writeFile(t, root, "docs.md", docsDoc)
	return root
}

func testConfig(t *testing.T, root string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Skills.Root = root
	cfg.Cache.Path = filepath.Join(t.TempDir(), "cache.db")
	cfg.Watch.Debounce = 20 * time.Millisecond
	return cfg
}

func openEngine(t *testing.T, cfg *config.Config) *Engine {
	t.Helper()
	e, err := Open(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestQueriesBeforeLoad(t *testing.T) {
	e := openEngine(t, testConfig(t, skillRoot(t)))

	_, err := e.Search("memory", recommend.Options{})
	assert.ErrorIs(t, err, registry.ErrNotLoaded)
	_, err = e.Route(context.Background(), "search memory", router.Options{})
	assert.ErrorIs(t, err, registry.ErrNotLoaded)
	_, err = e.Stats()
	assert.ErrorIs(t, err, registry.ErrNotLoaded)
}

func TestEnsure_UsesFreshCache(t *testing.T) {
	root := skillRoot(t)
	cfg := testConfig(t, root)

	first, err := Open(cfg, nil)
	require.NoError(t, err)
	res, err := first.Ensure(context.Background())
	require.NoError(t, err)
	assert.False(t, res.FromCache)
	assert.Equal(t, 3, res.Skills)
	require.NoError(t, first.Close())

	second := openEngine(t, cfg)
	res, err = second.Ensure(context.Background())
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Equal(t, 3, res.Skills)

	snap, err := second.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, []string{"memory-search"}, snap.Graph().Dependencies("documentation-system"))
}

func TestEnsure_RescansStaleCache(t *testing.T) {
	root := skillRoot(t)
	cfg := testConfig(t, root)

	first, err := Open(cfg, nil)
	require.NoError(t, err)
	_, err = first.Ensure(context.Background())
	require.NoError(t, err)
	require.NoError(t, first.Close())

	writeFile(t, root, "memory/SKILL.md", memoryDoc+"\nMore body.\n")

	second := openEngine(t, cfg)
	res, err := second.Ensure(context.Background())
	require.NoError(t, err)
	assert.False(t, res.FromCache)
	assert.Equal(t, 3, res.Skills)
}

func TestEnsure_WithoutCache(t *testing.T) {
	cfg := testConfig(t, skillRoot(t))
	cfg.Cache.Path = ""
	e := openEngine(t, cfg)

	res, err := e.Ensure(context.Background())
	require.NoError(t, err)
	assert.False(t, res.FromCache)

	st, err := e.Stats()
	require.NoError(t, err)
	assert.Empty(t, st.RecentBatches)
}

func TestScan_InaccessibleRoot(t *testing.T) {
	e := openEngine(t, testConfig(t, filepath.Join(t.TempDir(), "missing")))
	_, err := e.Scan(context.Background())
	assert.Error(t, err)
}

func TestOpen_BadRulesFile(t *testing.T) {
	cfg := testConfig(t, skillRoot(t))
	cfg.Rules.File = filepath.Join(t.TempDir(), "absent.yaml")
	_, err := Open(cfg, nil)
	assert.Error(t, err)
}

func TestSearchRecommendCompose(t *testing.T) {
	e := openEngine(t, testConfig(t, skillRoot(t)))
	_, err := e.Ensure(context.Background())
	require.NoError(t, err)

	results, err := e.Search("search memory", recommend.Options{})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "memory-search", results[0].Skill.Name)
	assert.Empty(t, results[0].Reasoning)

	recs, err := e.Recommend("send email", 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "email-integration", recs[0].Skill.Name)
	assert.NotEmpty(t, recs[0].Reasoning)

	intent := e.Intent("send email")
	assert.Equal(t, []string{"send"}, intent.Verbs)
	assert.Equal(t, []string{"email"}, intent.Domains)

	plan, err := e.Compose("send email", compose.Options{})
	require.NoError(t, err)
	require.Len(t, plan.Steps, 1)
	assert.Equal(t, "email-integration", plan.Steps[0].SkillName)
}

func TestList(t *testing.T) {
	e := openEngine(t, testConfig(t, skillRoot(t)))
	_, err := e.Ensure(context.Background())
	require.NoError(t, err)

	all, err := e.List("")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	prod, err := e.List("status:production")
	require.NoError(t, err)
	require.Len(t, prod, 1)
	assert.Equal(t, "email-integration", prod[0].Name)
}

func TestRouteAndClearCache(t *testing.T) {
	cfg := testConfig(t, skillRoot(t))
	e := openEngine(t, cfg)
	_, err := e.Ensure(context.Background())
	require.NoError(t, err)

	d, err := e.Route(context.Background(), "search memory", router.Options{})
	require.NoError(t, err)
	require.Equal(t, models.RoutingRouted, d.Status)
	require.NotEmpty(t, d.Assignments)
	assert.Equal(t, "memory-search", d.Assignments[0].SkillName)
	for _, role := range d.Slots {
		require.NoError(t, e.ReportCompletion(role, time.Second, true))
	}

	st, err := e.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, st.CacheEntries)

	require.NoError(t, e.ClearCache())
	st, err = e.Stats()
	require.NoError(t, err)
	assert.Zero(t, st.CacheEntries)

	// The persisted snapshot is gone too.
	other := openEngine(t, cfg)
	res, err := other.Ensure(context.Background())
	require.NoError(t, err)
	assert.False(t, res.FromCache)
}

func TestDispatch(t *testing.T) {
	e := openEngine(t, testConfig(t, skillRoot(t)))
	_, err := e.Ensure(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	d, err := e.Dispatch(ctx, "send email", router.Options{})
	require.NoError(t, err)
	assert.Equal(t, models.RoutingRouted, d.Status)
}

func TestStats(t *testing.T) {
	e := openEngine(t, testConfig(t, skillRoot(t)))
	_, err := e.Ensure(context.Background())
	require.NoError(t, err)

	st, err := e.Stats()
	require.NoError(t, err)
	assert.Equal(t, 3, st.Skills)
	assert.Equal(t, 1, st.ByStatus[models.SkillStatusProduction])
	assert.Equal(t, 2, st.ByStatus[models.SkillStatusDevelopment])
	assert.Equal(t, 3, st.Complexity["low"]+st.Complexity["medium"]+st.Complexity["high"])
	assert.Equal(t, 1, st.Edges)
	assert.Empty(t, st.Cycles)
	assert.Contains(t, st.Leaves, "memory-search")
	assert.NotContains(t, st.Roots, "memory-search")
	assert.Contains(t, st.Roots, "documentation-system")
	assert.Len(t, st.Roles, len(router.DefaultProfiles()))
}

func TestWatch_AppliesAndRecordsBatches(t *testing.T) {
	root := skillRoot(t)
	e := openEngine(t, testConfig(t, root))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, unsubscribe, err := e.Watch(ctx)
	require.NoError(t, err)
	defer unsubscribe()

	_, err = e.Route(context.Background(), "search memory", router.Options{})
	require.NoError(t, err)

	writeFile(t, root, "calendar.md", `---
name: calendar-sync
description: Sync calendar events.
---

Body.
`)

	var ev reload.Event
	require.Eventually(t, func() bool {
		select {
		case ev = <-events:
			return ev.Batch.Count(reload.StateNew) > 0
		default:
			return false
		}
	}, 3*time.Second, 10*time.Millisecond)

	_, ok := ev.Snapshot.Get("calendar-sync")
	assert.True(t, ok)

	require.Eventually(t, func() bool {
		st, err := e.Stats()
		return err == nil && len(st.RecentBatches) > 0 && st.CacheEntries == 0
	}, 3*time.Second, 10*time.Millisecond)

	skills, err := e.List("calendar")
	require.NoError(t, err)
	assert.Len(t, skills, 1)
	assert.Contains(t, []reload.State{reload.StateNew, reload.StateReloaded, reload.StateUnchanged}, e.ReloadStatus()["calendar"])
}

func TestClose(t *testing.T) {
	e, err := Open(testConfig(t, skillRoot(t)), nil)
	require.NoError(t, err)
	require.NoError(t, e.Close())
	require.NoError(t, e.Close())

	_, err = e.Scan(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	_, _, err = e.Watch(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}
