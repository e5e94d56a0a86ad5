// Package engine wires the skill registry, recommendation, composition,
// routing and hot-reload components into one facade for the CLI.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/ShayCichocki/skillroute/internal/compose"
	"github.com/ShayCichocki/skillroute/internal/config"
	"github.com/ShayCichocki/skillroute/internal/ingest"
	"github.com/ShayCichocki/skillroute/internal/recommend"
	"github.com/ShayCichocki/skillroute/internal/registry"
	"github.com/ShayCichocki/skillroute/internal/reload"
	"github.com/ShayCichocki/skillroute/internal/router"
	"github.com/ShayCichocki/skillroute/internal/rules"
	"github.com/ShayCichocki/skillroute/internal/state"
	"github.com/ShayCichocki/skillroute/pkg/models"
)

// ErrClosed is returned by operations on a closed engine.
var ErrClosed = errors.New("engine closed")

const (
	eventBuffer      = 16
	dispatchInterval = 100 * time.Millisecond
)

// ScanResult describes how the registry was populated.
type ScanResult struct {
	Skills   int
	Warnings []ingest.Warning
	// FromCache is true when the persisted snapshot was still current and no
	// source was parsed.
	FromCache bool
	Duration  time.Duration
}

// Engine owns every component for one skills root.
type Engine struct {
	cfg      *config.Config
	loader   *ingest.Loader
	store    *registry.Store
	scorer   *recommend.Scorer
	composer *compose.Composer
	router   *router.Router
	balancer *router.Balancer
	bus      *reload.Bus
	reloader *reload.Supervisor
	db       state.Store
	logger   *slog.Logger

	// cached is the snapshot restored from the cache at Open, if any.
	cached *registry.Snapshot

	mu     sync.Mutex
	closed bool

	unsubscribe func()
	wg          sync.WaitGroup
}

// Open builds an engine from cfg. The snapshot cache is optional: when it
// cannot be opened the engine logs a warning and runs without it.
func Open(cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	tables := rules.Default()
	if cfg.Rules.File != "" {
		t, err := rules.LoadFile(cfg.Rules.File)
		if err != nil {
			return nil, err
		}
		tables = t
	}

	root, err := filepath.Abs(cfg.Skills.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve skills root: %w", err)
	}

	weights := recommend.DefaultWeights()
	if cfg.Recommend.ProductionBoost > 0 {
		weights.ProductionBoost = cfg.Recommend.ProductionBoost
	}

	e := &Engine{
		cfg:    cfg,
		store:  registry.NewStore(),
		logger: logger,
	}
	e.loader = ingest.NewLoader(ingest.LoaderOptions{
		Root:     root,
		Patterns: cfg.Skills.Patterns,
		Rules:    tables,
		Logger:   logger.With("component", "ingest"),
	})
	e.scorer = recommend.NewScorer(tables, weights)
	e.composer = compose.New(e.scorer, compose.Config{
		MatchFloor: cfg.Compose.MatchFloor,
		Durations: compose.LinearDuration{
			BaseSeconds:          cfg.Compose.StepBaseSeconds,
			PerComplexitySeconds: cfg.Compose.StepPerComplexitySeconds,
		},
		Logger: logger.With("component", "compose"),
	})
	e.router = router.New(e.store, e.scorer, e.composer, router.Config{
		Profiles:    cfg.Router.Roles,
		DefaultRole: models.Role(cfg.Router.DefaultRole),
		CacheTTL:    cfg.Router.CacheTTL,
		CacheSize:   cfg.Router.CacheSize,
		MatchFloor:  cfg.Compose.MatchFloor,
		Logger:      logger.With("component", "router"),
	})
	e.balancer = router.NewBalancer(e.router, dispatchInterval, 1)
	e.bus = reload.NewBus(logger.With("component", "bus"))
	e.reloader, err = reload.New(e.loader, e.store, e.bus, reload.Config{
		Debounce: cfg.Watch.Debounce,
		Exclude:  cfg.Watch.Exclude,
		Rules:    tables,
		Logger:   logger.With("component", "reload"),
	})
	if err != nil {
		return nil, err
	}

	if cfg.Cache.Path != "" {
		e.openCache(cfg.Cache.Path)
	}

	events, unsubscribe := e.bus.Subscribe(eventBuffer)
	e.unsubscribe = unsubscribe
	e.wg.Add(1)
	go e.consume(events)

	return e, nil
}

func (e *Engine) openCache(path string) {
	db, err := state.Open(path)
	if err != nil {
		e.logger.Warn("snapshot cache unavailable", "path", path, "error", err)
		return
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		e.logger.Warn("snapshot cache unavailable", "path", path, "error", err)
		return
	}
	e.db = db

	p, err := db.LoadSnapshot()
	if err != nil {
		e.logger.Warn("discarding unreadable snapshot cache", "error", err)
		return
	}
	if p != nil {
		e.cached = registry.FromPersisted(*p, e.logger.With("component", "graph"))
	}
}

// consume reacts to reload batches.
func (e *Engine) consume(events <-chan reload.Event) {
	defer e.wg.Done()
	for ev := range events {
		if ev.Batch.Changed() {
			e.router.ClearCache()
			e.persist(ev.Snapshot)
		}
		if e.db == nil || len(ev.Batch.Outcomes) == 0 {
			continue
		}
		rec := state.BatchRecord{
			ID:         ev.Batch.ID,
			StartedAt:  ev.Batch.StartedAt,
			FinishedAt: ev.Batch.FinishedAt,
			New:        ev.Batch.Count(reload.StateNew),
			Reloaded:   ev.Batch.Count(reload.StateReloaded),
			Removed:    ev.Batch.Count(reload.StateRemoved),
			Failed:     ev.Batch.Count(reload.StateFailed),
			Unchanged:  ev.Batch.Count(reload.StateUnchanged),
		}
		if err := e.db.RecordBatch(rec); err != nil {
			e.logger.Warn("record reload batch", "batch", rec.ID, "error", err)
		}
	}
}

func (e *Engine) persist(snap *registry.Snapshot) {
	if e.db == nil || snap == nil {
		return
	}
	if err := e.db.SaveSnapshot(snap.Persist()); err != nil {
		e.logger.Warn("persist snapshot", "error", err)
	}
}

// Root returns the absolute skills root.
func (e *Engine) Root() string {
	return e.loader.Root()
}

// Scan ingests every source, publishes a fresh snapshot and persists it.
func (e *Engine) Scan(ctx context.Context) (ScanResult, error) {
	if err := e.checkOpen(); err != nil {
		return ScanResult{}, err
	}
	start := time.Now()
	// Shares the reload batch lock so a concurrent batch cannot republish
	// an older snapshot over this one.
	snap, warnings, err := e.reloader.Rescan(ctx)
	if err != nil {
		return ScanResult{}, err
	}
	e.router.ClearCache()
	e.persist(snap)

	res := ScanResult{
		Skills:   snap.Len(),
		Warnings: warnings,
		Duration: time.Since(start),
	}
	e.logger.Info("scan complete", "root", e.Root(), "skills", res.Skills, "skipped", len(warnings), "took", res.Duration)
	return res, nil
}

// Ensure makes sure a snapshot is published. A cached snapshot is used when
// every source on disk still matches it; otherwise the root is scanned.
func (e *Engine) Ensure(ctx context.Context) (ScanResult, error) {
	if err := e.checkOpen(); err != nil {
		return ScanResult{}, err
	}
	if snap, err := e.store.Current(); err == nil {
		return ScanResult{Skills: snap.Len(), FromCache: true}, nil
	}

	start := time.Now()
	if e.cached != nil && e.fresh(e.cached) {
		snap := e.store.Publish(e.cached)
		e.cached = nil
		e.logger.Debug("using cached snapshot", "skills", snap.Len())
		return ScanResult{Skills: snap.Len(), FromCache: true, Duration: time.Since(start)}, nil
	}
	e.cached = nil
	return e.Scan(ctx)
}

// fresh reports whether snap covers exactly the sources on disk with the
// same content.
func (e *Engine) fresh(snap *registry.Snapshot) bool {
	sources, err := e.loader.Discover()
	if err != nil || len(sources) != snap.Len() {
		return false
	}
	for _, src := range sources {
		sk, ok := snap.BySource(src.ID)
		if !ok || sk.SourcePath != src.Path {
			return false
		}
		hash, err := e.loader.Hash(src)
		if err != nil || hash != sk.ContentHash {
			return false
		}
	}
	return true
}

// Snapshot returns the current registry snapshot.
func (e *Engine) Snapshot() (*registry.Snapshot, error) {
	return e.store.Current()
}

// Search ranks skills against free text. Zero option values fall back to the
// configured defaults.
func (e *Engine) Search(query string, opts recommend.Options) ([]models.Recommendation, error) {
	snap, err := e.store.Current()
	if err != nil {
		return nil, err
	}
	if opts.Limit == 0 {
		opts.Limit = e.cfg.Recommend.Limit
	}
	if opts.MinScore == 0 {
		opts.MinScore = e.cfg.Recommend.MinScore
	}
	return e.scorer.Search(query, snap, opts), nil
}

// Recommend ranks skills for a task with reasoning attached.
func (e *Engine) Recommend(task string, limit int) ([]models.Recommendation, error) {
	snap, err := e.store.Current()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = e.cfg.Recommend.Limit
	}
	return e.scorer.Recommend(task, snap, recommend.Options{Limit: limit, MinScore: e.cfg.Recommend.MinScore}), nil
}

// Intent extracts the vocabulary verbs and domains from text.
func (e *Engine) Intent(text string) recommend.Intent {
	return e.scorer.ExtractIntent(text)
}

// Compose builds an execution plan for goal.
func (e *Engine) Compose(goal string, opts compose.Options) (*models.ExecutionPlan, error) {
	snap, err := e.store.Current()
	if err != nil {
		return nil, err
	}
	return e.composer.Compose(goal, snap, opts), nil
}

// Route routes task once. A no-capacity decision is returned immediately.
func (e *Engine) Route(ctx context.Context, task string, opts router.Options) (*models.RoutingDecision, error) {
	return e.router.Route(ctx, task, opts)
}

// Dispatch routes task, waiting for capacity until ctx ends.
func (e *Engine) Dispatch(ctx context.Context, task string, opts router.Options) (*models.RoutingDecision, error) {
	return e.balancer.Dispatch(ctx, task, opts)
}

// ReportCompletion releases one slot of role.
func (e *Engine) ReportCompletion(role models.Role, duration time.Duration, success bool) error {
	return e.router.ReportCompletion(role, duration, success)
}

// Profiles returns the configured worker roles.
func (e *Engine) Profiles() []models.AgentProfile {
	return e.router.Profiles()
}

// List returns skills matching filter (see registry.Snapshot.Filter).
func (e *Engine) List(filter string) ([]*models.Skill, error) {
	snap, err := e.store.Current()
	if err != nil {
		return nil, err
	}
	return snap.Filter(filter), nil
}

// ClearCache drops cached routing decisions and the persisted snapshot.
func (e *Engine) ClearCache() error {
	e.router.ClearCache()
	e.cached = nil
	if e.db == nil {
		return nil
	}
	return e.db.DeleteSnapshots()
}

// Watch starts the hot-reload supervisor and returns a subscription to its
// batch events. The returned function unsubscribes.
func (e *Engine) Watch(ctx context.Context) (<-chan reload.Event, func(), error) {
	if err := e.checkOpen(); err != nil {
		return nil, nil, err
	}
	if _, err := e.Ensure(ctx); err != nil {
		return nil, nil, err
	}
	events, unsubscribe := e.bus.Subscribe(eventBuffer)
	if err := e.reloader.Start(ctx); err != nil {
		unsubscribe()
		return nil, nil, err
	}
	return events, unsubscribe, nil
}

// ReloadStatus returns the per-source reload states.
func (e *Engine) ReloadStatus() map[string]reload.State {
	return e.reloader.Status()
}

// Close stops watching, drains the event consumer and closes the cache.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	errs := []error{e.reloader.Close()}
	e.unsubscribe()
	e.bus.Close()
	e.wg.Wait()
	if e.db != nil {
		errs = append(errs, e.db.Close())
	}
	return errors.Join(errs...)
}

func (e *Engine) checkOpen() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	return nil
}
