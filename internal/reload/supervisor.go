// Package reload keeps the published registry in step with the skill sources
// on disk.
//
// Filesystem changes are mapped to source identifiers and collected in a
// pending set. A single debounce timer turns a burst of changes into one
// batch. Batches never overlap: each re-ingests its sources, publishes a new
// registry snapshot with a rebuilt dependency graph, and announces the result
// on the Bus.
package reload

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"
	"github.com/google/uuid"

	"github.com/ShayCichocki/skillroute/internal/ingest"
	"github.com/ShayCichocki/skillroute/internal/registry"
	"github.com/ShayCichocki/skillroute/internal/rules"
	"github.com/ShayCichocki/skillroute/pkg/models"
)

// DefaultDebounce batches changes arriving within this window.
const DefaultDebounce = 500 * time.Millisecond

var (
	// ErrInvalidPattern indicates an exclude pattern could not be compiled.
	ErrInvalidPattern = errors.New("invalid exclude pattern")
	// ErrClosed indicates the supervisor has been closed.
	ErrClosed = errors.New("reload supervisor closed")
)

// Op is the kind of filesystem change reported for a path.
type Op string

const (
	OpCreate Op = "create"
	OpWrite  Op = "write"
	OpRemove Op = "remove"
	OpRename Op = "rename"
)

// State is the reload state of one source.
type State string

const (
	StateUnchanged State = "unchanged"
	StateQueued    State = "queued"
	StateReloading State = "reloading"
	StateReloaded  State = "reloaded"
	StateNew       State = "new"
	StateRemoved   State = "removed"
	StateFailed    State = "failed"
)

// Outcome is the result for one source in a batch.
type Outcome struct {
	SourceID  string `json:"source_id"`
	Op        Op     `json:"op"`
	State     State  `json:"state"`
	SkillName string `json:"skill_name,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// BatchResult summarises one reload pass.
type BatchResult struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Outcomes   []Outcome `json:"outcomes"`
	// SnapshotVersion is the registry version current after the batch.
	SnapshotVersion uint64 `json:"snapshot_version"`
}

// Count returns the number of outcomes in state st.
func (b BatchResult) Count(st State) int {
	n := 0
	for _, o := range b.Outcomes {
		if o.State == st {
			n++
		}
	}
	return n
}

// Changed reports whether the batch altered the registry.
func (b BatchResult) Changed() bool {
	return b.Count(StateNew)+b.Count(StateReloaded)+b.Count(StateRemoved) > 0
}

// Event is published on the Bus after every batch.
type Event struct {
	Batch    BatchResult
	Snapshot *registry.Snapshot
}

// Config configures a Supervisor.
type Config struct {
	// Debounce defaults to DefaultDebounce.
	Debounce time.Duration
	// Exclude holds glob patterns (with '/' separators) matched against paths
	// relative to the skills root.
	Exclude []string
	// Rules are used to rebuild the dependency graph. Defaults to rules.Default().
	Rules  *rules.Tables
	Logger *slog.Logger
}

// Supervisor watches skill sources and republishes the registry on change.
type Supervisor struct {
	loader   *ingest.Loader
	store    *registry.Store
	bus      *Bus
	rules    *rules.Tables
	excludes []glob.Glob
	debounce time.Duration
	logger   *slog.Logger

	// mu protects pending, states, timer and closed.
	mu      sync.Mutex
	pending map[string]Op
	states  map[string]State
	timer   *time.Timer
	closed  bool

	// reloadMu serialises batches.
	reloadMu sync.Mutex

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// New creates a Supervisor.
func New(loader *ingest.Loader, store *registry.Store, bus *Bus, cfg Config) (*Supervisor, error) {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Rules == nil {
		cfg.Rules = rules.Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	excludes, err := compileExcludes(cfg.Exclude)
	if err != nil {
		return nil, err
	}

	return &Supervisor{
		loader:   loader,
		store:    store,
		bus:      bus,
		rules:    cfg.Rules,
		excludes: excludes,
		debounce: cfg.Debounce,
		logger:   cfg.Logger,
		pending:  make(map[string]Op),
		states:   make(map[string]State),
		done:     make(chan struct{}),
	}, nil
}

func compileExcludes(patterns []string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, errors.Join(ErrInvalidPattern, fmt.Errorf("%q: %w", p, err))
		}
		out = append(out, g)
	}
	return out, nil
}

// relative maps an absolute or root-relative path to a slash-separated path
// under the root. ok is false for paths outside the root.
func (s *Supervisor) relative(path string) (string, bool) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.loader.Root(), path)
	}
	rel, err := filepath.Rel(s.loader.Root(), path)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || len(rel) > 2 && rel[:3] == "../" {
		return "", false
	}
	return rel, true
}

func (s *Supervisor) excluded(rel string) bool {
	for _, g := range s.excludes {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

// Notify records a change to path and (re)arms the debounce timer. Paths
// outside the root, excluded paths and paths that cannot back a skill are
// ignored. The latest op for a source wins.
func (s *Supervisor) Notify(path string, op Op) {
	rel, ok := s.relative(path)
	if !ok || s.excluded(rel) {
		return
	}
	id := ingest.SourceID(rel)
	if id == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	s.pending[id] = op
	s.states[id] = StateQueued
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, func() {
		if _, _, err := s.Flush(); err != nil && !errors.Is(err, ErrClosed) {
			s.logger.Error("reload batch failed", "error", err)
		}
	})
}

// Pending returns the number of queued sources.
func (s *Supervisor) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Status returns the last known state of every source seen by the supervisor.
func (s *Supervisor) Status() map[string]State {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]State, len(s.states))
	for id, st := range s.states {
		out[id] = st
	}
	return out
}

// Flush runs a batch over the pending set immediately. The boolean is false
// when there was nothing to do. A batch already in progress finishes first.
func (s *Supervisor) Flush() (BatchResult, bool, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return BatchResult{}, false, ErrClosed
	}
	pending := s.pending
	s.pending = make(map[string]Op)
	for id := range pending {
		s.states[id] = StateReloading
	}
	s.mu.Unlock()

	if len(pending) == 0 {
		return BatchResult{}, false, nil
	}

	result := s.runBatch(pending)

	s.mu.Lock()
	for _, o := range result.Outcomes {
		s.states[o.SourceID] = o.State
	}
	for id := range pending {
		if s.states[id] == StateReloading {
			delete(s.states, id)
		}
	}
	s.mu.Unlock()

	s.logger.Info("reload batch complete",
		"batch", result.ID,
		"new", result.Count(StateNew),
		"reloaded", result.Count(StateReloaded),
		"removed", result.Count(StateRemoved),
		"failed", result.Count(StateFailed),
		"unchanged", result.Count(StateUnchanged),
	)
	return result, true, nil
}

// Rescan ingests every source and publishes a fresh snapshot. It holds the
// batch lock, so a reload batch either sees the rescanned snapshot or is
// replaced by it, never the reverse. Pending changes stay queued.
func (s *Supervisor) Rescan(ctx context.Context) (*registry.Snapshot, []ingest.Warning, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	skills, warnings, err := s.loader.LoadAll(ctx)
	if err != nil {
		return nil, nil, err
	}
	snap := s.store.Publish(registry.NewSnapshot(skills, s.rules, s.logger))
	return snap, warnings, nil
}

// runBatch processes sources in identifier order and publishes the result.
func (s *Supervisor) runBatch(pending map[string]Op) BatchResult {
	result := BatchResult{ID: uuid.NewString(), StartedAt: time.Now()}

	snap, err := s.store.Current()
	if err != nil {
		snap = registry.NewSnapshot(nil, s.rules, s.logger)
	}

	ids := make([]string, 0, len(pending))
	for id := range pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	upserts := make(map[string]*models.Skill)
	var removed []string
	claimed := make(map[string]string)

	for _, id := range ids {
		op := pending[id]
		prev, existed := snap.BySource(id)

		src, ok := s.loader.Resolve(id)
		if !ok {
			if existed {
				removed = append(removed, id)
				result.Outcomes = append(result.Outcomes, Outcome{SourceID: id, Op: op, State: StateRemoved, SkillName: prev.Name})
			}
			continue
		}

		if existed {
			if hash, err := s.loader.Hash(src); err == nil && hash == prev.ContentHash {
				result.Outcomes = append(result.Outcomes, Outcome{SourceID: id, Op: op, State: StateUnchanged, SkillName: prev.Name})
				continue
			}
		}

		skill, err := s.loader.Load(id)
		if err != nil {
			s.logger.Warn("skill reload failed", "source", id, "error", err)
			result.Outcomes = append(result.Outcomes, Outcome{SourceID: id, Op: op, State: StateFailed, Reason: err.Error()})
			continue
		}

		if owner := nameOwner(snap, skill.Name, id, claimed, pending); owner != "" {
			reason := fmt.Sprintf("duplicate skill name %q (owned by source %s)", skill.Name, owner)
			result.Outcomes = append(result.Outcomes, Outcome{SourceID: id, Op: op, State: StateFailed, SkillName: skill.Name, Reason: reason})
			continue
		}
		claimed[skill.Name] = id
		upserts[id] = skill

		state := StateReloaded
		if !existed {
			state = StateNew
		}
		result.Outcomes = append(result.Outcomes, Outcome{SourceID: id, Op: op, State: state, SkillName: skill.Name})
	}

	if len(upserts) > 0 || len(removed) > 0 {
		snap = s.store.Publish(snap.Apply(upserts, removed, s.rules, s.logger))
	}
	result.SnapshotVersion = snap.Version()
	result.FinishedAt = time.Now()

	if s.bus != nil {
		s.bus.Publish(Event{Batch: result, Snapshot: snap})
	}
	return result
}

// nameOwner returns the source already owning name, or "" when id may use
// it. An owner that is itself queued in this batch does not block the name.
func nameOwner(snap *registry.Snapshot, name, id string, claimed map[string]string, pending map[string]Op) string {
	if owner, ok := claimed[name]; ok && owner != id {
		return owner
	}
	existing, ok := snap.Get(name)
	if !ok || existing.SourceID == id {
		return ""
	}
	if _, queued := pending[existing.SourceID]; queued {
		return ""
	}
	return existing.SourceID
}

// Start begins watching the skills root recursively. Events are fed to
// Notify until ctx ends or Close is called.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.watcher != nil {
		s.mu.Unlock()
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("create watcher: %w", err)
	}
	s.watcher = w
	s.mu.Unlock()

	if err := s.addRecursive(s.loader.Root()); err != nil {
		return err
	}

	s.wg.Add(1)
	go s.watch(ctx)
	s.logger.Info("watching skills", "root", s.loader.Root(), "debounce", s.debounce)
	return nil
}

// addRecursive adds dir and its subdirectories, skipping excluded and hidden ones.
func (s *Supervisor) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if rel, ok := s.relative(path); ok && rel != "." {
			if s.excluded(rel) || d.Name()[0] == '.' {
				return filepath.SkipDir
			}
		}
		if err := s.watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func (s *Supervisor) watch(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := s.addRecursive(ev.Name); err != nil {
						s.logger.Warn("watch new directory", "path", ev.Name, "error", err)
					}
				}
			}
			s.Notify(ev.Name, mapOp(ev.Op))
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("watcher error", "error", err)
		}
	}
}

// opMappings maps fsnotify operations in priority order.
var opMappings = []struct {
	fs fsnotify.Op
	op Op
}{
	{fsnotify.Create, OpCreate},
	{fsnotify.Write, OpWrite},
	{fsnotify.Remove, OpRemove},
	{fsnotify.Rename, OpRename},
	{fsnotify.Chmod, OpWrite},
}

func mapOp(op fsnotify.Op) Op {
	for _, m := range opMappings {
		if op.Has(m.fs) {
			return m.op
		}
	}
	return OpWrite
}

// Close stops the watcher and the debounce timer. Pending changes are
// discarded; a batch in progress finishes first.
func (s *Supervisor) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	w := s.watcher
	s.mu.Unlock()

	close(s.done)
	var err error
	if w != nil {
		err = w.Close()
	}
	s.wg.Wait()

	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()
	return err
}
