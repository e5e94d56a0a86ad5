// Package registry holds the published skill catalogue.
//
// A Snapshot is an immutable view of the loaded skills together with the
// dependency graph derived from them. Writers build a new Snapshot and swap it
// into the Store; readers always see one consistent snapshot.
package registry

import (
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ShayCichocki/skillroute/internal/graph"
	"github.com/ShayCichocki/skillroute/internal/rules"
	"github.com/ShayCichocki/skillroute/pkg/models"
)

// ErrNotLoaded indicates a query arrived before any catalogue was published.
var ErrNotLoaded = errors.New("skill registry not loaded")

// FormatVersion is bumped whenever the persisted snapshot layout changes.
const FormatVersion = 1

// Snapshot is an immutable catalogue view.
type Snapshot struct {
	version  uint64
	skills   []*models.Skill
	byName   map[string]*models.Skill
	bySource map[string]*models.Skill
	graph    *graph.Graph
	loadedAt time.Time
}

// NewSnapshot builds a snapshot over skills in the given order and derives its
// dependency graph. Skills with a name already seen are ignored.
func NewSnapshot(skills []*models.Skill, tables *rules.Tables, logger *slog.Logger) *Snapshot {
	s := index(skills)
	s.graph = graph.Build(s.skills, tables, logger)
	return s
}

func index(skills []*models.Skill) *Snapshot {
	s := &Snapshot{
		byName:   make(map[string]*models.Skill, len(skills)),
		bySource: make(map[string]*models.Skill, len(skills)),
		loadedAt: time.Now(),
	}
	for _, sk := range skills {
		if sk == nil || s.byName[sk.Name] != nil {
			continue
		}
		s.skills = append(s.skills, sk)
		s.byName[sk.Name] = sk
		if sk.SourceID != "" {
			s.bySource[sk.SourceID] = sk
		}
	}
	return s
}

// Version is the publish sequence number assigned by the Store.
func (s *Snapshot) Version() uint64 { return s.version }

// LoadedAt is when the snapshot was built.
func (s *Snapshot) LoadedAt() time.Time { return s.loadedAt }

// Graph returns the dependency graph.
func (s *Snapshot) Graph() *graph.Graph { return s.graph }

// Len returns the number of skills.
func (s *Snapshot) Len() int { return len(s.skills) }

// Skills returns the skills in registry order.
func (s *Snapshot) Skills() []*models.Skill {
	return append([]*models.Skill(nil), s.skills...)
}

// Get returns a skill by name.
func (s *Snapshot) Get(name string) (*models.Skill, bool) {
	sk, ok := s.byName[name]
	return sk, ok
}

// BySource returns the skill loaded from a source identifier.
func (s *Snapshot) BySource(id string) (*models.Skill, bool) {
	sk, ok := s.bySource[id]
	return sk, ok
}

// Filter returns skills matching expr in registry order. Supported forms are
// "status:<status>", "tag:<tag>" and a plain case-insensitive substring of the
// name or description. An empty expression matches everything.
func (s *Snapshot) Filter(expr string) []*models.Skill {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return s.Skills()
	}

	var match func(*models.Skill) bool
	lower := strings.ToLower(expr)
	switch {
	case strings.HasPrefix(lower, "status:"):
		want := models.ParseSkillStatus(strings.TrimPrefix(lower, "status:"))
		match = func(sk *models.Skill) bool { return sk.Status == want }
	case strings.HasPrefix(lower, "tag:"):
		want := strings.TrimPrefix(lower, "tag:")
		match = func(sk *models.Skill) bool { return sk.HasTag(want) }
	default:
		match = func(sk *models.Skill) bool {
			return strings.Contains(strings.ToLower(sk.Name), lower) ||
				strings.Contains(strings.ToLower(sk.Description), lower)
		}
	}

	var out []*models.Skill
	for _, sk := range s.skills {
		if match(sk) {
			out = append(out, sk)
		}
	}
	return out
}

// Apply returns a new snapshot with per-source changes applied: entries in
// upserts replace or add the skill for that source, and removed sources are
// dropped. Skills are ordered by source path, the same order a full scan
// produces.
func (s *Snapshot) Apply(upserts map[string]*models.Skill, removed []string, tables *rules.Tables, logger *slog.Logger) *Snapshot {
	gone := make(map[string]bool, len(removed))
	for _, id := range removed {
		gone[id] = true
	}

	next := make([]*models.Skill, 0, len(s.skills)+len(upserts))
	for _, sk := range s.skills {
		if gone[sk.SourceID] {
			continue
		}
		if _, replaced := upserts[sk.SourceID]; replaced {
			continue
		}
		next = append(next, sk)
	}
	for _, sk := range upserts {
		next = append(next, sk)
	}
	sort.SliceStable(next, func(i, j int) bool {
		return next[i].SourcePath < next[j].SourcePath
	})
	return NewSnapshot(next, tables, logger)
}

// Persisted is the serialisable form of a snapshot.
type Persisted struct {
	Format   int                 `json:"format"`
	LoadedAt time.Time           `json:"loaded_at"`
	Skills   []*models.Skill     `json:"skills"`
	Graph    graph.ExportedGraph `json:"graph"`
}

// Persist returns the serialisable form of the snapshot.
func (s *Snapshot) Persist() Persisted {
	return Persisted{
		Format:   FormatVersion,
		LoadedAt: s.loadedAt,
		Skills:   s.Skills(),
		Graph:    s.graph.Export(),
	}
}

// FromPersisted restores a snapshot without re-deriving the graph.
func FromPersisted(p Persisted, logger *slog.Logger) *Snapshot {
	s := index(p.Skills)
	s.loadedAt = p.LoadedAt
	s.graph = graph.Restore(p.Graph, logger)
	return s
}

// Store publishes snapshots by atomic pointer swap.
type Store struct {
	current atomic.Pointer[Snapshot]
	seq     atomic.Uint64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// Publish makes snap the current snapshot and assigns its version.
func (st *Store) Publish(snap *Snapshot) *Snapshot {
	snap.version = st.seq.Add(1)
	st.current.Store(snap)
	return snap
}

// Current returns the published snapshot or ErrNotLoaded.
func (st *Store) Current() (*Snapshot, error) {
	snap := st.current.Load()
	if snap == nil {
		return nil, ErrNotLoaded
	}
	return snap, nil
}

// Loaded reports whether a snapshot has been published.
func (st *Store) Loaded() bool {
	return st.current.Load() != nil
}
