package engine

import (
	"time"

	"github.com/ShayCichocki/skillroute/internal/state"
	"github.com/ShayCichocki/skillroute/pkg/models"
)

const recentBatchLimit = 5

// Stats summarises the registry, graph, router and reload history.
type Stats struct {
	SnapshotVersion uint64                     `json:"snapshot_version"`
	LoadedAt        time.Time                  `json:"loaded_at"`
	Skills          int                        `json:"skills"`
	ByStatus        map[models.SkillStatus]int `json:"by_status"`
	Complexity      map[string]int             `json:"complexity"`
	Edges           int                        `json:"edges"`
	Cycles          [][]string                 `json:"cycles,omitempty"`
	Critical        []string                   `json:"critical,omitempty"`
	Roots           []string                   `json:"roots,omitempty"`
	Leaves          []string                   `json:"leaves,omitempty"`
	CacheEntries    int                        `json:"cache_entries"`
	Roles           []models.AgentLoadState    `json:"roles"`
	RecentBatches   []state.BatchRecord        `json:"recent_batches,omitempty"`
}

// Stats computes a summary of the current state.
func (e *Engine) Stats() (*Stats, error) {
	snap, err := e.store.Current()
	if err != nil {
		return nil, err
	}

	st := &Stats{
		SnapshotVersion: snap.Version(),
		LoadedAt:        snap.LoadedAt(),
		Skills:          snap.Len(),
		ByStatus:        make(map[models.SkillStatus]int),
		Complexity:      map[string]int{"low": 0, "medium": 0, "high": 0},
		Edges:           snap.Graph().EdgeCount(),
		Cycles:          snap.Graph().Cycles(),
		CacheEntries:    e.router.CacheLen(),
		Roles:           e.router.LoadState(),
	}
	for _, sk := range snap.Skills() {
		st.ByStatus[sk.Status]++
		st.Complexity[models.ComplexityBucket(sk.ComplexityScore)]++
	}
	for _, m := range snap.Graph().AllMetrics() {
		if m.IsCritical {
			st.Critical = append(st.Critical, m.Name)
		}
		if m.IsRoot {
			st.Roots = append(st.Roots, m.Name)
		}
		if m.IsLeaf {
			st.Leaves = append(st.Leaves, m.Name)
		}
	}

	if e.db != nil {
		batches, err := e.db.RecentBatches(recentBatchLimit)
		if err != nil {
			e.logger.Warn("read reload history", "error", err)
		}
		st.RecentBatches = batches
	}
	return st, nil
}
