package state

import (
	"io"

	"github.com/ShayCichocki/skillroute/internal/registry"
)

// SnapshotStore caches the published catalogue between runs.
type SnapshotStore interface {
	SaveSnapshot(p registry.Persisted) error
	LoadSnapshot() (*registry.Persisted, error)
	DeleteSnapshots() error
}

// BatchStore keeps the hot-reload history.
type BatchStore interface {
	RecordBatch(b BatchRecord) error
	RecentBatches(limit int) ([]BatchRecord, error)
}

// Migrator applies schema migrations.
type Migrator interface {
	Migrate() error
}

// Store is the full persistence surface used by the engine.
type Store interface {
	io.Closer
	Migrator
	SnapshotStore
	BatchStore
}

var (
	_ Store         = (*DB)(nil)
	_ SnapshotStore = (*DB)(nil)
	_ BatchStore    = (*DB)(nil)
)
