package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/skillroute/internal/registry"
	"github.com/ShayCichocki/skillroute/pkg/models"
)

func testSnapshot() *registry.Snapshot {
	skills := []*models.Skill{
		{Name: "memory-search", Description: "Search memory.", Status: models.SkillStatusProduction, ComplexityScore: 1, SourceID: "memory"},
		{Name: "documentation-system", Description: "Generate docs.", Status: models.SkillStatusDevelopment,
			DeclaredDependencies: []string{"memory-search"}, ComplexityScore: 4, SourceID: "docs"},
	}
	return registry.NewSnapshot(skills, nil, nil)
}

func TestLoadSnapshot_Empty(t *testing.T) {
	db := setupTestDB(t)

	p, err := db.LoadSnapshot()
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestSnapshot_RoundTrip(t *testing.T) {
	db := setupTestDB(t)
	snap := testSnapshot()

	require.NoError(t, db.SaveSnapshot(snap.Persist()))
	require.NoError(t, db.SaveSnapshot(snap.Persist()))

	var rows int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM snapshots").Scan(&rows))
	assert.Equal(t, 1, rows)

	p, err := db.LoadSnapshot()
	require.NoError(t, err)
	require.NotNil(t, p)

	restored := registry.FromPersisted(*p, nil)
	assert.Equal(t, 2, restored.Len())
	doc, ok := restored.Get("documentation-system")
	require.True(t, ok)
	assert.Equal(t, 4, doc.ComplexityScore)
	assert.Equal(t, []string{"memory-search"}, restored.Graph().Dependencies("documentation-system"))
	assert.Equal(t, []string{"documentation-system"}, restored.Graph().Dependents("memory-search"))
}

func TestLoadSnapshot_FormatMismatch(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.Exec("INSERT INTO snapshots (version, created_at, payload) VALUES (?, ?, ?)",
		registry.FormatVersion+1, formatTime(time.Now()), `{"format":99}`)
	require.NoError(t, err)

	p, err := db.LoadSnapshot()
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestLoadSnapshot_CorruptPayload(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.Exec("INSERT INTO snapshots (version, created_at, payload) VALUES (?, ?, ?)",
		registry.FormatVersion, formatTime(time.Now()), "not json")
	require.NoError(t, err)

	_, err = db.LoadSnapshot()
	assert.Error(t, err)
}

func TestDeleteSnapshots(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.SaveSnapshot(testSnapshot().Persist()))
	require.NoError(t, db.DeleteSnapshots())

	p, err := db.LoadSnapshot()
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestRecentBatches(t *testing.T) {
	db := setupTestDB(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"b1", "b2", "b3"} {
		start := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, db.RecordBatch(BatchRecord{
			ID:         id,
			StartedAt:  start,
			FinishedAt: start.Add(20 * time.Millisecond),
			New:        i,
			Failed:     1,
		}))
	}

	got, err := db.RecentBatches(2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b3", got[0].ID)
	assert.Equal(t, "b2", got[1].ID)
	assert.Equal(t, 2, got[0].New)
	assert.Equal(t, 1, got[0].Failed)
	assert.True(t, got[0].StartedAt.Equal(base.Add(2*time.Minute)))
	assert.Equal(t, 20*time.Millisecond, got[0].FinishedAt.Sub(got[0].StartedAt))

	none, err := db.RecentBatches(0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRecordBatch_Overwrites(t *testing.T) {
	db := setupTestDB(t)
	now := time.Now()

	require.NoError(t, db.RecordBatch(BatchRecord{ID: "same", StartedAt: now, FinishedAt: now, New: 1}))
	require.NoError(t, db.RecordBatch(BatchRecord{ID: "same", StartedAt: now, FinishedAt: now, Reloaded: 3}))

	got, err := db.RecentBatches(10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].New)
	assert.Equal(t, 3, got[0].Reloaded)
}
