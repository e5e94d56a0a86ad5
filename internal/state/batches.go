package state

import (
	"fmt"
	"time"
)

// BatchRecord summarises one hot-reload batch.
type BatchRecord struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	New        int
	Reloaded   int
	Removed    int
	Failed     int
	Unchanged  int
}

// RecordBatch stores a reload batch summary. Recording the same ID twice
// overwrites the earlier row.
func (db *DB) RecordBatch(b BatchRecord) error {
	_, err := db.Exec(`
		INSERT OR REPLACE INTO reload_batches
			(id, started_at, finished_at, new, reloaded, removed, failed, unchanged)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, b.ID, formatTime(b.StartedAt), formatTime(b.FinishedAt),
		b.New, b.Reloaded, b.Removed, b.Failed, b.Unchanged)
	if err != nil {
		return fmt.Errorf("record batch %s: %w", b.ID, err)
	}
	return nil
}

// RecentBatches returns up to limit batches, newest first.
func (db *DB) RecentBatches(limit int) ([]BatchRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := db.Query(`
		SELECT id, started_at, finished_at, new, reloaded, removed, failed, unchanged
		FROM reload_batches
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query batches: %w", err)
	}
	defer rows.Close()

	var out []BatchRecord
	for rows.Next() {
		var (
			b               BatchRecord
			started, finish string
		)
		if err := rows.Scan(&b.ID, &started, &finish, &b.New, &b.Reloaded, &b.Removed, &b.Failed, &b.Unchanged); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		if b.StartedAt, err = parseTime(started); err != nil {
			return nil, fmt.Errorf("parse started_at for %s: %w", b.ID, err)
		}
		if b.FinishedAt, err = parseTime(finish); err != nil {
			return nil, fmt.Errorf("parse finished_at for %s: %w", b.ID, err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
