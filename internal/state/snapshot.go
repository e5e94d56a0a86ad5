package state

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ShayCichocki/skillroute/internal/registry"
)

// SaveSnapshot replaces the cached catalogue with p.
func (db *DB) SaveSnapshot(p registry.Persisted) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return db.Transaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM snapshots"); err != nil {
			return fmt.Errorf("clear snapshots: %w", err)
		}
		_, err := tx.Exec(
			"INSERT INTO snapshots (version, created_at, payload) VALUES (?, ?, ?)",
			p.Format, formatTime(time.Now()), string(payload),
		)
		if err != nil {
			return fmt.Errorf("insert snapshot: %w", err)
		}
		return nil
	})
}

// LoadSnapshot returns the cached catalogue. It returns nil without error when
// nothing is cached or the cache was written in another format.
func (db *DB) LoadSnapshot() (*registry.Persisted, error) {
	var (
		version int
		payload string
	)
	row := db.QueryRow("SELECT version, payload FROM snapshots ORDER BY id DESC LIMIT 1")
	if err := row.Scan(&version, &payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if version != registry.FormatVersion {
		return nil, nil
	}

	var p registry.Persisted
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if p.Format != registry.FormatVersion {
		return nil, nil
	}
	return &p, nil
}

// DeleteSnapshots drops every cached catalogue.
func (db *DB) DeleteSnapshots() error {
	if _, err := db.Exec("DELETE FROM snapshots"); err != nil {
		return fmt.Errorf("delete snapshots: %w", err)
	}
	return nil
}
