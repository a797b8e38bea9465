// Package history persists local resume positions per media file, so a
// client rejoining a room can tell where it left off.
package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schemaResume = `
CREATE TABLE IF NOT EXISTS resume_positions (
	path TEXT PRIMARY KEY,
	position_seconds REAL NOT NULL,
	room TEXT,
	updated_at INTEGER NOT NULL
);`

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(schemaResume); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save upserts the resume position for a media path.
func (s *Store) Save(path, room string, positionSeconds float64) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("history: missing database connection")
	}
	_, err := s.db.Exec(`
		INSERT INTO resume_positions (path, position_seconds, room, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			position_seconds=excluded.position_seconds,
			room=excluded.room,
			updated_at=excluded.updated_at
	`, path, positionSeconds, room, time.Now().Unix())
	return err
}

// Get returns the stored position for a media path, false when none exists.
func (s *Store) Get(path string) (float64, bool, error) {
	if s == nil || s.db == nil {
		return 0, false, fmt.Errorf("history: missing database connection")
	}
	var pos float64
	err := s.db.QueryRow(
		"SELECT position_seconds FROM resume_positions WHERE path = ?", path,
	).Scan(&pos)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return pos, true, nil
}
