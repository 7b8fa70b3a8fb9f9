// Package history persists spoken announcements using SQLite, so a caregiver
// can review what the device told the wearer and when.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Rajvardhan-Desai/vision-aid/internal/alert"
)

// Store provides persistent storage for the announcement log.
// Store handles database migrations automatically on initialization.
type Store struct {
	db   *sql.DB
	path string
}

// Entry is one recorded announcement.
type Entry struct {
	ID       string
	Category string
	Priority int
	Text     string
	SpokenAt time.Time
}

// NewStore creates a Store with a SQLite database under the given data path.
// It creates the data directory if it does not exist and runs migrations.
func NewStore(dataPath string) (*Store, error) {
	if err := os.MkdirAll(dataPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataPath, "visionaid.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{
		db:   db,
		path: dataPath,
	}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate creates necessary tables
func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS announcements (
			id TEXT PRIMARY KEY,
			category TEXT NOT NULL,
			priority INTEGER NOT NULL,
			text TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			spoken_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_announcements_spoken ON announcements(spoken_at)`,
		`CREATE INDEX IF NOT EXISTS idx_announcements_category ON announcements(category)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}
	return nil
}

// Record logs one spoken announcement.
func (s *Store) Record(ev alert.Event, spokenAt time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO announcements (id, category, priority, text, created_at, spoken_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ev.ID, string(ev.Category), ev.Priority, ev.Text, ev.CreatedAt, spokenAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record announcement: %w", err)
	}
	return nil
}

// Recent returns the most recently spoken announcements, newest first.
func (s *Store) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT id, category, priority, text, spoken_at
		 FROM announcements ORDER BY spoken_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query announcements: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Category, &e.Priority, &e.Text, &e.SpokenAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountByCategory returns announcement counts since a cutoff, keyed by
// category.
func (s *Store) CountByCategory(since time.Time) (map[string]int, error) {
	rows, err := s.db.Query(
		`SELECT category, COUNT(*) FROM announcements
		 WHERE spoken_at >= ? GROUP BY category`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count announcements: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var category string
		var n int
		if err := rows.Scan(&category, &n); err != nil {
			return nil, err
		}
		counts[category] = n
	}
	return counts, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
