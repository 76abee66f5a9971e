package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"photofx-bot/internal/access"
)

// SQLiteStore persists snapshots in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a SQLite-backed store at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite works best with a single writer
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			user_id INTEGER PRIMARY KEY,
			approved INTEGER NOT NULL DEFAULT 0,
			used_trial INTEGER NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create users table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS pending_requests (
			user_id INTEGER PRIMARY KEY
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create pending_requests table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Load reads all user records and pending requests.
func (s *SQLiteStore) Load() (*access.Snapshot, error) {
	snap := emptySnapshot()

	rows, err := s.db.Query("SELECT user_id, approved, used_trial FROM users")
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var rec access.Record
		if err := rows.Scan(&id, &rec.Approved, &rec.UsedTrial); err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}
		snap.Users[id] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	pendingRows, err := s.db.Query("SELECT user_id FROM pending_requests ORDER BY user_id")
	if err != nil {
		return nil, fmt.Errorf("query pending requests: %w", err)
	}
	defer pendingRows.Close()

	for pendingRows.Next() {
		var id int64
		if err := pendingRows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan pending row: %w", err)
		}
		snap.Pending = append(snap.Pending, id)
	}
	if err := pendingRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending requests: %w", err)
	}

	return snap, nil
}

// Save replaces the stored state with the snapshot in one transaction.
func (s *SQLiteStore) Save(snap *access.Snapshot) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM users"); err != nil {
		return fmt.Errorf("clear users: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM pending_requests"); err != nil {
		return fmt.Errorf("clear pending requests: %w", err)
	}

	for id, rec := range snap.Users {
		_, err := tx.Exec(
			"INSERT INTO users (user_id, approved, used_trial) VALUES (?, ?, ?)",
			id, rec.Approved, rec.UsedTrial,
		)
		if err != nil {
			return fmt.Errorf("insert user %d: %w", id, err)
		}
	}
	for _, id := range snap.Pending {
		if _, err := tx.Exec("INSERT INTO pending_requests (user_id) VALUES (?)", id); err != nil {
			return fmt.Errorf("insert pending request %d: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

// Close releases database resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
