// Package storage provides SQLite implementation of the ResultStore interface.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements ResultStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS results (
		key TEXT PRIMARY KEY,
		name TEXT,
		units INTEGER NOT NULL,
		body TEXT NOT NULL,
		hits INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_results_created_at ON results(created_at);
	`
	_, err := db.Exec(schema)
	return err
}

// Get returns the cached body for key and counts a hit.
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM results WHERE key = ?`, key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE results SET hits = hits + 1 WHERE key = ?`, key); err != nil {
		return nil, err
	}
	return []byte(body), nil
}

// Put stores body under key, replacing any previous entry.
func (s *SQLiteStore) Put(ctx context.Context, key, name string, units int, body []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO results (key, name, units, body, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET name = excluded.name, units = excluded.units,
		 body = excluded.body, created_at = excluded.created_at`,
		key, name, units, string(body), time.Now().UTC(),
	)
	return err
}

// Delete removes the entry for key.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM results WHERE key = ?`, key)
	return err
}

// List returns entries newest first with offset and limit.
func (s *SQLiteStore) List(ctx context.Context, offset, limit int) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, name, units, length(CAST(body AS BLOB)), hits, created_at
		 FROM results ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		var name sql.NullString
		if err := rows.Scan(&e.Key, &name, &e.Units, &e.Size, &e.Hits, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Name = name.String
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// Prune deletes entries created before the given time and returns how many went.
func (s *SQLiteStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM results WHERE created_at < ?`, before.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Count returns the number of cached results.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM results`).Scan(&count)
	return count, err
}

// Hits returns the total number of cache hits served.
func (s *SQLiteStore) Hits(ctx context.Context) (int64, error) {
	var hits int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(hits), 0) FROM results`).Scan(&hits)
	return hits, err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
