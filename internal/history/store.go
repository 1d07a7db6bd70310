package history

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Entry is one executed statement
type Entry struct {
	ID           int64
	Engine       string
	Target       string
	DatabaseName string
	Query        string
	ExecutedAt   time.Time
	Duration     time.Duration
	RowsAffected int64
	Success      bool
	ErrorMessage string
}

// Store persists query history in a local SQLite file
type Store struct {
	db         *sql.DB
	maxEntries int
}

// Open opens or creates the history database at path. maxEntries bounds
// the table size; zero keeps everything.
func Open(path string, maxEntries int) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create history schema: %w", err)
	}

	return &Store{db: db, maxEntries: maxEntries}, nil
}

// Add records an entry and trims the oldest beyond the limit
func (s *Store) Add(ctx context.Context, e Entry) error {
	if e.ExecutedAt.IsZero() {
		e.ExecutedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO query_history
		(engine, target, database_name, query, executed_at, duration_ms, rows_affected, success, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Engine,
		e.Target,
		e.DatabaseName,
		e.Query,
		e.ExecutedAt.UnixMilli(),
		e.Duration.Milliseconds(),
		e.RowsAffected,
		e.Success,
		e.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to add history entry: %w", err)
	}

	if s.maxEntries > 0 {
		_, err = s.db.ExecContext(ctx, `
			DELETE FROM query_history
			WHERE id NOT IN (
				SELECT id FROM query_history ORDER BY executed_at DESC, id DESC LIMIT ?
			)`, s.maxEntries)
		if err != nil {
			return fmt.Errorf("failed to trim history: %w", err)
		}
	}
	return nil
}

const selectEntries = `
	SELECT id, engine, target, database_name, query, executed_at,
	       duration_ms, rows_affected, success, error_message
	FROM query_history`

// Recent returns the newest entries first
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	return s.query(ctx, selectEntries+` ORDER BY executed_at DESC, id DESC LIMIT ?`, limit)
}

// Search returns entries whose query contains text, newest first
func (s *Store) Search(ctx context.Context, text string, limit int) ([]Entry, error) {
	return s.query(ctx, selectEntries+` WHERE query LIKE ? ORDER BY executed_at DESC, id DESC LIMIT ?`,
		"%"+text+"%", limit)
}

// Queries returns distinct successful statements, newest first, for recall
// in the editor.
func (s *Store) Queries(ctx context.Context, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT query FROM query_history
		WHERE success = 1
		GROUP BY query
		ORDER BY MAX(executed_at) DESC, MAX(id) DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var executedAt, durationMs int64

		err := rows.Scan(
			&e.ID,
			&e.Engine,
			&e.Target,
			&e.DatabaseName,
			&e.Query,
			&executedAt,
			&durationMs,
			&e.RowsAffected,
			&e.Success,
			&e.ErrorMessage,
		)
		if err != nil {
			return nil, err
		}

		e.ExecutedAt = time.UnixMilli(executedAt)
		e.Duration = time.Duration(durationMs) * time.Millisecond
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
