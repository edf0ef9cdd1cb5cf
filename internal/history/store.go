// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package history journals conversion outcomes in a SQLite database so past
// runs can be listed and exported.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/pdf2word/internal/convert"
)

const defaultLimit = 20

// Entry is one journaled conversion.
type Entry struct {
	ID           int64     `json:"id" yaml:"id"`
	Source       string    `json:"source" yaml:"source"`
	Destination  string    `json:"destination" yaml:"destination"`
	Engine       string    `json:"engine" yaml:"engine"`
	Succeeded    bool      `json:"succeeded" yaml:"succeeded"`
	ErrorKind    string    `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty" yaml:"error_message,omitempty"`
	StartedAt    time.Time `json:"started_at" yaml:"started_at"`
	DurationMS   int64     `json:"duration_ms" yaml:"duration_ms"`
}

// EntryFromResult converts an orchestrator result into a journal entry.
func EntryFromResult(res convert.Result) Entry {
	e := Entry{
		Source:      res.SourcePath,
		Destination: res.DestinationPath,
		Engine:      res.Engine,
		Succeeded:   res.Succeeded,
		StartedAt:   res.StartedAt.UTC(),
		DurationMS:  res.Duration.Milliseconds(),
	}
	if res.Err != nil {
		e.ErrorKind = string(convert.KindOf(res.Err))
		e.ErrorMessage = res.Err.Error()
	}
	return e
}

// ListOptions filters List.
type ListOptions struct {
	// Limit caps the number of entries (default 20).
	Limit int

	// FailedOnly restricts the listing to failed conversions.
	FailedOnly bool
}

// Store manages the history SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the journal at path, creating its parent directory
// and schema when missing.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("history path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS conversions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source TEXT NOT NULL,
			destination TEXT NOT NULL,
			engine TEXT NOT NULL,
			succeeded INTEGER NOT NULL,
			error_kind TEXT,
			error_message TEXT,
			started_at TEXT NOT NULL,
			duration_ms INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversions_succeeded ON conversions(succeeded)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Record journals the outcome of one conversion and returns the stored entry.
func (s *Store) Record(ctx context.Context, res convert.Result) (Entry, error) {
	e := EntryFromResult(res)
	r, err := s.db.ExecContext(ctx,
		`INSERT INTO conversions
			(source, destination, engine, succeeded, error_kind, error_message, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Source, e.Destination, e.Engine, e.Succeeded,
		nullString(e.ErrorKind), nullString(e.ErrorMessage),
		e.StartedAt.Format(time.RFC3339Nano), e.DurationMS,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("recording conversion: %w", err)
	}
	if e.ID, err = r.LastInsertId(); err != nil {
		return Entry{}, fmt.Errorf("reading entry id: %w", err)
	}
	return e, nil
}

// List returns journaled conversions, most recent first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]Entry, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	query := `SELECT id, source, destination, engine, succeeded,
		COALESCE(error_kind, ''), COALESCE(error_message, ''), started_at, duration_ms
		FROM conversions`
	if opts.FailedOnly {
		query += ` WHERE succeeded = 0`
	}
	query += ` ORDER BY id DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("listing conversions: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var started string
		if err := rows.Scan(&e.ID, &e.Source, &e.Destination, &e.Engine, &e.Succeeded,
			&e.ErrorKind, &e.ErrorMessage, &started, &e.DurationMS); err != nil {
			return nil, fmt.Errorf("scanning conversion: %w", err)
		}
		if e.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("parsing started_at of entry %d: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
