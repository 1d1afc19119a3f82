// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package manifest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paper-digest/pkg/types"
)

// cursorFormat is fixed-width UTC so string comparison orders like time.
const cursorFormat = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore keeps cursors in a table whose rows only move forward and
// appends every manifest to a runs history table.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the manifest database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating manifest directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening manifest database: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating manifest schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS cursors (
			search_set TEXT PRIMARY KEY,
			since TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			mode TEXT NOT NULL,
			test_mode INTEGER NOT NULL DEFAULT 0,
			succeeded INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0,
			manifest TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// LoadCursors implements Store.
func (s *SQLiteStore) LoadCursors(ctx context.Context) (types.Cursors, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT search_set, since FROM cursors`)
	if err != nil {
		return nil, fmt.Errorf("querying cursors: %w", err)
	}
	defer rows.Close()

	out := types.Cursors{}
	for rows.Next() {
		var name, since string
		if err := rows.Scan(&name, &since); err != nil {
			return nil, fmt.Errorf("scanning cursor: %w", err)
		}
		t, err := time.Parse(cursorFormat, since)
		if err != nil {
			return nil, fmt.Errorf("parsing cursor for %s: %w", name, err)
		}
		out[name] = t
	}
	return out, rows.Err()
}

// Save implements Store. Cursor rows are only replaced by later values.
func (s *SQLiteStore) Save(ctx context.Context, m *Manifest) error {
	doc, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, set := range m.Advancing() {
		if set.NextSince.IsZero() {
			continue
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO cursors (search_set, since) VALUES (?, ?)
			 ON CONFLICT(search_set) DO UPDATE SET since = excluded.since
			 WHERE excluded.since > cursors.since`,
			set.Name, set.NextSince.UTC().Format(cursorFormat),
		)
		if err != nil {
			return fmt.Errorf("saving cursor for %s: %w", set.Name, err)
		}
	}

	var finished sql.NullString
	if !m.RunFinishedAt.IsZero() {
		finished = sql.NullString{String: m.RunFinishedAt.UTC().Format(time.RFC3339Nano), Valid: true}
	}
	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs (run_id, started_at, finished_at, mode, test_mode, succeeded, failed, manifest)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.RunID, m.RunStartedAt.UTC().Format(cursorFormat), finished, string(m.Mode),
		m.TestMode, m.Totals.Succeeded, m.Totals.Failed, string(doc),
	)
	if err != nil {
		return fmt.Errorf("saving run %s: %w", m.RunID, err)
	}
	return tx.Commit()
}

// LastRun implements Store.
func (s *SQLiteStore) LastRun(ctx context.Context) (*Manifest, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT manifest FROM runs ORDER BY started_at DESC LIMIT 1`,
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying last run: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal([]byte(doc), &m); err != nil {
		return nil, fmt.Errorf("parsing stored manifest: %w", err)
	}
	return &m, nil
}

// RunCount returns how many runs are recorded.
func (s *SQLiteStore) RunCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting runs: %w", err)
	}
	return n, nil
}
