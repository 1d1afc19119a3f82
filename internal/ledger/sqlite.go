// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/paper-digest/pkg/types"
)

// SQLiteStore keeps ledger entries in a single SQLite table keyed by
// candidate id.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the ledger database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening ledger database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating ledger schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS ledger (
			candidate_id TEXT PRIMARY KEY,
			processed_at TEXT NOT NULL,
			outcome TEXT NOT NULL,
			search_set TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_processed_at ON ledger(processed_at)`,
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

// Get returns the entry for id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (types.LedgerEntry, bool, error) {
	var (
		e           types.LedgerEntry
		processedAt string
		outcome     string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT candidate_id, processed_at, outcome, search_set FROM ledger WHERE candidate_id = ?`, id,
	).Scan(&e.CandidateID, &processedAt, &outcome, &e.SearchSetName)
	if errors.Is(err, sql.ErrNoRows) {
		return types.LedgerEntry{}, false, nil
	}
	if err != nil {
		return types.LedgerEntry{}, false, err
	}
	e.Outcome = types.Outcome(outcome)
	if e.ProcessedAt, err = time.Parse(time.RFC3339Nano, processedAt); err != nil {
		return types.LedgerEntry{}, false, fmt.Errorf("parsing processed_at for %s: %w", id, err)
	}
	return e, true, nil
}

// Insert adds entry unless its id is already present. The primary key and
// ON CONFLICT DO NOTHING make the check and the write one atomic statement.
func (s *SQLiteStore) Insert(ctx context.Context, entry types.LedgerEntry) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO ledger (candidate_id, processed_at, outcome, search_set)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(candidate_id) DO NOTHING`,
		entry.CandidateID,
		entry.ProcessedAt.UTC().Format(time.RFC3339Nano),
		string(entry.Outcome),
		entry.SearchSetName,
	)
	if err != nil {
		return &WriteError{CandidateID: entry.CandidateID, Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &WriteError{CandidateID: entry.CandidateID, Err: err}
	}
	if n == 0 {
		dup := &DuplicateEntryError{CandidateID: entry.CandidateID}
		if existing, ok, gerr := s.Get(ctx, entry.CandidateID); gerr == nil && ok {
			dup.Existing = &existing
		}
		return dup
	}
	return nil
}

// List returns all entries ordered by processed_at.
func (s *SQLiteStore) List(ctx context.Context) ([]types.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT candidate_id, processed_at, outcome, search_set FROM ledger ORDER BY processed_at, candidate_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []types.LedgerEntry
	for rows.Next() {
		var (
			e           types.LedgerEntry
			processedAt string
			outcome     string
		)
		if err := rows.Scan(&e.CandidateID, &processedAt, &outcome, &e.SearchSetName); err != nil {
			return nil, err
		}
		e.Outcome = types.Outcome(outcome)
		if e.ProcessedAt, err = time.Parse(time.RFC3339Nano, processedAt); err != nil {
			return nil, fmt.Errorf("parsing processed_at for %s: %w", e.CandidateID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
