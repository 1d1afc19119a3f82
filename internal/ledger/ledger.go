// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger is the durable record of candidates that finished the
// pipeline. An entry is written once, after the candidate reaches a terminal
// success state, and is never updated or deleted. Every search set and every
// run shares the same ledger, so a paper matched by two keyword sets is
// processed only once.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/pdiddy/paper-digest/pkg/types"
)

// DefaultCacheSize bounds the in-memory set of known processed ids.
const DefaultCacheSize = 4096

// Store is the persistence behind a Ledger. Insert must be an atomic
// insert-if-absent: it returns *DuplicateEntryError without side effects when
// an entry for the id already exists.
type Store interface {
	Get(ctx context.Context, id string) (types.LedgerEntry, bool, error)
	Insert(ctx context.Context, entry types.LedgerEntry) error
	List(ctx context.Context) ([]types.LedgerEntry, error)
	Close() error
}

// ErrDuplicate is matched by every *DuplicateEntryError.
var ErrDuplicate = errors.New("ledger entry already exists")

// DuplicateEntryError is returned by Record when the id is already present.
// Existing holds the stored entry when the store could read it back.
type DuplicateEntryError struct {
	CandidateID string
	Existing    *types.LedgerEntry
}

func (e *DuplicateEntryError) Error() string {
	if e.Existing != nil {
		return fmt.Sprintf("candidate %s already recorded by %q at %s",
			e.CandidateID, e.Existing.SearchSetName, e.Existing.ProcessedAt.Format(time.RFC3339))
	}
	return fmt.Sprintf("candidate %s already recorded", e.CandidateID)
}

func (e *DuplicateEntryError) Is(target error) bool { return target == ErrDuplicate }

// WriteError reports that the backing store could not persist an entry.
// Nothing was recorded; the candidate is eligible again next run.
type WriteError struct {
	CandidateID string
	Err         error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("recording candidate %s: %v", e.CandidateID, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Ledger answers "has this candidate been processed?" and records
// completions. Positive answers are cached; misses always reach the store
// so entries written by another process are seen.
type Ledger struct {
	store Store
	known *lru.Cache[string, types.LedgerEntry]
	now   func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the clock used for ProcessedAt.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// New wraps store with an LRU cache of cacheSize entries (DefaultCacheSize
// when cacheSize <= 0).
func New(store Store, cacheSize int, opts ...Option) (*Ledger, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, types.LedgerEntry](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating ledger cache: %w", err)
	}
	l := &Ledger{store: store, known: cache, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// HasProcessed reports whether an entry exists for id.
func (l *Ledger) HasProcessed(ctx context.Context, id string) (bool, error) {
	_, ok, err := l.Get(ctx, id)
	return ok, err
}

// Get returns the entry for id, if any.
func (l *Ledger) Get(ctx context.Context, id string) (types.LedgerEntry, bool, error) {
	if e, ok := l.known.Get(id); ok {
		return e, true, nil
	}
	e, ok, err := l.store.Get(ctx, id)
	if err != nil {
		return types.LedgerEntry{}, false, fmt.Errorf("ledger lookup %s: %w", id, err)
	}
	if ok {
		l.known.Add(id, e)
	}
	return e, ok, nil
}

// Record atomically inserts an entry for id. It returns
// *DuplicateEntryError if one already exists and *WriteError if the store
// fails.
func (l *Ledger) Record(ctx context.Context, id, searchSet string, outcome types.Outcome) (types.LedgerEntry, error) {
	if id == "" {
		return types.LedgerEntry{}, &WriteError{CandidateID: id, Err: errors.New("empty candidate id")}
	}
	if !outcome.Valid() {
		return types.LedgerEntry{}, &WriteError{CandidateID: id, Err: fmt.Errorf("invalid outcome %q", outcome)}
	}

	entry := types.LedgerEntry{
		CandidateID:   id,
		ProcessedAt:   l.now().UTC(),
		Outcome:       outcome,
		SearchSetName: searchSet,
	}

	err := l.store.Insert(ctx, entry)
	var dup *DuplicateEntryError
	switch {
	case err == nil:
		l.known.Add(id, entry)
		return entry, nil
	case errors.As(err, &dup):
		if dup.Existing != nil {
			l.known.Add(id, *dup.Existing)
		}
		return types.LedgerEntry{}, dup
	default:
		var we *WriteError
		if errors.As(err, &we) {
			return types.LedgerEntry{}, we
		}
		return types.LedgerEntry{}, &WriteError{CandidateID: id, Err: err}
	}
}

// List returns every entry ordered by ProcessedAt.
func (l *Ledger) List(ctx context.Context) ([]types.LedgerEntry, error) {
	entries, err := l.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing ledger: %w", err)
	}
	return entries, nil
}

// Close releases the backing store.
func (l *Ledger) Close() error {
	return l.store.Close()
}

// Open builds a Ledger on the store selected by cfg. The Redis store is
// pinged so an unreachable server fails here rather than mid-run.
func Open(ctx context.Context, cfg types.LedgerConfig) (*Ledger, error) {
	var store Store
	switch cfg.Backend {
	case types.LedgerSQLite, "":
		s, err := OpenSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
		store = s
	case types.LedgerRedis:
		s, err := NewRedisStore(cfg.RedisAddr, cfg.RedisPrefix)
		if err != nil {
			return nil, err
		}
		if err := s.Ping(ctx); err != nil {
			s.Close()
			return nil, err
		}
		store = s
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Backend)
	}

	l, err := New(store, cfg.CacheSize)
	if err != nil {
		store.Close()
		return nil, err
	}
	return l, nil
}
