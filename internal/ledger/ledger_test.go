// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-digest/pkg/types"
)

var fixedNow = time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)

func newSQLiteLedger(t *testing.T) (*Ledger, *SQLiteStore) {
	t.Helper()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "data", "ledger.db"))
	require.NoError(t, err)
	l, err := New(store, 0, WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l, store
}

func newRedisLedger(t *testing.T) (*Ledger, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	store, err := NewRedisStore(mr.Addr(), "")
	require.NoError(t, err)
	require.NoError(t, store.Ping(context.Background()))

	l, err := New(store, 16, WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l, mr
}

// backends runs fn against every Store implementation.
func backends(t *testing.T, fn func(t *testing.T, l *Ledger)) {
	t.Run("sqlite", func(t *testing.T) {
		l, _ := newSQLiteLedger(t)
		fn(t, l)
	})
	t.Run("redis", func(t *testing.T) {
		l, _ := newRedisLedger(t)
		fn(t, l)
	})
}

func TestRecordThenHasProcessed(t *testing.T) {
	backends(t, func(t *testing.T, l *Ledger) {
		ctx := context.Background()

		ok, err := l.HasProcessed(ctx, "2401.00001")
		require.NoError(t, err)
		assert.False(t, ok)

		entry, err := l.Record(ctx, "2401.00001", "llm_agents", types.OutcomePublished)
		require.NoError(t, err)
		assert.Equal(t, "2401.00001", entry.CandidateID)
		assert.Equal(t, "llm_agents", entry.SearchSetName)
		assert.Equal(t, types.OutcomePublished, entry.Outcome)
		assert.True(t, entry.ProcessedAt.Equal(fixedNow))

		ok, err = l.HasProcessed(ctx, "2401.00001")
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestRecordDuplicate(t *testing.T) {
	backends(t, func(t *testing.T, l *Ledger) {
		ctx := context.Background()

		_, err := l.Record(ctx, "2401.00002", "set_a", types.OutcomePublished)
		require.NoError(t, err)

		_, err = l.Record(ctx, "2401.00002", "set_b", types.OutcomeSummarizedOnly)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrDuplicate)

		var dup *DuplicateEntryError
		require.ErrorAs(t, err, &dup)
		require.NotNil(t, dup.Existing)
		assert.Equal(t, "set_a", dup.Existing.SearchSetName)

		// The first write wins and the second left no trace.
		entry, ok, err := l.Get(ctx, "2401.00002")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "set_a", entry.SearchSetName)
		assert.Equal(t, types.OutcomePublished, entry.Outcome)

		entries, err := l.List(ctx)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})
}

func TestRecordConcurrentAtMostOne(t *testing.T) {
	backends(t, func(t *testing.T, l *Ledger) {
		ctx := context.Background()
		const writers = 8

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
			dups      int
		)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := l.Record(ctx, "2401.00003", "racer", types.OutcomePublished)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					successes++
				case errors.Is(err, ErrDuplicate):
					dups++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, successes)
		assert.Equal(t, writers-1, dups)

		entries, err := l.List(ctx)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})
}

func TestRecordRejectsBadInput(t *testing.T) {
	l, _ := newSQLiteLedger(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		id      string
		outcome types.Outcome
	}{
		{"empty id", "", types.OutcomePublished},
		{"bad outcome", "2401.00004", types.Outcome("maybe")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.Record(ctx, tt.id, "set", tt.outcome)
			var we *WriteError
			assert.ErrorAs(t, err, &we)
		})
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	ctx := context.Background()

	store, err := OpenSQLite(path)
	require.NoError(t, err)
	l, err := New(store, 0)
	require.NoError(t, err)
	_, err = l.Record(ctx, "2401.00005", "set", types.OutcomeSummarizedOnly)
	require.NoError(t, err)
	require.NoError(t, l.Close())

	store, err = OpenSQLite(path)
	require.NoError(t, err)
	l, err = New(store, 0)
	require.NoError(t, err)
	defer l.Close()

	ok, err := l.HasProcessed(ctx, "2401.00005")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWriteErrorWhenStoreClosed(t *testing.T) {
	l, store := newSQLiteLedger(t)
	require.NoError(t, store.db.Close())

	_, err := l.Record(context.Background(), "2401.00006", "set", types.OutcomePublished)
	require.Error(t, err)

	var we *WriteError
	require.ErrorAs(t, err, &we)
	assert.Equal(t, "2401.00006", we.CandidateID)
	assert.False(t, errors.Is(err, ErrDuplicate))
}

func TestCacheServesPositiveLookups(t *testing.T) {
	l, mr := newRedisLedger(t)
	ctx := context.Background()

	_, err := l.Record(ctx, "2401.00007", "set", types.OutcomePublished)
	require.NoError(t, err)

	// With the server gone, a cached id still answers; an unknown one fails.
	mr.Close()

	ok, err := l.HasProcessed(ctx, "2401.00007")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = l.HasProcessed(ctx, "2401.99999")
	assert.Error(t, err)
}

func TestMissesSeeOtherWriters(t *testing.T) {
	l, mr := newRedisLedger(t)
	ctx := context.Background()

	ok, err := l.HasProcessed(ctx, "2401.00008")
	require.NoError(t, err)
	require.False(t, ok)

	// Another process records the id directly in the store.
	other, err := NewRedisStore(mr.Addr(), "")
	require.NoError(t, err)
	defer other.Close()
	require.NoError(t, other.Insert(ctx, types.LedgerEntry{
		CandidateID: "2401.00008", ProcessedAt: fixedNow, Outcome: types.OutcomePublished, SearchSetName: "other",
	}))

	ok, err = l.HasProcessed(ctx, "2401.00008")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestListOrdered(t *testing.T) {
	backends(t, func(t *testing.T, l *Ledger) {
		ctx := context.Background()
		clock := fixedNow
		l.now = func() time.Time { clock = clock.Add(time.Minute); return clock }

		for _, id := range []string{"2401.00012", "2401.00010", "2401.00011"} {
			_, err := l.Record(ctx, id, "set", types.OutcomePublished)
			require.NoError(t, err)
		}

		entries, err := l.List(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, "2401.00012", entries[0].CandidateID)
		assert.Equal(t, "2401.00010", entries[1].CandidateID)
		assert.Equal(t, "2401.00011", entries[2].CandidateID)
	})
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	l, err := Open(ctx, types.LedgerConfig{Backend: types.LedgerSQLite, Path: filepath.Join(t.TempDir(), "l.db")})
	require.NoError(t, err)
	require.NoError(t, l.Close())

	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	l, err = Open(ctx, types.LedgerConfig{Backend: types.LedgerRedis, RedisAddr: "redis://" + addr + "/0", CacheSize: 8})
	require.NoError(t, err)
	_, err = l.Record(ctx, "2401.00020", "set", types.OutcomeSkipped)
	require.NoError(t, err)
	assert.True(t, mr.Exists(DefaultRedisPrefix+"2401.00020"))
	require.NoError(t, l.Close())

	mr.Close()
	_, err = Open(ctx, types.LedgerConfig{Backend: types.LedgerRedis, RedisAddr: addr})
	assert.Error(t, err, "unreachable redis fails at open")

	_, err = Open(ctx, types.LedgerConfig{Backend: "etcd"})
	assert.Error(t, err)
}
