// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package manifest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-digest/pkg/types"
)

var (
	t0 = time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	t1 = t0.Add(24 * time.Hour)
	t2 = t0.Add(48 * time.Hour)
)

func TestSetStatsNextSince(t *testing.T) {
	m := New(ModeCurrentOnly, false, t0)
	s := m.StartSet("agents", t1)

	s.RecordSuccess(t0)
	assert.Equal(t, t1, s.NextSince, "older success must not move the cursor back")

	s.RecordSuccess(t2)
	s.RecordSuccess(t1)
	assert.Equal(t, t2, s.NextSince)
	assert.Equal(t, 3, s.Succeeded)
}

func TestManifestFinishTotals(t *testing.T) {
	m := New("", true, t0)
	assert.Equal(t, ModeCurrentOnly, m.Mode)
	assert.NotEmpty(t, m.RunID)

	a := m.StartSet("a", time.Time{})
	a.Discovered = 5
	a.RecordSuccess(t1)
	a.RecordFailure("2401.00003", "summarize", "quota")
	a.PublishFailed = 1

	b := m.StartSet("b", time.Time{})
	b.SourceError = "HTTP 503"
	b.SkippedDuplicate = 2

	m.Finish(t2)
	assert.Equal(t, Totals{Discovered: 5, SkippedDuplicate: 2, Succeeded: 1, Failed: 1, PublishFailed: 1, SourceErrors: 1}, m.Totals)
	assert.Equal(t, []string{"b"}, m.Unreachable())
	assert.Same(t, a, m.Set("a"))
	assert.Nil(t, m.Set("missing"))
}

func TestSourceErrorAfterYieldIsReachable(t *testing.T) {
	m := New(ModeAllPages, false, t0)
	s := m.StartSet("a", time.Time{})
	s.Discovered = 3
	s.SourceError = "page 2 failed"
	assert.Empty(t, m.Unreachable())
}

func TestManifestCursors(t *testing.T) {
	prior := types.Cursors{"a": t1, "b": t1, "untouched": t0}

	m := New(ModeCurrentOnly, false, t0)
	a := m.StartSet("a", prior["a"])
	a.RecordSuccess(t2)
	m.StartSet("b", prior["b"]) // no successes
	m.StartSet("fresh", time.Time{})

	got := m.Cursors(prior)
	assert.Equal(t, types.Cursors{"a": t2, "b": t1, "untouched": t0}, got)
	assert.Equal(t, t1, prior["a"], "prior must not be mutated")
}

func stores(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()
	sq, err := OpenSQLite(filepath.Join(dir, "manifest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sq.Close() })
	return map[string]Store{
		"file":   NewFileStore(filepath.Join(dir, "state", "manifest.yaml")),
		"sqlite": sq,
	}
}

func TestStoreMonotonicCursor(t *testing.T) {
	ctx := context.Background()
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			cur, err := st.LoadCursors(ctx)
			require.NoError(t, err)
			assert.Empty(t, cur)

			last, err := st.LastRun(ctx)
			require.NoError(t, err)
			assert.Nil(t, last)

			first := New(ModeCurrentOnly, false, t0)
			first.StartSet("agents", time.Time{}).RecordSuccess(t2)
			first.Finish(t0.Add(time.Minute))
			require.NoError(t, st.Save(ctx, first))

			// A later run that somehow carries an older cursor must not
			// move the stored one back.
			second := New(ModeCurrentOnly, false, t1)
			second.StartSet("agents", time.Time{}).RecordSuccess(t1)
			second.StartSet("quantum", time.Time{}).RecordSuccess(t0)
			second.Finish(t1.Add(time.Minute))
			require.NoError(t, st.Save(ctx, second))

			cur, err = st.LoadCursors(ctx)
			require.NoError(t, err)
			assert.True(t, t2.Equal(cur["agents"]), "agents cursor = %v", cur["agents"])
			assert.True(t, t0.Equal(cur["quantum"]), "quantum cursor = %v", cur["quantum"])

			last, err = st.LastRun(ctx)
			require.NoError(t, err)
			require.NotNil(t, last)
			assert.Equal(t, second.RunID, last.RunID)
			require.Len(t, last.Sets, 2)
			assert.Equal(t, 2, last.Totals.Succeeded)
		})
	}
}

func TestSQLiteRunHistory(t *testing.T) {
	ctx := context.Background()
	st, err := OpenSQLite(filepath.Join(t.TempDir(), "m.db"))
	require.NoError(t, err)
	defer st.Close()

	for i := range 3 {
		m := New(ModeCurrentOnly, false, t0.Add(time.Duration(i)*time.Hour))
		m.Finish(t0.Add(time.Duration(i)*time.Hour + time.Minute))
		require.NoError(t, st.Save(ctx, m))
	}
	n, err := st.RunCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestFileStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cursors: [not a map"), 0o644))
	_, err := NewFileStore(path).LoadCursors(context.Background())
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	st, err := Open(types.ManifestConfig{Backend: types.ManifestFile, Path: filepath.Join(dir, "m.yaml")})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, st)

	st, err = Open(types.ManifestConfig{Backend: types.ManifestSQLite, Path: filepath.Join(dir, "m.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, st)
	st.Close()

	_, err = Open(types.ManifestConfig{Backend: "etcd"})
	assert.Error(t, err)
}
