package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flynn33/ash-model/internal/simulation"
)

func newTestStore(t *testing.T) *SQLiteRunStore {
	t.Helper()
	s, err := NewSQLiteRunStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testRecord(t *testing.T, seed uint64, runID string) RunRecord {
	t.Helper()
	res := simulation.RunScenario(t, simulation.Scenario{
		Name: "store",
		Params: simulation.Params{
			Dim: 9, Agents: 120, Ticks: 15, NoiseProb: 0.05,
			Seed: simulation.SeedPtr(seed),
		},
		Options: []simulation.Option{simulation.WithRunID(runID)},
	})
	return RunRecordFromResult(res)
}

func TestNewSQLiteRunStore(t *testing.T) {
	tmpDir := t.TempDir()

	s, err := NewSQLiteRunStore(tmpDir)
	require.NoError(t, err)
	defer s.Close()

	assert.DirExists(t, filepath.Join(tmpDir, ".ash"))
	assert.FileExists(t, filepath.Join(tmpDir, ".ash", "ash.db"))
	assert.Equal(t, filepath.Join(tmpDir, ".ash", "ash.db"), s.Path())
}

func TestSaveRun_GetRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	rec := testRecord(t, 1, "11111111-aaaa-4000-8000-000000000001")

	require.NoError(t, s.SaveRun(ctx, rec))

	got, err := s.GetRun(ctx, rec.ID)
	require.NoError(t, err)

	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, uint64(1), got.Seed)
	assert.Equal(t, rec.Params.Dim, got.Params.Dim)
	assert.Equal(t, rec.Params.Agents, got.Params.Agents)
	assert.Equal(t, rec.Params.Ticks, got.Params.Ticks)
	assert.Equal(t, rec.Params.NoiseProb, got.Params.NoiseProb)
	require.NotNil(t, got.Params.Seed)
	assert.Equal(t, uint64(1), *got.Params.Seed)
	assert.Equal(t, rec.Codewords, got.Codewords)
	assert.Equal(t, rec.Codes, got.Codes)
	assert.Equal(t, rec.Flips, got.Flips)
	assert.Equal(t, rec.Duration, got.Duration)
	assert.InDelta(t, rec.Mean, got.Mean, 1e-12)
	assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))
	require.NotNil(t, got.Fit)
	assert.Equal(t, rec.Fit.DOF, got.Fit.DOF)
	assert.Equal(t, rec.Fit.Bins, got.Fit.Bins)
	assert.Nil(t, got.History, "GetRun should not load bulk history")
}

func TestSaveRun_LargeSeed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	rec := testRecord(t, 1<<63+12345, "22222222-aaaa-4000-8000-000000000002")

	require.NoError(t, s.SaveRun(ctx, rec))
	got, err := s.GetRun(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<63+12345), got.Seed)
}

func TestSaveRun_Duplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	rec := testRecord(t, 2, "33333333-aaaa-4000-8000-000000000003")

	require.NoError(t, s.SaveRun(ctx, rec))
	assert.Error(t, s.SaveRun(ctx, rec))
}

func TestSaveRun_RequiresData(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	assert.Error(t, s.SaveRun(ctx, RunRecord{}))
	assert.Error(t, s.SaveRun(ctx, RunRecord{ID: "no-history"}))
}

func TestLoadHistory_LoadPopulation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	rec := testRecord(t, 3, "44444444-aaaa-4000-8000-000000000004")
	require.NoError(t, s.SaveRun(ctx, rec))

	h, err := s.LoadHistory(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.History, h.Matrix())
	assert.Equal(t, 16, h.Len())

	pop, err := s.LoadPopulation(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Final, pop.Strings())
}

func TestGetRun_Prefix(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := testRecord(t, 4, "abc00000-aaaa-4000-8000-000000000001")
	b := testRecord(t, 5, "abd00000-aaaa-4000-8000-000000000002")
	require.NoError(t, s.SaveRun(ctx, a))
	require.NoError(t, s.SaveRun(ctx, b))

	got, err := s.GetRun(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	_, err = s.GetRun(ctx, "ab")
	assert.ErrorContains(t, err, "ambiguous")

	_, err = s.GetRun(ctx, "zzz")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = s.GetRun(ctx, "%")
	assert.True(t, errors.Is(err, ErrNotFound), "LIKE wildcards must be matched literally")
}

func TestListRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ids := []string{
		"55555555-aaaa-4000-8000-000000000001",
		"55555555-aaaa-4000-8000-000000000002",
		"55555555-aaaa-4000-8000-000000000003",
	}
	for i, id := range ids {
		rec := testRecord(t, uint64(10+i), id)
		rec.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, s.SaveRun(ctx, rec))
	}

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, ids[2], runs[0].ID, "newest first")
	assert.Equal(t, ids[0], runs[2].ID)

	runs, err = s.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestDeleteRun_Cascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	rec := testRecord(t, 6, "66666666-aaaa-4000-8000-000000000006")
	require.NoError(t, s.SaveRun(ctx, rec))

	require.NoError(t, s.DeleteRun(ctx, rec.ID))

	_, err := s.GetRun(ctx, rec.ID)
	assert.True(t, errors.Is(err, ErrNotFound))

	var n int
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM occupancy`).Scan(&n))
	assert.Zero(t, n)
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM agents`).Scan(&n))
	assert.Zero(t, n)

	assert.True(t, errors.Is(s.DeleteRun(ctx, rec.ID), ErrNotFound))
}

func TestStore_Reopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	rec := testRecord(t, 7, "77777777-aaaa-4000-8000-000000000007")

	s, err := NewSQLiteRunStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.SaveRun(ctx, rec))
	require.NoError(t, s.Close())

	s, err = NewSQLiteRunStore(dir)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.GetRun(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
}

func TestRootFor(t *testing.T) {
	root, err := RootFor("local", "/work/project")
	require.NoError(t, err)
	assert.Equal(t, "/work/project", root)

	home, _ := os.UserHomeDir()
	root, err = RootFor("global", "/work/project")
	require.NoError(t, err)
	assert.Equal(t, home, root)

	_, err = RootFor("both", "/work/project")
	assert.Error(t, err)
}

func TestPaths(t *testing.T) {
	global, err := GlobalAshPath()
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(global))
	assert.Equal(t, ".ash", filepath.Base(global))

	assert.Equal(t, filepath.Join("proj", ".ash"), LocalAshPath("proj"))
	assert.Equal(t, filepath.Join("proj", ".ash", "archives"), ArchiveDir("proj"))
}
