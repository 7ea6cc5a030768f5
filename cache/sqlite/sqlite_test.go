package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solver_gateway/cache"
	"solver_gateway/errs"
)

func newTestStore(t *testing.T, dims int) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "solver.db"), dims)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestInsertThenFindSimilar(t *testing.T) {
	s := newTestStore(t, 3)
	ctx := context.Background()

	id, err := s.Insert(ctx, cache.CachedQuestion{
		QuestionText: "what is 2+2",
		Embedding:    []float32{1, 0, 0},
		Answer:       "4",
	})
	require.NoError(t, err)

	matches, err := s.FindSimilar(ctx, []float32{2, 0, 0}, 0.95, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, id, matches[0].ID)
	assert.Equal(t, "4", matches[0].Answer)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-5)

	matches, err = s.FindSimilar(ctx, []float32{0, 1, 0}, 0.95, 1)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestFindSimilarReturnsNearestFirst(t *testing.T) {
	s := newTestStore(t, 2)
	ctx := context.Background()

	_, err := s.Insert(ctx, cache.CachedQuestion{ID: "near", Embedding: []float32{1, 0.05}, Answer: "near"})
	require.NoError(t, err)
	_, err = s.Insert(ctx, cache.CachedQuestion{ID: "exact", Embedding: []float32{1, 0}, Answer: "exact"})
	require.NoError(t, err)

	matches, err := s.FindSimilar(ctx, []float32{1, 0}, 0.9, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "exact", matches[0].ID)
	assert.Equal(t, "near", matches[1].ID)
	assert.GreaterOrEqual(t, matches[0].Score, matches[1].Score)
}

func TestIncrementHit(t *testing.T) {
	s := newTestStore(t, 2)
	ctx := context.Background()

	id, err := s.Insert(ctx, cache.CachedQuestion{Embedding: []float32{1, 0}, Answer: "a"})
	require.NoError(t, err)

	require.NoError(t, s.IncrementHit(ctx, id))
	require.NoError(t, s.IncrementHit(ctx, id))
	n, err := s.HitCount(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	assert.True(t, errs.IsStoreUnavailable(s.IncrementHit(ctx, "missing")))
}

func TestDimensionMismatch(t *testing.T) {
	s := newTestStore(t, 3)

	_, err := s.Insert(context.Background(), cache.CachedQuestion{Embedding: []float32{1}})
	assert.True(t, errs.HasCode(err, errs.CodeConfigInvalid))
	_, err = s.FindSimilar(context.Background(), []float32{1}, 0.9, 1)
	assert.True(t, errs.HasCode(err, errs.CodeConfigInvalid))
}

func TestReopenKeepsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "solver.db")
	ctx := context.Background()

	s, err := New(path, 2)
	require.NoError(t, err)
	id, err := s.Insert(ctx, cache.CachedQuestion{Embedding: []float32{0, 1}, Answer: "kept"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = New(path, 2)
	require.NoError(t, err)
	defer s.Close()
	matches, err := s.FindSimilar(ctx, []float32{0, 1}, 0.95, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, id, matches[0].ID)
}
