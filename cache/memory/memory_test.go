package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solver_gateway/cache"
	"solver_gateway/errs"
)

func TestInsertThenFindSimilar(t *testing.T) {
	ctx := context.Background()
	s := New(10, 2)

	id, err := s.Insert(ctx, cache.CachedQuestion{QuestionText: "q", Embedding: []float32{1, 0}, Answer: "a"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	matches, err := s.FindSimilar(ctx, []float32{1, 0}, 0.95, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, id, matches[0].ID)
	assert.Equal(t, "a", matches[0].Answer)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-6)

	// Orthogonal query misses.
	matches, err = s.FindSimilar(ctx, []float32{0, 1}, 0.95, 1)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestFindSimilarOrdersBestFirstAndHonoursLimit(t *testing.T) {
	ctx := context.Background()
	s := New(10, 2)

	_, err := s.Insert(ctx, cache.CachedQuestion{ID: "close", Embedding: []float32{0.99, 0.1}, Answer: "close"})
	require.NoError(t, err)
	_, err = s.Insert(ctx, cache.CachedQuestion{ID: "exact", Embedding: []float32{1, 0}, Answer: "exact"})
	require.NoError(t, err)
	_, err = s.Insert(ctx, cache.CachedQuestion{ID: "far", Embedding: []float32{0, 1}, Answer: "far"})
	require.NoError(t, err)

	matches, err := s.FindSimilar(ctx, []float32{1, 0}, 0.9, 5)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "exact", matches[0].ID)
	assert.Equal(t, "close", matches[1].ID)

	matches, err = s.FindSimilar(ctx, []float32{1, 0}, 0.9, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "exact", matches[0].ID)
}

func TestDimensionMismatchIsConfigError(t *testing.T) {
	ctx := context.Background()
	s := New(10, 3)

	_, err := s.Insert(ctx, cache.CachedQuestion{Embedding: []float32{1, 0}})
	assert.True(t, errs.HasCode(err, errs.CodeConfigInvalid))

	_, err = s.FindSimilar(ctx, []float32{1}, 0.9, 1)
	assert.True(t, errs.HasCode(err, errs.CodeConfigInvalid))
}

func TestIncrementHit(t *testing.T) {
	ctx := context.Background()
	s := New(10, 1)
	id, err := s.Insert(ctx, cache.CachedQuestion{Embedding: []float32{1}, Answer: "a"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.IncrementHit(ctx, id))
		}()
	}
	wg.Wait()

	got, ok := s.Get(id)
	require.True(t, ok)
	assert.Equal(t, int64(50), got.HitCount)

	err = s.IncrementHit(ctx, "missing")
	assert.True(t, errs.IsStoreUnavailable(err))
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	s := New(2, 1)

	_, _ = s.Insert(ctx, cache.CachedQuestion{ID: "a", Embedding: []float32{1}})
	_, _ = s.Insert(ctx, cache.CachedQuestion{ID: "b", Embedding: []float32{1}})
	require.NoError(t, s.IncrementHit(ctx, "a"))
	_, _ = s.Insert(ctx, cache.CachedQuestion{ID: "c", Embedding: []float32{1}})

	assert.Equal(t, 2, s.Len())
	_, ok := s.Get("b")
	assert.False(t, ok)
	_, ok = s.Get("a")
	assert.True(t, ok)
}

func TestInsertCopiesEmbedding(t *testing.T) {
	ctx := context.Background()
	s := New(10, 2)
	vector := []float32{1, 0}
	id, err := s.Insert(ctx, cache.CachedQuestion{Embedding: vector})
	require.NoError(t, err)

	vector[0] = 0
	got, _ := s.Get(id)
	assert.Equal(t, []float32{1, 0}, got.Embedding)
}
