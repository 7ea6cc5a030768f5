package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/atomic"

	"solver_gateway/cache"
	"solver_gateway/errs"
)

type entry struct {
	question  string
	embedding []float32
	answer    string
	hits      *atomic.Int64
	createdAt time.Time
}

// Store is an in-process similarity store bounded by an LRU. Lookups are a
// linear cosine scan, which is fine for the sizes it is meant for: local
// runs, tests and a small hot set.
type Store struct {
	entries    *lru.Cache[string, *entry]
	dimensions int
}

// New creates a store holding at most capacity records of the given dimensionality.
func New(capacity int, dimensions int) *Store {
	entries, err := lru.New[string, *entry](capacity)
	if err != nil {
		// Only returned for a non-positive size, which config validation rejects.
		panic(err)
	}
	return &Store{entries: entries, dimensions: dimensions}
}

func (s *Store) FindSimilar(_ context.Context, embedding []float32, threshold float32, limit int) ([]cache.Match, error) {
	if err := cache.CheckDimensions(embedding, s.dimensions); err != nil {
		return nil, err
	}

	var matches []cache.Match
	for _, id := range s.entries.Keys() {
		e, ok := s.entries.Peek(id)
		if !ok {
			continue
		}
		score := cache.CosineSimilarity(embedding, e.embedding)
		if score < threshold {
			continue
		}
		matches = append(matches, cache.Match{ID: id, Score: score, Answer: e.answer})
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (s *Store) Insert(_ context.Context, item cache.CachedQuestion) (string, error) {
	if err := cache.CheckDimensions(item.Embedding, s.dimensions); err != nil {
		return "", err
	}

	id := item.ID
	if id == "" {
		id = uuid.New().String()
	}
	createdAt := item.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	vector := make([]float32, len(item.Embedding))
	copy(vector, item.Embedding)

	s.entries.Add(id, &entry{
		question:  item.QuestionText,
		embedding: vector,
		answer:    item.Answer,
		hits:      atomic.NewInt64(item.HitCount),
		createdAt: createdAt,
	})
	return id, nil
}

// IncrementHit also refreshes the record's recency so popular answers survive eviction.
func (s *Store) IncrementHit(_ context.Context, id string) error {
	e, ok := s.entries.Get(id)
	if !ok {
		return errs.New(errs.CodeStoreUnavailable, "fail to increment hit count: record not found",
			errs.FieldRecordID(id))
	}
	e.hits.Inc()
	return nil
}

// Get returns a stored record without touching its recency.
func (s *Store) Get(id string) (cache.CachedQuestion, bool) {
	e, ok := s.entries.Peek(id)
	if !ok {
		return cache.CachedQuestion{}, false
	}
	return cache.CachedQuestion{
		ID:           id,
		QuestionText: e.question,
		Embedding:    e.embedding,
		Answer:       e.answer,
		HitCount:     e.hits.Load(),
		CreatedAt:    e.createdAt,
	}, true
}

func (s *Store) Len() int {
	return s.entries.Len()
}
