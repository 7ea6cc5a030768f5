package cache

import (
	"context"
	"time"
)

//go:generate mockgen -source=interface.go -destination=mock/mock.go -package=mock

// Store persists answered questions and answers nearest-neighbor queries.
// All methods fail with errs.CodeStoreUnavailable on datastore errors.
type Store interface {
	// FindSimilar returns at most limit matches with Score >= threshold,
	// best match first.
	FindSimilar(ctx context.Context, embedding []float32, threshold float32, limit int) ([]Match, error)
	// Insert persists item and returns its record id.
	Insert(ctx context.Context, item CachedQuestion) (string, error)
	// IncrementHit bumps the hit counter of a record. Informational only.
	IncrementHit(ctx context.Context, id string) error
}

// CachedQuestion is one answered question.
type CachedQuestion struct {
	ID           string
	QuestionText string
	Embedding    []float32
	Answer       string
	HitCount     int64
	CreatedAt    time.Time
}

// Match is a FindSimilar result. Score is cosine similarity.
type Match struct {
	ID     string
	Score  float32
	Answer string
}
