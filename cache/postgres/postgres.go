package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"solver_gateway/cache"
	"solver_gateway/errs"
)

// Store implements cache.Store on PostgreSQL with the pgvector extension.
// Similarity is 1 - cosine distance.
type Store struct {
	pool       *pgxpool.Pool
	dimensions int
}

func New(pool *pgxpool.Pool, dimensions int) *Store {
	return &Store{pool: pool, dimensions: dimensions}
}

// EnsureSchema creates the pgvector extension, the questions_cache table and
// its cosine index when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS questions_cache (
            id            uuid PRIMARY KEY DEFAULT gen_random_uuid(),
            question_text text NOT NULL,
            embedding     vector(%d) NOT NULL,
            answer        text NOT NULL,
            hit_count     bigint NOT NULL DEFAULT 0,
            created_at    timestamptz NOT NULL DEFAULT now()
        )`, s.dimensions),
		`CREATE INDEX IF NOT EXISTS questions_cache_embedding_idx
            ON questions_cache USING hnsw (embedding vector_cosine_ops)`,
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return errs.Wrapf(err, errs.CodeStoreUnavailable, "fail to ensure questions_cache schema")
		}
	}
	// CREATE TABLE IF NOT EXISTS keeps an older table as it was.
	return s.CheckSchema(ctx)
}

// CheckSchema verifies that questions_cache exists and that its embedding
// column has the configured dimensionality.
func (s *Store) CheckSchema(ctx context.Context) error {
	var typmod int32
	err := s.pool.QueryRow(ctx, `
        SELECT atttypmod FROM pg_attribute
        WHERE attrelid = to_regclass('questions_cache')
          AND attname = 'embedding'
          AND NOT attisdropped
    `).Scan(&typmod)
	if errors.Is(err, pgx.ErrNoRows) {
		return errs.New(errs.CodeConfigInvalid,
			"questions_cache table or its embedding column is missing; enable postgres.ensure_schema")
	}
	if err != nil {
		return errs.Wrapf(err, errs.CodeStoreUnavailable, "fail to inspect questions_cache schema")
	}
	return checkColumnDimensions(int(typmod), s.dimensions)
}

// checkColumnDimensions compares a vector column's type modifier, which
// pgvector sets to the declared dimension, with the configured one.
func checkColumnDimensions(typmod int, dimensions int) error {
	if typmod != dimensions {
		return errs.New(errs.CodeConfigInvalid, "questions_cache.embedding dimension does not match embedding.dimensions",
			errs.Field("column", typmod), errs.Field("want", dimensions))
	}
	return nil
}

func (s *Store) FindSimilar(ctx context.Context, embedding []float32, threshold float32, limit int) ([]cache.Match, error) {
	if err := cache.CheckDimensions(embedding, s.dimensions); err != nil {
		return nil, err
	}

	query := `
        SELECT id::text, answer, 1 - (embedding <=> $1::vector) AS similarity
        FROM questions_cache
        WHERE 1 - (embedding <=> $1::vector) >= $2
        ORDER BY embedding <=> $1::vector
        LIMIT $3
    `
	rows, err := s.pool.Query(ctx, query, vectorParam(embedding), float64(threshold), limit)
	if err != nil {
		return nil, errs.Wrapf(err, errs.CodeStoreUnavailable, "fail to query similar questions")
	}
	defer rows.Close()

	var matches []cache.Match
	for rows.Next() {
		var (
			m          cache.Match
			similarity float64
		)
		if err := rows.Scan(&m.ID, &m.Answer, &similarity); err != nil {
			return nil, errs.Wrapf(err, errs.CodeStoreUnavailable, "fail to scan similar question")
		}
		m.Score = float32(similarity)
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrapf(err, errs.CodeStoreUnavailable, "fail to read similar questions")
	}
	return matches, nil
}

func (s *Store) Insert(ctx context.Context, item cache.CachedQuestion) (string, error) {
	if err := cache.CheckDimensions(item.Embedding, s.dimensions); err != nil {
		return "", err
	}
	createdAt := item.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
        INSERT INTO questions_cache (question_text, embedding, answer, hit_count, created_at)
        VALUES ($1, $2::vector, $3, $4, $5)
        RETURNING id::text
    `
	var id string
	err := s.pool.QueryRow(ctx, query,
		item.QuestionText,
		vectorParam(item.Embedding),
		item.Answer,
		item.HitCount,
		createdAt,
	).Scan(&id)
	if err != nil {
		return "", errs.Wrapf(err, errs.CodeStoreUnavailable, "fail to insert cached question")
	}
	return id, nil
}

func (s *Store) IncrementHit(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE questions_cache SET hit_count = hit_count + 1 WHERE id = $1::uuid`, id)
	if err != nil {
		return errs.Wrapf(err, errs.CodeStoreUnavailable, "fail to increment hit count")
	}
	if tag.RowsAffected() == 0 {
		return errs.New(errs.CodeStoreUnavailable, "fail to increment hit count: record not found",
			errs.FieldRecordID(id))
	}
	return nil
}

// vectorParam renders v in pgvector's text format, e.g. [0.1,0.2], for the
// $n::vector casts. Sent as text, no per-connection type registration is
// needed before the extension exists.
func vectorParam(v []float32) string {
	return pgvector.NewVector(v).String()
}
