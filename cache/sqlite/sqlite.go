package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"solver_gateway/cache"
	"solver_gateway/errs"
)

func init() {
	sqlite_vec.Auto()
}

var _ cache.Store = (*Store)(nil)

// Store implements cache.Store on an embedded SQLite database. Vectors live
// in a sqlite-vec vec0 table using cosine distance; similarity is
// 1 - distance.
type Store struct {
	db         *sql.DB
	dimensions int
}

// New opens (or creates) the database at dbPath and its tables.
func New(dbPath string, dimensions int) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errs.Wrapf(err, errs.CodeStoreUnavailable, "opening sqlite db")
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errs.Wrapf(err, errs.CodeStoreUnavailable, "pinging sqlite db")
	}
	if err := migrate(db, dimensions); err != nil {
		_ = db.Close()
		return nil, errs.Wrapf(err, errs.CodeStoreUnavailable, "migrating sqlite tables")
	}
	return &Store{db: db, dimensions: dimensions}, nil
}

func migrate(db *sql.DB, dimensions int) error {
	vecDDL := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS question_vectors USING vec0(id TEXT PRIMARY KEY, embedding float[%d] distance_metric=cosine)`,
		dimensions,
	)
	if _, err := db.Exec(vecDDL); err != nil {
		return fmt.Errorf("creating question_vectors virtual table: %w", err)
	}

	const questionsDDL = `
CREATE TABLE IF NOT EXISTS questions_cache (
	id            TEXT PRIMARY KEY,
	question_text TEXT NOT NULL,
	answer        TEXT NOT NULL,
	hit_count     INTEGER NOT NULL DEFAULT 0,
	created_at    INTEGER NOT NULL
)`
	if _, err := db.Exec(questionsDDL); err != nil {
		return fmt.Errorf("creating questions_cache table: %w", err)
	}
	return nil
}

func (s *Store) FindSimilar(ctx context.Context, embedding []float32, threshold float32, limit int) ([]cache.Match, error) {
	if err := cache.CheckDimensions(embedding, s.dimensions); err != nil {
		return nil, err
	}
	blob, err := sqlite_vec.SerializeFloat32(embedding)
	if err != nil {
		return nil, errs.Wrapf(err, errs.CodeStoreUnavailable, "serializing query vector")
	}

	const q = `SELECT v.id, v.distance, q.answer
FROM question_vectors v
JOIN questions_cache q ON q.id = v.id
WHERE v.embedding MATCH ? AND k = ?
ORDER BY v.distance`

	rows, err := s.db.QueryContext(ctx, q, blob, limit)
	if err != nil {
		return nil, errs.Wrapf(err, errs.CodeStoreUnavailable, "searching question vectors")
	}
	defer func() { _ = rows.Close() }()

	var matches []cache.Match
	for rows.Next() {
		var (
			m        cache.Match
			distance float64
		)
		if err := rows.Scan(&m.ID, &distance, &m.Answer); err != nil {
			return nil, errs.Wrapf(err, errs.CodeStoreUnavailable, "scanning question vector")
		}
		m.Score = float32(1 - distance)
		if m.Score < threshold {
			// Rows come nearest first, nothing further can qualify.
			break
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrapf(err, errs.CodeStoreUnavailable, "iterating question vectors")
	}
	return matches, nil
}

func (s *Store) Insert(ctx context.Context, item cache.CachedQuestion) (string, error) {
	if err := cache.CheckDimensions(item.Embedding, s.dimensions); err != nil {
		return "", err
	}
	blob, err := sqlite_vec.SerializeFloat32(item.Embedding)
	if err != nil {
		return "", errs.Wrapf(err, errs.CodeStoreUnavailable, "serializing embedding")
	}

	id := item.ID
	if id == "" {
		id = uuid.New().String()
	}
	createdAt := item.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", errs.Wrapf(err, errs.CodeStoreUnavailable, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	const insertQuestion = `INSERT INTO questions_cache(id, question_text, answer, hit_count, created_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, insertQuestion, id, item.QuestionText, item.Answer, item.HitCount, createdAt.Unix()); err != nil {
		return "", errs.Wrapf(err, errs.CodeStoreUnavailable, "inserting question %s", id)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO question_vectors(id, embedding) VALUES (?, ?)`, id, blob); err != nil {
		return "", errs.Wrapf(err, errs.CodeStoreUnavailable, "inserting vector %s", id)
	}
	if err := tx.Commit(); err != nil {
		return "", errs.Wrapf(err, errs.CodeStoreUnavailable, "committing question %s", id)
	}
	return id, nil
}

func (s *Store) IncrementHit(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE questions_cache SET hit_count = hit_count + 1 WHERE id = ?`, id)
	if err != nil {
		return errs.Wrapf(err, errs.CodeStoreUnavailable, "incrementing hit count")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errs.Wrapf(err, errs.CodeStoreUnavailable, "incrementing hit count")
	}
	if n == 0 {
		return errs.New(errs.CodeStoreUnavailable, "incrementing hit count: record not found", errs.FieldRecordID(id))
	}
	return nil
}

// HitCount returns the stored hit counter of a record.
func (s *Store) HitCount(ctx context.Context, id string) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT hit_count FROM questions_cache WHERE id = ?`, id).Scan(&n); err != nil {
		return 0, errs.Wrapf(err, errs.CodeStoreUnavailable, "reading hit count")
	}
	return n, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
