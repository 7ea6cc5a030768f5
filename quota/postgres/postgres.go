package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"solver_gateway/errs"
	"solver_gateway/quota"
)

// Ledger implements quota.Ledger on the profiles table. The daily counter
// belongs to usage_date; a row whose usage_date is not today reads as zero
// and restarts at one on the next increment.
type Ledger struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

// EnsureSchema creates the profiles table when missing. Tier and
// subscription_status are written by the subscription webhook, never here.
func (l *Ledger) EnsureSchema(ctx context.Context) error {
	_, err := l.pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS profiles (
            id                    text PRIMARY KEY,
            subscription_tier     text NOT NULL DEFAULT 'free',
            subscription_status   text,
            questions_asked_today integer NOT NULL DEFAULT 0,
            usage_date            date NOT NULL DEFAULT CURRENT_DATE
        )`)
	if err != nil {
		return errs.Wrapf(err, errs.CodeStoreUnavailable, "fail to ensure profiles schema")
	}
	return nil
}

func (l *Ledger) GetAccount(ctx context.Context, accountID string) (quota.Account, error) {
	query := `
        SELECT subscription_tier,
               CASE WHEN usage_date = CURRENT_DATE THEN questions_asked_today ELSE 0 END
        FROM profiles
        WHERE id = $1
    `
	var (
		tier  string
		asked int
	)
	err := l.pool.QueryRow(ctx, query, accountID).Scan(&tier, &asked)
	if errors.Is(err, pgx.ErrNoRows) {
		return quota.Account{}, errs.New(errs.CodeNotFound, "account not found", errs.FieldAccountID(accountID))
	}
	if err != nil {
		return quota.Account{}, errs.Wrapf(err, errs.CodeStoreUnavailable, "fail to load profile")
	}
	return quota.Account{ID: accountID, Tier: quota.ParseTier(tier), QuestionsAskedToday: asked}, nil
}

// IncrementUsage is a single UPDATE, so concurrent increments serialize on
// the row lock and none are lost.
func (l *Ledger) IncrementUsage(ctx context.Context, accountID string) error {
	query := `
        UPDATE profiles
        SET questions_asked_today = CASE WHEN usage_date = CURRENT_DATE THEN questions_asked_today + 1 ELSE 1 END,
            usage_date = CURRENT_DATE
        WHERE id = $1
    `
	tag, err := l.pool.Exec(ctx, query, accountID)
	if err != nil {
		return errs.Wrapf(err, errs.CodeStoreUnavailable, "fail to increment usage")
	}
	if tag.RowsAffected() == 0 {
		return errs.New(errs.CodeNotFound, "account not found", errs.FieldAccountID(accountID))
	}
	return nil
}
