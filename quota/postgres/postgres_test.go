package postgres

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solver_gateway/errs"
	"solver_gateway/quota"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	url := os.Getenv("SOLVER_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("SOLVER_TEST_POSTGRES_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	l := New(pool)
	require.NoError(t, l.EnsureSchema(ctx))
	_, err = pool.Exec(ctx, `DELETE FROM profiles WHERE id LIKE 'test_%'`)
	require.NoError(t, err)
	return l
}

func TestGetAccountAndIncrement(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	_, err := l.pool.Exec(ctx, `INSERT INTO profiles (id, subscription_tier) VALUES ('test_free', 'free')`)
	require.NoError(t, err)

	require.NoError(t, l.IncrementUsage(ctx, "test_free"))
	account, err := l.GetAccount(ctx, "test_free")
	require.NoError(t, err)
	assert.Equal(t, quota.Account{ID: "test_free", Tier: quota.TierFree, QuestionsAskedToday: 1}, account)
}

func TestStaleUsageDateReadsAsZero(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	_, err := l.pool.Exec(ctx, `
        INSERT INTO profiles (id, subscription_tier, questions_asked_today, usage_date)
        VALUES ('test_stale', 'free', 5, CURRENT_DATE - 1)`)
	require.NoError(t, err)

	account, err := l.GetAccount(ctx, "test_stale")
	require.NoError(t, err)
	assert.Equal(t, 0, account.QuestionsAskedToday)

	require.NoError(t, l.IncrementUsage(ctx, "test_stale"))
	account, err = l.GetAccount(ctx, "test_stale")
	require.NoError(t, err)
	assert.Equal(t, 1, account.QuestionsAskedToday)
}

func TestConcurrentIncrements(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	_, err := l.pool.Exec(ctx, `INSERT INTO profiles (id, subscription_tier) VALUES ('test_busy', 'pro')`)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, l.IncrementUsage(ctx, "test_busy"))
		}()
	}
	wg.Wait()

	account, err := l.GetAccount(ctx, "test_busy")
	require.NoError(t, err)
	assert.Equal(t, 20, account.QuestionsAskedToday)
	assert.Equal(t, quota.TierPro, account.Tier)
}

func TestUnknownAccount(t *testing.T) {
	l := newTestLedger(t)

	_, err := l.GetAccount(context.Background(), "test_ghost")
	assert.True(t, errs.IsNotFound(err))
	assert.True(t, errs.IsNotFound(l.IncrementUsage(context.Background(), "test_ghost")))
}
