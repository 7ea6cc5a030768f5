package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solver_gateway/errs"
	"solver_gateway/quota"
)

func TestUnknownAccountIsNotFound(t *testing.T) {
	l := New(Options{})

	_, err := l.GetAccount(context.Background(), "ghost")
	assert.True(t, errs.IsNotFound(err))
	assert.True(t, errs.IsNotFound(l.IncrementUsage(context.Background(), "ghost")))
}

func TestAutoProvision(t *testing.T) {
	l := New(Options{AutoProvision: true})

	account, err := l.GetAccount(context.Background(), "new")
	require.NoError(t, err)
	assert.Equal(t, quota.Account{ID: "new", Tier: quota.TierFree}, account)
}

func TestConcurrentIncrementsAreNotLost(t *testing.T) {
	ctx := context.Background()
	l := New(Options{})
	l.Put(quota.Account{ID: "u", Tier: quota.TierFree})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, l.IncrementUsage(ctx, "u"))
		}()
	}
	wg.Wait()

	account, err := l.GetAccount(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, 100, account.QuestionsAskedToday)
}

func TestUsageResetsAtUTCMidnight(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)
	l := New(Options{Now: func() time.Time { return now }})
	l.Put(quota.Account{ID: "u", Tier: quota.TierFree})

	for i := 0; i < 5; i++ {
		require.NoError(t, l.IncrementUsage(ctx, "u"))
	}
	account, _ := l.GetAccount(ctx, "u")
	assert.True(t, account.Exceeded(5))

	now = now.Add(2 * time.Minute)
	account, err := l.GetAccount(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, 0, account.QuestionsAskedToday)
	assert.False(t, account.Exceeded(5))
}

func TestSetTier(t *testing.T) {
	ctx := context.Background()
	l := New(Options{})
	l.Put(quota.Account{ID: "u", Tier: quota.TierFree, QuestionsAskedToday: 9})

	require.NoError(t, l.SetTier("u", quota.TierPro))
	account, _ := l.GetAccount(ctx, "u")
	assert.False(t, account.Exceeded(5))

	assert.True(t, errs.IsNotFound(l.SetTier("ghost", quota.TierPro)))
}
