package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"solver_gateway/errs"
	"solver_gateway/quota"
)

// usageTTL keeps yesterday's counter around briefly after the day rolls over.
const usageTTL = 48 * time.Hour

// Ledger implements quota.Ledger on Redis. The tier lives in the hash
// account:{id}; daily usage is a counter under usage:{id}:{YYYY-MM-DD} (UTC),
// so the daily reset is simply a new key.
type Ledger struct {
	client *redis.Client
	now    func() time.Time
}

func New(client *redis.Client) *Ledger {
	return &Ledger{client: client, now: time.Now}
}

func accountKey(accountID string) string {
	return "account:" + accountID
}

func usageKey(accountID string, day time.Time) string {
	return fmt.Sprintf("usage:%s:%s", accountID, day.UTC().Format(time.DateOnly))
}

// Provision creates or updates an account's tier.
func (l *Ledger) Provision(ctx context.Context, accountID string, tier quota.Tier) error {
	if err := l.client.HSet(ctx, accountKey(accountID), "tier", string(tier)).Err(); err != nil {
		return errs.Wrapf(err, errs.CodeStoreUnavailable, "fail to provision account")
	}
	return nil
}

func (l *Ledger) GetAccount(ctx context.Context, accountID string) (quota.Account, error) {
	var (
		tierCmd  *redis.StringCmd
		usageCmd *redis.StringCmd
	)
	_, err := l.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		tierCmd = pipe.HGet(ctx, accountKey(accountID), "tier")
		usageCmd = pipe.Get(ctx, usageKey(accountID, l.now()))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return quota.Account{}, errs.Wrapf(err, errs.CodeStoreUnavailable, "fail to load account")
	}

	tier, err := tierCmd.Result()
	if errors.Is(err, redis.Nil) {
		return quota.Account{}, errs.New(errs.CodeNotFound, "account not found", errs.FieldAccountID(accountID))
	}
	if err != nil {
		return quota.Account{}, errs.Wrapf(err, errs.CodeStoreUnavailable, "fail to load account tier")
	}

	asked, err := usageCmd.Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return quota.Account{}, errs.Wrapf(err, errs.CodeStoreUnavailable, "fail to load account usage")
	}

	return quota.Account{ID: accountID, Tier: quota.ParseTier(tier), QuestionsAskedToday: asked}, nil
}

// IncrementUsage relies on INCR, which is atomic on the server.
func (l *Ledger) IncrementUsage(ctx context.Context, accountID string) error {
	exists, err := l.client.Exists(ctx, accountKey(accountID)).Result()
	if err != nil {
		return errs.Wrapf(err, errs.CodeStoreUnavailable, "fail to check account")
	}
	if exists == 0 {
		return errs.New(errs.CodeNotFound, "account not found", errs.FieldAccountID(accountID))
	}

	key := usageKey(accountID, l.now())
	_, err = l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, usageTTL)
		return nil
	})
	if err != nil {
		return errs.Wrapf(err, errs.CodeStoreUnavailable, "fail to increment usage")
	}
	return nil
}
