package quota

import "context"

//go:generate mockgen -source=interface.go -destination=mock/mock.go -package=mock

// Tier is an account's subscription level.
type Tier string

const (
	TierFree Tier = "free"
	TierPro  Tier = "pro"
)

// Account is the per-account usage record read once per request.
// QuestionsAskedToday resets on a daily boundary owned by the ledger backend.
type Account struct {
	ID                  string
	Tier                Tier
	QuestionsAskedToday int
}

// Ledger tracks per-account tier and daily usage.
type Ledger interface {
	// GetAccount fails with errs.CodeNotFound for unknown accounts.
	GetAccount(ctx context.Context, accountID string) (Account, error)
	// IncrementUsage atomically adds one question to today's count.
	IncrementUsage(ctx context.Context, accountID string) error
}

// ParseTier maps stored tier names onto Tier. Anything unrecognised is free.
func ParseTier(s string) Tier {
	if Tier(s) == TierPro {
		return TierPro
	}
	return TierFree
}

// Exceeded reports whether a free account has used up its daily allowance.
// Pro accounts are never limited.
func (a Account) Exceeded(dailyFreeLimit int) bool {
	return a.Tier == TierFree && a.QuestionsAskedToday >= dailyFreeLimit
}
