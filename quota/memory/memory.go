package memory

import (
	"context"
	"sync"
	"time"

	"solver_gateway/errs"
	"solver_gateway/quota"
)

type Options struct {
	// AutoProvision creates unknown accounts as free with zero usage instead
	// of failing with NotFound.
	AutoProvision bool
	// Now is the clock used for the daily reset. Defaults to time.Now.
	Now func() time.Time
}

type record struct {
	tier  quota.Tier
	asked int
	day   string
}

// Ledger keeps accounts in process memory. Usage resets at UTC midnight.
type Ledger struct {
	mu       sync.Mutex
	accounts map[string]*record
	opts     Options
}

func New(opts Options) *Ledger {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Ledger{accounts: make(map[string]*record), opts: opts}
}

// Put creates or replaces an account.
func (l *Ledger) Put(account quota.Account) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accounts[account.ID] = &record{tier: account.Tier, asked: account.QuestionsAskedToday, day: l.today()}
}

// SetTier changes an account's tier, as a subscription update would.
func (l *Ledger) SetTier(accountID string, tier quota.Tier) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.accounts[accountID]
	if !ok {
		return errs.New(errs.CodeNotFound, "account not found", errs.FieldAccountID(accountID))
	}
	r.tier = tier
	return nil
}

func (l *Ledger) GetAccount(_ context.Context, accountID string) (quota.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, err := l.lookup(accountID)
	if err != nil {
		return quota.Account{}, err
	}
	return quota.Account{ID: accountID, Tier: r.tier, QuestionsAskedToday: r.asked}, nil
}

func (l *Ledger) IncrementUsage(_ context.Context, accountID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, err := l.lookup(accountID)
	if err != nil {
		return err
	}
	r.asked++
	return nil
}

// lookup returns the record for accountID with its daily counter rolled
// over. Callers hold l.mu.
func (l *Ledger) lookup(accountID string) (*record, error) {
	today := l.today()
	r, ok := l.accounts[accountID]
	if !ok {
		if !l.opts.AutoProvision {
			return nil, errs.New(errs.CodeNotFound, "account not found", errs.FieldAccountID(accountID))
		}
		r = &record{tier: quota.TierFree, day: today}
		l.accounts[accountID] = r
	}
	if r.day != today {
		r.asked = 0
		r.day = today
	}
	return r, nil
}

func (l *Ledger) today() string {
	return l.opts.Now().UTC().Format(time.DateOnly)
}
