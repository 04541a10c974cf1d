// ABOUTME: Credit ledger gating pipeline execution on a consumable per-owner balance.
// ABOUTME: Provisions starter accounts lazily and reserves credit atomically with per-owner serialization.
package ledger

import (
	"context"
	"sync"
	"time"
)

// DefaultStarterCredits is the allotment granted when an owner is first seen.
const DefaultStarterCredits = 20

// DefaultValidity is how long a starter account stays usable.
const DefaultValidity = 30 * 24 * time.Hour

// Account tracks a consumable credit balance for one owner. The invariant
// Remaining() == Total - Used holds at every observation point; Used never
// exceeds Total.
type Account struct {
	Owner     string
	Total     int
	Used      int
	Active    bool
	ExpiresAt time.Time
}

// Remaining returns the unconsumed balance.
func (a Account) Remaining() int {
	return a.Total - a.Used
}

// Expired reports whether the account is past its expiry. Expiry is a
// read-time check; expired accounts are never deleted.
func (a Account) Expired(now time.Time) bool {
	return !a.ExpiresAt.IsZero() && now.After(a.ExpiresAt)
}

// Store is the persistence boundary for credit accounts. Debit must be
// atomic: it checks Total-Used >= amount and increments Used in one
// conditional update, returning false without mutation when the balance is
// insufficient.
type Store interface {
	Get(ctx context.Context, owner string) (*Account, error)
	Create(ctx context.Context, account *Account) error
	Debit(ctx context.Context, owner string, amount int) (bool, error)
}

// Balance is the read-only view returned by Check.
type Balance struct {
	Available bool
	Remaining int
	Total     int
	Used      int
}

// Ledger gates and debits pipeline runs against per-owner credit accounts.
// Per-owner mutexes serialize Reserve calls so a conditional update at the
// storage layer is the only other atomicity requirement.
type Ledger struct {
	store    Store
	starter  int
	validity time.Duration

	mu     sync.Mutex
	owners map[string]*sync.Mutex
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithStarterCredits overrides the default allotment for new owners.
func WithStarterCredits(n int) Option {
	return func(l *Ledger) { l.starter = n }
}

// WithValidity overrides how long newly provisioned accounts stay usable.
func WithValidity(d time.Duration) Option {
	return func(l *Ledger) { l.validity = d }
}

// New creates a Ledger over the given store.
func New(store Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:    store,
		starter:  DefaultStarterCredits,
		validity: DefaultValidity,
		owners:   make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ownerLock returns the mutex for one owner, creating it on first use.
func (l *Ledger) ownerLock(owner string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.owners[owner]
	if !ok {
		m = &sync.Mutex{}
		l.owners[owner] = m
	}
	return m
}

// Check returns the owner's balance, provisioning a starter account the
// first time an unknown owner is observed. Apart from that one-time lazy
// provisioning it performs no mutation.
func (l *Ledger) Check(ctx context.Context, owner string) (Balance, error) {
	account, err := l.ensure(ctx, owner)
	if err != nil {
		return Balance{}, err
	}
	return Balance{
		Available: account.Active && !account.Expired(time.Now()) && account.Remaining() > 0,
		Remaining: account.Remaining(),
		Total:     account.Total,
		Used:      account.Used,
	}, nil
}

// Reserve atomically consumes amount credits from the owner's balance.
// It returns false when the balance is insufficient, the account is
// inactive or expired, or the store fails: ambiguity never grants credit.
func (l *Ledger) Reserve(ctx context.Context, owner string, amount int) bool {
	if amount <= 0 {
		return amount == 0
	}

	lock := l.ownerLock(owner)
	lock.Lock()
	defer lock.Unlock()

	account, err := l.ensure(ctx, owner)
	if err != nil {
		return false
	}
	if !account.Active || account.Expired(time.Now()) {
		return false
	}

	ok, err := l.store.Debit(ctx, owner, amount)
	if err != nil {
		return false
	}
	return ok
}

// ensure fetches the owner's account, creating a starter account if absent.
func (l *Ledger) ensure(ctx context.Context, owner string) (*Account, error) {
	account, err := l.store.Get(ctx, owner)
	if err != nil {
		return nil, err
	}
	if account != nil {
		return account, nil
	}

	account = &Account{
		Owner:     owner,
		Total:     l.starter,
		Active:    true,
		ExpiresAt: time.Now().Add(l.validity),
	}
	if err := l.store.Create(ctx, account); err != nil {
		// Lost a provisioning race with another instance; re-read.
		existing, getErr := l.store.Get(ctx, owner)
		if getErr == nil && existing != nil {
			return existing, nil
		}
		return nil, err
	}
	return account, nil
}
