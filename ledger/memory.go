// ABOUTME: In-memory credit account store for tests and single-process deployments.
package ledger

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore keeps accounts in a map guarded by a mutex. Debit is atomic
// under the same mutex.
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[string]*Account
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[string]*Account)}
}

// Get returns a copy of the owner's account, or nil if absent.
func (s *MemoryStore) Get(_ context.Context, owner string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[owner]
	if !ok {
		return nil, nil
	}
	cp := *account
	return &cp, nil
}

// Create stores a new account, failing if the owner already exists.
func (s *MemoryStore) Create(_ context.Context, account *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[account.Owner]; ok {
		return fmt.Errorf("account for owner %q already exists", account.Owner)
	}
	cp := *account
	s.accounts[account.Owner] = &cp
	return nil
}

// Debit conditionally consumes amount credits, returning false without
// mutation when the remaining balance is insufficient.
func (s *MemoryStore) Debit(_ context.Context, owner string, amount int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[owner]
	if !ok {
		return false, fmt.Errorf("no account for owner %q", owner)
	}
	if account.Total-account.Used < amount {
		return false, nil
	}
	account.Used += amount
	return true, nil
}
