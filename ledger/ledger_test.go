// ABOUTME: Tests for credit gating: lazy provisioning, the balance invariant, fail-closed reserves,
// ABOUTME: expiry handling, and the concurrent no-double-spend property.
package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestCheckProvisionsStarterAccount(t *testing.T) {
	l := New(NewMemoryStore(), WithStarterCredits(10))

	bal, err := l.Check(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bal.Available {
		t.Error("fresh starter account should be available")
	}
	if bal.Total != 10 || bal.Used != 0 || bal.Remaining != 10 {
		t.Errorf("unexpected balance: %+v", bal)
	}
}

func TestCheckIsIdempotent(t *testing.T) {
	l := New(NewMemoryStore(), WithStarterCredits(5))
	ctx := context.Background()

	first, _ := l.Check(ctx, "owner-1")
	second, _ := l.Check(ctx, "owner-1")
	if first != second {
		t.Errorf("repeated checks differ: %+v vs %+v", first, second)
	}
}

func TestReserveDebitsBalance(t *testing.T) {
	l := New(NewMemoryStore(), WithStarterCredits(3))
	ctx := context.Background()

	if !l.Reserve(ctx, "owner-1", 2) {
		t.Fatal("reserve within balance should succeed")
	}
	bal, _ := l.Check(ctx, "owner-1")
	if bal.Used != 2 || bal.Remaining != 1 {
		t.Errorf("unexpected balance after reserve: %+v", bal)
	}
	if bal.Remaining != bal.Total-bal.Used {
		t.Errorf("invariant violated: remaining=%d total=%d used=%d", bal.Remaining, bal.Total, bal.Used)
	}
}

func TestReserveInsufficientBalance(t *testing.T) {
	l := New(NewMemoryStore(), WithStarterCredits(1))
	ctx := context.Background()

	if l.Reserve(ctx, "owner-1", 2) {
		t.Fatal("reserve beyond balance should fail")
	}
	bal, _ := l.Check(ctx, "owner-1")
	if bal.Used != 0 {
		t.Errorf("failed reserve must not mutate: used=%d", bal.Used)
	}
}

func TestReserveZeroAmount(t *testing.T) {
	l := New(NewMemoryStore())
	if !l.Reserve(context.Background(), "owner-1", 0) {
		t.Error("zero-cost reserve should succeed")
	}
	if l.Reserve(context.Background(), "owner-1", -1) {
		t.Error("negative reserve should fail")
	}
}

func TestNoDoubleSpend(t *testing.T) {
	// Two concurrent reserves against remaining==1: exactly one wins.
	l := New(NewMemoryStore(), WithStarterCredits(1))
	ctx := context.Background()
	l.Check(ctx, "owner-1")

	var wg sync.WaitGroup
	results := make([]bool, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = l.Reserve(ctx, "owner-1", 1)
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, ok := range results {
		if ok {
			successes++
		}
	}
	if successes != 1 {
		t.Errorf("expected exactly 1 successful reserve, got %d", successes)
	}
	bal, _ := l.Check(ctx, "owner-1")
	if bal.Used != 1 {
		t.Errorf("expected used=1 after the race, got %d", bal.Used)
	}
}

func TestReserveExpiredAccount(t *testing.T) {
	l := New(NewMemoryStore(), WithValidity(-time.Hour))
	ctx := context.Background()

	if l.Reserve(ctx, "owner-1", 1) {
		t.Error("reserve against an expired account should fail")
	}
	bal, _ := l.Check(ctx, "owner-1")
	if bal.Available {
		t.Error("expired account should not be available")
	}
}

// failingStore simulates a storage outage for fail-closed testing.
type failingStore struct{}

func (failingStore) Get(context.Context, string) (*Account, error) {
	return nil, errors.New("storage unavailable")
}
func (failingStore) Create(context.Context, *Account) error {
	return errors.New("storage unavailable")
}
func (failingStore) Debit(context.Context, string, int) (bool, error) {
	return false, errors.New("storage unavailable")
}

func TestReserveFailsClosedOnStoreError(t *testing.T) {
	l := New(failingStore{})
	if l.Reserve(context.Background(), "owner-1", 1) {
		t.Error("storage failure must never grant credit")
	}
}

// debitFailingStore provisions fine but fails at debit time.
type debitFailingStore struct {
	*MemoryStore
}

func (s debitFailingStore) Debit(context.Context, string, int) (bool, error) {
	return false, errors.New("debit failed")
}

func TestReserveFailsClosedOnDebitError(t *testing.T) {
	l := New(debitFailingStore{NewMemoryStore()})
	ctx := context.Background()
	l.Check(ctx, "owner-1")
	if l.Reserve(ctx, "owner-1", 1) {
		t.Error("debit failure must never grant credit")
	}
}
