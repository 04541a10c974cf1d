// ABOUTME: Integration tests for the Postgres credit store, skipped unless POSTPILOT_TEST_PG_DSN is set.
package ledger

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

func openPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("POSTPILOT_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("POSTPILOT_TEST_PG_DSN not set")
	}
	store, err := OpenPostgres(context.Background(), dsn)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPostgresDebitConditional(t *testing.T) {
	store := openPostgresStore(t)
	ctx := context.Background()

	owner := "test-" + uuid.NewString()
	if err := store.Create(ctx, &Account{Owner: owner, Total: 2, Active: true, ExpiresAt: time.Now().Add(time.Hour)}); err != nil {
		t.Fatalf("create: %v", err)
	}

	ok, err := store.Debit(ctx, owner, 2)
	if err != nil || !ok {
		t.Fatalf("debit within balance: ok=%v err=%v", ok, err)
	}
	ok, err = store.Debit(ctx, owner, 1)
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if ok {
		t.Error("debit beyond balance should be refused")
	}
}
