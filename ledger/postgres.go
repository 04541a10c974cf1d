// ABOUTME: Postgres-backed credit account store for multi-instance deployments, using the pgx stdlib driver.
// ABOUTME: Debit relies on the same conditional UPDATE as the SQLite store, atomic under Postgres row locking.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore persists credit accounts in Postgres. Use this instead of
// SqliteStore when multiple service instances share one ledger.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres connects to Postgres using a pgx connection URL and ensures
// the credit_accounts table exists.
func OpenPostgres(ctx context.Context, url string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS credit_accounts (
			owner TEXT PRIMARY KEY,
			total INTEGER NOT NULL,
			used INTEGER NOT NULL DEFAULT 0,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			expires_at TIMESTAMPTZ NOT NULL
		)`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Get returns the owner's account, or nil if absent.
func (s *PostgresStore) Get(ctx context.Context, owner string) (*Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT owner, total, used, active, expires_at FROM credit_accounts WHERE owner = $1`, owner)

	var account Account
	if err := row.Scan(&account.Owner, &account.Total, &account.Used, &account.Active, &account.ExpiresAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query account: %w", err)
	}
	return &account, nil
}

// Create inserts a new account, failing if the owner already exists.
func (s *PostgresStore) Create(ctx context.Context, account *Account) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO credit_accounts (owner, total, used, active, expires_at) VALUES ($1, $2, $3, $4, $5)`,
		account.Owner, account.Total, account.Used, account.Active, account.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// Debit consumes amount credits in one conditional update.
func (s *PostgresStore) Debit(ctx context.Context, owner string, amount int) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE credit_accounts SET used = used + $1 WHERE owner = $2 AND active AND total - used >= $1`,
		amount, owner)
	if err != nil {
		return false, fmt.Errorf("debit account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("debit rows affected: %w", err)
	}
	return n == 1, nil
}
