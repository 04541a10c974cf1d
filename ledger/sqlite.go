// ABOUTME: SQLite-backed credit account store with a conditional-update debit.
// ABOUTME: The single UPDATE statement guarantees atomic check-and-increment without a transaction.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SqliteStore persists credit accounts in a SQLite database. The debit is
// a single conditional UPDATE, so concurrent reservations for the same
// owner cannot double-spend even across processes sharing the file.
type SqliteStore struct {
	db *sql.DB
}

// OpenSqlite opens or creates a SQLite credit database at the given path.
func OpenSqlite(path string) (*SqliteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS credit_accounts (
			owner TEXT PRIMARY KEY,
			total INTEGER NOT NULL,
			used INTEGER NOT NULL DEFAULT 0,
			active INTEGER NOT NULL DEFAULT 1,
			expires_at TEXT NOT NULL
		);`

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SqliteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SqliteStore) Close() error {
	return s.db.Close()
}

// Get returns the owner's account, or nil if absent.
func (s *SqliteStore) Get(ctx context.Context, owner string) (*Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT owner, total, used, active, expires_at FROM credit_accounts WHERE owner = ?`, owner)

	var account Account
	var active int
	var expires string
	if err := row.Scan(&account.Owner, &account.Total, &account.Used, &active, &expires); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query account: %w", err)
	}
	account.Active = active != 0

	t, err := time.Parse(time.RFC3339, expires)
	if err != nil {
		return nil, fmt.Errorf("parse expires_at for owner %q: %w", owner, err)
	}
	account.ExpiresAt = t
	return &account, nil
}

// Create inserts a new account, failing if the owner already exists.
func (s *SqliteStore) Create(ctx context.Context, account *Account) error {
	active := 0
	if account.Active {
		active = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO credit_accounts (owner, total, used, active, expires_at) VALUES (?, ?, ?, ?, ?)`,
		account.Owner, account.Total, account.Used, active, account.ExpiresAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// Debit consumes amount credits in one conditional update. RowsAffected
// distinguishes an insufficient balance from a successful debit.
func (s *SqliteStore) Debit(ctx context.Context, owner string, amount int) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE credit_accounts SET used = used + ? WHERE owner = ? AND active = 1 AND total - used >= ?`,
		amount, owner, amount)
	if err != nil {
		return false, fmt.Errorf("debit account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("debit rows affected: %w", err)
	}
	return n == 1, nil
}
