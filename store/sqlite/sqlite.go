/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements payments.TxStore and coins.TxStore over one SQLite database.
  In production the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

KEY TABLES:
  payables:          Orders and purchase invoices with cached status
  payments:          Payment records (live set sums drive the status)
  counterparties:    Customers/suppliers with cached outstanding balance
  wallets:           Cached per-user coin totals
  coin_transactions: Immutable coin ledger (append-only)

APPEND-ONLY ENFORCEMENT:
  coin_transactions has no UPDATE or DELETE path in this package.
  Corrections append reversing entries through the coin ledger.

CONCURRENCY:
  A single writer mutex serializes transactions. The DSN requests
  immediate transactions so writers take the database lock up front, and
  busy/locked failures are mapped to ledger.ErrConcurrencyConflict so
  the engines can retry within their bounded budget.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) so readers don't block
  behind the single writer.

USAGE:
  db, err := sqlite.Open("./data/ledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer db.Close()

  payStore := sqlite.NewPaymentStore(db)
  coinStore := sqlite.NewCoinStore(db)

MIGRATION:
  Schema is auto-migrated on Open(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - payment_store.go: payments.TxStore implementation
  - coin_store.go: coins.TxStore implementation
  - store/memory: In-memory implementations for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/storefront/ledger-core/ledger"
)

// DB is a shared SQLite handle with a writer mutex. Both domain stores
// are views over one DB so cross-table work stays in a single file.
type DB struct {
	sql *sql.DB
	mu  sync.RWMutex
}

// Open opens (or creates) the database at path and migrates the schema.
// Use ":memory:" for an in-memory database.
func Open(path string) (*DB, error) {
	handle, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{sql: handle}
	if err := db.migrate(); err != nil {
		handle.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.sql.Close()
}

// migrate creates the database schema.
func (db *DB) migrate() error {
	schema := `
	-- Payables (sales orders and purchase invoices)
	CREATE TABLE IF NOT EXISTS payables (
		id TEXT NOT NULL,
		kind TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		payment_status TEXT NOT NULL DEFAULT 'pending',
		counterparty_id TEXT,
		created_at TEXT NOT NULL,
		PRIMARY KEY (kind, id)
	);

	-- Payments (the authoritative set behind every payable status)
	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		payment_number TEXT NOT NULL UNIQUE,
		payable_kind TEXT NOT NULL,
		payable_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		direction TEXT NOT NULL,
		method TEXT,
		pay_date TEXT NOT NULL,
		counterparty_id TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payments_payable
		ON payments(payable_kind, payable_id);
	CREATE INDEX IF NOT EXISTS idx_payments_counterparty
		ON payments(counterparty_id);

	-- Counterparties (customers and suppliers)
	CREATE TABLE IF NOT EXISTS counterparties (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		outstanding_balance TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL
	);

	-- Wallets (cached coin totals, rebuilt from coin_transactions)
	CREATE TABLE IF NOT EXISTS wallets (
		user_id TEXT PRIMARY KEY,
		total_coins_earned INTEGER NOT NULL DEFAULT 0,
		total_coins_used INTEGER NOT NULL DEFAULT 0,
		available_coins INTEGER NOT NULL DEFAULT 0,
		last_updated TEXT NOT NULL
	);

	-- Coin transactions (append-only ledger, the system of record)
	CREATE TABLE IF NOT EXISTS coin_transactions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		tx_type TEXT NOT NULL,
		coins_amount INTEGER NOT NULL,
		description TEXT,
		admin_notes TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_coin_transactions_user
		ON coin_transactions(user_id);
	`

	_, err := db.sql.Exec(schema)
	return err
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

// execer is satisfied by both *sql.DB and *sql.Tx, so query code is
// written once and runs inside or outside a transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// withTx runs fn inside one database transaction, holding the writer
// lock for its duration.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.sql.BeginTx(ctx, nil)
	if err != nil {
		return mapConflict(err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return mapConflict(err)
	}
	return mapConflict(tx.Commit())
}

// mapConflict wraps SQLite busy/locked errors as concurrency conflicts
// so the engine retry loops recognize them.
func mapConflict(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") {
		return fmt.Errorf("%w: %v", ledger.ErrConcurrencyConflict, err)
	}
	return err
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
