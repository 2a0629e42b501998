/*
coin_store.go - SQLite implementation of coins.TxStore

PURPOSE:
  Persists the append-only coin transaction log and the cached wallet
  projections. The log has insert and read paths only; there is no
  UPDATE or DELETE statement against coin_transactions anywhere in this
  package.

PAGINATION:
  ListTransactions pages in reverse insertion order using the row's
  rowid as an opaque position: "before" is a transaction ID, and the
  page restarts strictly before that row.

SEE ALSO:
  - coins/store.go: The contract this file implements
  - sqlite.go: Shared DB handle, schema, and conflict mapping
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/storefront/ledger-core/coins"
)

// CoinStore implements coins.TxStore over a shared DB.
type CoinStore struct {
	db *DB
}

// NewCoinStore returns a coin store backed by db.
func NewCoinStore(db *DB) *CoinStore {
	return &CoinStore{db: db}
}

// =============================================================================
// WALLETS
// =============================================================================

func (s *CoinStore) GetWallet(ctx context.Context, userID string) (*coins.Wallet, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return getWallet(ctx, s.db.sql, userID)
}

func (s *CoinStore) SaveWallet(ctx context.Context, w coins.Wallet) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return saveWallet(ctx, s.db.sql, w)
}

func getWallet(ctx context.Context, q execer, userID string) (*coins.Wallet, error) {
	row := q.QueryRowContext(ctx, `
		SELECT user_id, total_coins_earned, total_coins_used, available_coins, last_updated
		FROM wallets WHERE user_id = ?`, userID)

	var (
		w       coins.Wallet
		updated string
	)
	err := row.Scan(&w.UserID, &w.TotalCoinsEarned, &w.TotalCoinsUsed, &w.AvailableCoins, &updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	if w.LastUpdated, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return nil, fmt.Errorf("corrupt last_updated for wallet %s: %w", userID, err)
	}
	return &w, nil
}

func saveWallet(ctx context.Context, q execer, w coins.Wallet) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO wallets (user_id, total_coins_earned, total_coins_used, available_coins, last_updated)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			total_coins_earned = excluded.total_coins_earned,
			total_coins_used = excluded.total_coins_used,
			available_coins = excluded.available_coins,
			last_updated = excluded.last_updated`,
		w.UserID, w.TotalCoinsEarned, w.TotalCoinsUsed, w.AvailableCoins,
		w.LastUpdated.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to save wallet: %w", err)
	}
	return nil
}

// =============================================================================
// COIN TRANSACTIONS
// =============================================================================

func (s *CoinStore) AppendTransaction(ctx context.Context, tx coins.CoinTransaction) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return appendTransaction(ctx, s.db.sql, tx)
}

func (s *CoinStore) TransactionsForUser(ctx context.Context, userID string) ([]coins.CoinTransaction, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return transactionsForUser(ctx, s.db.sql, userID)
}

func (s *CoinStore) ListTransactions(ctx context.Context, userID string, limit int, before string) ([]coins.CoinTransaction, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return listTransactions(ctx, s.db.sql, userID, limit, before)
}

const coinTxColumns = `id, user_id, tx_type, coins_amount, description, admin_notes, created_at`

func appendTransaction(ctx context.Context, q execer, tx coins.CoinTransaction) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO coin_transactions (`+coinTxColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.UserID, string(tx.Type), tx.CoinsAmount,
		nullString(tx.Description), nullString(tx.AdminNotes),
		tx.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to append coin transaction: %w", err)
	}
	return nil
}

func transactionsForUser(ctx context.Context, q execer, userID string) ([]coins.CoinTransaction, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+coinTxColumns+` FROM coin_transactions
		WHERE user_id = ? ORDER BY rowid ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load coin transactions: %w", err)
	}
	defer rows.Close()
	return scanCoinTxs(rows)
}

func listTransactions(ctx context.Context, q execer, userID string, limit int, before string) ([]coins.CoinTransaction, error) {
	query := `
		SELECT ` + coinTxColumns + ` FROM coin_transactions
		WHERE user_id = ?`
	args := []any{userID}

	if before != "" {
		query += ` AND rowid < (SELECT rowid FROM coin_transactions WHERE id = ?)`
		args = append(args, before)
	}
	query += ` ORDER BY rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list coin transactions: %w", err)
	}
	defer rows.Close()
	return scanCoinTxs(rows)
}

func (s *CoinStore) ListWalletUserIDs(ctx context.Context) ([]string, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return listWalletUserIDs(ctx, s.db.sql)
}

func listWalletUserIDs(ctx context.Context, q execer) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT user_id FROM wallets ORDER BY rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallets: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func scanCoinTxs(rows *sql.Rows) ([]coins.CoinTransaction, error) {
	var out []coins.CoinTransaction
	for rows.Next() {
		var (
			tx              coins.CoinTransaction
			txType, created string
			desc, notes     sql.NullString
		)
		err := rows.Scan(&tx.ID, &tx.UserID, &txType, &tx.CoinsAmount, &desc, &notes, &created)
		if err != nil {
			return nil, err
		}
		tx.Type = coins.TransactionType(txType)
		tx.Description = desc.String
		tx.AdminNotes = notes.String
		if tx.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("corrupt created_at for coin transaction %s: %w", tx.ID, err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// =============================================================================
// TRANSACTIONAL STORE (coins.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *CoinStore) WithTx(ctx context.Context, fn func(coins.Store) error) error {
	return s.db.withTx(ctx, func(tx *sql.Tx) error {
		return fn(&txCoinStore{tx: tx})
	})
}

// txCoinStore runs every call against one open transaction. The parent
// already holds the writer lock, so no locking here.
type txCoinStore struct {
	tx *sql.Tx
}

func (ts *txCoinStore) GetWallet(ctx context.Context, userID string) (*coins.Wallet, error) {
	return getWallet(ctx, ts.tx, userID)
}

func (ts *txCoinStore) SaveWallet(ctx context.Context, w coins.Wallet) error {
	return saveWallet(ctx, ts.tx, w)
}

func (ts *txCoinStore) AppendTransaction(ctx context.Context, tx coins.CoinTransaction) error {
	return appendTransaction(ctx, ts.tx, tx)
}

func (ts *txCoinStore) TransactionsForUser(ctx context.Context, userID string) ([]coins.CoinTransaction, error) {
	return transactionsForUser(ctx, ts.tx, userID)
}

func (ts *txCoinStore) ListTransactions(ctx context.Context, userID string, limit int, before string) ([]coins.CoinTransaction, error) {
	return listTransactions(ctx, ts.tx, userID, limit, before)
}

func (ts *txCoinStore) ListWalletUserIDs(ctx context.Context) ([]string, error) {
	return listWalletUserIDs(ctx, ts.tx)
}
