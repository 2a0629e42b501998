/*
store.go - Persistence contract for the coin ledger

PURPOSE:
  Defines the interface between the coin ledger and the database.
  Structurally parallel to payments/store.go; the two engines share no
  code paths and no tables, only the store implementations behind them.

APPEND-ONLY CONTRACT:
  Coin transactions have AppendTransaction and reads - no update, no
  delete. Corrections are made by appending a reversing entry through
  ManualAdjust.

SEE ALSO:
  - ledger.go: The only caller of the write methods
  - store/sqlite/sqlite.go: Production implementation
  - store/memory/coin.go: In-memory implementation for tests
*/
package coins

import "context"

// Store handles persistence for wallets and coin transactions.
type Store interface {
	// GetWallet returns the wallet for userID, or (nil, nil) if the user
	// has no transactions yet.
	GetWallet(ctx context.Context, userID string) (*Wallet, error)

	// SaveWallet inserts or updates the cached wallet totals.
	SaveWallet(ctx context.Context, w Wallet) error

	// AppendTransaction persists an immutable ledger entry. This is the
	// only write operation on the transaction log.
	AppendTransaction(ctx context.Context, tx CoinTransaction) error

	// TransactionsForUser returns every transaction for the user in
	// creation order. Used by the fold and by reconciliation.
	TransactionsForUser(ctx context.Context, userID string) ([]CoinTransaction, error)

	// ListTransactions returns up to limit transactions for the user in
	// reverse-chronological order, restarting strictly before the
	// transaction identified by the before cursor when non-empty.
	ListTransactions(ctx context.Context, userID string, limit int, before string) ([]CoinTransaction, error)

	// ListWalletUserIDs returns the user ID of every cached wallet. Used
	// by the background reconciliation sweep.
	ListWalletUserIDs(ctx context.Context) ([]string, error)
}

// TxStore wraps Store with transaction support. fn runs against a Store
// bound to one atomic transaction; returning an error rolls it back.
type TxStore interface {
	Store

	WithTx(ctx context.Context, fn func(Store) error) error
}
