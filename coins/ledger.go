/*
ledger.go - Coin ledger operations

PURPOSE:
  The ledger is the only writer of coin transactions and wallet totals.
  Every mutation appends an immutable transaction and then recomputes the
  wallet by replaying the full log - the cache can never drift from the
  history because it is rebuilt from it on every write.

CRITICAL INVARIANTS:
  1. available_coins == max(0, earned - used), always
  2. available_coins never goes negative: redemptions and removals that
     would overdraw fail with the exact shortfall
  3. Whole-number coins only; fractional requests fail before any write
  4. Transactions are never mutated or deleted

CONCURRENCY:
  Each operation is one read-validate-append-refold unit inside
  store.WithTx with bounded retry, so two concurrent adjustments to the
  same wallet cannot both pass a balance check against stale state.

EXAMPLE FLOW:
  Wallet starts empty:
    ManualAdjust +50 "signup bonus" -> available 50
    Redeem 30                       -> available 20
    Redeem 30                       -> InsufficientBalanceError{Shortfall: 10}

SEE ALSO:
  - types.go: FoldWallet, the single fold rule
  - settings.go: Earn-event calculation
  - store.go: Atomicity contract
*/
package coins

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storefront/ledger-core/ledger"
)

// ErrReasonRequired is returned when a manual adjustment carries no reason.
var ErrReasonRequired = errors.New("adjustment reason required")

// AdjustDirection selects whether a manual adjustment grants or removes coins.
type AdjustDirection string

const (
	AdjustAdd    AdjustDirection = "add"
	AdjustRemove AdjustDirection = "remove"
)

func (d AdjustDirection) Valid() bool {
	return d == AdjustAdd || d == AdjustRemove
}

// =============================================================================
// LEDGER
// =============================================================================

// Ledger validates and records coin movements against per-user wallets.
type Ledger struct {
	Store    TxStore
	Settings Settings

	// Now is the clock for transaction timestamps and the festive window.
	// Tests override it to pin time.
	Now func() time.Time
}

// NewLedger creates a coin ledger over the given transactional store.
func NewLedger(store TxStore, settings Settings) *Ledger {
	return &Ledger{Store: store, Settings: settings, Now: time.Now}
}

// =============================================================================
// EARN
// =============================================================================

// RecordEarn computes the coins earned on a base currency amount (an
// order total at checkout) and appends an earned transaction. Returns
// (nil, nil) without writing anything when the system is disabled or the
// computation yields no coins.
func (l *Ledger) RecordEarn(ctx context.Context, userID string, baseAmount decimal.Decimal, description string) (*CoinTransaction, error) {
	now := l.Now().UTC()
	coins := l.Settings.EarnCoins(baseAmount, now)
	if coins <= 0 {
		return nil, nil
	}

	tx := CoinTransaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Type:        TxEarned,
		CoinsAmount: coins,
		Description: description,
		CreatedAt:   now,
	}
	if err := l.appendAndRefold(ctx, tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// =============================================================================
// REDEEM
// =============================================================================

// Redeem spends coins from the user's available balance. The amount must
// be a whole number of at least Settings.MinRedeemCoins, and the wallet
// must cover it - otherwise InsufficientBalanceError reports the exact
// shortfall and nothing is written.
func (l *Ledger) Redeem(ctx context.Context, userID string, amount decimal.Decimal, description string) (CoinTransaction, error) {
	coins, err := ledger.WholeCoins("coins", amount)
	if err != nil {
		return CoinTransaction{}, err
	}
	if coins < l.Settings.MinRedeemCoins {
		return CoinTransaction{}, &ledger.InvalidAmountError{
			Field:  "coins",
			Value:  amount.String(),
			Reason: "below the minimum redeemable amount",
		}
	}

	tx := CoinTransaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Type:        TxRedeemed,
		CoinsAmount: -coins,
		Description: description,
		CreatedAt:   l.Now().UTC(),
	}
	if err := l.appendSpendAndRefold(ctx, tx, coins); err != nil {
		return CoinTransaction{}, err
	}
	return tx, nil
}

// =============================================================================
// MANUAL ADJUSTMENT
// =============================================================================

// ManualAdjust records an admin correction. Coins must be a positive
// whole number and the reason non-empty; a remove may not overdraw the
// available balance. Adds fold into earned and removes into used -
// mirroring automatic earn/redeem - so available = earned - used stays
// the single source of truth for both kinds of movement.
func (l *Ledger) ManualAdjust(ctx context.Context, userID string, amount decimal.Decimal, direction AdjustDirection, reason string) (CoinTransaction, error) {
	coins, err := ledger.WholeCoins("coins", amount)
	if err != nil {
		return CoinTransaction{}, err
	}
	if reason == "" {
		return CoinTransaction{}, ErrReasonRequired
	}
	if !direction.Valid() {
		return CoinTransaction{}, &ledger.InvalidAmountError{
			Field:  "direction",
			Value:  string(direction),
			Reason: "must be add or remove",
		}
	}

	tx := CoinTransaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Description: "Manual adjustment",
		AdminNotes:  reason,
		CreatedAt:   l.Now().UTC(),
	}

	if direction == AdjustAdd {
		tx.Type = TxManualAdd
		tx.CoinsAmount = coins
		if err := l.appendAndRefold(ctx, tx); err != nil {
			return CoinTransaction{}, err
		}
		return tx, nil
	}

	tx.Type = TxManualRemove
	tx.CoinsAmount = -coins
	if err := l.appendSpendAndRefold(ctx, tx, coins); err != nil {
		return CoinTransaction{}, err
	}
	return tx, nil
}

// =============================================================================
// HISTORY
// =============================================================================

// ListTransactions returns up to limit transactions for the user in
// reverse-chronological order. Passing the ID of the last transaction
// seen as before restarts the sequence after it. Read-only.
func (l *Ledger) ListTransactions(ctx context.Context, userID string, limit int, before string) ([]CoinTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	return l.Store.ListTransactions(ctx, userID, limit, before)
}

// =============================================================================
// RECONCILIATION
// =============================================================================

// ReconcileWallet replays the user's transaction log, compares the
// result against the cached wallet, and repairs the cache if it has
// drifted. Returns true when a repair was made. The log is authoritative.
func (l *Ledger) ReconcileWallet(ctx context.Context, userID string) (bool, error) {
	repaired := false
	err := ledger.Retry(ctx, ledger.DefaultRetryAttempts, func() error {
		return l.Store.WithTx(ctx, func(s Store) error {
			txs, err := s.TransactionsForUser(ctx, userID)
			if err != nil {
				return err
			}
			cached, err := s.GetWallet(ctx, userID)
			if err != nil {
				return err
			}
			// No log and no cache: nothing to repair, no row to create.
			if len(txs) == 0 && cached == nil {
				repaired = false
				return nil
			}

			// An empty log folds to a zero wallet, so a cache row with no
			// backing transactions gets zeroed like any other drift.
			expected := FoldWallet(userID, txs)
			if cached != nil &&
				cached.TotalCoinsEarned == expected.TotalCoinsEarned &&
				cached.TotalCoinsUsed == expected.TotalCoinsUsed &&
				cached.AvailableCoins == expected.AvailableCoins {
				repaired = false
				return nil
			}
			repaired = true
			expected.LastUpdated = l.Now().UTC()
			return s.SaveWallet(ctx, expected)
		})
	})
	return repaired, err
}

// =============================================================================
// INTERNALS
// =============================================================================

// appendAndRefold appends a transaction and rebuilds the wallet cache by
// replaying the full log inside one atomic transaction.
func (l *Ledger) appendAndRefold(ctx context.Context, tx CoinTransaction) error {
	return ledger.Retry(ctx, ledger.DefaultRetryAttempts, func() error {
		return l.Store.WithTx(ctx, func(s Store) error {
			if err := s.AppendTransaction(ctx, tx); err != nil {
				return err
			}
			return l.refold(ctx, s, tx.UserID)
		})
	})
}

// appendSpendAndRefold is appendAndRefold with a balance precondition:
// the available balance (read inside the transaction, so never stale)
// must cover the spend.
func (l *Ledger) appendSpendAndRefold(ctx context.Context, tx CoinTransaction, spend int64) error {
	return ledger.Retry(ctx, ledger.DefaultRetryAttempts, func() error {
		return l.Store.WithTx(ctx, func(s Store) error {
			txs, err := s.TransactionsForUser(ctx, tx.UserID)
			if err != nil {
				return err
			}
			current := FoldWallet(tx.UserID, txs)
			if current.AvailableCoins < spend {
				return &ledger.InsufficientBalanceError{
					UserID:    tx.UserID,
					Available: current.AvailableCoins,
					Requested: spend,
				}
			}

			if err := s.AppendTransaction(ctx, tx); err != nil {
				return err
			}
			return l.refold(ctx, s, tx.UserID)
		})
	})
}

// refold replays the log and persists the implied wallet. The wallet row
// is created lazily here on a user's first transaction.
func (l *Ledger) refold(ctx context.Context, s Store, userID string) error {
	txs, err := s.TransactionsForUser(ctx, userID)
	if err != nil {
		return err
	}
	w := FoldWallet(userID, txs)
	w.LastUpdated = l.Now().UTC()
	return s.SaveWallet(ctx, w)
}
