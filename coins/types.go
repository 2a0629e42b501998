/*
Package coins implements the loyalty coin ledger.

PURPOSE:
  Maintains a per-user coin wallet as an append-only transaction ledger
  with a derived balance. Supports system-driven earn events, redemption,
  and admin manual adjustments - all folded through one rule, so the
  wallet can always be rebuilt by replaying its transaction log.

KEY CONCEPTS IN THIS FILE (types.go):
  - CoinTransaction: immutable ledger entry with a signed whole-coin amount
  - Wallet: derived cache of earned/used/available totals
  - Fold rule: earned = sum of add-type amounts, used = sum of |remove-type|
    amounts, available = max(0, earned - used)

DESIGN PRINCIPLES:
  1. Immutability: transactions are never mutated or deleted once written;
     corrections append a reversing entry
  2. Whole coins only: fractional amounts are rejected before any write
  3. One fold: manual and automated movements share the same summation,
     removing the "forgot to update the wallet for this type" bug class

SEE ALSO:
  - ledger.go: RecordEarn, Redeem, ManualAdjust, ListTransactions
  - settings.go: Earn-event calculation from system settings
*/
package coins

import "time"

// =============================================================================
// COIN TRANSACTION - Immutable ledger entry
// =============================================================================

// TransactionType tags a coin movement.
type TransactionType string

const (
	TxEarned       TransactionType = "earned"
	TxRedeemed     TransactionType = "redeemed"
	TxManualAdd    TransactionType = "manual_add"
	TxManualRemove TransactionType = "manual_remove"
)

// addsCoins reports whether the type folds into the earned total.
func (t TransactionType) addsCoins() bool {
	return t == TxEarned || t == TxManualAdd
}

// CoinTransaction is an immutable ledger entry. CoinsAmount is a signed
// whole number: positive for add-type movements, negative for
// remove-type. AdminNotes is set only for manual adjustments.
type CoinTransaction struct {
	ID          string
	UserID      string
	Type        TransactionType
	CoinsAmount int64
	Description string
	AdminNotes  string
	CreatedAt   time.Time
}

// =============================================================================
// WALLET - Derived cache over the transaction log
// =============================================================================

// Wallet is one per user, created lazily on the first transaction. Its
// three numeric fields are a cache: the transaction log is the system of
// record, and FoldWallet can rebuild them at any time.
type Wallet struct {
	UserID           string
	TotalCoinsEarned int64
	TotalCoinsUsed   int64
	AvailableCoins   int64
	LastUpdated      time.Time
}

// =============================================================================
// FOLD RULE - The single reduction shared by every operation
// =============================================================================

// Apply folds one transaction into the wallet totals.
func Apply(w *Wallet, tx CoinTransaction) {
	if tx.Type.addsCoins() {
		w.TotalCoinsEarned += tx.CoinsAmount
	} else {
		w.TotalCoinsUsed += abs(tx.CoinsAmount)
	}
	w.AvailableCoins = available(w.TotalCoinsEarned, w.TotalCoinsUsed)
}

// FoldWallet replays a user's transactions in creation order and returns
// the wallet they imply. This is the authoritative computation; the
// stored Wallet must always equal its result.
func FoldWallet(userID string, txs []CoinTransaction) Wallet {
	w := Wallet{UserID: userID}
	for _, tx := range txs {
		Apply(&w, tx)
		if tx.CreatedAt.After(w.LastUpdated) {
			w.LastUpdated = tx.CreatedAt
		}
	}
	return w
}

func available(earned, used int64) int64 {
	if earned < used {
		return 0
	}
	return earned - used
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
