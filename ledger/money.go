/*
Package ledger provides the shared core for the financial ledger engines.

PURPOSE:
  This package contains the types and helpers common to the payment
  reconciliation engine and the loyalty coin ledger: the error taxonomy,
  fixed-point amount validation, whole-coin arithmetic, and the bounded
  retry discipline for transactional operations.

KEY CONCEPTS IN THIS FILE (money.go):
  - Amount validation: payments carry fixed-point currency (decimal.Decimal)
  - Whole coins: loyalty movements are whole-number coins only
  - Date validation: payments can never be future-dated

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal everywhere money is involved - never float64
  2. Validate-before-write: every helper here runs before the first store
     mutation, so a rejected input leaves no side effects
  3. One taxonomy: both engines report the same typed errors (errors.go)

SEE ALSO:
  - errors.go: Error types returned by these helpers
  - payments/engine.go: Currency-amount callers
  - coins/ledger.go: Whole-coin callers
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CURRENCY AMOUNTS
// =============================================================================

// ValidatePositiveAmount rejects zero and negative currency amounts.
func ValidatePositiveAmount(field string, amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return &InvalidAmountError{
			Field:  field,
			Value:  amount.String(),
			Reason: "must be positive",
		}
	}
	return nil
}

// ValidatePaymentDate rejects dates after today. Dates are compared at
// day granularity in UTC; a payment recorded "today" anywhere in the day
// is acceptable.
func ValidatePaymentDate(date time.Time, now time.Time) error {
	today := truncateToDay(now)
	if truncateToDay(date).After(today) {
		return &InvalidDateError{Date: date.Format("2006-01-02")}
	}
	return nil
}

func truncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// WHOLE-COIN AMOUNTS
// =============================================================================

// WholeCoins converts a requested coin amount into an int64, rejecting
// fractional and non-positive values. The coin ledger deals in whole
// coins only; fractional requests fail before any write occurs.
func WholeCoins(field string, amount decimal.Decimal) (int64, error) {
	if !amount.IsInteger() {
		return 0, &InvalidAmountError{
			Field:  field,
			Value:  amount.String(),
			Reason: "must be a whole number",
		}
	}
	coins := amount.IntPart()
	if coins <= 0 {
		return 0, &InvalidAmountError{
			Field:  field,
			Value:  amount.String(),
			Reason: "must be positive",
		}
	}
	return coins, nil
}

// ClampNonNegative floors a decimal at zero. Used for cached balances
// that must never go negative (counterparty outstanding balances).
func ClampNonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
