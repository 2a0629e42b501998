/*
errors.go - Centralized error taxonomy for the ledger core

PURPOSE:
  All error types in one place for consistency and discoverability.
  The payments and coins engines share this taxonomy so callers get a
  single vocabulary regardless of which engine they talk to.

ERROR CATEGORIES:
  1. Validation errors - Bad input, detected before any write
  2. Balance errors    - Overpayment, insufficient coins
  3. Lookup errors     - Unresolvable payable, wallet, counterparty
  4. Conflict errors   - Retries exhausted under contention

RECOVERY CONTRACT:
  Every validation and balance error is detected before the first write;
  the caller can correct the input and retry with no side effects having
  occurred. ErrConcurrencyConflict is the only "try again later" error.

USAGE:
  Callers match with errors.Is / errors.As:

    var over *ledger.OverpaymentError
    if errors.As(err, &over) {
        fmt.Printf("remaining: %s\n", over.Remaining)
    }

SEE ALSO:
  - payments/engine.go: Uses these errors
  - coins/ledger.go: Uses these errors
  - api/handlers.go: Maps these errors to HTTP statuses
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidAmount is returned for non-positive amounts, fractional
	// amounts where whole numbers are required, or amounts over a hard cap.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidDate is returned for future-dated payments.
	ErrInvalidDate = errors.New("invalid date")

	// ErrOverpayment is returned when a payment exceeds the remaining
	// balance of its payable. The engine never silently clamps.
	ErrOverpayment = errors.New("overpayment rejected")

	// ErrInsufficientBalance is returned when a redemption or removal
	// exceeds the available coin balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrNotFound is returned when a referenced payable, payment, wallet,
	// or counterparty does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConcurrencyConflict is returned when a transactional operation
	// could not complete within its retry budget.
	ErrConcurrencyConflict = errors.New("concurrency conflict: retries exhausted")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// OverpaymentError reports a rejected payment along with the remaining
// balance computed from the authoritative payment history.
type OverpaymentError struct {
	PayableKind string
	PayableID   string
	Requested   decimal.Decimal
	Remaining   decimal.Decimal
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("overpayment rejected: requested %s exceeds remaining %s on %s %s",
		e.Requested, e.Remaining, e.PayableKind, e.PayableID)
}

func (e *OverpaymentError) Unwrap() error { return ErrOverpayment }

// InsufficientBalanceError reports a coin shortage with the exact shortfall.
type InsufficientBalanceError struct {
	UserID    string
	Available int64
	Requested int64
}

// Shortfall returns how many coins are missing.
func (e *InsufficientBalanceError) Shortfall() int64 {
	return e.Requested - e.Available
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: available %d, requested %d, shortfall %d",
		e.Available, e.Requested, e.Shortfall())
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// InvalidAmountError describes why an amount was rejected.
type InvalidAmountError struct {
	Field  string
	Value  string
	Reason string // e.g. "must be positive", "must be a whole number"
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("invalid amount for %s: %s %s", e.Field, e.Value, e.Reason)
}

func (e *InvalidAmountError) Unwrap() error { return ErrInvalidAmount }

// InvalidDateError reports a future-dated payment.
type InvalidDateError struct {
	Date string
}

func (e *InvalidDateError) Error() string {
	return fmt.Sprintf("invalid date: %s is in the future", e.Date)
}

func (e *InvalidDateError) Unwrap() error { return ErrInvalidDate }

// NotFoundError identifies which record could not be resolved.
type NotFoundError struct {
	Kind string // "payable", "payment", "counterparty", "wallet"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}

// IsClientError returns true if the error is due to invalid client input.
// These errors are fully recoverable: no write has occurred.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrOverpayment) ||
		errors.Is(err, ErrInsufficientBalance)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
