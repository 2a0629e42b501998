/*
engine.go - Payment recording, editing, deletion, and reconciliation

PURPOSE:
  The engine is the only writer of payments and the only component that
  transitions a payable's payment status. Every mutation is computed from
  the authoritative payment history - client-supplied deltas are never
  trusted.

CRITICAL INVARIANTS:
  1. payment_status is always StatusFor(total, sum of live payments)
  2. No sequence of operations can push the live payment sum above the
     payable total (overpayment is rejected with the computed remaining)
  3. Counterparty outstanding balances never go negative
  4. Validation happens before any write: a rejected call has no effects

CONCURRENCY:
  Each operation is one read-compute-write unit inside store.WithTx,
  wrapped in a bounded retry. Two concurrent RecordPayment calls against
  the same payable cannot both pass the overpayment check: the second
  transaction re-reads the sum and sees the first one's write.

EXAMPLE FLOW:
  Payable total 1000:
    RecordPayment 600  -> status partial, remaining 400
    RecordPayment 400  -> status paid
    RecordPayment 1    -> OverpaymentError{Remaining: 0}
    DeletePayment(600) -> status recomputes to partial, counterparty +600

SEE ALSO:
  - types.go: StatusFor, the shared derived-status rule
  - store.go: Atomicity contract
  - ledger/retry.go: Bounded retry discipline
*/
package payments

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storefront/ledger-core/ledger"
)

// =============================================================================
// ENGINE
// =============================================================================

// Engine validates and records payment mutations against payables.
type Engine struct {
	Store TxStore

	// Now is the clock used for date validation and record timestamps.
	// Tests override it to pin "today".
	Now func() time.Time
}

// NewEngine creates an engine over the given transactional store.
func NewEngine(store TxStore) *Engine {
	return &Engine{Store: store, Now: time.Now}
}

// =============================================================================
// RECORD PAYMENT
// =============================================================================

// RecordPaymentInput carries the fields of a new payment.
type RecordPaymentInput struct {
	Ref            PayableRef
	Amount         decimal.Decimal
	Direction      Direction
	Method         string
	Date           time.Time
	CounterpartyID string // optional
}

// RecordPayment validates the input against the payable's remaining
// balance and, atomically: inserts the payment, recomputes the payable's
// status from scratch, and decrements the counterparty's outstanding
// balance (floored at zero).
//
// Errors: ErrInvalidAmount, ErrInvalidDate, ErrNotFound, ErrOverpayment,
// ErrConcurrencyConflict.
func (e *Engine) RecordPayment(ctx context.Context, in RecordPaymentInput) (Payment, error) {
	if err := ledger.ValidatePositiveAmount("amount", in.Amount); err != nil {
		return Payment{}, err
	}
	if err := ledger.ValidatePaymentDate(in.Date, e.Now()); err != nil {
		return Payment{}, err
	}
	if !in.Direction.Valid() {
		return Payment{}, &ledger.InvalidAmountError{
			Field:  "direction",
			Value:  string(in.Direction),
			Reason: "must be received or paid",
		}
	}
	if !in.Ref.Kind.Valid() {
		return Payment{}, &ledger.NotFoundError{Kind: "payable", ID: in.Ref.String()}
	}

	payment := Payment{
		ID:             uuid.NewString(),
		Number:         newPaymentNumber(),
		Ref:            in.Ref,
		Amount:         in.Amount,
		Direction:      in.Direction,
		Method:         in.Method,
		Date:           in.Date,
		CounterpartyID: in.CounterpartyID,
		CreatedAt:      e.Now().UTC(),
	}

	err := ledger.Retry(ctx, ledger.DefaultRetryAttempts, func() error {
		return e.Store.WithTx(ctx, func(s Store) error {
			payable, err := s.GetPayable(ctx, in.Ref)
			if err != nil {
				return err
			}
			if payable == nil {
				return &ledger.NotFoundError{Kind: "payable", ID: in.Ref.String()}
			}

			var counterparty *Counterparty
			if in.CounterpartyID != "" {
				counterparty, err = s.GetCounterparty(ctx, in.CounterpartyID)
				if err != nil {
					return err
				}
				if counterparty == nil {
					return &ledger.NotFoundError{Kind: "counterparty", ID: in.CounterpartyID}
				}
			}

			alreadyPaid, err := s.SumPayments(ctx, in.Ref, "")
			if err != nil {
				return err
			}
			remaining := payable.TotalAmount.Sub(alreadyPaid)
			if in.Amount.GreaterThan(remaining) {
				return &ledger.OverpaymentError{
					PayableKind: string(in.Ref.Kind),
					PayableID:   in.Ref.ID,
					Requested:   in.Amount,
					Remaining:   ledger.ClampNonNegative(remaining),
				}
			}

			if err := s.InsertPayment(ctx, payment); err != nil {
				return err
			}

			status := StatusFor(payable.TotalAmount, alreadyPaid.Add(in.Amount))
			if err := s.UpdatePayableStatus(ctx, in.Ref, status); err != nil {
				return err
			}

			if counterparty != nil {
				balance := ledger.ClampNonNegative(counterparty.OutstandingBalance.Sub(in.Amount))
				if err := s.SetCounterpartyBalance(ctx, counterparty.ID, balance); err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		return Payment{}, err
	}
	return payment, nil
}

// =============================================================================
// EDIT PAYMENT
// =============================================================================

// EditPaymentInput carries the mutable fields of an existing payment.
// An empty Method keeps the current one.
type EditPaymentInput struct {
	Amount decimal.Decimal
	Date   time.Time
	Method string
}

// EditPayment re-runs the remaining-balance check with the edited
// payment excluded from the already-paid sum, so a payment can be edited
// up to the remaining balance as if it did not yet exist. The payable's
// status is recomputed with the edited total, and the counterparty
// balance is adjusted by the amount delta.
func (e *Engine) EditPayment(ctx context.Context, paymentID string, in EditPaymentInput) (Payment, error) {
	if err := ledger.ValidatePositiveAmount("amount", in.Amount); err != nil {
		return Payment{}, err
	}
	if err := ledger.ValidatePaymentDate(in.Date, e.Now()); err != nil {
		return Payment{}, err
	}

	var edited Payment
	err := ledger.Retry(ctx, ledger.DefaultRetryAttempts, func() error {
		return e.Store.WithTx(ctx, func(s Store) error {
			existing, err := s.GetPayment(ctx, paymentID)
			if err != nil {
				return err
			}
			if existing == nil {
				return &ledger.NotFoundError{Kind: "payment", ID: paymentID}
			}

			payable, err := s.GetPayable(ctx, existing.Ref)
			if err != nil {
				return err
			}
			if payable == nil {
				return &ledger.NotFoundError{Kind: "payable", ID: existing.Ref.String()}
			}

			paidWithoutThis, err := s.SumPayments(ctx, existing.Ref, existing.ID)
			if err != nil {
				return err
			}
			remaining := payable.TotalAmount.Sub(paidWithoutThis)
			if in.Amount.GreaterThan(remaining) {
				return &ledger.OverpaymentError{
					PayableKind: string(existing.Ref.Kind),
					PayableID:   existing.Ref.ID,
					Requested:   in.Amount,
					Remaining:   ledger.ClampNonNegative(remaining),
				}
			}

			edited = *existing
			edited.Amount = in.Amount
			edited.Date = in.Date
			if in.Method != "" {
				edited.Method = in.Method
			}
			if err := s.UpdatePayment(ctx, edited); err != nil {
				return err
			}

			status := StatusFor(payable.TotalAmount, paidWithoutThis.Add(in.Amount))
			if err := s.UpdatePayableStatus(ctx, existing.Ref, status); err != nil {
				return err
			}

			// The balance adjustment this payment caused changes with its
			// amount: reverse the old decrement, apply the new one.
			if existing.CounterpartyID != "" {
				counterparty, err := s.GetCounterparty(ctx, existing.CounterpartyID)
				if err != nil {
					return err
				}
				if counterparty != nil {
					balance := ledger.ClampNonNegative(
						counterparty.OutstandingBalance.Add(existing.Amount).Sub(in.Amount))
					if err := s.SetCounterpartyBalance(ctx, counterparty.ID, balance); err != nil {
						return err
					}
				}
			}
			return nil
		})
	})
	if err != nil {
		return Payment{}, err
	}
	return edited, nil
}

// =============================================================================
// DELETE PAYMENT
// =============================================================================

// DeletePayment removes the payment, recomputes the payable's status
// from the remaining payment set, and reverses the counterparty balance
// adjustment the payment caused. Never fails except NotFound.
func (e *Engine) DeletePayment(ctx context.Context, paymentID string) error {
	return ledger.Retry(ctx, ledger.DefaultRetryAttempts, func() error {
		return e.Store.WithTx(ctx, func(s Store) error {
			existing, err := s.GetPayment(ctx, paymentID)
			if err != nil {
				return err
			}
			if existing == nil {
				return &ledger.NotFoundError{Kind: "payment", ID: paymentID}
			}

			if err := s.DeletePayment(ctx, paymentID); err != nil {
				return err
			}

			payable, err := s.GetPayable(ctx, existing.Ref)
			if err != nil {
				return err
			}
			if payable != nil {
				paidSum, err := s.SumPayments(ctx, existing.Ref, "")
				if err != nil {
					return err
				}
				status := StatusFor(payable.TotalAmount, paidSum)
				if err := s.UpdatePayableStatus(ctx, existing.Ref, status); err != nil {
					return err
				}
			}

			if existing.CounterpartyID != "" {
				counterparty, err := s.GetCounterparty(ctx, existing.CounterpartyID)
				if err != nil {
					return err
				}
				if counterparty != nil {
					balance := counterparty.OutstandingBalance.Add(existing.Amount)
					if err := s.SetCounterpartyBalance(ctx, counterparty.ID, balance); err != nil {
						return err
					}
				}
			}
			return nil
		})
	})
}

// =============================================================================
// RECONCILIATION
// =============================================================================

// ReconcilePayable replays the payable's payment history and repairs the
// cached status if it has drifted. Returns true when a repair was made.
// The payment history is authoritative; this guards against any missed
// write path.
func (e *Engine) ReconcilePayable(ctx context.Context, ref PayableRef) (bool, error) {
	repaired := false
	err := ledger.Retry(ctx, ledger.DefaultRetryAttempts, func() error {
		return e.Store.WithTx(ctx, func(s Store) error {
			payable, err := s.GetPayable(ctx, ref)
			if err != nil {
				return err
			}
			if payable == nil {
				return &ledger.NotFoundError{Kind: "payable", ID: ref.String()}
			}

			paidSum, err := s.SumPayments(ctx, ref, "")
			if err != nil {
				return err
			}
			expected := StatusFor(payable.TotalAmount, paidSum)
			if expected == payable.Status {
				repaired = false
				return nil
			}
			repaired = true
			return s.UpdatePayableStatus(ctx, ref, expected)
		})
	})
	return repaired, err
}

// =============================================================================
// PAYMENT NUMBERS
// =============================================================================

// newPaymentNumber generates a unique human-readable payment number.
func newPaymentNumber() string {
	return "PAY-" + strings.ToUpper(uuid.NewString()[:8])
}
