/*
store.go - Persistence contract for the payment reconciliation engine

PURPOSE:
  Defines the interface between the engine and the database. The engine
  depends only on this contract; store/sqlite and store/memory provide
  implementations.

ATOMICITY CONTRACT:
  Every engine operation that reads aggregate state and then writes a new
  aggregate state runs inside WithTx. Implementations must make the
  callback atomic: either every write in it lands or none do. Conflicting
  concurrent transactions surface as ledger.ErrConcurrencyConflict, which
  the engine retries with a bounded budget.

MISSING RECORDS:
  Get* methods return (nil, nil) for missing records, so lookups
  distinguish "absent" from "failed". The engine turns absence into
  typed NotFound errors.

SEE ALSO:
  - engine.go: The only caller of the write methods
  - store/sqlite/sqlite.go: Production implementation
  - store/memory/payment.go: In-memory implementation for tests
*/
package payments

import (
	"context"

	"github.com/shopspring/decimal"
)

// Store handles persistence for payables, payments, and counterparties.
type Store interface {
	// SavePayable inserts or updates a payable record.
	SavePayable(ctx context.Context, p Payable) error

	// GetPayable returns the payable for ref, or (nil, nil) if absent.
	GetPayable(ctx context.Context, ref PayableRef) (*Payable, error)

	// UpdatePayableStatus persists a freshly derived payment status.
	UpdatePayableStatus(ctx context.Context, ref PayableRef, status PaymentStatus) error

	// InsertPayment persists a new payment record.
	InsertPayment(ctx context.Context, p Payment) error

	// GetPayment returns a payment by ID, or (nil, nil) if absent.
	GetPayment(ctx context.Context, id string) (*Payment, error)

	// UpdatePayment replaces a payment's mutable fields.
	UpdatePayment(ctx context.Context, p Payment) error

	// DeletePayment removes a payment record.
	DeletePayment(ctx context.Context, id string) error

	// SumPayments returns the sum of amounts of all live payments
	// referencing ref, excluding the payment with excludeID when
	// non-empty (used by EditPayment's as-if-absent check).
	SumPayments(ctx context.Context, ref PayableRef, excludeID string) (decimal.Decimal, error)

	// ListPayments returns all live payments for ref in creation order.
	ListPayments(ctx context.Context, ref PayableRef) ([]Payment, error)

	// SaveCounterparty inserts or updates a counterparty record.
	SaveCounterparty(ctx context.Context, c Counterparty) error

	// GetCounterparty returns a counterparty by ID, or (nil, nil) if absent.
	GetCounterparty(ctx context.Context, id string) (*Counterparty, error)

	// SetCounterpartyBalance persists a recomputed outstanding balance.
	SetCounterpartyBalance(ctx context.Context, id string, balance decimal.Decimal) error

	// ListPayableRefs returns the refs of every known payable. Used by
	// the background reconciliation sweep.
	ListPayableRefs(ctx context.Context) ([]PayableRef, error)
}

// TxStore wraps Store with transaction support. fn runs against a Store
// bound to one atomic transaction; returning an error rolls it back.
type TxStore interface {
	Store

	WithTx(ctx context.Context, fn func(Store) error) error
}
