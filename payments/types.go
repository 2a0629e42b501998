/*
Package payments implements the payment reconciliation engine.

PURPOSE:
  Owns the relationship between a payable (sales order or purchase
  invoice), its recorded payments, and the derived payment status; also
  maintains counterparty outstanding-balance totals.

KEY CONCEPTS IN THIS FILE (types.go):
  - Payable: an order or invoice money is owed against
  - Payment: a record of money received or paid
  - PaymentStatus: pending/partial/paid, always derived, never set directly
  - Counterparty: the customer or supplier behind a payable

DESIGN PRINCIPLES:
  1. Derived status: payment_status is a pure function of the payable
     total and the sum of live payments. It is recomputed from scratch on
     every mutation, never incrementally patched.
  2. Precision: decimal.Decimal for all currency amounts.
  3. Authoritative history: the payment set is the source of truth; the
     cached status and counterparty balances are projections of it.

SEE ALSO:
  - engine.go: RecordPayment, EditPayment, DeletePayment
  - store.go: Persistence contract
*/
package payments

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PAYABLE - An order or invoice money is owed against
// =============================================================================

// PayableKind distinguishes the two payable flavors.
type PayableKind string

const (
	KindSalesOrder      PayableKind = "sales_order"
	KindPurchaseInvoice PayableKind = "purchase_invoice"
)

func (k PayableKind) Valid() bool {
	return k == KindSalesOrder || k == KindPurchaseInvoice
}

// PayableRef identifies a payable across both kinds.
type PayableRef struct {
	Kind PayableKind
	ID   string
}

func (r PayableRef) String() string { return string(r.Kind) + "/" + r.ID }

// PaymentStatus is the derived tri-state payment standing of a payable.
type PaymentStatus string

const (
	StatusPending PaymentStatus = "pending"
	StatusPartial PaymentStatus = "partial"
	StatusPaid    PaymentStatus = "paid"
)

// Payable is an order or purchase invoice. PaymentStatus is a cached
// projection of the payment history - it transitions only through the
// engine and is recomputable at any time (see Engine.ReconcilePayable).
type Payable struct {
	ID             string
	Kind           PayableKind
	TotalAmount    decimal.Decimal
	Status         PaymentStatus
	CounterpartyID string // optional
	CreatedAt      time.Time
}

// Ref returns the payable's reference.
func (p Payable) Ref() PayableRef { return PayableRef{Kind: p.Kind, ID: p.ID} }

// =============================================================================
// PAYMENT - Money received or paid against a payable
// =============================================================================

// Direction distinguishes money coming in from money going out.
type Direction string

const (
	DirectionReceived Direction = "received" // customer pays us
	DirectionPaid     Direction = "paid"     // we pay a supplier
)

func (d Direction) Valid() bool {
	return d == DirectionReceived || d == DirectionPaid
}

// Payment is a record of money received or paid. Owned exclusively by
// the engine: created by RecordPayment, mutated only through EditPayment
// (re-validated against the same invariants), removed only through
// DeletePayment (which reverses its side effects).
type Payment struct {
	ID             string
	Number         string // unique, generated
	Ref            PayableRef
	Amount         decimal.Decimal
	Direction      Direction
	Method         string
	Date           time.Time
	CounterpartyID string // optional
	CreatedAt      time.Time
}

// =============================================================================
// COUNTERPARTY - Customer or supplier with a cached outstanding balance
// =============================================================================

// Counterparty is a customer (for received payments) or supplier (for
// paid payments). OutstandingBalance is a cached, non-authoritative
// projection: decremented when a payment referencing the counterparty is
// recorded, reversed when such a payment is deleted, and never negative.
type Counterparty struct {
	ID                 string
	Name               string
	OutstandingBalance decimal.Decimal
	CreatedAt          time.Time
}

// =============================================================================
// DERIVED STATUS RULE
// =============================================================================

// StatusFor is the shared deterministic tri-state rule used by every
// mutation. It is always evaluated against the full live payment sum so
// the cached status can never drift from the authoritative payment set.
//
//	paid    if paid_sum >= total_amount
//	partial if 0 < paid_sum < total_amount
//	pending if paid_sum == 0
func StatusFor(total, paidSum decimal.Decimal) PaymentStatus {
	switch {
	case paidSum.GreaterThanOrEqual(total):
		return StatusPaid
	case paidSum.IsPositive():
		return StatusPartial
	default:
		return StatusPending
	}
}
