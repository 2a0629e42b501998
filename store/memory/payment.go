// Package memory provides in-memory store implementations (for testing/dev).
package memory

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/storefront/ledger-core/payments"
)

// =============================================================================
// PAYMENT STORE - In-memory implementation of payments.TxStore
// =============================================================================

type PaymentStore struct {
	mu             sync.RWMutex
	payables       map[payments.PayableRef]payments.Payable
	payments       map[string]payments.Payment
	paymentOrder   []string
	counterparties map[string]payments.Counterparty
}

func NewPaymentStore() *PaymentStore {
	return &PaymentStore{
		payables:       make(map[payments.PayableRef]payments.Payable),
		payments:       make(map[string]payments.Payment),
		counterparties: make(map[string]payments.Counterparty),
	}
}

func (m *PaymentStore) SavePayable(_ context.Context, p payments.Payable) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payables[p.Ref()] = p
	return nil
}

func (m *PaymentStore) GetPayable(_ context.Context, ref payments.PayableRef) (*payments.Payable, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getPayableLocked(ref)
}

func (m *PaymentStore) getPayableLocked(ref payments.PayableRef) (*payments.Payable, error) {
	p, ok := m.payables[ref]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *PaymentStore) UpdatePayableStatus(_ context.Context, ref payments.PayableRef, status payments.PaymentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updatePayableStatusLocked(ref, status)
}

func (m *PaymentStore) updatePayableStatusLocked(ref payments.PayableRef, status payments.PaymentStatus) error {
	p, ok := m.payables[ref]
	if !ok {
		return nil
	}
	p.Status = status
	m.payables[ref] = p
	return nil
}

func (m *PaymentStore) InsertPayment(_ context.Context, p payments.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertPaymentLocked(p)
}

func (m *PaymentStore) insertPaymentLocked(p payments.Payment) error {
	m.payments[p.ID] = p
	m.paymentOrder = append(m.paymentOrder, p.ID)
	return nil
}

func (m *PaymentStore) GetPayment(_ context.Context, id string) (*payments.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getPaymentLocked(id)
}

func (m *PaymentStore) getPaymentLocked(id string) (*payments.Payment, error) {
	p, ok := m.payments[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *PaymentStore) UpdatePayment(_ context.Context, p payments.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updatePaymentLocked(p)
}

func (m *PaymentStore) updatePaymentLocked(p payments.Payment) error {
	if _, ok := m.payments[p.ID]; !ok {
		return nil
	}
	m.payments[p.ID] = p
	return nil
}

func (m *PaymentStore) DeletePayment(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deletePaymentLocked(id)
}

func (m *PaymentStore) deletePaymentLocked(id string) error {
	delete(m.payments, id)
	for i, pid := range m.paymentOrder {
		if pid == id {
			m.paymentOrder = append(m.paymentOrder[:i], m.paymentOrder[i+1:]...)
			break
		}
	}
	return nil
}

func (m *PaymentStore) SumPayments(_ context.Context, ref payments.PayableRef, excludeID string) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sumPaymentsLocked(ref, excludeID)
}

func (m *PaymentStore) sumPaymentsLocked(ref payments.PayableRef, excludeID string) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, p := range m.payments {
		if p.Ref == ref && p.ID != excludeID {
			sum = sum.Add(p.Amount)
		}
	}
	return sum, nil
}

func (m *PaymentStore) ListPayments(_ context.Context, ref payments.PayableRef) ([]payments.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listPaymentsLocked(ref)
}

func (m *PaymentStore) listPaymentsLocked(ref payments.PayableRef) ([]payments.Payment, error) {
	var out []payments.Payment
	for _, id := range m.paymentOrder {
		if p, ok := m.payments[id]; ok && p.Ref == ref {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *PaymentStore) SaveCounterparty(_ context.Context, c payments.Counterparty) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counterparties[c.ID] = c
	return nil
}

func (m *PaymentStore) GetCounterparty(_ context.Context, id string) (*payments.Counterparty, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getCounterpartyLocked(id)
}

func (m *PaymentStore) getCounterpartyLocked(id string) (*payments.Counterparty, error) {
	c, ok := m.counterparties[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *PaymentStore) SetCounterpartyBalance(_ context.Context, id string, balance decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setCounterpartyBalanceLocked(id, balance)
}

func (m *PaymentStore) setCounterpartyBalanceLocked(id string, balance decimal.Decimal) error {
	c, ok := m.counterparties[id]
	if !ok {
		return nil
	}
	c.OutstandingBalance = balance
	m.counterparties[id] = c
	return nil
}

func (m *PaymentStore) ListPayableRefs(_ context.Context) ([]payments.PayableRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listPayableRefsLocked()
}

func (m *PaymentStore) listPayableRefsLocked() ([]payments.PayableRef, error) {
	out := make([]payments.PayableRef, 0, len(m.payables))
	for ref := range m.payables {
		out = append(out, ref)
	}
	return out, nil
}

// =============================================================================
// TRANSACTIONS - Simulated with snapshot + rollback on error
// =============================================================================

// WithTx executes fn within a transaction. The store lock is held for
// the duration; on error the pre-transaction state is restored.
func (m *PaymentStore) WithTx(_ context.Context, fn func(payments.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshot()
	if err := fn(&txPaymentView{parent: m}); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

type paymentSnapshot struct {
	payables       map[payments.PayableRef]payments.Payable
	payments       map[string]payments.Payment
	paymentOrder   []string
	counterparties map[string]payments.Counterparty
}

func (m *PaymentStore) snapshot() paymentSnapshot {
	s := paymentSnapshot{
		payables:       make(map[payments.PayableRef]payments.Payable, len(m.payables)),
		payments:       make(map[string]payments.Payment, len(m.payments)),
		paymentOrder:   append([]string{}, m.paymentOrder...),
		counterparties: make(map[string]payments.Counterparty, len(m.counterparties)),
	}
	for k, v := range m.payables {
		s.payables[k] = v
	}
	for k, v := range m.payments {
		s.payments[k] = v
	}
	for k, v := range m.counterparties {
		s.counterparties[k] = v
	}
	return s
}

func (m *PaymentStore) restore(s paymentSnapshot) {
	m.payables = s.payables
	m.payments = s.payments
	m.paymentOrder = s.paymentOrder
	m.counterparties = s.counterparties
}

// txPaymentView writes directly to the parent, which already holds the
// lock; rollback happens via the parent's snapshot.
type txPaymentView struct {
	parent *PaymentStore
}

func (v *txPaymentView) SavePayable(_ context.Context, p payments.Payable) error {
	v.parent.payables[p.Ref()] = p
	return nil
}

func (v *txPaymentView) GetPayable(_ context.Context, ref payments.PayableRef) (*payments.Payable, error) {
	return v.parent.getPayableLocked(ref)
}

func (v *txPaymentView) UpdatePayableStatus(_ context.Context, ref payments.PayableRef, status payments.PaymentStatus) error {
	return v.parent.updatePayableStatusLocked(ref, status)
}

func (v *txPaymentView) InsertPayment(_ context.Context, p payments.Payment) error {
	return v.parent.insertPaymentLocked(p)
}

func (v *txPaymentView) GetPayment(_ context.Context, id string) (*payments.Payment, error) {
	return v.parent.getPaymentLocked(id)
}

func (v *txPaymentView) UpdatePayment(_ context.Context, p payments.Payment) error {
	return v.parent.updatePaymentLocked(p)
}

func (v *txPaymentView) DeletePayment(_ context.Context, id string) error {
	return v.parent.deletePaymentLocked(id)
}

func (v *txPaymentView) SumPayments(_ context.Context, ref payments.PayableRef, excludeID string) (decimal.Decimal, error) {
	return v.parent.sumPaymentsLocked(ref, excludeID)
}

func (v *txPaymentView) ListPayments(_ context.Context, ref payments.PayableRef) ([]payments.Payment, error) {
	return v.parent.listPaymentsLocked(ref)
}

func (v *txPaymentView) SaveCounterparty(_ context.Context, c payments.Counterparty) error {
	v.parent.counterparties[c.ID] = c
	return nil
}

func (v *txPaymentView) GetCounterparty(_ context.Context, id string) (*payments.Counterparty, error) {
	return v.parent.getCounterpartyLocked(id)
}

func (v *txPaymentView) SetCounterpartyBalance(_ context.Context, id string, balance decimal.Decimal) error {
	return v.parent.setCounterpartyBalanceLocked(id, balance)
}

func (v *txPaymentView) ListPayableRefs(_ context.Context) ([]payments.PayableRef, error) {
	return v.parent.listPayableRefsLocked()
}
