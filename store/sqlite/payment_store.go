/*
payment_store.go - SQLite implementation of payments.TxStore

PURPOSE:
  Persists payables, payments, and counterparties. All currency amounts
  are stored as decimal strings so SQLite floating point never touches
  money.

TRANSACTION MODEL:
  WithTx wraps the callback in one SQL transaction under the shared
  writer lock. Every query helper takes an execer, so the same code path
  serves both direct calls and transactional calls.

SEE ALSO:
  - payments/store.go: The contract this file implements
  - sqlite.go: Shared DB handle, schema, and conflict mapping
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/storefront/ledger-core/payments"
)

// PaymentStore implements payments.TxStore over a shared DB.
type PaymentStore struct {
	db *DB
}

// NewPaymentStore returns a payment store backed by db.
func NewPaymentStore(db *DB) *PaymentStore {
	return &PaymentStore{db: db}
}

// =============================================================================
// PAYABLES
// =============================================================================

func (s *PaymentStore) SavePayable(ctx context.Context, p payments.Payable) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return savePayable(ctx, s.db.sql, p)
}

func (s *PaymentStore) GetPayable(ctx context.Context, ref payments.PayableRef) (*payments.Payable, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return getPayable(ctx, s.db.sql, ref)
}

func (s *PaymentStore) UpdatePayableStatus(ctx context.Context, ref payments.PayableRef, status payments.PaymentStatus) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return updatePayableStatus(ctx, s.db.sql, ref, status)
}

func savePayable(ctx context.Context, q execer, p payments.Payable) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO payables (id, kind, total_amount, payment_status, counterparty_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (kind, id) DO UPDATE SET
			total_amount = excluded.total_amount,
			payment_status = excluded.payment_status,
			counterparty_id = excluded.counterparty_id`,
		p.ID, string(p.Kind), p.TotalAmount.String(), string(p.Status),
		nullString(p.CounterpartyID), p.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to save payable: %w", err)
	}
	return nil
}

func getPayable(ctx context.Context, q execer, ref payments.PayableRef) (*payments.Payable, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, kind, total_amount, payment_status, counterparty_id, created_at
		FROM payables WHERE kind = ? AND id = ?`,
		string(ref.Kind), ref.ID)

	var (
		p              payments.Payable
		kind, status   string
		total, created string
		counterparty   sql.NullString
	)
	err := row.Scan(&p.ID, &kind, &total, &status, &counterparty, &created)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payable: %w", err)
	}

	p.Kind = payments.PayableKind(kind)
	p.Status = payments.PaymentStatus(status)
	p.CounterpartyID = counterparty.String
	if p.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("corrupt total_amount for payable %s: %w", ref, err)
	}
	if p.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, fmt.Errorf("corrupt created_at for payable %s: %w", ref, err)
	}
	return &p, nil
}

func updatePayableStatus(ctx context.Context, q execer, ref payments.PayableRef, status payments.PaymentStatus) error {
	res, err := q.ExecContext(ctx, `
		UPDATE payables SET payment_status = ? WHERE kind = ? AND id = ?`,
		string(status), string(ref.Kind), ref.ID)
	if err != nil {
		return fmt.Errorf("failed to update payable status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("payable %s not found", ref)
	}
	return nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

func (s *PaymentStore) InsertPayment(ctx context.Context, p payments.Payment) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return insertPayment(ctx, s.db.sql, p)
}

func (s *PaymentStore) GetPayment(ctx context.Context, id string) (*payments.Payment, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return getPayment(ctx, s.db.sql, id)
}

func (s *PaymentStore) UpdatePayment(ctx context.Context, p payments.Payment) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return updatePayment(ctx, s.db.sql, p)
}

func (s *PaymentStore) DeletePayment(ctx context.Context, id string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return deletePayment(ctx, s.db.sql, id)
}

func (s *PaymentStore) SumPayments(ctx context.Context, ref payments.PayableRef, excludeID string) (decimal.Decimal, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return sumPayments(ctx, s.db.sql, ref, excludeID)
}

func (s *PaymentStore) ListPayments(ctx context.Context, ref payments.PayableRef) ([]payments.Payment, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return listPayments(ctx, s.db.sql, ref)
}

const paymentColumns = `id, payment_number, payable_kind, payable_id, amount,
	direction, method, pay_date, counterparty_id, created_at`

func insertPayment(ctx context.Context, q execer, p payments.Payment) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO payments (`+paymentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Number, string(p.Ref.Kind), p.Ref.ID, p.Amount.String(),
		string(p.Direction), nullString(p.Method),
		p.Date.UTC().Format(time.RFC3339Nano),
		nullString(p.CounterpartyID),
		p.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

func getPayment(ctx context.Context, q execer, id string) (*payments.Payment, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id)
	p, err := scanPayment(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return p, nil
}

func updatePayment(ctx context.Context, q execer, p payments.Payment) error {
	res, err := q.ExecContext(ctx, `
		UPDATE payments SET amount = ?, method = ?, pay_date = ? WHERE id = ?`,
		p.Amount.String(), nullString(p.Method),
		p.Date.UTC().Format(time.RFC3339Nano), p.ID)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("payment %s not found", p.ID)
	}
	return nil
}

func deletePayment(ctx context.Context, q execer, id string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM payments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete payment: %w", err)
	}
	return nil
}

// sumPayments sums in Go rather than with SQL SUM() so decimal strings
// never pass through SQLite numeric affinity.
func sumPayments(ctx context.Context, q execer, ref payments.PayableRef, excludeID string) (decimal.Decimal, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT amount FROM payments
		WHERE payable_kind = ? AND payable_id = ? AND id != ?`,
		string(ref.Kind), ref.ID, excludeID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum payments: %w", err)
	}
	defer rows.Close()

	sum := decimal.Zero
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return decimal.Zero, err
		}
		amt, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, fmt.Errorf("corrupt payment amount for %s: %w", ref, err)
		}
		sum = sum.Add(amt)
	}
	return sum, rows.Err()
}

func listPayments(ctx context.Context, q execer, ref payments.PayableRef) ([]payments.Payment, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE payable_kind = ? AND payable_id = ?
		ORDER BY rowid ASC`,
		string(ref.Kind), ref.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var out []payments.Payment
	for rows.Next() {
		p, err := scanPayment(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func scanPayment(scan func(dest ...any) error) (*payments.Payment, error) {
	var (
		p                    payments.Payment
		kind, direction      string
		amount, date, create string
		method, counterparty sql.NullString
	)
	err := scan(&p.ID, &p.Number, &kind, &p.Ref.ID, &amount,
		&direction, &method, &date, &counterparty, &create)
	if err != nil {
		return nil, err
	}

	p.Ref.Kind = payments.PayableKind(kind)
	p.Direction = payments.Direction(direction)
	p.Method = method.String
	p.CounterpartyID = counterparty.String
	if p.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("corrupt amount for payment %s: %w", p.ID, err)
	}
	if p.Date, err = time.Parse(time.RFC3339Nano, date); err != nil {
		return nil, fmt.Errorf("corrupt pay_date for payment %s: %w", p.ID, err)
	}
	if p.CreatedAt, err = time.Parse(time.RFC3339Nano, create); err != nil {
		return nil, fmt.Errorf("corrupt created_at for payment %s: %w", p.ID, err)
	}
	return &p, nil
}

func (s *PaymentStore) ListPayableRefs(ctx context.Context) ([]payments.PayableRef, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return listPayableRefs(ctx, s.db.sql)
}

func listPayableRefs(ctx context.Context, q execer) ([]payments.PayableRef, error) {
	rows, err := q.QueryContext(ctx, `SELECT kind, id FROM payables ORDER BY rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list payables: %w", err)
	}
	defer rows.Close()

	var out []payments.PayableRef
	for rows.Next() {
		var kind string
		var ref payments.PayableRef
		if err := rows.Scan(&kind, &ref.ID); err != nil {
			return nil, err
		}
		ref.Kind = payments.PayableKind(kind)
		out = append(out, ref)
	}
	return out, rows.Err()
}

// =============================================================================
// COUNTERPARTIES
// =============================================================================

func (s *PaymentStore) SaveCounterparty(ctx context.Context, c payments.Counterparty) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return saveCounterparty(ctx, s.db.sql, c)
}

func (s *PaymentStore) GetCounterparty(ctx context.Context, id string) (*payments.Counterparty, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return getCounterparty(ctx, s.db.sql, id)
}

func (s *PaymentStore) SetCounterpartyBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return setCounterpartyBalance(ctx, s.db.sql, id, balance)
}

func saveCounterparty(ctx context.Context, q execer, c payments.Counterparty) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO counterparties (id, name, outstanding_balance, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			outstanding_balance = excluded.outstanding_balance`,
		c.ID, c.Name, c.OutstandingBalance.String(),
		c.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to save counterparty: %w", err)
	}
	return nil
}

func getCounterparty(ctx context.Context, q execer, id string) (*payments.Counterparty, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, name, outstanding_balance, created_at
		FROM counterparties WHERE id = ?`, id)

	var (
		cp               payments.Counterparty
		balance, created string
	)
	err := row.Scan(&cp.ID, &cp.Name, &balance, &created)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get counterparty: %w", err)
	}
	if cp.OutstandingBalance, err = decimal.NewFromString(balance); err != nil {
		return nil, fmt.Errorf("corrupt balance for counterparty %s: %w", cp.ID, err)
	}
	if cp.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, fmt.Errorf("corrupt created_at for counterparty %s: %w", cp.ID, err)
	}
	return &cp, nil
}

func setCounterpartyBalance(ctx context.Context, q execer, id string, balance decimal.Decimal) error {
	res, err := q.ExecContext(ctx, `
		UPDATE counterparties SET outstanding_balance = ? WHERE id = ?`,
		balance.String(), id)
	if err != nil {
		return fmt.Errorf("failed to set counterparty balance: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("counterparty %s not found", id)
	}
	return nil
}

// =============================================================================
// TRANSACTIONAL STORE (payments.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *PaymentStore) WithTx(ctx context.Context, fn func(payments.Store) error) error {
	return s.db.withTx(ctx, func(tx *sql.Tx) error {
		return fn(&txPaymentStore{tx: tx})
	})
}

// txPaymentStore runs every call against one open transaction. The
// parent already holds the writer lock, so no locking here.
type txPaymentStore struct {
	tx *sql.Tx
}

func (ts *txPaymentStore) SavePayable(ctx context.Context, p payments.Payable) error {
	return savePayable(ctx, ts.tx, p)
}

func (ts *txPaymentStore) GetPayable(ctx context.Context, ref payments.PayableRef) (*payments.Payable, error) {
	return getPayable(ctx, ts.tx, ref)
}

func (ts *txPaymentStore) UpdatePayableStatus(ctx context.Context, ref payments.PayableRef, status payments.PaymentStatus) error {
	return updatePayableStatus(ctx, ts.tx, ref, status)
}

func (ts *txPaymentStore) InsertPayment(ctx context.Context, p payments.Payment) error {
	return insertPayment(ctx, ts.tx, p)
}

func (ts *txPaymentStore) GetPayment(ctx context.Context, id string) (*payments.Payment, error) {
	return getPayment(ctx, ts.tx, id)
}

func (ts *txPaymentStore) UpdatePayment(ctx context.Context, p payments.Payment) error {
	return updatePayment(ctx, ts.tx, p)
}

func (ts *txPaymentStore) DeletePayment(ctx context.Context, id string) error {
	return deletePayment(ctx, ts.tx, id)
}

func (ts *txPaymentStore) SumPayments(ctx context.Context, ref payments.PayableRef, excludeID string) (decimal.Decimal, error) {
	return sumPayments(ctx, ts.tx, ref, excludeID)
}

func (ts *txPaymentStore) ListPayments(ctx context.Context, ref payments.PayableRef) ([]payments.Payment, error) {
	return listPayments(ctx, ts.tx, ref)
}

func (ts *txPaymentStore) SaveCounterparty(ctx context.Context, c payments.Counterparty) error {
	return saveCounterparty(ctx, ts.tx, c)
}

func (ts *txPaymentStore) GetCounterparty(ctx context.Context, id string) (*payments.Counterparty, error) {
	return getCounterparty(ctx, ts.tx, id)
}

func (ts *txPaymentStore) SetCounterpartyBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	return setCounterpartyBalance(ctx, ts.tx, id, balance)
}

func (ts *txPaymentStore) ListPayableRefs(ctx context.Context) ([]payments.PayableRef, error) {
	return listPayableRefs(ctx, ts.tx)
}
