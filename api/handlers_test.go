/*
handlers_test.go - HTTP-level tests for the ledger API

Tests for:
- Payable registration and lookup with derived status
- Payment record/edit/delete flows and their error responses
- Coin wallet earn/redeem/adjust and paged history
- Reconciliation endpoints
*/
package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront/ledger-core/api"
	"github.com/storefront/ledger-core/coins"
	"github.com/storefront/ledger-core/payments"
	"github.com/storefront/ledger-core/store/memory"
)

var testNow = time.Date(2026, time.August, 15, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	engine := payments.NewEngine(memory.NewPaymentStore())
	engine.Now = func() time.Time { return testNow }

	coinLedger := coins.NewLedger(memory.NewCoinStore(), coins.Settings{
		Enabled:           true,
		CoinsPerUnit:      decimal.NewFromFloat(0.5),
		GlobalMultiplier:  decimal.NewFromInt(1),
		FestiveMultiplier: decimal.NewFromInt(1),
		MinRedeemCoins:    1,
	})
	coinLedger.Now = func() time.Time { return testNow }

	srv := httptest.NewServer(api.NewRouter(api.NewHandler(engine, coinLedger)))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	}
	return resp, decoded
}

func createPayable(t *testing.T, srv *httptest.Server, id, kind, total string) {
	t.Helper()
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/payables", map[string]any{
		"id": id, "kind": kind, "total_amount": total,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func recordPayment(t *testing.T, srv *httptest.Server, payableID, amount string) map[string]any {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/payments", map[string]any{
		"payable_kind": "sales_order",
		"payable_id":   payableID,
		"amount":       amount,
		"direction":    "received",
		"date":         "2026-08-15",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, "body: %v", body)
	return body
}

// =============================================================================
// PAYABLE + PAYMENT FLOWS
// =============================================================================

func TestRecordPayment_FullFlow(t *testing.T) {
	srv := newTestServer(t)

	// GIVEN: a registered sales order
	createPayable(t, srv, "so-1", "sales_order", "500")

	// WHEN: a partial payment is recorded
	payment := recordPayment(t, srv, "so-1", "200")
	assert.NotEmpty(t, payment["id"])
	assert.NotEmpty(t, payment["payment_number"])
	assert.Equal(t, "200", payment["amount"])

	// THEN: the payable reflects a partial derived status and the history
	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/payables/sales_order/so-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "partial", body["payment_status"])
	assert.Equal(t, "200", body["paid_amount"])
	assert.Len(t, body["payments"], 1)

	// WHEN: the exact remainder is paid
	recordPayment(t, srv, "so-1", "300")

	// THEN: the payable is fully paid
	_, body = doJSON(t, http.MethodGet, srv.URL+"/api/payables/sales_order/so-1", nil)
	assert.Equal(t, "paid", body["payment_status"])
	assert.Equal(t, "500", body["paid_amount"])
}

func TestRecordPayment_Overpayment422(t *testing.T) {
	srv := newTestServer(t)
	createPayable(t, srv, "so-1", "sales_order", "500")
	recordPayment(t, srv, "so-1", "450")

	// WHEN: the recorded sum would exceed the total
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/payments", map[string]any{
		"payable_kind": "sales_order",
		"payable_id":   "so-1",
		"amount":       "100",
		"direction":    "received",
		"date":         "2026-08-15",
	})

	// THEN: rejected with the computed remaining, nothing clamped
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "overpayment", body["code"])
	details, ok := body["details"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "100", details["requested"])
	assert.Equal(t, "50", details["remaining"])

	// AND: the history is untouched
	_, payable := doJSON(t, http.MethodGet, srv.URL+"/api/payables/sales_order/so-1", nil)
	assert.Equal(t, "450", payable["paid_amount"])
	assert.Len(t, payable["payments"], 1)
}

func TestRecordPayment_UnknownPayable404(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/payments", map[string]any{
		"payable_kind": "sales_order",
		"payable_id":   "ghost",
		"amount":       "10",
		"direction":    "received",
		"date":         "2026-08-15",
	})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", body["code"])
}

func TestRecordPayment_BadInputs400(t *testing.T) {
	srv := newTestServer(t)
	createPayable(t, srv, "so-1", "sales_order", "500")

	base := map[string]any{
		"payable_kind": "sales_order",
		"payable_id":   "so-1",
		"amount":       "100",
		"direction":    "received",
		"date":         "2026-08-15",
	}

	cases := []struct {
		name     string
		mutate   map[string]any
		wantCode string
	}{
		{"non-numeric amount", map[string]any{"amount": "abc"}, "invalid_amount"},
		{"zero amount", map[string]any{"amount": "0"}, "invalid_amount"},
		{"negative amount", map[string]any{"amount": "-5"}, "invalid_amount"},
		{"unparseable date", map[string]any{"date": "15/08/2026"}, "invalid_date"},
		{"future date", map[string]any{"date": "2026-08-20"}, "invalid_date"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := map[string]any{}
			for k, v := range base {
				req[k] = v
			}
			for k, v := range tc.mutate {
				req[k] = v
			}
			resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/payments", req)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tc.wantCode, body["code"])
		})
	}

	// Validator catches a bad direction before domain logic runs
	bad := map[string]any{}
	for k, v := range base {
		bad[k] = v
	}
	bad["direction"] = "sideways"
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/payments", bad)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreatePayable_NegativeTotal400(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/payables", map[string]any{
		"id": "so-neg", "kind": "sales_order", "total_amount": "-100.00",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_amount", body["code"])

	// THEN: nothing was persisted
	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/payables/sales_order/so-neg", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreatePayable_RepostKeepsDerivedStatus(t *testing.T) {
	srv := newTestServer(t)
	createPayable(t, srv, "so-1", "sales_order", "500")
	recordPayment(t, srv, "so-1", "500")

	// WHEN: the same payable is registered again
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/payables", map[string]any{
		"id": "so-1", "kind": "sales_order", "total_amount": "500",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// THEN: the status is derived from the recorded payments, not reset
	assert.Equal(t, "paid", body["payment_status"])
	assert.Equal(t, "500", body["paid_amount"])

	_, payable := doJSON(t, http.MethodGet, srv.URL+"/api/payables/sales_order/so-1", nil)
	assert.Equal(t, "paid", payable["payment_status"])
}

func TestEditAndDeletePayment(t *testing.T) {
	srv := newTestServer(t)
	createPayable(t, srv, "so-1", "sales_order", "500")
	payment := recordPayment(t, srv, "so-1", "500")
	paymentID := payment["id"].(string)

	// WHEN: the payment is edited down
	resp, body := doJSON(t, http.MethodPut, srv.URL+"/api/payments/"+paymentID, map[string]any{
		"amount": "300", "date": "2026-08-15",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "300", body["amount"])

	// THEN: status recomputes from the edited history
	_, payable := doJSON(t, http.MethodGet, srv.URL+"/api/payables/sales_order/so-1", nil)
	assert.Equal(t, "partial", payable["payment_status"])

	// WHEN: an edit would exceed the remaining budget
	resp, body = doJSON(t, http.MethodPut, srv.URL+"/api/payments/"+paymentID, map[string]any{
		"amount": "501", "date": "2026-08-15",
	})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "overpayment", body["code"])

	// WHEN: the payment is deleted
	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/payments/"+paymentID, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// THEN: the payable falls back to pending
	_, payable = doJSON(t, http.MethodGet, srv.URL+"/api/payables/sales_order/so-1", nil)
	assert.Equal(t, "pending", payable["payment_status"])
	assert.Equal(t, "0", payable["paid_amount"])

	// AND: deleting again is a 404
	resp, body = doJSON(t, http.MethodDelete, srv.URL+"/api/payments/"+paymentID, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", body["code"])
}

func TestCounterpartyBalanceFlow(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/counterparties", map[string]any{
		"id": "cust-1", "name": "Su Su", "outstanding_balance": "300",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	createPayable(t, srv, "so-1", "sales_order", "500")
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/payments", map[string]any{
		"payable_kind":    "sales_order",
		"payable_id":      "so-1",
		"amount":          "100",
		"direction":       "received",
		"date":            "2026-08-15",
		"counterparty_id": "cust-1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, "body: %v", body)

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/counterparties/cust-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "200", body["outstanding_balance"])
}

// =============================================================================
// WALLET FLOWS
// =============================================================================

func TestWallet_EarnRedeemFlow(t *testing.T) {
	srv := newTestServer(t)

	// New users read as an empty wallet, not 404
	resp, wallet := doJSON(t, http.MethodGet, srv.URL+"/api/wallets/user-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 0, wallet["available_coins"])

	// Earn: 200 * 0.5 = 100 coins
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/wallets/user-1/earn", map[string]any{
		"order_amount": "200",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	tx, ok := body["transaction"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "earned", tx["type"])
	assert.EqualValues(t, 100, tx["coins_amount"])

	// Redeem part of it
	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/wallets/user-1/redeem", map[string]any{
		"coins": "40",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "redeemed", body["type"])

	_, wallet = doJSON(t, http.MethodGet, srv.URL+"/api/wallets/user-1", nil)
	assert.EqualValues(t, 100, wallet["total_coins_earned"])
	assert.EqualValues(t, 40, wallet["total_coins_used"])
	assert.EqualValues(t, 60, wallet["available_coins"])
}

func TestWallet_RedeemOverBalance422(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/wallets/user-1/earn", map[string]any{
		"order_amount": "60",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/wallets/user-1/redeem", map[string]any{
		"coins": "50",
	})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "insufficient_balance", body["code"])
	details, ok := body["details"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 30, details["available"])
	assert.EqualValues(t, 50, details["requested"])
	assert.EqualValues(t, 20, details["shortfall"])
}

func TestWallet_Adjust(t *testing.T) {
	srv := newTestServer(t)

	// Reason is mandatory; the validator rejects its absence
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/wallets/user-1/adjust", map[string]any{
		"coins": "25", "direction": "add",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/wallets/user-1/adjust", map[string]any{
		"coins": "25", "direction": "add", "reason": "goodwill credit",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "manual_add", body["type"])
	assert.Equal(t, "goodwill credit", body["admin_notes"])

	// Fractional coins never reach the ledger
	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/wallets/user-1/adjust", map[string]any{
		"coins": "12.5", "direction": "add", "reason": "typo",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_amount", body["code"])
}

func TestWallet_TransactionPaging(t *testing.T) {
	srv := newTestServer(t)

	for i := 0; i < 5; i++ {
		resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/wallets/user-1/adjust", map[string]any{
			"coins": "10", "direction": "add", "reason": fmt.Sprintf("batch %d", i),
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/wallets/user-1/transactions?limit=2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	first := body["transactions"].([]any)
	require.Len(t, first, 2)
	assert.Equal(t, "batch 4", first[0].(map[string]any)["admin_notes"], "newest first")
	cursor := body["next_before"].(string)
	require.NotEmpty(t, cursor)

	resp, body = doJSON(t, http.MethodGet,
		srv.URL+"/api/wallets/user-1/transactions?limit=2&before="+cursor, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	second := body["transactions"].([]any)
	require.Len(t, second, 2)
	assert.Equal(t, "batch 2", second[0].(map[string]any)["admin_notes"])

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/wallets/user-1/transactions?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// ADMIN RECONCILIATION
// =============================================================================

func TestReconcileEndpoints(t *testing.T) {
	srv := newTestServer(t)

	createPayable(t, srv, "so-1", "sales_order", "500")
	recordPayment(t, srv, "so-1", "100")

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/admin/reconcile/payable", map[string]any{
		"kind": "sales_order", "id": "so-1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["repaired"], "freshly derived status is not drift")

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/admin/reconcile/wallet", map[string]any{
		"user_id": "user-1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["repaired"])

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/admin/reconcile/payable", map[string]any{
		"kind": "sales_order", "id": "ghost",
	})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", body["code"])
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
