/*
handlers.go - HTTP API handlers for the ledger core

PURPOSE:
  Exposes the payment reconciliation engine and the coin ledger via REST
  API. Handles HTTP request/response, JSON serialization, and delegates
  to domain logic.

ENDPOINTS:
  Payables:
    POST   /api/payables                       Register an order/invoice
    GET    /api/payables/{kind}/{id}           Payable + payment history

  Payments:
    POST   /api/payments                       Record a payment
    PUT    /api/payments/{id}                  Edit a payment
    DELETE /api/payments/{id}                  Delete a payment

  Counterparties:
    POST   /api/counterparties                 Register customer/supplier
    GET    /api/counterparties/{id}            Balance lookup

  Wallets:
    GET    /api/wallets/{userID}               Current wallet
    POST   /api/wallets/{userID}/earn          Credit coins for an order
    POST   /api/wallets/{userID}/redeem        Spend coins
    POST   /api/wallets/{userID}/adjust        Manual admin correction
    GET    /api/wallets/{userID}/transactions  Paged coin history

  Admin:
    POST   /api/admin/reconcile/payable        Re-derive a payable status
    POST   /api/admin/reconcile/wallet         Re-fold a wallet

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input (go-playground/validator tags + amount/date parsing)
  3. Call domain logic (payments.Engine, coins.Ledger)
  4. Serialize response
  5. Map domain errors to HTTP statuses

ERROR HANDLING:
  Domain errors map to JSON error responses:
  - 400: invalid amounts, dates, malformed input
  - 404: unknown payable, payment, wallet, counterparty
  - 409: concurrency conflict after retries
  - 422: overpayment, insufficient coin balance
  - 500: everything else

SECURITY NOTE:
  Currently NO authentication or authorization. The API is meant to sit
  behind the admin console's own auth layer.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/storefront/ledger-core/coins"
	"github.com/storefront/ledger-core/ledger"
	"github.com/storefront/ledger-core/payments"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Payments     *payments.Engine
	Coins        *coins.Ledger
	PaymentStore payments.TxStore
	CoinStore    coins.TxStore

	validate *validator.Validate
}

// NewHandler creates a handler over the two engines. The stores are the
// same ones the engines run on; handlers use them for plain reads.
func NewHandler(engine *payments.Engine, coinLedger *coins.Ledger) *Handler {
	return &Handler{
		Payments:     engine,
		Coins:        coinLedger,
		PaymentStore: engine.Store,
		CoinStore:    coinLedger.Store,
		validate:     validator.New(),
	}
}

// decode parses the request body and runs tag validation on it.
func (h *Handler) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return err
	}
	return h.validate.Struct(dst)
}

// =============================================================================
// PAYABLE HANDLERS
// =============================================================================

// CreatePayable registers an order or invoice for reconciliation.
// POST /api/payables
func (h *Handler) CreatePayable(w http.ResponseWriter, r *http.Request) {
	var req CreatePayableRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	total, err := parseAmount("total_amount", req.TotalAmount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if total.IsNegative() {
		writeDomainError(w, &ledger.InvalidAmountError{
			Field:  "total_amount",
			Value:  req.TotalAmount,
			Reason: "must not be negative",
		})
		return
	}

	// Registration is an upsert, so the status is derived from whatever
	// payments already reference this payable rather than reset to pending.
	ref := payments.PayableRef{Kind: payments.PayableKind(req.Kind), ID: req.ID}
	paid, err := h.PaymentStore.SumPayments(r.Context(), ref, "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to sum payments", err)
		return
	}

	payable := payments.Payable{
		ID:             req.ID,
		Kind:           ref.Kind,
		TotalAmount:    total,
		Status:         payments.StatusFor(total, paid),
		CounterpartyID: req.CounterpartyID,
		CreatedAt:      time.Now().UTC(),
	}
	if err := h.PaymentStore.SavePayable(r.Context(), payable); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save payable", err)
		return
	}

	writeJSON(w, http.StatusCreated, PayableDTO{
		ID:             payable.ID,
		Kind:           string(payable.Kind),
		TotalAmount:    payable.TotalAmount.String(),
		PaidAmount:     paid.String(),
		PaymentStatus:  string(payable.Status),
		CounterpartyID: payable.CounterpartyID,
		Payments:       []PaymentDTO{},
	})
}

// GetPayable returns a payable with its derived status and payments.
// GET /api/payables/{kind}/{id}
func (h *Handler) GetPayable(w http.ResponseWriter, r *http.Request) {
	ref := payments.PayableRef{
		Kind: payments.PayableKind(chi.URLParam(r, "kind")),
		ID:   chi.URLParam(r, "id"),
	}
	if !ref.Kind.Valid() {
		writeError(w, http.StatusBadRequest, "Unknown payable kind", nil)
		return
	}

	payable, err := h.PaymentStore.GetPayable(r.Context(), ref)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load payable", err)
		return
	}
	if payable == nil {
		writeError(w, http.StatusNotFound, "Payable not found", nil)
		return
	}

	paid, err := h.PaymentStore.SumPayments(r.Context(), ref, "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to sum payments", err)
		return
	}
	history, err := h.PaymentStore.ListPayments(r.Context(), ref)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list payments", err)
		return
	}

	writeJSON(w, http.StatusOK, PayableDTO{
		ID:             payable.ID,
		Kind:           string(payable.Kind),
		TotalAmount:    payable.TotalAmount.String(),
		PaidAmount:     paid.String(),
		PaymentStatus:  string(payable.Status),
		CounterpartyID: payable.CounterpartyID,
		Payments:       toPaymentDTOs(history),
	})
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// RecordPayment records a payment against a payable.
// POST /api/payments
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req RecordPaymentRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	payment, err := h.Payments.RecordPayment(r.Context(), payments.RecordPaymentInput{
		Ref: payments.PayableRef{
			Kind: payments.PayableKind(req.PayableKind),
			ID:   req.PayableID,
		},
		Amount:         amount,
		Direction:      payments.Direction(req.Direction),
		Method:         req.Method,
		Date:           date,
		CounterpartyID: req.CounterpartyID,
	})
	recordOutcome(PaymentMutations, "record", err)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPaymentDTO(payment))
}

// EditPayment replaces a payment's amount, date, and method.
// PUT /api/payments/{id}
func (h *Handler) EditPayment(w http.ResponseWriter, r *http.Request) {
	var req EditPaymentRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	payment, err := h.Payments.EditPayment(r.Context(), chi.URLParam(r, "id"), payments.EditPaymentInput{
		Amount: amount,
		Date:   date,
		Method: req.Method,
	})
	recordOutcome(PaymentMutations, "edit", err)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentDTO(payment))
}

// DeletePayment removes a payment and reverses its side effects.
// DELETE /api/payments/{id}
func (h *Handler) DeletePayment(w http.ResponseWriter, r *http.Request) {
	err := h.Payments.DeletePayment(r.Context(), chi.URLParam(r, "id"))
	recordOutcome(PaymentMutations, "delete", err)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// COUNTERPARTY HANDLERS
// =============================================================================

// CreateCounterparty registers a customer or supplier.
// POST /api/counterparties
func (h *Handler) CreateCounterparty(w http.ResponseWriter, r *http.Request) {
	var req CreateCounterpartyRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	balance := decimal.Zero
	if req.OutstandingBalance != "" {
		var err error
		if balance, err = parseAmount("outstanding_balance", req.OutstandingBalance); err != nil {
			writeDomainError(w, err)
			return
		}
	}

	cp := payments.Counterparty{
		ID:                 req.ID,
		Name:               req.Name,
		OutstandingBalance: balance,
		CreatedAt:          time.Now().UTC(),
	}
	if err := h.PaymentStore.SaveCounterparty(r.Context(), cp); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save counterparty", err)
		return
	}
	writeJSON(w, http.StatusCreated, CounterpartyDTO{
		ID:                 cp.ID,
		Name:               cp.Name,
		OutstandingBalance: cp.OutstandingBalance.String(),
	})
}

// GetCounterparty returns a counterparty and its outstanding balance.
// GET /api/counterparties/{id}
func (h *Handler) GetCounterparty(w http.ResponseWriter, r *http.Request) {
	cp, err := h.PaymentStore.GetCounterparty(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load counterparty", err)
		return
	}
	if cp == nil {
		writeError(w, http.StatusNotFound, "Counterparty not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, CounterpartyDTO{
		ID:                 cp.ID,
		Name:               cp.Name,
		OutstandingBalance: cp.OutstandingBalance.String(),
	})
}

// =============================================================================
// WALLET HANDLERS
// =============================================================================

// GetWallet returns the user's coin balance. Users with no history get
// an all-zero wallet rather than a 404.
// GET /api/wallets/{userID}
func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	wallet, err := h.CoinStore.GetWallet(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load wallet", err)
		return
	}
	if wallet == nil {
		wallet = &coins.Wallet{UserID: userID}
	}
	writeJSON(w, http.StatusOK, toWalletDTO(*wallet))
}

// Earn credits coins for a completed order.
// POST /api/wallets/{userID}/earn
func (h *Handler) Earn(w http.ResponseWriter, r *http.Request) {
	var req EarnRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	orderAmount, err := parseAmount("order_amount", req.OrderAmount)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	tx, err := h.Coins.RecordEarn(r.Context(), chi.URLParam(r, "userID"), orderAmount, req.Description)
	recordOutcome(CoinMutations, "earn", err)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	// A nil transaction means earning is disabled or rounded to zero.
	resp := struct {
		Transaction *CoinTransactionDTO `json:"transaction"`
	}{}
	status := http.StatusOK
	if tx != nil {
		dto := toCoinTransactionDTO(*tx)
		resp.Transaction = &dto
		status = http.StatusCreated
	}
	writeJSON(w, status, resp)
}

// Redeem spends coins from the wallet.
// POST /api/wallets/{userID}/redeem
func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req RedeemRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := parseAmount("coins", req.Coins)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	tx, err := h.Coins.Redeem(r.Context(), chi.URLParam(r, "userID"), amount, req.Description)
	recordOutcome(CoinMutations, "redeem", err)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCoinTransactionDTO(tx))
}

// Adjust applies a manual admin correction to the wallet.
// POST /api/wallets/{userID}/adjust
func (h *Handler) Adjust(w http.ResponseWriter, r *http.Request) {
	var req AdjustRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := parseAmount("coins", req.Coins)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	tx, err := h.Coins.ManualAdjust(r.Context(), chi.URLParam(r, "userID"),
		amount, coins.AdjustDirection(req.Direction), req.Reason)
	recordOutcome(CoinMutations, "adjust", err)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCoinTransactionDTO(tx))
}

// ListCoinTransactions returns one reverse-chronological page of the
// user's coin history.
// GET /api/wallets/{userID}/transactions?limit=&before=
func (h *Handler) ListCoinTransactions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}

	txs, err := h.Coins.ListTransactions(r.Context(), chi.URLParam(r, "userID"),
		limit, r.URL.Query().Get("before"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	page := CoinTransactionPageDTO{Transactions: make([]CoinTransactionDTO, len(txs))}
	for i, tx := range txs {
		page.Transactions[i] = toCoinTransactionDTO(tx)
	}
	if len(txs) > 0 {
		page.NextBefore = txs[len(txs)-1].ID
	}
	writeJSON(w, http.StatusOK, page)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// ReconcilePayable re-derives one payable's cached status from its
// payment history.
// POST /api/admin/reconcile/payable
func (h *Handler) ReconcilePayable(w http.ResponseWriter, r *http.Request) {
	var req ReconcilePayableRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	repaired, err := h.Payments.ReconcilePayable(r.Context(), payments.PayableRef{
		Kind: payments.PayableKind(req.Kind),
		ID:   req.ID,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ReconcileResultDTO{Repaired: repaired})
}

// ReconcileWallet re-folds one wallet from its transaction log.
// POST /api/admin/reconcile/wallet
func (h *Handler) ReconcileWallet(w http.ResponseWriter, r *http.Request) {
	var req ReconcileWalletRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	repaired, err := h.Coins.ReconcileWallet(r.Context(), req.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ReconcileResultDTO{Repaired: repaired})
}

// =============================================================================
// PARSING AND RESPONSE HELPERS
// =============================================================================

func parseAmount(field, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, &ledger.InvalidAmountError{
			Field:  field,
			Value:  raw,
			Reason: "not a valid decimal number",
		}
	}
	return d, nil
}

// parseDate accepts plain ISO dates ("2026-08-30") and full RFC 3339
// timestamps.
func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Time{}, &ledger.InvalidDateError{Date: raw}
}

// writeDomainError maps the typed error taxonomy onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		writeErrorCode(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, ledger.ErrOverpayment):
		var over *ledger.OverpaymentError
		resp := ErrorResponse{Error: err.Error(), Code: "overpayment"}
		if errors.As(err, &over) {
			resp.Details = map[string]string{
				"requested": over.Requested.String(),
				"remaining": over.Remaining.String(),
			}
		}
		writeJSON(w, http.StatusUnprocessableEntity, resp)
	case errors.Is(err, ledger.ErrInsufficientBalance):
		var short *ledger.InsufficientBalanceError
		resp := ErrorResponse{Error: err.Error(), Code: "insufficient_balance"}
		if errors.As(err, &short) {
			resp.Details = map[string]int64{
				"available": short.Available,
				"requested": short.Requested,
				"shortfall": short.Shortfall(),
			}
		}
		writeJSON(w, http.StatusUnprocessableEntity, resp)
	case errors.Is(err, ledger.ErrInvalidAmount):
		writeErrorCode(w, http.StatusBadRequest, "invalid_amount", err)
	case errors.Is(err, ledger.ErrInvalidDate):
		writeErrorCode(w, http.StatusBadRequest, "invalid_date", err)
	case errors.Is(err, coins.ErrReasonRequired):
		writeErrorCode(w, http.StatusBadRequest, "reason_required", err)
	case errors.Is(err, ledger.ErrConcurrencyConflict):
		writeErrorCode(w, http.StatusConflict, "conflict", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func writeErrorCode(w http.ResponseWriter, status int, code string, err error) {
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Code: code})
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
