/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

AMOUNTS:
  Currency amounts cross the wire as JSON strings ("125.50") and are
  parsed into decimal.Decimal. Floats never touch money.

VALIDATION:
  Request structs carry validate tags checked by go-playground/validator
  in the handlers; domain invariants (overpayment, balance floors) are
  re-checked inside the engines regardless of what the API lets through.

SEE ALSO:
  - handlers.go: Uses these types
  - payments/types.go, coins/types.go: Domain model
*/
package api

import (
	"time"

	"github.com/storefront/ledger-core/coins"
	"github.com/storefront/ledger-core/payments"
)

// =============================================================================
// PAYMENT TYPES
// =============================================================================

// CreatePayableRequest registers an order or invoice for reconciliation.
type CreatePayableRequest struct {
	ID             string `json:"id" validate:"required"`
	Kind           string `json:"kind" validate:"required,oneof=sales_order purchase_invoice"`
	TotalAmount    string `json:"total_amount" validate:"required"`
	CounterpartyID string `json:"counterparty_id,omitempty"`
}

// PayableDTO is a payable with its derived status and payment history.
type PayableDTO struct {
	ID             string       `json:"id"`
	Kind           string       `json:"kind"`
	TotalAmount    string       `json:"total_amount"`
	PaidAmount     string       `json:"paid_amount"`
	PaymentStatus  string       `json:"payment_status"`
	CounterpartyID string       `json:"counterparty_id,omitempty"`
	Payments       []PaymentDTO `json:"payments"`
}

// RecordPaymentRequest records money received or paid against a payable.
type RecordPaymentRequest struct {
	PayableKind    string `json:"payable_kind" validate:"required,oneof=sales_order purchase_invoice"`
	PayableID      string `json:"payable_id" validate:"required"`
	Amount         string `json:"amount" validate:"required"`
	Direction      string `json:"direction" validate:"required,oneof=received paid"`
	Method         string `json:"method,omitempty"`
	Date           string `json:"date" validate:"required"` // ISO date or RFC 3339
	CounterpartyID string `json:"counterparty_id,omitempty"`
}

// EditPaymentRequest replaces a payment's mutable fields. An omitted
// method keeps the current one.
type EditPaymentRequest struct {
	Amount string `json:"amount" validate:"required"`
	Date   string `json:"date" validate:"required"`
	Method string `json:"method,omitempty"`
}

// PaymentDTO represents a payment in API responses.
type PaymentDTO struct {
	ID             string `json:"id"`
	Number         string `json:"payment_number"`
	PayableKind    string `json:"payable_kind"`
	PayableID      string `json:"payable_id"`
	Amount         string `json:"amount"`
	Direction      string `json:"direction"`
	Method         string `json:"method,omitempty"`
	Date           string `json:"date"`
	CounterpartyID string `json:"counterparty_id,omitempty"`
	CreatedAt      string `json:"created_at,omitempty"`
}

// CreateCounterpartyRequest registers a customer or supplier.
type CreateCounterpartyRequest struct {
	ID                 string `json:"id" validate:"required"`
	Name               string `json:"name" validate:"required"`
	OutstandingBalance string `json:"outstanding_balance,omitempty"`
}

// CounterpartyDTO represents a counterparty in API responses.
type CounterpartyDTO struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	OutstandingBalance string `json:"outstanding_balance"`
}

// =============================================================================
// COIN TYPES
// =============================================================================

// EarnRequest credits coins for a completed order amount.
type EarnRequest struct {
	OrderAmount string `json:"order_amount" validate:"required"`
	Description string `json:"description,omitempty"`
}

// RedeemRequest spends coins from a wallet.
type RedeemRequest struct {
	Coins       string `json:"coins" validate:"required"`
	Description string `json:"description,omitempty"`
}

// AdjustRequest is a manual admin correction to a wallet.
type AdjustRequest struct {
	Coins     string `json:"coins" validate:"required"`
	Direction string `json:"direction" validate:"required,oneof=add remove"`
	Reason    string `json:"reason" validate:"required"`
}

// WalletDTO represents a user's coin balance.
type WalletDTO struct {
	UserID           string `json:"user_id"`
	TotalCoinsEarned int64  `json:"total_coins_earned"`
	TotalCoinsUsed   int64  `json:"total_coins_used"`
	AvailableCoins   int64  `json:"available_coins"`
	LastUpdated      string `json:"last_updated,omitempty"`
}

// CoinTransactionDTO represents a coin ledger entry.
type CoinTransactionDTO struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	Type        string `json:"type"`
	CoinsAmount int64  `json:"coins_amount"`
	Description string `json:"description,omitempty"`
	AdminNotes  string `json:"admin_notes,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// CoinTransactionPageDTO is one reverse-chronological page of the log.
type CoinTransactionPageDTO struct {
	Transactions []CoinTransactionDTO `json:"transactions"`
	NextBefore   string               `json:"next_before,omitempty"`
}

// =============================================================================
// ADMIN TYPES
// =============================================================================

// ReconcilePayableRequest re-derives one payable's status.
type ReconcilePayableRequest struct {
	Kind string `json:"kind" validate:"required,oneof=sales_order purchase_invoice"`
	ID   string `json:"id" validate:"required"`
}

// ReconcileWalletRequest re-folds one wallet from its log.
type ReconcileWalletRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

// ReconcileResultDTO reports whether a cached projection was repaired.
type ReconcileResultDTO struct {
	Repaired bool `json:"repaired"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toPaymentDTO(p payments.Payment) PaymentDTO {
	return PaymentDTO{
		ID:             p.ID,
		Number:         p.Number,
		PayableKind:    string(p.Ref.Kind),
		PayableID:      p.Ref.ID,
		Amount:         p.Amount.String(),
		Direction:      string(p.Direction),
		Method:         p.Method,
		Date:           p.Date.Format(time.RFC3339),
		CounterpartyID: p.CounterpartyID,
		CreatedAt:      p.CreatedAt.Format(time.RFC3339),
	}
}

func toPaymentDTOs(ps []payments.Payment) []PaymentDTO {
	dtos := make([]PaymentDTO, len(ps))
	for i, p := range ps {
		dtos[i] = toPaymentDTO(p)
	}
	return dtos
}

func toWalletDTO(w coins.Wallet) WalletDTO {
	dto := WalletDTO{
		UserID:           w.UserID,
		TotalCoinsEarned: w.TotalCoinsEarned,
		TotalCoinsUsed:   w.TotalCoinsUsed,
		AvailableCoins:   w.AvailableCoins,
	}
	if !w.LastUpdated.IsZero() {
		dto.LastUpdated = w.LastUpdated.Format(time.RFC3339)
	}
	return dto
}

func toCoinTransactionDTO(tx coins.CoinTransaction) CoinTransactionDTO {
	return CoinTransactionDTO{
		ID:          tx.ID,
		UserID:      tx.UserID,
		Type:        string(tx.Type),
		CoinsAmount: tx.CoinsAmount,
		Description: tx.Description,
		AdminNotes:  tx.AdminNotes,
		CreatedAt:   tx.CreatedAt.Format(time.RFC3339),
	}
}
