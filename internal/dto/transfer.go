package dto

import (
	"time"

	"bankcore/internal/models"

	"github.com/shopspring/decimal"
)

// SubmitTransferRequest is the public submit interface. The idempotency key is
// mandatory: it is the retry/duplicate-collapse mechanism, not an option.
type SubmitTransferRequest struct {
	RecipientAccountID string `json:"recipient_account_id" validate:"required,uuid4"`
	Amount             string `json:"amount" validate:"required,transfer_amount"`
	Reference          string `json:"reference,omitempty" validate:"omitempty,max=200"`
	IdempotencyKey     string `json:"idempotency_key" validate:"required,idempotency_key"`
}

// TransferResponse mirrors the persisted transfer record. All monetary fields
// carry exactly two fractional digits.
type TransferResponse struct {
	ID             string     `json:"id"`
	FromAccountID  string     `json:"from_account_id"`
	ToAccountID    string     `json:"to_account_id"`
	Amount         string     `json:"amount"`
	Fee            string     `json:"fee"`
	TotalDeducted  string     `json:"total_deducted"`
	Status         string     `json:"status"`
	FailureReason  *string    `json:"failure_reason,omitempty"`
	Reference      string     `json:"reference,omitempty"`
	IdempotencyKey string     `json:"idempotency_key"`
	CreatedAt      time.Time  `json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// NewTransferResponse converts a transfer record into its API shape
func NewTransferResponse(t *models.Transfer) *TransferResponse {
	return &TransferResponse{
		ID:             t.ID.String(),
		FromAccountID:  t.FromAccountID.String(),
		ToAccountID:    t.ToAccountID.String(),
		Amount:         t.Amount.StringFixed(2),
		Fee:            t.Fee.StringFixed(2),
		TotalDeducted:  t.TotalDeducted.StringFixed(2),
		Status:         t.Status,
		FailureReason:  t.FailureReason,
		Reference:      t.Reference,
		IdempotencyKey: t.IdempotencyKey,
		CreatedAt:      t.CreatedAt,
		CompletedAt:    t.CompletedAt,
	}
}

// TransferListResponse is a paginated transfer history page
type TransferListResponse struct {
	Transfers []TransferResponse `json:"transfers"`
	Total     int64              `json:"total"`
	Offset    int                `json:"offset"`
	Limit     int                `json:"limit"`
}

// BalanceResponse carries a single account balance
type BalanceResponse struct {
	AccountID string `json:"account_id"`
	Balance   string `json:"balance"`
}

// NewBalanceResponse formats a balance with exactly two fractional digits
func NewBalanceResponse(accountID string, balance decimal.Decimal) *BalanceResponse {
	return &BalanceResponse{
		AccountID: accountID,
		Balance:   balance.StringFixed(2),
	}
}
