package models

import (
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	TransferStatusPending   = "pending"
	TransferStatusCompleted = "completed"
	TransferStatusFailed    = "failed"

	MaxReferenceLength = 200
)

var (
	ErrInvalidTransferStatus = errors.New("invalid transfer status")
	ErrInvalidTransferAmount = errors.New("transfer amount must be positive")
	ErrReferenceTooLong      = errors.New("reference exceeds maximum length")
)

// Transfer is the durable record of one money transfer. Amount, Fee and
// TotalDeducted are fixed at creation; only the status fields change, and a
// terminal status (completed or failed) is set exactly once.
type Transfer struct {
	ID             uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	FromAccountID  uuid.UUID       `gorm:"type:uuid;not null;index:idx_transfer_from_account" json:"from_account_id"`
	ToAccountID    uuid.UUID       `gorm:"type:uuid;not null;index:idx_transfer_to_account" json:"to_account_id"`
	Amount         decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	Fee            decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"fee"`
	TotalDeducted  decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"total_deducted"`
	Reference      string          `gorm:"type:varchar(200)" json:"reference,omitempty"`
	IdempotencyKey string          `gorm:"type:varchar(255);uniqueIndex;not null" json:"idempotency_key"`
	Status         string          `gorm:"type:varchar(20);not null;default:'pending';index:idx_transfer_status" json:"status"`
	FailureReason  *string         `gorm:"type:text" json:"failure_reason,omitempty"`
	CreatedAt      time.Time       `gorm:"not null;index:idx_transfer_created_at" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"not null" json:"updated_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`

	// Associations
	FromAccount Account `gorm:"foreignKey:FromAccountID" json:"-"`
	ToAccount   Account `gorm:"foreignKey:ToAccountID" json:"-"`
}

// BeforeCreate hook for Transfer
func (t *Transfer) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}

	if t.Status == "" {
		t.Status = TransferStatusPending
	}

	now := time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = now
	}

	return t.Validate()
}

// BeforeUpdate hook for Transfer
func (t *Transfer) BeforeUpdate(tx *gorm.DB) error {
	t.UpdatedAt = time.Now()
	return t.Validate()
}

// Validate validates the transfer fields
func (t *Transfer) Validate() error {
	if t.FromAccountID == uuid.Nil {
		return errors.New("from account ID is required")
	}

	if t.ToAccountID == uuid.Nil {
		return errors.New("to account ID is required")
	}

	if t.FromAccountID == t.ToAccountID {
		return errors.New("from and to accounts cannot be the same")
	}

	if t.Amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidTransferAmount
	}

	if t.Fee.LessThan(decimal.Zero) {
		return errors.New("fee cannot be negative")
	}

	if !t.TotalDeducted.Equal(t.Amount.Add(t.Fee)) {
		return errors.New("total deducted must equal amount plus fee")
	}

	if len(t.Reference) > MaxReferenceLength {
		return ErrReferenceTooLong
	}

	if t.IdempotencyKey == "" {
		return errors.New("idempotency key is required")
	}

	if !IsValidTransferStatus(t.Status) {
		return ErrInvalidTransferStatus
	}

	return nil
}

// IsPending returns true if the transfer is pending
func (t *Transfer) IsPending() bool {
	return t.Status == TransferStatusPending
}

// IsCompleted returns true if the transfer is completed
func (t *Transfer) IsCompleted() bool {
	return t.Status == TransferStatusCompleted
}

// IsFailed returns true if the transfer is failed
func (t *Transfer) IsFailed() bool {
	return t.Status == TransferStatusFailed
}

// IsTerminal returns true once a terminal status has been set
func (t *Transfer) IsTerminal() bool {
	return t.IsCompleted() || t.IsFailed()
}

// Complete marks the transfer as completed at the given time
func (t *Transfer) Complete(at time.Time) {
	t.Status = TransferStatusCompleted
	t.CompletedAt = &at
}

// Fail marks the transfer as failed with a human-readable reason
func (t *Transfer) Fail(reason string) {
	t.Status = TransferStatusFailed
	now := time.Now()
	t.CompletedAt = &now
	t.FailureReason = &reason
}

// CanTransitionTo checks if a transfer can transition to a new status
func (t *Transfer) CanTransitionTo(newStatus string) bool {
	validTransitions := map[string][]string{
		TransferStatusPending:   {TransferStatusCompleted, TransferStatusFailed},
		TransferStatusCompleted: {},
		TransferStatusFailed:    {},
	}

	allowedStatuses, exists := validTransitions[t.Status]
	if !exists {
		return false
	}

	return slices.Contains(allowedStatuses, newStatus)
}

// TableName returns the table name for Transfer
func (t *Transfer) TableName() string {
	return "transfers"
}

// IsValidTransferStatus checks if the transfer status is valid
func IsValidTransferStatus(status string) bool {
	switch status {
	case TransferStatusPending, TransferStatusCompleted, TransferStatusFailed:
		return true
	default:
		return false
	}
}
