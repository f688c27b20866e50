package models

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	AccountStatusActive   = "active"
	AccountStatusInactive = "inactive"
	AccountStatusClosed   = "closed"

	AccountNumberLength = 10
	AccountNumberPrefix = "10"
)

var (
	ErrInvalidAccountStatus = errors.New("invalid account status")
	ErrInvalidBalance       = errors.New("balance cannot be negative")
	ErrAccountNotActive     = errors.New("account is not active")
)

// Account represents a customer bank account. The balance is authoritative in
// the ledger while the process is running; the persisted row is the durable
// copy written on every committed transfer. Version is the mutation-sequence
// marker: it increases by one for every committed balance change.
type Account struct {
	ID            uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	AccountNumber string          `gorm:"type:varchar(10);uniqueIndex;not null" json:"account_number"`
	UserID        uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	Balance       decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"balance"`
	Version       int64           `gorm:"not null;default:0" json:"version"`
	Status        string          `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
	CreatedAt     time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"not null" json:"updated_at"`

	// Associations
	User User `gorm:"foreignKey:UserID" json:"-"`
}

// BalanceUpdate carries one account's post-transfer state from the ledger to
// the persistence layer.
type BalanceUpdate struct {
	AccountID uuid.UUID
	Balance   decimal.Decimal
	Version   int64
}

// BeforeCreate hook for Account
func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	if a.Status == "" {
		a.Status = AccountStatusActive
	}

	now := time.Now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = now
	}

	return a.Validate()
}

// BeforeUpdate hook for Account
func (a *Account) BeforeUpdate(tx *gorm.DB) error {
	a.UpdatedAt = time.Now()
	return a.Validate()
}

// Validate validates the account fields
func (a *Account) Validate() error {
	if a.UserID == uuid.Nil {
		return errors.New("user ID is required")
	}

	if len(a.AccountNumber) != AccountNumberLength {
		return fmt.Errorf("account number must be %d digits", AccountNumberLength)
	}

	if !IsValidAccountStatus(a.Status) {
		return ErrInvalidAccountStatus
	}

	if a.Balance.LessThan(decimal.Zero) {
		return ErrInvalidBalance
	}

	return nil
}

// IsActive returns true if the account is active
func (a *Account) IsActive() bool {
	return a.Status == AccountStatusActive
}

// CanCover reports whether the balance covers the given total deduction.
// Advisory only: the binding check happens inside the ledger under lock.
func (a *Account) CanCover(total decimal.Decimal) bool {
	return a.IsActive() && a.Balance.GreaterThanOrEqual(total)
}

// IsValidAccountStatus checks if the account status is valid
func IsValidAccountStatus(status string) bool {
	switch status {
	case AccountStatusActive, AccountStatusInactive, AccountStatusClosed:
		return true
	default:
		return false
	}
}

// GenerateAccountNumber generates a 10-digit account number. Uniqueness is
// enforced by the database index; callers retry on collision.
func GenerateAccountNumber() string {
	return AccountNumberPrefix + fmt.Sprintf("%08d", rand.Intn(100000000))
}

// ValidateAccountNumber validates an account number format
func ValidateAccountNumber(accountNumber string) bool {
	if len(accountNumber) != AccountNumberLength {
		return false
	}

	for _, char := range accountNumber {
		if char < '0' || char > '9' {
			return false
		}
	}

	return accountNumber[:2] == AccountNumberPrefix
}
