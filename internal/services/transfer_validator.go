package services

import (
	"errors"
	"fmt"

	"bankcore/internal/models"
	"bankcore/internal/repositories"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrRecipientNotFound = errors.New("recipient account not found")
	ErrRecipientInactive = errors.New("recipient account is not active")
	ErrSelfTransfer      = errors.New("cannot transfer to own account")
	ErrInvalidAmount     = errors.New("amount must be positive with at most 2 decimal places")
	ErrReferenceTooLong  = errors.New("reference exceeds maximum length")
)

// transferValidator runs the pre-flight checks in a fixed order and stops at
// the first failure. The order is part of the contract: a request that is
// wrong in several ways always reports the same error.
type transferValidator struct {
	accountRepo repositories.AccountRepositoryInterface
}

// NewTransferValidator creates the standard transfer validator
func NewTransferValidator(accountRepo repositories.AccountRepositoryInterface) TransferValidatorInterface {
	return &transferValidator{
		accountRepo: accountRepo,
	}
}

// Validate checks recipient existence, self-transfer, amount shape and
// reference length, in that order. On success it returns the resolved
// recipient account. The balance check is deliberately absent: that runs
// inside the ledger under both account locks.
func (v *transferValidator) Validate(sender *models.Account, recipientID uuid.UUID, amount decimal.Decimal, reference string) (*models.Account, error) {
	if sender == nil {
		return nil, errors.New("sender account is required")
	}

	recipient, err := v.accountRepo.GetByID(recipientID)
	if err != nil {
		if errors.Is(err, repositories.ErrAccountNotFound) {
			return nil, ErrRecipientNotFound
		}
		return nil, fmt.Errorf("failed to resolve recipient: %w", err)
	}

	if !recipient.IsActive() {
		return nil, ErrRecipientInactive
	}

	if recipient.ID == sender.ID {
		return nil, ErrSelfTransfer
	}

	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}

	// Sub-cent precision never enters the engine.
	if !amount.Equal(amount.Round(2)) {
		return nil, ErrInvalidAmount
	}

	if len(reference) > models.MaxReferenceLength {
		return nil, ErrReferenceTooLong
	}

	return recipient, nil
}
