package repositories

import (
	"errors"
	"fmt"
	"time"

	"bankcore/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrAccountNumberExists = errors.New("account number already exists")
	ErrStaleBalanceWrite   = errors.New("balance write rejected: version conflict")
)

// accountRepository implements AccountRepositoryInterface on gorm
type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *gorm.DB) AccountRepositoryInterface {
	return &accountRepository{
		db: db,
	}
}

// Create creates a new account
func (r *accountRepository) Create(account *models.Account) error {
	if err := r.db.Create(account).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrAccountNumberExists
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// GetByID retrieves an account by ID
func (r *accountRepository) GetByID(id uuid.UUID) (*models.Account, error) {
	account := &models.Account{ID: id}
	if err := r.db.First(account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// GetByAccountNumber retrieves an account by account number
func (r *accountRepository) GetByAccountNumber(accountNumber string) (*models.Account, error) {
	var account models.Account
	if err := r.db.Where("account_number = ?", accountNumber).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account by number: %w", err)
	}
	return &account, nil
}

// GetActiveByUserID retrieves the user's active account. Each user holds one
// transactable account.
func (r *accountRepository) GetActiveByUserID(userID uuid.UUID) (*models.Account, error) {
	var account models.Account
	if err := r.db.Where("user_id = ? AND status = ?", userID, models.AccountStatusActive).
		Order("created_at ASC").First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get active account for user: %w", err)
	}
	return &account, nil
}

// GetByUserID retrieves all accounts for a user
func (r *accountRepository) GetByUserID(userID uuid.UUID) ([]models.Account, error) {
	var accounts []models.Account
	if err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("failed to get accounts for user: %w", err)
	}
	return accounts, nil
}

// LoadActive retrieves every active account, used to seed the ledger at startup
func (r *accountRepository) LoadActive() ([]models.Account, error) {
	var accounts []models.Account
	if err := r.db.Where("status = ?", models.AccountStatusActive).Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("failed to load active accounts: %w", err)
	}
	return accounts, nil
}

// CompleteTransferAtomic writes both new balances and marks the transfer
// completed inside one database transaction. The version predicate guards
// against writing over a newer committed state.
func (r *accountRepository) CompleteTransferAtomic(transferID uuid.UUID, sender, recipient models.BalanceUpdate, completedAt time.Time) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		for _, update := range []models.BalanceUpdate{sender, recipient} {
			result := tx.Model(&models.Account{}).
				Where("id = ? AND version < ?", update.AccountID, update.Version).
				UpdateColumns(map[string]interface{}{
					"balance":    update.Balance,
					"version":    update.Version,
					"updated_at": completedAt,
				})
			if result.Error != nil {
				return fmt.Errorf("failed to persist balance for account %s: %w", update.AccountID, result.Error)
			}
			if result.RowsAffected == 0 {
				return ErrStaleBalanceWrite
			}
		}

		result := tx.Model(&models.Transfer{}).
			Where("id = ? AND status = ?", transferID, models.TransferStatusPending).
			UpdateColumns(map[string]interface{}{
				"status":       models.TransferStatusCompleted,
				"completed_at": completedAt,
				"updated_at":   completedAt,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to complete transfer record: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("transfer %s is not pending", transferID)
		}

		return nil
	})
}
