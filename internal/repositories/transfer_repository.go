package repositories

import (
	"errors"
	"fmt"
	"strings"

	"bankcore/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrTransferNotFound             = errors.New("transfer not found")
	ErrTransferIdempotencyKeyExists = errors.New("transfer with idempotency key already exists")
)

// transferRepository implements TransferRepositoryInterface on gorm
type transferRepository struct {
	db *gorm.DB
}

// NewTransferRepository creates a new transfer repository
func NewTransferRepository(db *gorm.DB) TransferRepositoryInterface {
	return &transferRepository{
		db: db,
	}
}

// Create creates a new transfer record
func (r *transferRepository) Create(transfer *models.Transfer) error {
	if transfer == nil {
		return errors.New("transfer cannot be nil")
	}

	if err := r.db.Create(transfer).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || isDuplicateKeyError(err) {
			return ErrTransferIdempotencyKeyExists
		}
		return fmt.Errorf("failed to create transfer: %w", err)
	}

	return nil
}

// Update updates an existing transfer record
func (r *transferRepository) Update(transfer *models.Transfer) error {
	if transfer == nil {
		return errors.New("transfer cannot be nil")
	}

	if err := r.db.Save(transfer).Error; err != nil {
		return fmt.Errorf("failed to update transfer: %w", err)
	}

	return nil
}

// FindByID retrieves a transfer by ID
func (r *transferRepository) FindByID(id uuid.UUID) (*models.Transfer, error) {
	transfer := &models.Transfer{ID: id}
	if err := r.db.First(transfer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransferNotFound
		}
		return nil, fmt.Errorf("failed to find transfer by ID: %w", err)
	}

	return transfer, nil
}

// FindByIdempotencyKey retrieves a transfer by idempotency key
func (r *transferRepository) FindByIdempotencyKey(key string) (*models.Transfer, error) {
	var transfer models.Transfer

	if err := r.db.Where("idempotency_key = ?", key).First(&transfer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransferNotFound
		}
		return nil, fmt.Errorf("failed to find transfer by idempotency key: %w", err)
	}

	return &transfer, nil
}

// FindByAccountIDs retrieves transfers touching any of the given accounts,
// newest first, with total count for pagination.
func (r *transferRepository) FindByAccountIDs(accountIDs []uuid.UUID, offset, limit int) ([]models.Transfer, int64, error) {
	if len(accountIDs) == 0 {
		return []models.Transfer{}, 0, nil
	}

	query := r.db.Model(&models.Transfer{}).
		Where("from_account_id IN ? OR to_account_id IN ?", accountIDs, accountIDs)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count transfers: %w", err)
	}

	var transfers []models.Transfer
	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&transfers).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to find transfers: %w", err)
	}

	return transfers, total, nil
}

// isDuplicateKeyError catches driver-specific unique violations that gorm does
// not translate (sqlite and postgres wordings differ).
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "constraint failed")
}
