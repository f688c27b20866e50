package repositories

import (
	"time"

	"bankcore/internal/models"

	"github.com/google/uuid"
)

// AccountRepositoryInterface is the durable side of the account table. The
// ledger owns balances while the process runs; this interface loads the table
// at startup and commits post-transfer state.
type AccountRepositoryInterface interface {
	Create(account *models.Account) error
	GetByID(id uuid.UUID) (*models.Account, error)
	GetByAccountNumber(accountNumber string) (*models.Account, error)
	GetActiveByUserID(userID uuid.UUID) (*models.Account, error)
	GetByUserID(userID uuid.UUID) ([]models.Account, error)
	LoadActive() ([]models.Account, error)

	// CompleteTransferAtomic persists both balance updates and flips the
	// transfer record to completed in a single storage transaction. Either
	// all three writes land or none do.
	CompleteTransferAtomic(transferID uuid.UUID, sender, recipient models.BalanceUpdate, completedAt time.Time) error
}

// TransferRepositoryInterface stores transfer records. FindByIdempotencyKey is
// the durable half of duplicate detection (the in-memory tracker is the
// in-flight half).
type TransferRepositoryInterface interface {
	Create(transfer *models.Transfer) error
	Update(transfer *models.Transfer) error
	FindByID(id uuid.UUID) (*models.Transfer, error)
	FindByIdempotencyKey(key string) (*models.Transfer, error)
	FindByAccountIDs(accountIDs []uuid.UUID, offset, limit int) ([]models.Transfer, int64, error)
}

// UserRepositoryInterface stores users for authentication.
type UserRepositoryInterface interface {
	Create(user *models.User) error
	GetByID(id uuid.UUID) (*models.User, error)
	GetByUsername(username string) (*models.User, error)
	UpdateLastLogin(id uuid.UUID, at time.Time) error
}

// AuditLogRepositoryInterface appends to the durable operation log.
type AuditLogRepositoryInterface interface {
	Create(log *models.AuditLog) error
	GetByUserID(userID uuid.UUID, offset, limit int) ([]models.AuditLog, int64, error)
}
