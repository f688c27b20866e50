package services

import (
	"context"
	"time"

	"bankcore/internal/dto"
	"bankcore/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransferServiceInterface is the transfer engine's front door. SubmitTransfer
// runs the full pipeline: duplicate check, validation, fee computation, atomic
// balance mutation, durable commit.
type TransferServiceInterface interface {
	SubmitTransfer(ctx context.Context, userID uuid.UUID, req *dto.SubmitTransferRequest, ipAddress, userAgent string) (*models.Transfer, error)
	GetTransferStatus(ctx context.Context, userID, transferID uuid.UUID) (*models.Transfer, error)
	GetTransferHistory(ctx context.Context, userID uuid.UUID, offset, limit int) ([]models.Transfer, int64, error)
	GetBalance(ctx context.Context, userID uuid.UUID) (uuid.UUID, decimal.Decimal, error)
}

// TransferValidatorInterface runs the ordered pre-flight checks on a submitted
// transfer and resolves the recipient account.
type TransferValidatorInterface interface {
	Validate(sender *models.Account, recipientID uuid.UUID, amount decimal.Decimal, reference string) (*models.Account, error)
}

// IdempotencyTrackerInterface collapses concurrent submissions that share an
// idempotency key. Exactly one caller per key gets a reservation; the rest
// either replay the terminal result or wait for it.
type IdempotencyTrackerInterface interface {
	// CheckOrReserve returns (true, nil, nil) when the caller owns the key and
	// must later call Complete or Release; (false, transfer, nil) when a
	// terminal result already exists for the key.
	CheckOrReserve(ctx context.Context, key string) (bool, *models.Transfer, error)
	Complete(key string, transfer *models.Transfer)
	Release(key string)
}

type AuthServiceInterface interface {
	Login(req *dto.LoginRequest, ipAddress, userAgent string) (*dto.TokenResponse, error)
}

type TokenServiceInterface interface {
	GenerateAccessToken(user *models.User) (string, time.Time, error)
	ValidateAccessToken(tokenString string) (*models.CustomClaims, error)
	ExtractTokenFromHeader(authHeader string) (string, error)
}

type PasswordServiceInterface interface {
	ValidatePassword(password string) error
	HashPassword(password string) (string, error)
	ComparePassword(password, hash string) bool
}

type MetricsRecorderInterface interface {
	IncrementCounter(name string, tags map[string]string)
	RecordProcessingTime(name string, duration time.Duration)
	RecordGauge(name string, value float64, tags map[string]string)
}

type AuditLoggerInterface interface {
	LogTransferReceived(ctx context.Context, userID, fromAccountID, toAccountID uuid.UUID, amount, idempotencyKey string)
	LogTransferRejected(ctx context.Context, userID uuid.UUID, reason, idempotencyKey string)
	LogTransferCompleted(ctx context.Context, transferID uuid.UUID, durationMs int64)
	LogTransferFailed(ctx context.Context, transferID uuid.UUID, errorMsg string, durationMs int64)
	LogIdempotentReplay(ctx context.Context, idempotencyKey string, transferID uuid.UUID, status string)
	LogBalanceUpdate(ctx context.Context, accountID uuid.UUID, oldBalance, newBalance string, transferID uuid.UUID)
	LogCircuitBreakerStateChange(ctx context.Context, service, oldState, newState string)
}

type CircuitBreakerInterface interface {
	IsOpen() bool
	RecordSuccess()
	RecordFailure()
	GetState() CircuitBreakerState
	Reset()
	GetFailureCount() int
}
