package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"bankcore/internal/dto"
	"bankcore/internal/fees"
	"bankcore/internal/ledger"
	"bankcore/internal/models"
	"bankcore/internal/repositories"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrSenderAccountNotFound = errors.New("no active account for user")
	ErrInsufficientFunds     = errors.New("insufficient balance to cover amount plus fee")
	ErrConcurrencyTimeout    = errors.New("timed out waiting for account locks")
	ErrServerBusy            = errors.New("transfer engine at capacity")
	ErrTransferNotFound      = errors.New("transfer not found")
	ErrPersistenceFailure    = errors.New("persistence store rejected the commit")
)

// transferService is the engine pipeline. One submission flows through
// duplicate detection, validation, fee computation and the atomic ledger
// apply, producing exactly one durable transfer record per idempotency key.
type transferService struct {
	transferRepo repositories.TransferRepositoryInterface
	accountRepo  repositories.AccountRepositoryInterface
	auditLogRepo repositories.AuditLogRepositoryInterface
	validator    TransferValidatorInterface
	feeCalc      *fees.Calculator
	balances     *ledger.Ledger
	tracker      IdempotencyTrackerInterface
	breaker      CircuitBreakerInterface
	metrics      MetricsRecorderInterface
	auditLogger  AuditLoggerInterface
	logger       *slog.Logger

	// sem bounds concurrent submissions; acquisition never blocks, a full
	// semaphore fails fast with ErrServerBusy.
	sem chan struct{}
}

// NewTransferService wires the transfer engine
func NewTransferService(
	transferRepo repositories.TransferRepositoryInterface,
	accountRepo repositories.AccountRepositoryInterface,
	auditLogRepo repositories.AuditLogRepositoryInterface,
	validator TransferValidatorInterface,
	feeCalc *fees.Calculator,
	balances *ledger.Ledger,
	tracker IdempotencyTrackerInterface,
	breaker CircuitBreakerInterface,
	metrics MetricsRecorderInterface,
	auditLogger AuditLoggerInterface,
	logger *slog.Logger,
	maxConcurrent int,
) TransferServiceInterface {
	if maxConcurrent <= 0 {
		maxConcurrent = 64
	}
	return &transferService{
		transferRepo: transferRepo,
		accountRepo:  accountRepo,
		auditLogRepo: auditLogRepo,
		validator:    validator,
		feeCalc:      feeCalc,
		balances:     balances,
		tracker:      tracker,
		breaker:      breaker,
		metrics:      metrics,
		auditLogger:  auditLogger,
		logger:       logger,
		sem:          make(chan struct{}, maxConcurrent),
	}
}

// SubmitTransfer processes one transfer submission end to end. Resubmissions
// with the same idempotency key never produce a second economic effect: a
// terminal record is replayed, an in-flight attempt is awaited, and only a
// retryable failure (lock timeout, persistence outage) frees the key for a
// fresh attempt.
func (s *transferService) SubmitTransfer(ctx context.Context, userID uuid.UUID, req *dto.SubmitTransferRequest, ipAddress, userAgent string) (*models.Transfer, error) {
	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	default:
		s.metrics.IncrementCounter("transfers_total", map[string]string{"status": "rejected_busy"})
		return nil, ErrServerBusy
	}

	started := time.Now()
	key := req.IdempotencyKey

	reserved, existing, err := s.tracker.CheckOrReserve(ctx, key)
	if err != nil {
		return nil, err
	}
	if !reserved {
		s.auditLogger.LogIdempotentReplay(ctx, key, existing.ID, existing.Status)
		s.metrics.IncrementCounter("transfers_total", map[string]string{"status": "replayed"})
		return existing, nil
	}

	// The key is ours until Complete or Release.

	// The durable record survives restarts; the tracker does not. A terminal
	// record for this key means the effect already happened.
	var transfer *models.Transfer
	prior, err := s.transferRepo.FindByIdempotencyKey(key)
	switch {
	case err == nil && prior.IsTerminal():
		s.tracker.Complete(key, prior)
		s.auditLogger.LogIdempotentReplay(ctx, key, prior.ID, prior.Status)
		s.metrics.IncrementCounter("transfers_total", map[string]string{"status": "replayed"})
		return prior, nil
	case err == nil:
		// Pending leftover from an interrupted attempt; resume it.
		transfer = prior
	case !errors.Is(err, repositories.ErrTransferNotFound):
		s.tracker.Release(key)
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}

	sender, err := s.accountRepo.GetActiveByUserID(userID)
	if err != nil {
		s.tracker.Release(key)
		if errors.Is(err, repositories.ErrAccountNotFound) {
			return nil, ErrSenderAccountNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}

	if transfer == nil {
		transfer, err = s.prepareTransfer(ctx, sender, req)
		if err != nil {
			return nil, err
		}
	}

	s.auditLogger.LogTransferReceived(ctx, userID, transfer.FromAccountID, transfer.ToAccountID, transfer.Amount.StringFixed(2), key)

	if s.breaker.IsOpen() {
		// The pending record stays; a retry resumes it once the store is back.
		s.tracker.Release(key)
		s.metrics.IncrementCounter("transfers_total", map[string]string{"status": "rejected_breaker_open"})
		return nil, ErrCircuitBreakerOpen
	}

	completedAt := time.Now()
	senderUpd, recipientUpd, err := s.balances.ApplyTransfer(ctx, transfer.FromAccountID, transfer.ToAccountID, transfer.Amount, transfer.Fee,
		func(sndr, rcpt models.BalanceUpdate) error {
			return s.accountRepo.CompleteTransferAtomic(transfer.ID, sndr, rcpt, completedAt)
		})
	if err != nil {
		return s.handleApplyFailure(ctx, userID, transfer, key, err, started, ipAddress, userAgent)
	}

	s.breaker.RecordSuccess()
	transfer.Complete(completedAt)
	s.tracker.Complete(key, transfer)

	durationMs := time.Since(started).Milliseconds()
	s.auditLogger.LogBalanceUpdate(ctx, senderUpd.AccountID, senderUpd.Balance.Add(transfer.TotalDeducted).StringFixed(2), senderUpd.Balance.StringFixed(2), transfer.ID)
	s.auditLogger.LogBalanceUpdate(ctx, recipientUpd.AccountID, recipientUpd.Balance.Sub(transfer.Amount).StringFixed(2), recipientUpd.Balance.StringFixed(2), transfer.ID)
	s.auditLogger.LogTransferCompleted(ctx, transfer.ID, durationMs)

	s.metrics.IncrementCounter("transfers_total", map[string]string{"status": "completed"})
	s.metrics.RecordProcessingTime("transfer_duration_success", time.Since(started))
	amountFloat, _ := transfer.Amount.Float64()
	s.metrics.RecordGauge("transfer_amount", amountFloat, nil)

	s.recordAudit(userID, models.AuditActionTransferComplete, transfer, ipAddress, userAgent, models.JSONBMap{
		"amount": transfer.Amount.StringFixed(2),
		"fee":    transfer.Fee.StringFixed(2),
	})

	return transfer, nil
}

// prepareTransfer validates the request, computes the fee and persists the
// pending record. On any failure the idempotency key is released.
func (s *transferService) prepareTransfer(ctx context.Context, sender *models.Account, req *dto.SubmitTransferRequest) (*models.Transfer, error) {
	key := req.IdempotencyKey

	recipientID, err := uuid.Parse(req.RecipientAccountID)
	if err != nil {
		s.tracker.Release(key)
		return nil, ErrRecipientNotFound
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		s.tracker.Release(key)
		return nil, ErrInvalidAmount
	}

	recipient, err := s.validator.Validate(sender, recipientID, amount, req.Reference)
	if err != nil {
		s.tracker.Release(key)
		s.auditLogger.LogTransferRejected(ctx, sender.UserID, err.Error(), key)
		s.metrics.IncrementCounter("transfers_total", map[string]string{"status": "rejected_validation"})
		return nil, err
	}

	fee := s.feeCalc.Calculate(amount)
	transfer := &models.Transfer{
		FromAccountID:  sender.ID,
		ToAccountID:    recipient.ID,
		Amount:         amount,
		Fee:            fee,
		TotalDeducted:  amount.Add(fee),
		Reference:      req.Reference,
		IdempotencyKey: key,
		Status:         models.TransferStatusPending,
	}

	if err := s.transferRepo.Create(transfer); err != nil {
		s.tracker.Release(key)
		if errors.Is(err, repositories.ErrTransferIdempotencyKeyExists) {
			// Another node holds the key; the caller retries and replays.
			return nil, ErrDuplicateInFlight
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}

	return transfer, nil
}

// handleApplyFailure maps a ledger apply error to the terminal or retryable
// outcome. Insufficient funds is terminal: the record flips to failed and the
// key caches that result. Lock timeouts and commit failures are retryable:
// the key is freed and the pending record stays for the retry to resume.
func (s *transferService) handleApplyFailure(ctx context.Context, userID uuid.UUID, transfer *models.Transfer, key string, applyErr error, started time.Time, ipAddress, userAgent string) (*models.Transfer, error) {
	durationMs := time.Since(started).Milliseconds()

	switch {
	case errors.Is(applyErr, ledger.ErrInsufficientFunds):
		transfer.Fail("insufficient balance to cover amount plus fee")
		if err := s.transferRepo.Update(transfer); err != nil {
			s.logger.Error("failed to persist failed transfer",
				slog.String("transfer_id", transfer.ID.String()),
				slog.String("error", err.Error()),
			)
		}
		s.tracker.Complete(key, transfer)
		s.auditLogger.LogTransferFailed(ctx, transfer.ID, *transfer.FailureReason, durationMs)
		s.metrics.IncrementCounter("transfers_total", map[string]string{"status": "failed"})
		s.metrics.RecordProcessingTime("transfer_duration_failed", time.Since(started))
		s.recordAudit(userID, models.AuditActionTransferFailed, transfer, ipAddress, userAgent, models.JSONBMap{
			"reason": *transfer.FailureReason,
		})
		return transfer, ErrInsufficientFunds

	case errors.Is(applyErr, ledger.ErrLockTimeout):
		s.tracker.Release(key)
		s.auditLogger.LogTransferFailed(ctx, transfer.ID, "account lock timeout", durationMs)
		s.metrics.IncrementCounter("transfers_total", map[string]string{"status": "lock_timeout"})
		return nil, ErrConcurrencyTimeout

	case errors.Is(applyErr, ledger.ErrAccountNotFound):
		transfer.Fail("account not registered in ledger")
		if err := s.transferRepo.Update(transfer); err != nil {
			s.logger.Error("failed to persist failed transfer",
				slog.String("transfer_id", transfer.ID.String()),
				slog.String("error", err.Error()),
			)
		}
		s.tracker.Complete(key, transfer)
		s.auditLogger.LogTransferFailed(ctx, transfer.ID, *transfer.FailureReason, durationMs)
		s.metrics.IncrementCounter("transfers_total", map[string]string{"status": "failed"})
		return transfer, fmt.Errorf("transfer %s: %w", transfer.ID, applyErr)

	default:
		// Commit failure: the ledger applied nothing, balances are untouched.
		s.breaker.RecordFailure()
		s.tracker.Release(key)
		s.auditLogger.LogTransferFailed(ctx, transfer.ID, applyErr.Error(), durationMs)
		s.metrics.IncrementCounter("transfers_total", map[string]string{"status": "persistence_error"})
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailure, applyErr)
	}
}

// GetTransferStatus returns a transfer visible to the given user. A transfer
// is visible when one of the user's accounts is its sender or recipient;
// anything else reports not found rather than leaking existence.
func (s *transferService) GetTransferStatus(ctx context.Context, userID, transferID uuid.UUID) (*models.Transfer, error) {
	transfer, err := s.transferRepo.FindByID(transferID)
	if err != nil {
		if errors.Is(err, repositories.ErrTransferNotFound) {
			return nil, ErrTransferNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}

	accounts, err := s.accountRepo.GetByUserID(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}

	visible := false
	for _, account := range accounts {
		if account.ID == transfer.FromAccountID || account.ID == transfer.ToAccountID {
			visible = true
			break
		}
	}
	if !visible {
		return nil, ErrTransferNotFound
	}

	s.recordAudit(userID, models.AuditActionTransferQuery, transfer, "", "", nil)

	return transfer, nil
}

// GetTransferHistory returns the user's transfers, newest first
func (s *transferService) GetTransferHistory(ctx context.Context, userID uuid.UUID, offset, limit int) ([]models.Transfer, int64, error) {
	accounts, err := s.accountRepo.GetByUserID(userID)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}

	accountIDs := make([]uuid.UUID, 0, len(accounts))
	for _, account := range accounts {
		accountIDs = append(accountIDs, account.ID)
	}

	transfers, total, err := s.transferRepo.FindByAccountIDs(accountIDs, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}

	return transfers, total, nil
}

// GetBalance returns the live ledger balance of the user's active account
func (s *transferService) GetBalance(ctx context.Context, userID uuid.UUID) (uuid.UUID, decimal.Decimal, error) {
	account, err := s.accountRepo.GetActiveByUserID(userID)
	if err != nil {
		if errors.Is(err, repositories.ErrAccountNotFound) {
			return uuid.Nil, decimal.Zero, ErrSenderAccountNotFound
		}
		return uuid.Nil, decimal.Zero, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}

	balance, err := s.balances.Balance(account.ID)
	if err != nil {
		return uuid.Nil, decimal.Zero, fmt.Errorf("failed to read ledger balance: %w", err)
	}

	s.auditLog(userID, models.AuditActionBalanceQuery, "account", account.ID.String(), "", "", nil)

	return account.ID, balance, nil
}

// recordAudit writes a durable audit row for a transfer event. Best effort:
// an audit write failure never fails the transfer itself.
func (s *transferService) recordAudit(userID uuid.UUID, action string, transfer *models.Transfer, ipAddress, userAgent string, metadata models.JSONBMap) {
	s.auditLog(userID, action, "transfer", transfer.ID.String(), ipAddress, userAgent, metadata)
}

func (s *transferService) auditLog(userID uuid.UUID, action, resource, resourceID, ipAddress, userAgent string, metadata models.JSONBMap) {
	uid := userID
	entry := &models.AuditLog{
		UserID:     &uid,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		Metadata:   metadata,
	}
	if err := s.auditLogRepo.Create(entry); err != nil {
		s.logger.Error("failed to write audit log",
			slog.String("action", action),
			slog.String("error", err.Error()),
		)
	}
}
