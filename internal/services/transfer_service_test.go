package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"bankcore/internal/dto"
	"bankcore/internal/fees"
	"bankcore/internal/ledger"
	"bankcore/internal/models"
	"bankcore/internal/repositories"
	"bankcore/internal/repositories/repository_mocks"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

// The suite wires the real ledger, fee calculator, idempotency tracker and
// circuit breaker around mocked repositories, so the pipeline semantics run
// for real and only the storage edge is simulated.
type TransferServiceTestSuite struct {
	suite.Suite
	ctrl         *gomock.Controller
	transferRepo *repository_mocks.MockTransferRepositoryInterface
	accountRepo  *repository_mocks.MockAccountRepositoryInterface
	auditLogRepo *repository_mocks.MockAuditLogRepositoryInterface
	balances     *ledger.Ledger
	tracker      IdempotencyTrackerInterface
	breaker      CircuitBreakerInterface
	service      TransferServiceInterface

	userID    uuid.UUID
	sender    *models.Account
	recipient *models.Account
}

func (s *TransferServiceTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.transferRepo = repository_mocks.NewMockTransferRepositoryInterface(s.ctrl)
	s.accountRepo = repository_mocks.NewMockAccountRepositoryInterface(s.ctrl)
	s.auditLogRepo = repository_mocks.NewMockAuditLogRepositoryInterface(s.ctrl)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.balances = ledger.New(2*time.Second, logger)
	s.tracker = NewIdempotencyTracker(2*time.Second, logger)
	s.breaker = NewCircuitBreaker(DefaultCircuitBreakerConfig())

	s.userID = uuid.New()
	s.sender = &models.Account{
		ID:      uuid.New(),
		UserID:  s.userID,
		Balance: decimal.RequireFromString("50000.00"),
		Status:  models.AccountStatusActive,
	}
	s.recipient = &models.Account{
		ID:      uuid.New(),
		UserID:  uuid.New(),
		Balance: decimal.RequireFromString("75000.00"),
		Status:  models.AccountStatusActive,
	}
	s.balances.Load([]models.Account{*s.sender, *s.recipient})

	s.service = NewTransferService(
		s.transferRepo,
		s.accountRepo,
		s.auditLogRepo,
		NewTransferValidator(s.accountRepo),
		fees.NewCalculator(),
		s.balances,
		s.tracker,
		s.breaker,
		NewPrometheusMetrics(prometheus.NewRegistry()),
		NewAuditLogger(logger),
		logger,
		8,
	)

	// Audit rows are best effort; every test may write any number of them.
	s.auditLogRepo.EXPECT().Create(gomock.Any()).Return(nil).AnyTimes()
}

func (s *TransferServiceTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestTransferServiceSuite(t *testing.T) {
	suite.Run(t, new(TransferServiceTestSuite))
}

func (s *TransferServiceTestSuite) submitRequest(key string) *dto.SubmitTransferRequest {
	return &dto.SubmitTransferRequest{
		RecipientAccountID: s.recipient.ID.String(),
		Amount:             "5000.00",
		Reference:          "rent",
		IdempotencyKey:     key,
	}
}

func (s *TransferServiceTestSuite) TestSubmitTransfer_Success() {
	req := s.submitRequest("key-success")

	s.transferRepo.EXPECT().FindByIdempotencyKey("key-success").Return(nil, repositories.ErrTransferNotFound).Times(1)
	s.accountRepo.EXPECT().GetActiveByUserID(s.userID).Return(s.sender, nil).Times(1)
	s.accountRepo.EXPECT().GetByID(s.recipient.ID).Return(s.recipient, nil).Times(1)
	s.transferRepo.EXPECT().Create(gomock.Any()).Return(nil).Times(1)
	s.accountRepo.EXPECT().CompleteTransferAtomic(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(1)

	transfer, err := s.service.SubmitTransfer(context.Background(), s.userID, req, "10.0.0.1", "test")

	s.NoError(err)
	s.True(transfer.IsCompleted())
	s.Equal("5000.00", transfer.Amount.StringFixed(2))
	s.Equal("12.50", transfer.Fee.StringFixed(2))
	s.Equal("5012.50", transfer.TotalDeducted.StringFixed(2))
	s.NotNil(transfer.CompletedAt)

	senderBalance, err := s.balances.Balance(s.sender.ID)
	s.NoError(err)
	s.Equal("44987.50", senderBalance.StringFixed(2))

	recipientBalance, err := s.balances.Balance(s.recipient.ID)
	s.NoError(err)
	s.Equal("80000.00", recipientBalance.StringFixed(2))
}

func (s *TransferServiceTestSuite) TestSubmitTransfer_ReplaySameKey() {
	req := s.submitRequest("key-replay")

	// The storage expectations fire exactly once: the replay must not touch
	// validation, creation or the ledger again.
	s.transferRepo.EXPECT().FindByIdempotencyKey("key-replay").Return(nil, repositories.ErrTransferNotFound).Times(1)
	s.accountRepo.EXPECT().GetActiveByUserID(s.userID).Return(s.sender, nil).Times(1)
	s.accountRepo.EXPECT().GetByID(s.recipient.ID).Return(s.recipient, nil).Times(1)
	s.transferRepo.EXPECT().Create(gomock.Any()).Return(nil).Times(1)
	s.accountRepo.EXPECT().CompleteTransferAtomic(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(1)

	first, err := s.service.SubmitTransfer(context.Background(), s.userID, req, "10.0.0.1", "test")
	s.NoError(err)

	second, err := s.service.SubmitTransfer(context.Background(), s.userID, req, "10.0.0.1", "test")
	s.NoError(err)
	s.Equal(first.ID, second.ID)

	// Exactly one economic effect.
	senderBalance, err := s.balances.Balance(s.sender.ID)
	s.NoError(err)
	s.Equal("44987.50", senderBalance.StringFixed(2))
}

func (s *TransferServiceTestSuite) TestSubmitTransfer_RestartSafeReplay() {
	// The tracker is empty (fresh process) but the durable record exists.
	req := s.submitRequest("key-restart")
	prior := &models.Transfer{
		ID:             uuid.New(),
		FromAccountID:  s.sender.ID,
		ToAccountID:    s.recipient.ID,
		Amount:         decimal.RequireFromString("5000.00"),
		Fee:            decimal.RequireFromString("12.50"),
		TotalDeducted:  decimal.RequireFromString("5012.50"),
		IdempotencyKey: "key-restart",
		Status:         models.TransferStatusCompleted,
	}

	s.transferRepo.EXPECT().FindByIdempotencyKey("key-restart").Return(prior, nil).Times(1)

	transfer, err := s.service.SubmitTransfer(context.Background(), s.userID, req, "10.0.0.1", "test")

	s.NoError(err)
	s.Equal(prior.ID, transfer.ID)

	// Balances never moved.
	senderBalance, err := s.balances.Balance(s.sender.ID)
	s.NoError(err)
	s.Equal("50000.00", senderBalance.StringFixed(2))
}

func (s *TransferServiceTestSuite) TestSubmitTransfer_RecipientNotFound() {
	req := s.submitRequest("key-no-recipient")

	s.transferRepo.EXPECT().FindByIdempotencyKey("key-no-recipient").Return(nil, repositories.ErrTransferNotFound).Times(1)
	s.accountRepo.EXPECT().GetActiveByUserID(s.userID).Return(s.sender, nil).Times(1)
	s.accountRepo.EXPECT().GetByID(s.recipient.ID).Return(nil, repositories.ErrAccountNotFound).Times(1)

	_, err := s.service.SubmitTransfer(context.Background(), s.userID, req, "10.0.0.1", "test")
	s.ErrorIs(err, ErrRecipientNotFound)

	// A validation failure creates no record and frees the key.
	reserved, _, err := s.tracker.CheckOrReserve(context.Background(), "key-no-recipient")
	s.NoError(err)
	s.True(reserved)
}

func (s *TransferServiceTestSuite) TestSubmitTransfer_SelfTransfer() {
	req := s.submitRequest("key-self")
	req.RecipientAccountID = s.sender.ID.String()

	s.transferRepo.EXPECT().FindByIdempotencyKey("key-self").Return(nil, repositories.ErrTransferNotFound).Times(1)
	s.accountRepo.EXPECT().GetActiveByUserID(s.userID).Return(s.sender, nil).Times(1)
	s.accountRepo.EXPECT().GetByID(s.sender.ID).Return(s.sender, nil).Times(1)

	_, err := s.service.SubmitTransfer(context.Background(), s.userID, req, "10.0.0.1", "test")
	s.ErrorIs(err, ErrSelfTransfer)
}

func (s *TransferServiceTestSuite) TestSubmitTransfer_NoActiveAccount() {
	req := s.submitRequest("key-no-sender")

	s.transferRepo.EXPECT().FindByIdempotencyKey("key-no-sender").Return(nil, repositories.ErrTransferNotFound).Times(1)
	s.accountRepo.EXPECT().GetActiveByUserID(s.userID).Return(nil, repositories.ErrAccountNotFound).Times(1)

	_, err := s.service.SubmitTransfer(context.Background(), s.userID, req, "10.0.0.1", "test")
	s.ErrorIs(err, ErrSenderAccountNotFound)
}

func (s *TransferServiceTestSuite) TestSubmitTransfer_InsufficientFunds() {
	// Covers the amount but not the fee.
	s.balances.Register(&models.Account{
		ID:      s.sender.ID,
		Balance: decimal.RequireFromString("5000.00"),
	})
	req := s.submitRequest("key-poor")

	s.transferRepo.EXPECT().FindByIdempotencyKey("key-poor").Return(nil, repositories.ErrTransferNotFound).Times(1)
	s.accountRepo.EXPECT().GetActiveByUserID(s.userID).Return(s.sender, nil).Times(1)
	s.accountRepo.EXPECT().GetByID(s.recipient.ID).Return(s.recipient, nil).Times(1)
	s.transferRepo.EXPECT().Create(gomock.Any()).Return(nil).Times(1)
	s.transferRepo.EXPECT().Update(gomock.Any()).Return(nil).Times(1)

	transfer, err := s.service.SubmitTransfer(context.Background(), s.userID, req, "10.0.0.1", "test")

	s.ErrorIs(err, ErrInsufficientFunds)
	s.NotNil(transfer)
	s.True(transfer.IsFailed())
	s.NotNil(transfer.FailureReason)

	// Balance untouched and the failure is cached for replay.
	senderBalance, berr := s.balances.Balance(s.sender.ID)
	s.NoError(berr)
	s.Equal("5000.00", senderBalance.StringFixed(2))

	replayed, err := s.service.SubmitTransfer(context.Background(), s.userID, req, "10.0.0.1", "test")
	s.NoError(err)
	s.Equal(transfer.ID, replayed.ID)
	s.True(replayed.IsFailed())
}

func (s *TransferServiceTestSuite) TestSubmitTransfer_CommitFailure() {
	req := s.submitRequest("key-commit-fail")

	s.transferRepo.EXPECT().FindByIdempotencyKey("key-commit-fail").Return(nil, repositories.ErrTransferNotFound).Times(1)
	s.accountRepo.EXPECT().GetActiveByUserID(s.userID).Return(s.sender, nil).Times(1)
	s.accountRepo.EXPECT().GetByID(s.recipient.ID).Return(s.recipient, nil).Times(1)
	s.transferRepo.EXPECT().Create(gomock.Any()).Return(nil).Times(1)
	s.accountRepo.EXPECT().CompleteTransferAtomic(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(errors.New("connection refused")).Times(1)

	_, err := s.service.SubmitTransfer(context.Background(), s.userID, req, "10.0.0.1", "test")
	s.ErrorIs(err, ErrPersistenceFailure)

	// The commit gated the mutation: in-memory balances are unchanged.
	senderBalance, berr := s.balances.Balance(s.sender.ID)
	s.NoError(berr)
	s.Equal("50000.00", senderBalance.StringFixed(2))

	s.Equal(1, s.breaker.GetFailureCount())

	// Retryable: the key is free again.
	reserved, _, err := s.tracker.CheckOrReserve(context.Background(), "key-commit-fail")
	s.NoError(err)
	s.True(reserved)
}

func (s *TransferServiceTestSuite) TestSubmitTransfer_BreakerOpenFailsFast() {
	cfg := DefaultCircuitBreakerConfig()
	for i := 0; i < cfg.MaxFailures; i++ {
		s.breaker.RecordFailure()
	}

	req := s.submitRequest("key-breaker")

	s.transferRepo.EXPECT().FindByIdempotencyKey("key-breaker").Return(nil, repositories.ErrTransferNotFound).Times(1)
	s.accountRepo.EXPECT().GetActiveByUserID(s.userID).Return(s.sender, nil).Times(1)
	s.accountRepo.EXPECT().GetByID(s.recipient.ID).Return(s.recipient, nil).Times(1)
	s.transferRepo.EXPECT().Create(gomock.Any()).Return(nil).Times(1)

	_, err := s.service.SubmitTransfer(context.Background(), s.userID, req, "10.0.0.1", "test")
	s.ErrorIs(err, ErrCircuitBreakerOpen)

	// Nothing reached the ledger.
	senderBalance, berr := s.balances.Balance(s.sender.ID)
	s.NoError(berr)
	s.Equal("50000.00", senderBalance.StringFixed(2))
}

func (s *TransferServiceTestSuite) TestSubmitTransfer_ServerBusy() {
	// Capacity of one: while the first submission is stuck in its commit, a
	// second one must be turned away instead of queueing.
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := NewTransferService(
		s.transferRepo, s.accountRepo, s.auditLogRepo,
		NewTransferValidator(s.accountRepo),
		fees.NewCalculator(), s.balances, s.tracker, s.breaker,
		NewPrometheusMetrics(prometheus.NewRegistry()), NewAuditLogger(logger), logger, 1,
	)

	holdCommit := make(chan struct{})
	commitEntered := make(chan struct{})

	s.transferRepo.EXPECT().FindByIdempotencyKey("key-slow").Return(nil, repositories.ErrTransferNotFound).Times(1)
	s.accountRepo.EXPECT().GetActiveByUserID(s.userID).Return(s.sender, nil).Times(1)
	s.accountRepo.EXPECT().GetByID(s.recipient.ID).Return(s.recipient, nil).Times(1)
	s.transferRepo.EXPECT().Create(gomock.Any()).Return(nil).Times(1)
	s.accountRepo.EXPECT().CompleteTransferAtomic(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(uuid.UUID, models.BalanceUpdate, models.BalanceUpdate, time.Time) error {
			close(commitEntered)
			<-holdCommit
			return nil
		}).Times(1)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := service.SubmitTransfer(context.Background(), s.userID, s.submitRequest("key-slow"), "10.0.0.1", "test")
		s.NoError(err)
	}()

	select {
	case <-commitEntered:
	case <-time.After(2 * time.Second):
		s.FailNow("first submission never reached commit")
	}

	_, err := service.SubmitTransfer(context.Background(), s.userID, s.submitRequest("key-busy"), "10.0.0.1", "test")
	s.ErrorIs(err, ErrServerBusy)

	close(holdCommit)
	wg.Wait()
}

func (s *TransferServiceTestSuite) TestGetTransferStatus_Visibility() {
	transfer := &models.Transfer{
		ID:            uuid.New(),
		FromAccountID: s.sender.ID,
		ToAccountID:   s.recipient.ID,
		Amount:        decimal.RequireFromString("100.00"),
		Status:        models.TransferStatusCompleted,
	}

	s.transferRepo.EXPECT().FindByID(transfer.ID).Return(transfer, nil).Times(2)

	// Involved user sees it.
	s.accountRepo.EXPECT().GetByUserID(s.userID).Return([]models.Account{*s.sender}, nil).Times(1)
	got, err := s.service.GetTransferStatus(context.Background(), s.userID, transfer.ID)
	s.NoError(err)
	s.Equal(transfer.ID, got.ID)

	// An uninvolved user gets not-found, not forbidden.
	strangerID := uuid.New()
	s.accountRepo.EXPECT().GetByUserID(strangerID).Return([]models.Account{{ID: uuid.New()}}, nil).Times(1)
	_, err = s.service.GetTransferStatus(context.Background(), strangerID, transfer.ID)
	s.ErrorIs(err, ErrTransferNotFound)
}

func (s *TransferServiceTestSuite) TestGetTransferHistory() {
	transfers := []models.Transfer{
		{ID: uuid.New(), FromAccountID: s.sender.ID, ToAccountID: s.recipient.ID},
	}

	s.accountRepo.EXPECT().GetByUserID(s.userID).Return([]models.Account{*s.sender}, nil).Times(1)
	s.transferRepo.EXPECT().FindByAccountIDs([]uuid.UUID{s.sender.ID}, 0, 20).Return(transfers, int64(1), nil).Times(1)

	got, total, err := s.service.GetTransferHistory(context.Background(), s.userID, 0, 20)
	s.NoError(err)
	s.Equal(int64(1), total)
	s.Len(got, 1)
}

func (s *TransferServiceTestSuite) TestGetBalance() {
	s.accountRepo.EXPECT().GetActiveByUserID(s.userID).Return(s.sender, nil).Times(1)

	accountID, balance, err := s.service.GetBalance(context.Background(), s.userID)
	s.NoError(err)
	s.Equal(s.sender.ID, accountID)
	s.Equal("50000.00", balance.StringFixed(2))
}

func (s *TransferServiceTestSuite) TestGetBalance_NoAccount() {
	s.accountRepo.EXPECT().GetActiveByUserID(s.userID).Return(nil, repositories.ErrAccountNotFound).Times(1)

	_, _, err := s.service.GetBalance(context.Background(), s.userID)
	s.ErrorIs(err, ErrSenderAccountNotFound)
}
