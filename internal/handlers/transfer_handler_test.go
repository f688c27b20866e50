package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bankcore/internal/dto"
	"bankcore/internal/models"
	"bankcore/internal/services"
	"bankcore/internal/services/service_mocks"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type TransferHandlerSuite struct {
	suite.Suite
	ctrl            *gomock.Controller
	transferService *service_mocks.MockTransferServiceInterface
	handler         *TransferHandler
	e               *echo.Echo
	userID          uuid.UUID
}

func (s *TransferHandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.transferService = service_mocks.NewMockTransferServiceInterface(s.ctrl)
	s.handler = NewTransferHandler(s.transferService)
	s.e = echo.New()
	s.e.Validator = NewValidator()
	s.userID = uuid.New()
}

func (s *TransferHandlerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestTransferHandlerSuite(t *testing.T) {
	suite.Run(t, new(TransferHandlerSuite))
}

func (s *TransferHandlerSuite) completedTransfer() *models.Transfer {
	amount := decimal.RequireFromString("5000.00")
	fee := decimal.RequireFromString("12.50")
	completedAt := time.Now()
	return &models.Transfer{
		ID:             uuid.New(),
		FromAccountID:  uuid.New(),
		ToAccountID:    uuid.New(),
		Amount:         amount,
		Fee:            fee,
		TotalDeducted:  amount.Add(fee),
		IdempotencyKey: uuid.New().String(),
		Status:         models.TransferStatusCompleted,
		CreatedAt:      time.Now(),
		CompletedAt:    &completedAt,
	}
}

func (s *TransferHandlerSuite) submitBody() map[string]string {
	return map[string]string{
		"recipient_account_id": uuid.New().String(),
		"amount":               "5000.00",
		"reference":            "rent",
		"idempotency_key":      uuid.New().String(),
	}
}

func (s *TransferHandlerSuite) postTransfer(body interface{}) (*httptest.ResponseRecorder, echo.Context) {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transfers", bytes.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := s.e.NewContext(req, rec)
	c.Set("user_id", s.userID)
	return rec, c
}

func (s *TransferHandlerSuite) TestSubmitTransfer_Created() {
	transfer := s.completedTransfer()
	s.transferService.EXPECT().
		SubmitTransfer(gomock.Any(), s.userID, gomock.Any(), gomock.Any(), gomock.Any()).
		Return(transfer, nil).
		Times(1)

	rec, c := s.postTransfer(s.submitBody())

	s.NoError(s.handler.SubmitTransfer(c))
	s.Equal(http.StatusCreated, rec.Code)

	var response struct {
		Data dto.TransferResponse `json:"data"`
	}
	s.NoError(json.Unmarshal(rec.Body.Bytes(), &response))
	s.Equal(transfer.ID.String(), response.Data.ID)
	s.Equal("5000.00", response.Data.Amount)
	s.Equal("12.50", response.Data.Fee)
	s.Equal("5012.50", response.Data.TotalDeducted)
	s.Equal(models.TransferStatusCompleted, response.Data.Status)
}

func (s *TransferHandlerSuite) TestSubmitTransfer_InsufficientFundsCarriesRecord() {
	transfer := s.completedTransfer()
	transfer.Fail("insufficient balance to cover amount plus fee")

	s.transferService.EXPECT().
		SubmitTransfer(gomock.Any(), s.userID, gomock.Any(), gomock.Any(), gomock.Any()).
		Return(transfer, services.ErrInsufficientFunds).
		Times(1)

	rec, c := s.postTransfer(s.submitBody())

	s.NoError(s.handler.SubmitTransfer(c))
	s.Equal(http.StatusUnprocessableEntity, rec.Code)

	var response struct {
		Error    json.RawMessage      `json:"error"`
		Transfer dto.TransferResponse `json:"transfer"`
	}
	s.NoError(json.Unmarshal(rec.Body.Bytes(), &response))
	s.Equal(models.TransferStatusFailed, response.Transfer.Status)
	s.NotNil(response.Transfer.FailureReason)
}

func (s *TransferHandlerSuite) TestSubmitTransfer_ReplayedFailure() {
	// A replay of a recorded failure arrives with no error; it still renders
	// as the failure outcome, not a success.
	transfer := s.completedTransfer()
	transfer.Fail("insufficient balance to cover amount plus fee")

	s.transferService.EXPECT().
		SubmitTransfer(gomock.Any(), s.userID, gomock.Any(), gomock.Any(), gomock.Any()).
		Return(transfer, nil).
		Times(1)

	rec, c := s.postTransfer(s.submitBody())

	s.NoError(s.handler.SubmitTransfer(c))
	s.Equal(http.StatusUnprocessableEntity, rec.Code)
}

func (s *TransferHandlerSuite) TestSubmitTransfer_ErrorMapping() {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"recipient not found", services.ErrRecipientNotFound, http.StatusBadRequest, "VALIDATION_004"},
		{"recipient inactive", services.ErrRecipientInactive, http.StatusUnprocessableEntity, "ACCOUNT_002"},
		{"self transfer", services.ErrSelfTransfer, http.StatusBadRequest, "VALIDATION_003"},
		{"invalid amount", services.ErrInvalidAmount, http.StatusBadRequest, "VALIDATION_002"},
		{"reference too long", services.ErrReferenceTooLong, http.StatusBadRequest, "VALIDATION_005"},
		{"no sender account", services.ErrSenderAccountNotFound, http.StatusNotFound, "ACCOUNT_001"},
		{"lock timeout", services.ErrConcurrencyTimeout, http.StatusServiceUnavailable, "TRANSFER_003"},
		{"duplicate in flight", services.ErrDuplicateInFlight, http.StatusConflict, "TRANSFER_004"},
		{"server busy", services.ErrServerBusy, http.StatusServiceUnavailable, "SYSTEM_004"},
		{"breaker open", services.ErrCircuitBreakerOpen, http.StatusServiceUnavailable, "SYSTEM_002"},
		{"persistence failure", services.ErrPersistenceFailure, http.StatusServiceUnavailable, "SYSTEM_002"},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.transferService.EXPECT().
				SubmitTransfer(gomock.Any(), s.userID, gomock.Any(), gomock.Any(), gomock.Any()).
				Return(nil, tt.err).
				Times(1)

			rec, c := s.postTransfer(s.submitBody())

			s.NoError(s.handler.SubmitTransfer(c))
			s.Equal(tt.status, rec.Code)

			var response ErrorResponse
			s.NoError(json.Unmarshal(rec.Body.Bytes(), &response))
			s.Equal(tt.code, response.Error.Code)
		})
	}
}

func (s *TransferHandlerSuite) TestSubmitTransfer_ValidationRejectsBadAmount() {
	for _, amount := range []string{"", "0", "-5.00", "10.999", "abc"} {
		body := s.submitBody()
		body["amount"] = amount

		_, c := s.postTransfer(body)
		s.Error(s.handler.SubmitTransfer(c), "amount %q should fail validation", amount)
	}
}

func (s *TransferHandlerSuite) TestSubmitTransfer_ValidationRejectsMissingIdempotencyKey() {
	body := s.submitBody()
	delete(body, "idempotency_key")

	_, c := s.postTransfer(body)
	s.Error(s.handler.SubmitTransfer(c))
}

func (s *TransferHandlerSuite) TestSubmitTransfer_Unauthenticated() {
	payload, _ := json.Marshal(s.submitBody())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transfers", bytes.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := s.e.NewContext(req, rec)

	s.NoError(s.handler.SubmitTransfer(c))
	s.Equal(http.StatusForbidden, rec.Code)
}

func (s *TransferHandlerSuite) TestGetTransfer_Found() {
	transfer := s.completedTransfer()
	s.transferService.EXPECT().
		GetTransferStatus(gomock.Any(), s.userID, transfer.ID).
		Return(transfer, nil).
		Times(1)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/transfers/"+transfer.ID.String(), nil)
	rec := httptest.NewRecorder()
	c := s.e.NewContext(req, rec)
	c.Set("user_id", s.userID)
	c.SetParamNames("id")
	c.SetParamValues(transfer.ID.String())

	s.NoError(s.handler.GetTransfer(c))
	s.Equal(http.StatusOK, rec.Code)
}

func (s *TransferHandlerSuite) TestGetTransfer_NotFound() {
	transferID := uuid.New()
	s.transferService.EXPECT().
		GetTransferStatus(gomock.Any(), s.userID, transferID).
		Return(nil, services.ErrTransferNotFound).
		Times(1)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/transfers/"+transferID.String(), nil)
	rec := httptest.NewRecorder()
	c := s.e.NewContext(req, rec)
	c.Set("user_id", s.userID)
	c.SetParamNames("id")
	c.SetParamValues(transferID.String())

	s.NoError(s.handler.GetTransfer(c))
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *TransferHandlerSuite) TestGetTransfer_BadID() {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/transfers/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	c := s.e.NewContext(req, rec)
	c.Set("user_id", s.userID)
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")

	s.NoError(s.handler.GetTransfer(c))
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *TransferHandlerSuite) TestListTransfers() {
	transfers := []models.Transfer{*s.completedTransfer(), *s.completedTransfer()}
	s.transferService.EXPECT().
		GetTransferHistory(gomock.Any(), s.userID, 0, 20).
		Return(transfers, int64(2), nil).
		Times(1)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/transfers", nil)
	rec := httptest.NewRecorder()
	c := s.e.NewContext(req, rec)
	c.Set("user_id", s.userID)

	s.NoError(s.handler.ListTransfers(c))
	s.Equal(http.StatusOK, rec.Code)

	var response dto.TransferListResponse
	s.NoError(json.Unmarshal(rec.Body.Bytes(), &response))
	s.Equal(int64(2), response.Total)
	s.Len(response.Transfers, 2)
	s.Equal(20, response.Limit)
}

func (s *TransferHandlerSuite) TestListTransfers_ClampsPagination() {
	// Out-of-range limit falls back to the default.
	s.transferService.EXPECT().
		GetTransferHistory(gomock.Any(), s.userID, 0, 20).
		Return([]models.Transfer{}, int64(0), nil).
		Times(1)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/transfers?limit=5000&offset=-3", nil)
	rec := httptest.NewRecorder()
	c := s.e.NewContext(req, rec)
	c.Set("user_id", s.userID)

	s.NoError(s.handler.ListTransfers(c))
	s.Equal(http.StatusOK, rec.Code)
}

func (s *TransferHandlerSuite) TestGetBalance() {
	accountID := uuid.New()
	s.transferService.EXPECT().
		GetBalance(gomock.Any(), s.userID).
		Return(accountID, decimal.RequireFromString("44987.50"), nil).
		Times(1)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts/balance", nil)
	rec := httptest.NewRecorder()
	c := s.e.NewContext(req, rec)
	c.Set("user_id", s.userID)

	s.NoError(s.handler.GetBalance(c))
	s.Equal(http.StatusOK, rec.Code)

	var response struct {
		Data dto.BalanceResponse `json:"data"`
	}
	s.NoError(json.Unmarshal(rec.Body.Bytes(), &response))
	s.Equal(accountID.String(), response.Data.AccountID)
	s.Equal("44987.50", response.Data.Balance)
}

func (s *TransferHandlerSuite) TestGetBalance_NoAccount() {
	s.transferService.EXPECT().
		GetBalance(gomock.Any(), s.userID).
		Return(uuid.Nil, decimal.Zero, services.ErrSenderAccountNotFound).
		Times(1)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts/balance", nil)
	rec := httptest.NewRecorder()
	c := s.e.NewContext(req, rec)
	c.Set("user_id", s.userID)

	s.NoError(s.handler.GetBalance(c))
	s.Equal(http.StatusNotFound, rec.Code)
}
