package handlers

import (
	"errors"
	"net/http"

	"bankcore/internal/dto"
	apierrors "bankcore/internal/errors"
	"bankcore/internal/models"
	"bankcore/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// TransferHandler exposes the transfer engine over HTTP
type TransferHandler struct {
	transferService services.TransferServiceInterface
}

// NewTransferHandler creates a new transfer handler
func NewTransferHandler(transferService services.TransferServiceInterface) *TransferHandler {
	return &TransferHandler{
		transferService: transferService,
	}
}

// SubmitTransfer accepts a transfer submission and runs it through the engine.
// Resubmitting with the same idempotency key returns the recorded outcome.
func (h *TransferHandler) SubmitTransfer(c echo.Context) error {
	var req dto.SubmitTransferRequest

	if err := c.Bind(&req); err != nil {
		return SendError(c, apierrors.ValidationGeneral, apierrors.WithDetails("Invalid request body"))
	}

	if err := c.Validate(req); err != nil {
		return err
	}

	userID, err := getUserIDFromContext(c)
	if err != nil {
		return SendError(c, apierrors.AuthUnauthorized)
	}

	ipAddress := getClientIP(c)
	userAgent := c.Request().UserAgent()

	transfer, err := h.transferService.SubmitTransfer(c.Request().Context(), userID, &req, ipAddress, userAgent)
	if err != nil {
		return h.sendSubmitError(c, transfer, err)
	}

	if transfer.IsFailed() {
		// Idempotent replay of a recorded failure.
		return SendErrorWithBody(c, apierrors.TransferInsufficientFunds, dto.NewTransferResponse(transfer))
	}

	return c.JSON(http.StatusCreated, SuccessResponse{
		Data: dto.NewTransferResponse(transfer),
	})
}

// sendSubmitError maps pipeline errors to API error codes. A terminal failure
// still carries its durable record so the caller sees what was recorded.
func (h *TransferHandler) sendSubmitError(c echo.Context, transfer *models.Transfer, err error) error {
	switch {
	case errors.Is(err, services.ErrInsufficientFunds):
		if transfer != nil {
			return SendErrorWithBody(c, apierrors.TransferInsufficientFunds, dto.NewTransferResponse(transfer))
		}
		return SendError(c, apierrors.TransferInsufficientFunds)
	case errors.Is(err, services.ErrRecipientNotFound):
		return SendError(c, apierrors.ValidationRecipientNotFound)
	case errors.Is(err, services.ErrRecipientInactive):
		return SendError(c, apierrors.AccountInactive)
	case errors.Is(err, services.ErrSelfTransfer):
		return SendError(c, apierrors.ValidationSelfTransfer)
	case errors.Is(err, services.ErrInvalidAmount):
		return SendError(c, apierrors.ValidationInvalidAmount)
	case errors.Is(err, services.ErrReferenceTooLong):
		return SendError(c, apierrors.ValidationReferenceTooLong)
	case errors.Is(err, services.ErrSenderAccountNotFound):
		return SendError(c, apierrors.AccountNotFound)
	case errors.Is(err, services.ErrConcurrencyTimeout):
		return SendError(c, apierrors.TransferConcurrencyTimeout)
	case errors.Is(err, services.ErrDuplicateInFlight):
		return SendError(c, apierrors.TransferDuplicateInFlight)
	case errors.Is(err, services.ErrServerBusy):
		return SendError(c, apierrors.SystemOverloaded)
	case errors.Is(err, services.ErrCircuitBreakerOpen), errors.Is(err, services.ErrPersistenceFailure):
		return SendError(c, apierrors.SystemPersistenceError)
	default:
		return SendSystemError(c, err)
	}
}

// GetTransfer returns the status of one transfer visible to the caller
func (h *TransferHandler) GetTransfer(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return SendError(c, apierrors.AuthUnauthorized)
	}

	transferID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return SendError(c, apierrors.ValidationGeneral, apierrors.WithDetails("Invalid transfer ID"))
	}

	transfer, err := h.transferService.GetTransferStatus(c.Request().Context(), userID, transferID)
	if err != nil {
		if errors.Is(err, services.ErrTransferNotFound) {
			return SendError(c, apierrors.TransferNotFound)
		}
		return SendSystemError(c, err)
	}

	return c.JSON(http.StatusOK, SuccessResponse{
		Data: dto.NewTransferResponse(transfer),
	})
}

// ListTransfers returns the caller's transfer history, newest first
func (h *TransferHandler) ListTransfers(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return SendError(c, apierrors.AuthUnauthorized)
	}

	offset := getIntParam(c, "offset", 0)
	limit := getIntParam(c, "limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	transfers, total, err := h.transferService.GetTransferHistory(c.Request().Context(), userID, offset, limit)
	if err != nil {
		return SendSystemError(c, err)
	}

	items := make([]dto.TransferResponse, 0, len(transfers))
	for i := range transfers {
		items = append(items, *dto.NewTransferResponse(&transfers[i]))
	}

	return c.JSON(http.StatusOK, dto.TransferListResponse{
		Transfers: items,
		Total:     total,
		Offset:    offset,
		Limit:     limit,
	})
}

// GetBalance returns the live balance of the caller's active account
func (h *TransferHandler) GetBalance(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return SendError(c, apierrors.AuthUnauthorized)
	}

	accountID, balance, err := h.transferService.GetBalance(c.Request().Context(), userID)
	if err != nil {
		if errors.Is(err, services.ErrSenderAccountNotFound) {
			return SendError(c, apierrors.AccountNotFound)
		}
		return SendSystemError(c, err)
	}

	return c.JSON(http.StatusOK, SuccessResponse{
		Data: dto.NewBalanceResponse(accountID.String(), balance),
	})
}
