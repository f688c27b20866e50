package errors

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetErrorMessage(t *testing.T) {
	assert.Equal(t, "Invalid username or password", GetErrorMessage(AuthInvalidCredentials))
	assert.Equal(t, "An error occurred", GetErrorMessage(ErrorCode("NOPE_999")))
}

func TestIsValidErrorCode(t *testing.T) {
	assert.True(t, IsValidErrorCode(TransferInsufficientFunds))
	assert.False(t, IsValidErrorCode(ErrorCode("NOPE_999")))
}

func TestIsRetryable(t *testing.T) {
	// Retrying with the same idempotency key is only advertised as safe where
	// no side effect can have occurred.
	assert.True(t, IsRetryable(TransferConcurrencyTimeout))
	assert.True(t, IsRetryable(SystemOverloaded))
	assert.True(t, IsRetryable(SystemRateLimitExceeded))

	assert.False(t, IsRetryable(TransferInsufficientFunds))
	assert.False(t, IsRetryable(TransferDuplicateInFlight))
	assert.False(t, IsRetryable(ValidationInvalidAmount))
}

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code   ErrorCode
		status int
	}{
		{ValidationGeneral, http.StatusBadRequest},
		{ValidationInvalidAmount, http.StatusBadRequest},
		{ValidationSelfTransfer, http.StatusBadRequest},
		{ValidationRecipientNotFound, http.StatusBadRequest},
		{ValidationReferenceTooLong, http.StatusBadRequest},
		{AuthInvalidCredentials, http.StatusUnauthorized},
		{AuthExpiredToken, http.StatusUnauthorized},
		{AuthUnauthorized, http.StatusForbidden},
		{AccountNotFound, http.StatusNotFound},
		{TransferNotFound, http.StatusNotFound},
		{AccountInactive, http.StatusUnprocessableEntity},
		{TransferInsufficientFunds, http.StatusUnprocessableEntity},
		{TransferDuplicateInFlight, http.StatusConflict},
		{TransferConcurrencyTimeout, http.StatusServiceUnavailable},
		{SystemPersistenceError, http.StatusServiceUnavailable},
		{SystemOverloaded, http.StatusServiceUnavailable},
		{SystemRateLimitExceeded, http.StatusTooManyRequests},
		{SystemInternalError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.status, GetHTTPStatus(tt.code), "code %s", tt.code)
	}
}

func TestNewErrorResponse(t *testing.T) {
	response := NewErrorResponse(TransferConcurrencyTimeout, "trace-123", WithDetails("lock wait exceeded"))

	assert.Equal(t, string(TransferConcurrencyTimeout), response.Error.Code)
	assert.Equal(t, "trace-123", response.Error.TraceID)
	assert.True(t, response.Error.Retryable)
	assert.Equal(t, []string{"lock wait exceeded"}, response.Error.Details)
}
