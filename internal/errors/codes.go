package errors

// ErrorCode represents a standardized error code used throughout the API
type ErrorCode string

// Authentication error codes (AUTH_*)
const (
	AuthInvalidCredentials ErrorCode = "AUTH_001"
	AuthMissingToken       ErrorCode = "AUTH_002"
	AuthExpiredToken       ErrorCode = "AUTH_003"
	AuthInvalidTokenFormat ErrorCode = "AUTH_004"
	AuthUnauthorized       ErrorCode = "AUTH_005"
)

// Validation error codes (VALIDATION_*)
const (
	ValidationGeneral           ErrorCode = "VALIDATION_001"
	ValidationInvalidAmount     ErrorCode = "VALIDATION_002"
	ValidationSelfTransfer      ErrorCode = "VALIDATION_003"
	ValidationRecipientNotFound ErrorCode = "VALIDATION_004"
	ValidationReferenceTooLong  ErrorCode = "VALIDATION_005"
)

// Account error codes (ACCOUNT_*)
const (
	AccountNotFound ErrorCode = "ACCOUNT_001"
	AccountInactive ErrorCode = "ACCOUNT_002"
)

// Transfer error codes (TRANSFER_*)
const (
	TransferNotFound           ErrorCode = "TRANSFER_001"
	TransferInsufficientFunds  ErrorCode = "TRANSFER_002"
	TransferConcurrencyTimeout ErrorCode = "TRANSFER_003"
	TransferDuplicateInFlight  ErrorCode = "TRANSFER_004"
)

// System error codes (SYSTEM_*)
const (
	SystemInternalError     ErrorCode = "SYSTEM_001"
	SystemPersistenceError  ErrorCode = "SYSTEM_002"
	SystemRateLimitExceeded ErrorCode = "SYSTEM_003"
	SystemOverloaded        ErrorCode = "SYSTEM_004"
)

// errorMessages maps error codes to their default human-readable messages
var errorMessages = map[ErrorCode]string{
	AuthInvalidCredentials: "Invalid username or password",
	AuthMissingToken:       "Authorization token is required",
	AuthExpiredToken:       "Authorization token has expired",
	AuthInvalidTokenFormat: "Invalid authorization token format",
	AuthUnauthorized:       "Not authorized to access this resource",

	ValidationGeneral:           "Validation failed",
	ValidationInvalidAmount:     "Transfer amount must be positive with at most 2 decimal places",
	ValidationSelfTransfer:      "Cannot transfer to your own account",
	ValidationRecipientNotFound: "Recipient account not found",
	ValidationReferenceTooLong:  "Reference message too long (max 200 characters)",

	AccountNotFound: "Account not found",
	AccountInactive: "Account is closed or inactive",

	TransferNotFound:           "Transfer not found",
	TransferInsufficientFunds:  "Insufficient balance to cover the amount plus fee",
	TransferConcurrencyTimeout: "Transfer timed out waiting for account locks; safe to retry with the same idempotency key",
	TransferDuplicateInFlight:  "A transfer with this idempotency key is still processing",

	SystemInternalError:     "An unexpected error occurred. Please contact support with trace ID",
	SystemPersistenceError:  "Storage tier unavailable or rejected the write",
	SystemRateLimitExceeded: "Rate limit exceeded. Please try again later",
	SystemOverloaded:        "Server is at capacity. Please try again later",
}

// retryableCodes marks error codes where retrying with the same idempotency
// key is explicitly safe (no side effect occurred).
var retryableCodes = map[ErrorCode]bool{
	TransferConcurrencyTimeout: true,
	SystemRateLimitExceeded:    true,
	SystemOverloaded:           true,
}

// GetErrorMessage returns the default message for a given error code
// If the error code is not found, it returns a generic error message
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}
	return "An error occurred"
}

// IsValidErrorCode checks if the provided error code is a valid registered code
func IsValidErrorCode(code ErrorCode) bool {
	_, ok := errorMessages[code]
	return ok
}

// IsRetryable reports whether the caller may safely retry the request that
// produced this code without risking a duplicate economic effect.
func IsRetryable(code ErrorCode) bool {
	return retryableCodes[code]
}
