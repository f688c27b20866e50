package handlers

import (
	"net/http"

	"bankcore/internal/errors"

	"github.com/labstack/echo/v4"
)

const (
	// TraceIDContextKey is the context key for storing the trace ID
	TraceIDContextKey = "trace_id"
)

// SuccessResponse represents a standard success response
type SuccessResponse struct {
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
}

// ErrorResponse is an alias for the standardized error response type
type ErrorResponse = errors.ErrorResponse

// getTraceID extracts the trace ID from the Echo context
func getTraceID(c echo.Context) string {
	traceID, ok := c.Get(TraceIDContextKey).(string)
	if !ok {
		return ""
	}
	return traceID
}

// SendError sends a standardized error response with trace ID from context
func SendError(c echo.Context, code errors.ErrorCode, opts ...errors.ErrorOption) error {
	traceID := getTraceID(c)
	errorResponse := errors.NewErrorResponse(code, traceID, opts...)
	return c.JSON(errors.GetHTTPStatus(code), errorResponse)
}

// SendErrorWithBody sends a standardized error response carrying an additional
// payload, used when a failed transfer still has a durable record the caller
// should see.
func SendErrorWithBody(c echo.Context, code errors.ErrorCode, body interface{}) error {
	traceID := getTraceID(c)
	errorResponse := errors.NewErrorResponse(code, traceID)
	return c.JSON(errors.GetHTTPStatus(code), map[string]interface{}{
		"error":    errorResponse.Error,
		"transfer": body,
	})
}

// SendSystemError wraps a system error with generic message and logs the internal error
func SendSystemError(c echo.Context, err error) error {
	traceID := getTraceID(c)
	errorResponse, _ := errors.WrapSystemError(err, traceID)
	return c.JSON(http.StatusInternalServerError, errorResponse)
}
