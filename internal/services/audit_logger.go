package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type contextKey string

// CorrelationIDKey carries the request ID through the pipeline so every audit
// event of one submission can be stitched together.
const CorrelationIDKey contextKey = "correlation_id"

// AuditLogger emits structured lifecycle events for every transfer through
// slog. The durable audit_logs table records the outcome; these events record
// the journey.
type AuditLogger struct {
	logger *slog.Logger
}

func NewAuditLogger(logger *slog.Logger) AuditLoggerInterface {
	return &AuditLogger{
		logger: logger,
	}
}

func (al *AuditLogger) LogTransferReceived(ctx context.Context, userID, fromAccountID, toAccountID uuid.UUID, amount, idempotencyKey string) {
	al.logger.InfoContext(ctx, "transfer received",
		slog.String("event_type", "transfer_received"),
		slog.String("user_id", userID.String()),
		slog.String("from_account_id", fromAccountID.String()),
		slog.String("to_account_id", toAccountID.String()),
		slog.String("amount", amount),
		slog.String("idempotency_key", idempotencyKey),
		slog.String("correlation_id", getCorrelationID(ctx)),
	)
}

func (al *AuditLogger) LogTransferRejected(ctx context.Context, userID uuid.UUID, reason, idempotencyKey string) {
	al.logger.WarnContext(ctx, "transfer rejected",
		slog.String("event_type", "transfer_rejected"),
		slog.String("user_id", userID.String()),
		slog.String("reason", reason),
		slog.String("idempotency_key", idempotencyKey),
		slog.String("correlation_id", getCorrelationID(ctx)),
	)
}

func (al *AuditLogger) LogTransferCompleted(ctx context.Context, transferID uuid.UUID, durationMs int64) {
	al.logger.InfoContext(ctx, "transfer completed",
		slog.String("event_type", "transfer_completed"),
		slog.String("transfer_id", transferID.String()),
		slog.Int64("duration_ms", durationMs),
		slog.Time("timestamp", time.Now()),
		slog.String("correlation_id", getCorrelationID(ctx)),
	)
}

func (al *AuditLogger) LogTransferFailed(ctx context.Context, transferID uuid.UUID, errorMsg string, durationMs int64) {
	al.logger.WarnContext(ctx, "transfer failed",
		slog.String("event_type", "transfer_failed"),
		slog.String("transfer_id", transferID.String()),
		slog.String("error", errorMsg),
		slog.Int64("duration_ms", durationMs),
		slog.Time("timestamp", time.Now()),
		slog.String("correlation_id", getCorrelationID(ctx)),
	)
}

func (al *AuditLogger) LogIdempotentReplay(ctx context.Context, idempotencyKey string, transferID uuid.UUID, status string) {
	al.logger.InfoContext(ctx, "idempotent replay",
		slog.String("event_type", "idempotent_replay"),
		slog.String("idempotency_key", idempotencyKey),
		slog.String("transfer_id", transferID.String()),
		slog.String("status", status),
		slog.String("correlation_id", getCorrelationID(ctx)),
	)
}

func (al *AuditLogger) LogBalanceUpdate(ctx context.Context, accountID uuid.UUID, oldBalance, newBalance string, transferID uuid.UUID) {
	al.logger.InfoContext(ctx, "balance update",
		slog.String("event_type", "balance_update"),
		slog.String("account_id", accountID.String()),
		slog.String("old_balance", oldBalance),
		slog.String("new_balance", newBalance),
		slog.String("transfer_id", transferID.String()),
		slog.String("correlation_id", getCorrelationID(ctx)),
	)
}

func (al *AuditLogger) LogCircuitBreakerStateChange(ctx context.Context, service, oldState, newState string) {
	al.logger.WarnContext(ctx, "circuit breaker state change",
		slog.String("event_type", "circuit_breaker_state_change"),
		slog.String("service", service),
		slog.String("old_state", oldState),
		slog.String("new_state", newState),
		slog.Time("timestamp", time.Now()),
	)
}

func getCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(CorrelationIDKey).(string); ok {
		return id
	}
	return ""
}
