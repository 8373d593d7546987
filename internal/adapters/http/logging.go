package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/viralforge/mesh/services/core-platform/M04-credential-lifecycle-service/internal/domain"
)

const serviceName = "M04-Credential-Lifecycle-Service"

func httpLogger() *slog.Logger {
	return slog.Default().With(
		"service", serviceName,
		"module", "http",
		"layer", "adapter",
	)
}

// sessionRef shortens a bearer session id so log lines can be correlated without
// carrying a usable credential.
func sessionRef(sessionID string) string {
	if len(sessionID) <= 8 {
		return sessionID
	}
	return sessionID[:8]
}

// errorClass names the taxonomy bucket of err for log aggregation.
func errorClass(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrInfrastructure):
		return "infrastructure"
	case errors.Is(err, domain.ErrAccountLocked), errors.Is(err, domain.ErrRateLimited):
		return "rate_limit"
	case errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrSessionInactive),
		errors.Is(err, domain.ErrSessionExpired):
		return "auth"
	case errors.Is(err, domain.ErrTokenExpired), errors.Is(err, domain.ErrTokenConsumed):
		return "expired"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrAlreadyLoggedOut),
		errors.Is(err, domain.ErrAlreadyVerified),
		errors.Is(err, domain.ErrCodeMismatch),
		errors.Is(err, domain.ErrEmailNotVerified):
		return "validation"
	default:
		return "internal"
	}
}

func operationErrorFields(ctx context.Context, operation string, statusCode int, code, message string, err error) []any {
	fields := []any{
		"operation", operation,
		"outcome", "failure",
		"status_code", statusCode,
		"error_code", code,
		"message", message,
		"request_id", requestIDFromContext(ctx),
	}
	if sessionID, ok := sessionIDFromContext(ctx); ok {
		fields = append(fields, "session_ref", sessionRef(sessionID))
	}
	if err != nil {
		fields = append(fields, "error_class", errorClass(err), "error", err.Error())
	}
	if secs, ok := retryAfterSeconds(err); ok {
		fields = append(fields, "retry_after_s", secs)
	}
	return fields
}

// logHTTPOperationError logs server faults at error level. Client mistakes and
// rejected credentials are warnings so brute force attempts remain visible.
func logHTTPOperationError(ctx context.Context, operation string, statusCode int, code, message string, err error) {
	fields := operationErrorFields(ctx, operation, statusCode, code, message, err)
	switch {
	case statusCode >= http.StatusInternalServerError:
		httpLogger().ErrorContext(ctx, "http operation failed", fields...)
	case statusCode == http.StatusNotFound:
		httpLogger().InfoContext(ctx, "http operation failed", fields...)
	default:
		httpLogger().WarnContext(ctx, "http operation failed", fields...)
	}
}
