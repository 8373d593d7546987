package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/viralforge/mesh/services/core-platform/M04-credential-lifecycle-service/internal/domain"
)

const serviceName = "M04-Credential-Lifecycle-Service"

// domainErrors are passed through the manager boundary unchanged.
var domainErrors = []error{
	domain.ErrNotFound,
	domain.ErrInvalidCredentials,
	domain.ErrAccountLocked,
	domain.ErrSessionInactive,
	domain.ErrSessionExpired,
	domain.ErrAlreadyLoggedOut,
	domain.ErrAlreadyVerified,
	domain.ErrCodeMismatch,
	domain.ErrEmailNotVerified,
	domain.ErrInvalidInput,
	domain.ErrConflict,
	domain.ErrTokenExpired,
	domain.ErrTokenConsumed,
	domain.ErrRateLimited,
	domain.ErrInfrastructure,
}

func appLogger() *slog.Logger {
	return slog.Default().With(
		"service", serviceName,
		"module", "application",
		"layer", "application",
	)
}

func isDomainError(err error) bool {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// storeErr translates a store failure into the domain taxonomy. Known domain errors
// pass through; anything else becomes a retryable infrastructure error.
func storeErr(ctx context.Context, operation string, err error) error {
	if err == nil || isDomainError(err) {
		return err
	}
	appLogger().ErrorContext(ctx, "store operation failed",
		"operation", operation,
		"outcome", "failure",
		"error", err,
	)
	return fmt.Errorf("%w: %s: %w", domain.ErrInfrastructure, operation, err)
}

func requireField(value, field string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", fmt.Errorf("%w: %s is required", domain.ErrInvalidInput, field)
	}
	return trimmed, nil
}

// shortID keeps log lines correlatable without writing whole bearer secrets.
func shortID(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8]
}

// newCredential mints a fresh salt and the matching hash for password.
func (s *Service) newCredential(ctx context.Context, password string) (hash, salt string, err error) {
	salt, err = s.hasher.NewSalt()
	if err != nil {
		return "", "", storeErr(ctx, "generate_salt", err)
	}
	hash, err = s.hasher.Hash(password, salt)
	if err != nil {
		return "", "", storeErr(ctx, "hash_password", err)
	}
	return hash, salt, nil
}

func (s *Service) newToken(ctx context.Context, operation string) (string, error) {
	token, err := s.tokens.Token()
	if err != nil {
		return "", storeErr(ctx, operation, err)
	}
	return token, nil
}
