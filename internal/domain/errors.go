package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when the requested resource does not exist.
	// Keeping this sentinel in domain allows adapters to map it consistently to 404/NOT_FOUND.
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidCredentials hides whether email or password failed.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked signals temporary lockout after repeated failed logins.
	ErrAccountLocked    = errors.New("account locked")
	ErrSessionInactive  = errors.New("session inactive")
	ErrSessionExpired   = errors.New("session expired")
	ErrAlreadyLoggedOut = errors.New("already logged out")
	ErrAlreadyVerified  = errors.New("email already verified")
	ErrCodeMismatch     = errors.New("code does not match")
	ErrEmailNotVerified = errors.New("email not verified")
	ErrInvalidInput     = errors.New("invalid input")
	ErrConflict         = errors.New("conflict")
	ErrTokenExpired     = errors.New("token expired")
	ErrTokenConsumed    = errors.New("token already consumed")
	ErrRateLimited      = errors.New("rate limited")
	ErrInfrastructure   = errors.New("infrastructure failure")
)

// RateLimitError carries the wait left before the limited action may be retried.
// Remaining is zero when the limit is an attempt ceiling rather than a cooldown.
type RateLimitError struct {
	Reason    string
	Remaining time.Duration
}

func (e *RateLimitError) Error() string {
	if e.Remaining > 0 {
		return fmt.Sprintf("%s: try again in %s", e.Reason, FormatRemaining(e.Remaining))
	}
	return e.Reason
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// NewCooldownError reports an active cooldown with the remaining wait.
func NewCooldownError(reason string, remaining time.Duration) error {
	if remaining < 0 {
		remaining = 0
	}
	return &RateLimitError{Reason: reason, Remaining: remaining}
}

// IsRetryable reports whether err is an infrastructure failure a caller may retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrInfrastructure)
}
