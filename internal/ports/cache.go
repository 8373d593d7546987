package ports

import (
	"context"
	"time"
)

// LockoutState is the current lockout envelope for a login key.
// It is cache-backed to avoid hot writes on every failed login.
type LockoutState struct {
	FailedCount int
	LockedUntil *time.Time
}

// Locked reports whether the state blocks logins at now.
func (s LockoutState) Locked(now time.Time) bool {
	return s.LockedUntil != nil && s.LockedUntil.After(now)
}

// LockoutStore handles short-lived brute-force protection state.
type LockoutStore interface {
	Get(ctx context.Context, key string) (LockoutState, error)
	RecordFailure(ctx context.Context, key string, now time.Time, threshold int, lockoutWindow time.Duration) (LockoutState, error)
	Clear(ctx context.Context, key string) error
}
