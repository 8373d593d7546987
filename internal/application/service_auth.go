package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/core-platform/M04-credential-lifecycle-service/internal/domain"
)

// ValidateByEmail checks an email/password pair. Unknown email and wrong password
// return the same domain.ErrInvalidCredentials. Every caller shares the per-email
// lockout: a locked email is rejected before the password is looked at, a wrong
// password counts towards the threshold and a match clears the counter.
func (s *Service) ValidateByEmail(ctx context.Context, email, password string) (uuid.UUID, error) {
	normalized, err := domain.NormalizeEmail(email)
	if err != nil {
		return uuid.Nil, err
	}
	if password == "" {
		return uuid.Nil, fmt.Errorf("%w: password is required", domain.ErrInvalidInput)
	}
	if err := s.checkLockout(ctx, normalized); err != nil {
		return uuid.Nil, err
	}

	user, err := s.users.GetByEmail(ctx, normalized)
	userID, err := s.checkCredential(ctx, "validate_by_email", user, err, password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			s.recordLoginFailure(ctx, normalized)
		}
		return uuid.Nil, err
	}
	s.clearLockout(ctx, normalized)
	return userID, nil
}

// ValidateByUserID re-authenticates a known user, e.g. before a password change.
func (s *Service) ValidateByUserID(ctx context.Context, userID uuid.UUID, password string) (uuid.UUID, error) {
	if userID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: user id is required", domain.ErrInvalidInput)
	}
	if password == "" {
		return uuid.Nil, fmt.Errorf("%w: password is required", domain.ErrInvalidInput)
	}
	user, err := s.users.GetByID(ctx, userID)
	return s.checkCredential(ctx, "validate_by_user_id", user, err, password)
}

func (s *Service) checkCredential(ctx context.Context, operation string, user domain.User, lookupErr error, password string) (uuid.UUID, error) {
	if lookupErr != nil {
		if !errors.Is(lookupErr, domain.ErrNotFound) {
			return uuid.Nil, storeErr(ctx, operation, lookupErr)
		}
		// Hash anyway so a missing user costs the same as a wrong password.
		hash, salt := s.decoy()
		_ = s.hasher.Compare(hash, password, salt)
		return uuid.Nil, domain.ErrInvalidCredentials
	}
	if !s.hasher.Compare(user.PasswordHash, password, user.Salt) {
		return uuid.Nil, domain.ErrInvalidCredentials
	}
	return user.UserID, nil
}

func (s *Service) decoy() (string, string) {
	s.decoyOnce.Do(func() {
		salt, err := s.hasher.NewSalt()
		if err != nil {
			return
		}
		hash, err := s.hasher.Hash("decoy-credential", salt)
		if err != nil {
			return
		}
		s.decoyHash, s.decoySalt = hash, salt
	})
	return s.decoyHash, s.decoySalt
}

func (s *Service) lockoutEnabled() bool {
	return s.lockouts != nil && s.cfg.FailedLoginThreshold > 0
}

// checkLockout rejects credential checks for a locked key. Store failures fail open.
func (s *Service) checkLockout(ctx context.Context, key string) error {
	if !s.lockoutEnabled() {
		return nil
	}
	now := s.nowFn()
	state, err := s.lockouts.Get(ctx, key)
	if err != nil {
		appLogger().WarnContext(ctx, "lockout state unavailable",
			"operation", "check_lockout",
			"outcome", "warning",
			"error", err,
		)
		return nil
	}
	if state.Locked(now) {
		return fmt.Errorf("%w: too many failed logins, try again in %s",
			domain.ErrAccountLocked, domain.FormatRemaining(state.LockedUntil.Sub(now)))
	}
	return nil
}

func (s *Service) recordLoginFailure(ctx context.Context, key string) {
	if !s.lockoutEnabled() {
		return
	}
	state, err := s.lockouts.RecordFailure(ctx, key, s.nowFn(), s.cfg.FailedLoginThreshold, s.cfg.LockoutDuration)
	if err != nil {
		appLogger().WarnContext(ctx, "lockout failure not recorded",
			"operation", "record_login_failure",
			"outcome", "warning",
			"error", err,
		)
		return
	}
	if state.LockedUntil != nil {
		appLogger().WarnContext(ctx, "login locked after repeated failures",
			"operation", "record_login_failure",
			"outcome", "locked",
			"failed_count", state.FailedCount,
		)
	}
}

func (s *Service) clearLockout(ctx context.Context, key string) {
	if !s.lockoutEnabled() {
		return
	}
	if err := s.lockouts.Clear(ctx, key); err != nil {
		appLogger().WarnContext(ctx, "lockout state not cleared",
			"operation", "clear_lockout",
			"outcome", "warning",
			"error", err,
		)
	}
}
