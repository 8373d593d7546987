package application

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/viralforge/mesh/services/core-platform/M04-credential-lifecycle-service/internal/domain"
)

// SendVerificationCode issues a numeric code for an unregistered email. A resend is
// accepted only after the cooldown since the last issue and restarts every counter.
func (s *Service) SendVerificationCode(ctx context.Context, email string) error {
	normalized, err := domain.NormalizeEmail(email)
	if err != nil {
		return err
	}
	if _, err := s.users.GetByEmail(ctx, normalized); err == nil {
		return fmt.Errorf("%w: email is already registered, use a different email", domain.ErrConflict)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return storeErr(ctx, "send_verification_code", err)
	}

	code, err := s.tokens.Digits(s.cfg.VerificationCodeDigits)
	if err != nil {
		return storeErr(ctx, "generate_verification_code", err)
	}
	now := s.nowFn()

	_, err = s.verifications.Create(ctx, normalized, code, now)
	switch {
	case err == nil:
		s.notifyCode(ctx, normalized, code)
		return nil
	case !errors.Is(err, domain.ErrConflict):
		return storeErr(ctx, "create_verification", err)
	}

	reissued, err := s.verifications.Reissue(ctx, normalized, code, now, now.Add(-s.cfg.VerificationCooldown))
	if err != nil {
		return storeErr(ctx, "reissue_verification", err)
	}
	if reissued {
		s.notifyCode(ctx, normalized, code)
		return nil
	}

	record, err := s.verifications.Get(ctx, normalized)
	if err != nil {
		return storeErr(ctx, "get_verification", err)
	}
	return domain.NewCooldownError("verification code was sent recently",
		domain.WindowRemaining(record.CreatedAt, now, s.cfg.VerificationCooldown))
}

// VerifyCode checks a submitted code. Every attempt on an unverified record counts,
// including ones that then fail on expiry.
func (s *Service) VerifyCode(ctx context.Context, email, code string) error {
	normalized, err := domain.NormalizeEmail(email)
	if err != nil {
		return err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return fmt.Errorf("%w: code is required", domain.ErrInvalidInput)
	}

	now := s.nowFn()
	record, err := s.verifications.RecordAttempt(ctx, normalized, now)
	if err != nil {
		return storeErr(ctx, "record_verification_attempt", err)
	}
	if domain.WindowExpired(record.CreatedAt, now, s.cfg.VerificationCodeTTL) {
		return fmt.Errorf("%w: verification code expired, request a new one", domain.ErrTokenExpired)
	}
	if record.AttemptCount >= s.cfg.VerificationMaxAttempts {
		return &domain.RateLimitError{Reason: "too many verification attempts, request a new code"}
	}
	if subtle.ConstantTimeCompare([]byte(record.Code), []byte(code)) != 1 {
		return domain.ErrCodeMismatch
	}

	verified, err := s.verifications.MarkVerified(ctx, normalized, now)
	if err != nil {
		return storeErr(ctx, "mark_verified", err)
	}
	if !verified {
		return domain.ErrAlreadyVerified
	}
	appLogger().InfoContext(ctx, "email verified",
		"operation", "verify_code",
		"outcome", "success",
		"attempt_count", record.AttemptCount,
	)
	return nil
}

func (s *Service) notifyCode(ctx context.Context, email, code string) {
	s.notify(ctx, domain.NotificationVerificationCodeIssued, email, nil, map[string]string{
		"code":          code,
		"expires_in_ms": fmt.Sprintf("%d", s.cfg.VerificationCodeTTL.Milliseconds()),
	})
}
