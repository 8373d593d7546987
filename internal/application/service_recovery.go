package application

import (
	"context"
	"fmt"

	"github.com/viralforge/mesh/services/core-platform/M04-credential-lifecycle-service/internal/domain"
	"github.com/viralforge/mesh/services/core-platform/M04-credential-lifecycle-service/internal/ports"
)

// RequestReset mails a one-time reset link. While an unused link from the last
// ResetLinkTTL is outstanding, new requests are rate limited.
func (s *Service) RequestReset(ctx context.Context, email string) error {
	normalized, err := domain.NormalizeEmail(email)
	if err != nil {
		return err
	}
	linkHash, err := s.newToken(ctx, "generate_reset_link")
	if err != nil {
		return err
	}

	now := s.nowFn()
	res, err := s.resets.Issue(ctx, ports.ResetIssueParams{
		Email:         normalized,
		LinkHash:      linkHash,
		IssuedAt:      now,
		CooldownStart: now.Add(-s.cfg.ResetLinkTTL),
	})
	if err != nil {
		return storeErr(ctx, "issue_reset_link", err)
	}
	if res.Outstanding {
		return domain.NewCooldownError("a reset link was sent recently",
			domain.WindowRemaining(res.Link.CreatedAt, now, s.cfg.ResetLinkTTL))
	}

	appLogger().InfoContext(ctx, "reset link issued",
		"operation", "request_reset",
		"outcome", "success",
	)
	s.notify(ctx, domain.NotificationResetLinkIssued, normalized, nil, map[string]string{
		"link_hash":     res.Link.LinkHash,
		"expires_in_ms": fmt.Sprintf("%d", s.cfg.ResetLinkTTL.Milliseconds()),
	})
	return nil
}

// ResolveResetLink returns the link state, expiring an aged link as a side effect.
func (s *Service) ResolveResetLink(ctx context.Context, linkHash string) (ResetLinkInfo, error) {
	link, err := s.resolveResetLink(ctx, linkHash)
	if err != nil {
		return ResetLinkInfo{}, err
	}
	return ResetLinkInfo{
		Email:     link.Email,
		IsUsed:    link.IsUsed,
		IsActive:  link.IsActive,
		CreatedAt: link.CreatedAt,
		ExpiresAt: link.CreatedAt.Add(s.cfg.ResetLinkTTL),
	}, nil
}

// CompleteReset sets a new password through a reset link. The link is marked used in
// the same transaction as the credential change, which also logs out every session.
func (s *Service) CompleteReset(ctx context.Context, linkHash, newPassword string) error {
	if err := domain.ValidatePassword(newPassword); err != nil {
		return err
	}
	link, err := s.resolveResetLink(ctx, linkHash)
	if err != nil {
		return err
	}
	if link.IsUsed {
		return fmt.Errorf("%w: reset link already used", domain.ErrTokenConsumed)
	}
	if !link.IsActive {
		return fmt.Errorf("%w: reset link expired", domain.ErrTokenExpired)
	}

	hash, salt, err := s.newCredential(ctx, newPassword)
	if err != nil {
		return err
	}
	now := s.nowFn()
	userID, err := s.resets.Complete(ctx, ports.ResetCompletion{
		LinkHash:     link.LinkHash,
		PasswordHash: hash,
		Salt:         salt,
		ValidAfter:   now.Add(-s.cfg.ResetLinkTTL),
		CompletedAt:  now,
	})
	if err != nil {
		return storeErr(ctx, "complete_reset", err)
	}
	appLogger().InfoContext(ctx, "password reset completed",
		"operation", "complete_reset",
		"outcome", "success",
		"user_id", userID.String(),
	)
	return nil
}

// ChangePassword rotates the credential of the session's user after re-checking the
// current password. Every session of the user, including the caller's, is logged out.
func (s *Service) ChangePassword(ctx context.Context, req ChangePasswordRequest) error {
	session, err := s.requireActiveSession(ctx, req.SessionID)
	if err != nil {
		return err
	}
	if _, err := s.ValidateByUserID(ctx, session.UserID, req.CurrentPassword); err != nil {
		return err
	}
	if err := domain.ValidatePassword(req.NewPassword); err != nil {
		return err
	}

	hash, salt, err := s.newCredential(ctx, req.NewPassword)
	if err != nil {
		return err
	}
	if err := s.users.RotatePassword(ctx, ports.PasswordRotation{
		UserID:       session.UserID,
		PasswordHash: hash,
		Salt:         salt,
		RotatedAt:    s.nowFn(),
	}); err != nil {
		return storeErr(ctx, "rotate_password", err)
	}
	appLogger().InfoContext(ctx, "password changed",
		"operation", "change_password",
		"outcome", "success",
		"user_id", session.UserID.String(),
	)
	return nil
}

func (s *Service) resolveResetLink(ctx context.Context, linkHash string) (domain.PasswordResetLink, error) {
	linkHash, err := requireField(linkHash, "link hash")
	if err != nil {
		return domain.PasswordResetLink{}, err
	}
	link, err := s.resets.GetByHash(ctx, linkHash)
	if err != nil {
		return domain.PasswordResetLink{}, storeErr(ctx, "get_reset_link", err)
	}

	now := s.nowFn()
	if !link.IsUsed && link.IsActive && domain.WindowExpired(link.CreatedAt, now, s.cfg.ResetLinkTTL) {
		if _, err := s.resets.ExpireIfStale(ctx, linkHash, now.Add(-s.cfg.ResetLinkTTL), now); err != nil {
			appLogger().WarnContext(ctx, "lazy reset link expiry not persisted",
				"operation", "expire_reset_link",
				"outcome", "failure",
				"error", err,
			)
		}
		link.IsActive = false
	}
	return link, nil
}
