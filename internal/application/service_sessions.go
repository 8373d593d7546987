package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/core-platform/M04-credential-lifecycle-service/internal/domain"
	"github.com/viralforge/mesh/services/core-platform/M04-credential-lifecycle-service/internal/ports"
)

// CreateSession logs a user in. The new session becomes the user's only active one and
// a deactivation link for it is mailed with the session-created notification.
func (s *Service) CreateSession(ctx context.Context, req LoginRequest) (LoginResult, error) {
	email, err := domain.NormalizeEmail(req.Email)
	if err != nil {
		return LoginResult{}, err
	}
	if req.Password == "" {
		return LoginResult{}, fmt.Errorf("%w: password is required", domain.ErrInvalidInput)
	}
	userID, err := s.ValidateByEmail(ctx, email, req.Password)
	if err != nil {
		return LoginResult{}, err
	}

	sessionID, err := s.newToken(ctx, "generate_session_id")
	if err != nil {
		return LoginResult{}, err
	}
	linkHash, err := s.newToken(ctx, "generate_deactivation_link")
	if err != nil {
		return LoginResult{}, err
	}

	now := s.nowFn()
	session, link, err := s.sessions.CreateExclusive(ctx, ports.SessionCreateParams{
		SessionID: sessionID,
		UserID:    userID,
		UserAgent: strings.TrimSpace(req.UserAgent),
		IPAddress: strings.TrimSpace(req.IPAddress),
		LinkHash:  linkHash,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.SessionTTL),
	})
	if err != nil {
		return LoginResult{}, storeErr(ctx, "create_session", err)
	}

	appLogger().InfoContext(ctx, "session created",
		"operation", "create_session",
		"outcome", "success",
		"user_id", userID.String(),
		"session_ref", shortID(session.SessionID),
	)
	s.notify(ctx, domain.NotificationSessionCreated, email, &userID, map[string]string{
		"session_id":             session.SessionID,
		"deactivation_link_hash": link.LinkHash,
		"user_agent":             session.UserAgent,
		"ip_address":             session.IPAddress,
	})

	return LoginResult{SessionID: session.SessionID, ExpiresAt: session.ExpiresAt}, nil
}

// GetSession returns an active session. A session past its expiry is flipped inactive
// as a side effect and reported as domain.ErrSessionExpired from then on; a logged out
// session is domain.ErrSessionInactive.
func (s *Service) GetSession(ctx context.Context, sessionID string) (SessionInfo, error) {
	session, err := s.requireActiveSession(ctx, sessionID)
	if err != nil {
		return SessionInfo{}, err
	}
	return toSessionInfo(session, s.nowFn()), nil
}

// ListSessions returns every session of the caller's user, newest first.
func (s *Service) ListSessions(ctx context.Context, sessionID string) ([]SessionInfo, error) {
	current, err := s.requireActiveSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	rows, err := s.sessions.ListByUser(ctx, current.UserID)
	if err != nil {
		return nil, storeErr(ctx, "list_sessions", err)
	}
	now := s.nowFn()
	items := make([]SessionInfo, 0, len(rows))
	for _, row := range rows {
		items = append(items, toSessionInfo(row, now))
	}
	return items, nil
}

// DeactivateSession logs a session out. Logging out an inactive session is an error.
func (s *Service) DeactivateSession(ctx context.Context, sessionID string) error {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if !session.IsActive {
		return domain.ErrAlreadyLoggedOut
	}
	changed, err := s.sessions.Deactivate(ctx, session.SessionID, s.nowFn())
	if err != nil {
		return storeErr(ctx, "deactivate_session", err)
	}
	if !changed {
		return domain.ErrAlreadyLoggedOut
	}
	appLogger().InfoContext(ctx, "session deactivated",
		"operation", "deactivate_session",
		"outcome", "success",
		"user_id", session.UserID.String(),
		"session_ref", shortID(session.SessionID),
	)
	return nil
}

// DeactivateAllSessions flips every session of the user inactive and returns how many changed.
func (s *Service) DeactivateAllSessions(ctx context.Context, userID uuid.UUID) (int64, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return 0, storeErr(ctx, "deactivate_all_sessions", err)
	}
	n, err := s.sessions.DeactivateAllByUser(ctx, userID, s.nowFn())
	if err != nil {
		return 0, storeErr(ctx, "deactivate_all_sessions", err)
	}
	return n, nil
}

func (s *Service) ResolveDeactivationLink(ctx context.Context, linkHash string) (DeactivationLinkInfo, error) {
	linkHash, err := requireField(linkHash, "link hash")
	if err != nil {
		return DeactivationLinkInfo{}, err
	}
	link, err := s.sessions.GetDeactivationLink(ctx, linkHash)
	if err != nil {
		return DeactivationLinkInfo{}, storeErr(ctx, "resolve_deactivation_link", err)
	}
	return DeactivationLinkInfo{
		SessionID: link.SessionID,
		IsUsed:    link.IsUsed,
		CreatedAt: link.CreatedAt,
	}, nil
}

// ConsumeDeactivationLink marks the link used and kills its session. Links work once.
func (s *Service) ConsumeDeactivationLink(ctx context.Context, linkHash string) error {
	linkHash, err := requireField(linkHash, "link hash")
	if err != nil {
		return err
	}
	link, err := s.sessions.ConsumeDeactivationLink(ctx, linkHash, s.nowFn())
	if err != nil {
		return storeErr(ctx, "consume_deactivation_link", err)
	}
	appLogger().InfoContext(ctx, "session deactivated by link",
		"operation", "consume_deactivation_link",
		"outcome", "success",
		"session_ref", shortID(link.SessionID),
	)
	return nil
}

func (s *Service) loadSession(ctx context.Context, sessionID string) (domain.Session, error) {
	sessionID, err := requireField(sessionID, "session id")
	if err != nil {
		return domain.Session{}, err
	}
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return domain.Session{}, storeErr(ctx, "get_session", err)
	}

	now := s.nowFn()
	if session.Expired(now) {
		if session.IsActive {
			if _, err := s.sessions.ExpireIfPast(ctx, sessionID, now); err != nil {
				appLogger().WarnContext(ctx, "lazy session expiry not persisted",
					"operation", "expire_session",
					"outcome", "failure",
					"session_ref", shortID(sessionID),
					"error", err,
				)
			}
		}
		return domain.Session{}, domain.ErrSessionExpired
	}

	if session.IsActive {
		if err := s.sessions.TouchAccess(ctx, sessionID, now); err != nil {
			appLogger().WarnContext(ctx, "session access time not updated",
				"operation", "touch_session",
				"outcome", "failure",
				"session_ref", shortID(sessionID),
				"error", err,
			)
		} else {
			session.LastAccessed = now
		}
	}
	return session, nil
}

func (s *Service) requireActiveSession(ctx context.Context, sessionID string) (domain.Session, error) {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return domain.Session{}, err
	}
	if !session.IsActive {
		return domain.Session{}, domain.ErrSessionInactive
	}
	return session, nil
}
