package application

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/core-platform/M04-credential-lifecycle-service/internal/domain"
	"github.com/viralforge/mesh/services/core-platform/M04-credential-lifecycle-service/internal/ports"
)

// CreateAccount registers a user whose email has been verified. The verified record
// is consumed by the insert.
func (s *Service) CreateAccount(ctx context.Context, req CreateAccountRequest) (UserInfo, error) {
	email, err := domain.NormalizeEmail(req.Email)
	if err != nil {
		return UserInfo{}, err
	}
	if err := domain.ValidatePassword(req.Password); err != nil {
		return UserInfo{}, err
	}
	name := strings.TrimSpace(req.Name)
	if err := domain.ValidateName(name); err != nil {
		return UserInfo{}, err
	}

	hash, salt, err := s.newCredential(ctx, req.Password)
	if err != nil {
		return UserInfo{}, err
	}
	user, err := s.users.CreateVerified(ctx, ports.CreateUserParams{
		UserID:       uuid.New(),
		Email:        email,
		PasswordHash: hash,
		Salt:         salt,
		Name:         name,
		CreatedAt:    s.nowFn(),
	})
	if err != nil {
		return UserInfo{}, storeErr(ctx, "create_account", err)
	}

	appLogger().InfoContext(ctx, "account created",
		"operation", "create_account",
		"outcome", "success",
		"user_id", user.UserID.String(),
	)
	s.notify(ctx, domain.NotificationAccountCreated, user.Email, &user.UserID, map[string]string{
		"name": user.Name,
	})
	return toUserInfo(user), nil
}

func (s *Service) GetAccount(ctx context.Context, userID uuid.UUID) (UserInfo, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return UserInfo{}, storeErr(ctx, "get_account", err)
	}
	return toUserInfo(user), nil
}

// CurrentAccount resolves the user behind an active session.
func (s *Service) CurrentAccount(ctx context.Context, sessionID string) (UserInfo, error) {
	session, err := s.requireActiveSession(ctx, sessionID)
	if err != nil {
		return UserInfo{}, err
	}
	return s.GetAccount(ctx, session.UserID)
}

// DeleteAccount removes an account after re-checking its credentials. Sessions are
// deactivated in the same transaction; the rows stay for audit.
func (s *Service) DeleteAccount(ctx context.Context, email, password string) error {
	userID, err := s.ValidateByEmail(ctx, email, password)
	if err != nil {
		return err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return storeErr(ctx, "delete_account", err)
	}
	if err := s.users.SoftDelete(ctx, userID, s.nowFn()); err != nil {
		return storeErr(ctx, "delete_account", err)
	}

	appLogger().InfoContext(ctx, "account deleted",
		"operation", "delete_account",
		"outcome", "success",
		"user_id", userID.String(),
	)
	s.notify(ctx, domain.NotificationAccountDeleted, user.Email, &userID, map[string]string{
		"name": user.Name,
	})
	return nil
}

func (s *Service) ChangeName(ctx context.Context, sessionID, name string) error {
	session, err := s.requireActiveSession(ctx, sessionID)
	if err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if err := domain.ValidateName(name); err != nil {
		return err
	}
	if err := s.users.UpdateName(ctx, session.UserID, name, s.nowFn()); err != nil {
		return storeErr(ctx, "change_name", err)
	}
	return nil
}

func (s *Service) ChangeProfileImage(ctx context.Context, sessionID, profileURL string) error {
	session, err := s.requireActiveSession(ctx, sessionID)
	if err != nil {
		return err
	}
	profileURL = strings.TrimSpace(profileURL)
	if err := domain.ValidateProfileURL(profileURL); err != nil {
		return err
	}
	if err := s.users.UpdateProfileURL(ctx, session.UserID, profileURL, s.nowFn()); err != nil {
		return storeErr(ctx, "change_profile_image", err)
	}
	return nil
}
