package application

import (
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/core-platform/M04-credential-lifecycle-service/internal/domain"
)

type Config struct {
	SessionTTL              time.Duration
	VerificationCooldown    time.Duration
	VerificationCodeTTL     time.Duration
	VerificationMaxAttempts int
	VerificationCodeDigits  int
	ResetLinkTTL            time.Duration
	FailedLoginThreshold    int
	LockoutDuration         time.Duration
}

// DefaultConfig returns the production lifecycle windows.
func DefaultConfig() Config {
	return Config{
		SessionTTL:              31 * 24 * time.Hour,
		VerificationCooldown:    time.Minute,
		VerificationCodeTTL:     3 * time.Minute,
		VerificationMaxAttempts: 5,
		VerificationCodeDigits:  6,
		ResetLinkTTL:            3 * time.Minute,
		FailedLoginThreshold:    5,
		LockoutDuration:         30 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SessionTTL <= 0 {
		c.SessionTTL = d.SessionTTL
	}
	if c.VerificationCooldown <= 0 {
		c.VerificationCooldown = d.VerificationCooldown
	}
	if c.VerificationCodeTTL <= 0 {
		c.VerificationCodeTTL = d.VerificationCodeTTL
	}
	if c.VerificationMaxAttempts <= 0 {
		c.VerificationMaxAttempts = d.VerificationMaxAttempts
	}
	if c.VerificationCodeDigits <= 0 {
		c.VerificationCodeDigits = d.VerificationCodeDigits
	}
	if c.ResetLinkTTL <= 0 {
		c.ResetLinkTTL = d.ResetLinkTTL
	}
	if c.LockoutDuration <= 0 {
		c.LockoutDuration = d.LockoutDuration
	}
	return c
}

// LoginRequest is the login body. UserAgent and IPAddress come from the transport,
// never from the client payload.
type LoginRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	UserAgent string `json:"-"`
	IPAddress string `json:"-"`
}

type LoginResult struct {
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type SessionInfo struct {
	SessionID    string    `json:"session_id"`
	UserID       uuid.UUID `json:"user_id"`
	UserAgent    string    `json:"user_agent"`
	IPAddress    string    `json:"ip_address"`
	IsActive     bool      `json:"is_active"`
	LastAccessed time.Time `json:"last_accessed"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}

type DeactivationLinkInfo struct {
	SessionID string    `json:"session_id"`
	IsUsed    bool      `json:"is_used"`
	CreatedAt time.Time `json:"created_at"`
}

type ResetLinkInfo struct {
	Email     string    `json:"email"`
	IsUsed    bool      `json:"is_used"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type UserInfo struct {
	UserID     uuid.UUID `json:"user_id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	ProfileURL string    `json:"profile_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type CreateAccountRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type ChangePasswordRequest struct {
	SessionID       string `json:"-"`
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func toSessionInfo(s domain.Session, now time.Time) SessionInfo {
	return SessionInfo{
		SessionID:    s.SessionID,
		UserID:       s.UserID,
		UserAgent:    s.UserAgent,
		IPAddress:    s.IPAddress,
		IsActive:     s.IsActive && !s.Expired(now),
		LastAccessed: s.LastAccessed,
		ExpiresAt:    s.ExpiresAt,
		CreatedAt:    s.CreatedAt,
	}
}

func toUserInfo(u domain.User) UserInfo {
	return UserInfo{
		UserID:     u.UserID,
		Email:      u.Email,
		Name:       u.Name,
		ProfileURL: u.ProfileURL,
		CreatedAt:  u.CreatedAt,
	}
}
