package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is the identity record. PasswordHash and Salt never leave the service.
type User struct {
	UserID       uuid.UUID
	Email        string
	PasswordHash string
	Salt         string
	Name         string
	ProfileURL   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
}

// Session is one authenticated client. Rows are never deleted, only flagged inactive.
type Session struct {
	SessionID    string
	UserID       uuid.UUID
	UserAgent    string
	IPAddress    string
	IsActive     bool
	LastAccessed time.Time
	ExpiresAt    time.Time
	CreatedAt    time.Time
}

// Expired reports whether now is past the session's expiry.
func (s Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// SessionDeactivationLink lets the owner kill a session from the notification it received.
type SessionDeactivationLink struct {
	LinkHash  string
	SessionID string
	IsUsed    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EmailVerification is keyed by email because the user may not exist yet.
type EmailVerification struct {
	Email        string
	Code         string
	IsVerified   bool
	AttemptCount int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PasswordResetLink is a one-time link addressed to an email.
type PasswordResetLink struct {
	LinkHash  string
	Email     string
	IsUsed    bool
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Usable reports whether the link can still complete a reset at now given its ttl.
func (l PasswordResetLink) Usable(now time.Time, ttl time.Duration) bool {
	return !l.IsUsed && l.IsActive && !WindowExpired(l.CreatedAt, now, ttl)
}
