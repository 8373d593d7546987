package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/core-platform/M04-credential-lifecycle-service/internal/domain"
)

// CreateUserParams is the insert payload for a new account.
type CreateUserParams struct {
	UserID       uuid.UUID
	Email        string
	PasswordHash string
	Salt         string
	Name         string
	CreatedAt    time.Time
}

// PasswordRotation replaces a user's credential.
type PasswordRotation struct {
	UserID       uuid.UUID
	PasswordHash string
	Salt         string
	RotatedAt    time.Time
}

// UserRepository owns user records. Lookups ignore soft-deleted accounts.
type UserRepository interface {
	// CreateVerified inserts the user and consumes the verified email record in one transaction.
	// It fails with domain.ErrEmailNotVerified without a verified record and domain.ErrConflict on a taken email.
	CreateVerified(ctx context.Context, params CreateUserParams) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByID(ctx context.Context, userID uuid.UUID) (domain.User, error)
	UpdateName(ctx context.Context, userID uuid.UUID, name string, at time.Time) error
	UpdateProfileURL(ctx context.Context, userID uuid.UUID, profileURL string, at time.Time) error
	// RotatePassword swaps hash and salt and deactivates every session of the user atomically.
	RotatePassword(ctx context.Context, params PasswordRotation) error
	// SoftDelete deactivates every session of the user and marks the user deleted atomically.
	SoftDelete(ctx context.Context, userID uuid.UUID, at time.Time) error
}

// SessionCreateParams carries a new session and the deactivation link minted with it.
type SessionCreateParams struct {
	SessionID string
	UserID    uuid.UUID
	UserAgent string
	IPAddress string
	LinkHash  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// SessionRepository manages session rows and their deactivation links.
// Mutations are conditional updates; the bool results report whether a row changed.
type SessionRepository interface {
	// CreateExclusive inserts the session and its deactivation link, then demotes every
	// other active session of the same user, all in one transaction.
	CreateExclusive(ctx context.Context, params SessionCreateParams) (domain.Session, domain.SessionDeactivationLink, error)
	GetByID(ctx context.Context, sessionID string) (domain.Session, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Session, error)
	TouchAccess(ctx context.Context, sessionID string, at time.Time) error
	Deactivate(ctx context.Context, sessionID string, at time.Time) (bool, error)
	// ExpireIfPast flips an active session inactive when its expiry is before now.
	ExpireIfPast(ctx context.Context, sessionID string, now time.Time) (bool, error)
	DeactivateAllByUser(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error)
	GetDeactivationLink(ctx context.Context, linkHash string) (domain.SessionDeactivationLink, error)
	// ConsumeDeactivationLink marks the link used and deactivates its session in one transaction.
	// A link that is already used fails with domain.ErrTokenConsumed.
	ConsumeDeactivationLink(ctx context.Context, linkHash string, at time.Time) (domain.SessionDeactivationLink, error)
}

// EmailVerificationRepository owns verification records keyed by email.
type EmailVerificationRepository interface {
	Get(ctx context.Context, email string) (domain.EmailVerification, error)
	// Create inserts a first record and fails with domain.ErrConflict when one exists.
	Create(ctx context.Context, email, code string, at time.Time) (domain.EmailVerification, error)
	// Reissue resets code, attempts, verified flag and creation time, but only for a
	// record created at or before notAfter.
	Reissue(ctx context.Context, email, code string, at, notAfter time.Time) (bool, error)
	// RecordAttempt increments the attempt counter of an unverified record and returns the
	// new state. It fails with domain.ErrAlreadyVerified for a verified record.
	RecordAttempt(ctx context.Context, email string, at time.Time) (domain.EmailVerification, error)
	MarkVerified(ctx context.Context, email string, at time.Time) (bool, error)
}

// ResetIssueParams describes a reset link request. Links created at or after CooldownStart
// are still outstanding and block a new issue.
type ResetIssueParams struct {
	Email         string
	LinkHash      string
	IssuedAt      time.Time
	CooldownStart time.Time
}

// ResetIssueResult holds the new link, or the outstanding one when Outstanding is set.
type ResetIssueResult struct {
	Link        domain.PasswordResetLink
	Outstanding bool
}

// ResetCompletion applies a new credential through a reset link created at or after ValidAfter.
type ResetCompletion struct {
	LinkHash     string
	PasswordHash string
	Salt         string
	ValidAfter   time.Time
	CompletedAt  time.Time
}

// PasswordResetRepository owns reset links.
type PasswordResetRepository interface {
	// Issue deactivates stale unused links for the email and inserts a new one, unless an
	// outstanding link exists. Fails with domain.ErrNotFound for an unknown email.
	Issue(ctx context.Context, params ResetIssueParams) (ResetIssueResult, error)
	GetByHash(ctx context.Context, linkHash string) (domain.PasswordResetLink, error)
	// ExpireIfStale flips an unused active link inactive when it was created before cutoff.
	ExpireIfStale(ctx context.Context, linkHash string, cutoff, at time.Time) (bool, error)
	// Complete marks the link used, rotates the owner's credential and deactivates the
	// owner's sessions in one transaction, returning the owner id. Nothing is written
	// for a used link (domain.ErrTokenConsumed) or a stale one (domain.ErrTokenExpired).
	Complete(ctx context.Context, params ResetCompletion) (uuid.UUID, error)
}

// OutboxEvent is the write-side event payload prior to storage.
type OutboxEvent struct {
	EventID      uuid.UUID
	EventType    string
	PartitionKey string
	Payload      []byte
	OccurredAt   time.Time
}

// OutboxRecord represents durable outbox state, including retry/error metadata.
type OutboxRecord struct {
	OutboxID       uuid.UUID
	EventType      string
	PartitionKey   string
	Payload        []byte
	RetryCount     int
	LastError      *string
	CreatedAt      time.Time
	PublishedAt    *time.Time
	LastErrorAt    *time.Time
	ClaimToken     *string
	ClaimUntil     *time.Time
	DeadLetteredAt *time.Time
}

// OutboxRepository controls the publish-retry workflow for notifications.
type OutboxRepository interface {
	Enqueue(ctx context.Context, event OutboxEvent) error
	ClaimUnpublished(ctx context.Context, limit int, claimToken string, claimUntil time.Time) ([]OutboxRecord, error)
	MarkPublished(ctx context.Context, outboxID uuid.UUID, claimToken string, at time.Time) error
	MarkFailed(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
	MarkDeadLettered(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
}
