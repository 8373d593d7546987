package postgres

import (
	"time"

	"github.com/google/uuid"
)

type userModel struct {
	UserID       uuid.UUID  `gorm:"column:user_id;type:uuid;primaryKey"`
	Email        string     `gorm:"column:email"`
	PasswordHash string     `gorm:"column:password_hash"`
	Salt         string     `gorm:"column:salt"`
	Name         string     `gorm:"column:name"`
	ProfileURL   string     `gorm:"column:profile_url"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	UpdatedAt    time.Time  `gorm:"column:updated_at"`
	DeletedAt    *time.Time `gorm:"column:deleted_at"`
}

func (userModel) TableName() string { return "users" }

type sessionModel struct {
	SessionID    string    `gorm:"column:session_id;primaryKey"`
	UserID       uuid.UUID `gorm:"column:user_id;type:uuid"`
	UserAgent    string    `gorm:"column:user_agent"`
	IPAddress    *string   `gorm:"column:ip_address"`
	IsActive     bool      `gorm:"column:is_active"`
	LastAccessed time.Time `gorm:"column:last_accessed"`
	ExpiresAt    time.Time `gorm:"column:expires_at"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (sessionModel) TableName() string { return "sessions" }

type deactivationLinkModel struct {
	LinkHash  string    `gorm:"column:link_hash;primaryKey"`
	SessionID string    `gorm:"column:session_id"`
	IsUsed    bool      `gorm:"column:is_used"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (deactivationLinkModel) TableName() string { return "session_deactivation_links" }

type emailVerificationModel struct {
	Email        string    `gorm:"column:email;primaryKey"`
	Code         string    `gorm:"column:code"`
	IsVerified   bool      `gorm:"column:is_verified"`
	AttemptCount int       `gorm:"column:attempt_count"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (emailVerificationModel) TableName() string { return "email_verifications" }

type passwordResetLinkModel struct {
	LinkHash  string    `gorm:"column:link_hash;primaryKey"`
	Email     string    `gorm:"column:email"`
	IsUsed    bool      `gorm:"column:is_used"`
	IsActive  bool      `gorm:"column:is_active"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (passwordResetLinkModel) TableName() string { return "password_reset_links" }

type notificationOutboxModel struct {
	OutboxID       uuid.UUID  `gorm:"column:outbox_id;type:uuid;primaryKey"`
	EventType      string     `gorm:"column:event_type"`
	PartitionKey   string     `gorm:"column:partition_key"`
	Payload        string     `gorm:"column:payload;type:jsonb"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	PublishedAt    *time.Time `gorm:"column:published_at"`
	RetryCount     int        `gorm:"column:retry_count"`
	LastError      *string    `gorm:"column:last_error"`
	LastErrorAt    *time.Time `gorm:"column:last_error_at"`
	ClaimToken     *string    `gorm:"column:claim_token"`
	ClaimUntil     *time.Time `gorm:"column:claim_until"`
	DeadLetteredAt *time.Time `gorm:"column:dead_lettered_at"`
}

func (notificationOutboxModel) TableName() string { return "notification_outbox" }
