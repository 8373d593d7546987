package postgres

import (
	"errors"
	"strings"

	"github.com/viralforge/mesh/services/core-platform/M04-credential-lifecycle-service/internal/domain"
	"github.com/viralforge/mesh/services/core-platform/M04-credential-lifecycle-service/internal/ports"
	"gorm.io/gorm"
)

func toDomainUser(row userModel) domain.User {
	return domain.User{
		UserID:       row.UserID,
		Email:        row.Email,
		PasswordHash: row.PasswordHash,
		Salt:         row.Salt,
		Name:         row.Name,
		ProfileURL:   row.ProfileURL,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
		DeletedAt:    row.DeletedAt,
	}
}

func toDomainSession(row sessionModel) domain.Session {
	ip := ""
	if row.IPAddress != nil {
		ip = *row.IPAddress
	}
	return domain.Session{
		SessionID:    row.SessionID,
		UserID:       row.UserID,
		UserAgent:    row.UserAgent,
		IPAddress:    ip,
		IsActive:     row.IsActive,
		LastAccessed: row.LastAccessed,
		ExpiresAt:    row.ExpiresAt,
		CreatedAt:    row.CreatedAt,
	}
}

func toDomainDeactivationLink(row deactivationLinkModel) domain.SessionDeactivationLink {
	return domain.SessionDeactivationLink{
		LinkHash:  row.LinkHash,
		SessionID: row.SessionID,
		IsUsed:    row.IsUsed,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

func toDomainVerification(row emailVerificationModel) domain.EmailVerification {
	return domain.EmailVerification{
		Email:        row.Email,
		Code:         row.Code,
		IsVerified:   row.IsVerified,
		AttemptCount: row.AttemptCount,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}

func toDomainResetLink(row passwordResetLinkModel) domain.PasswordResetLink {
	return domain.PasswordResetLink{
		LinkHash:  row.LinkHash,
		Email:     row.Email,
		IsUsed:    row.IsUsed,
		IsActive:  row.IsActive,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

func toOutboxRecord(row notificationOutboxModel) ports.OutboxRecord {
	return ports.OutboxRecord{
		OutboxID:       row.OutboxID,
		EventType:      row.EventType,
		PartitionKey:   row.PartitionKey,
		Payload:        []byte(row.Payload),
		RetryCount:     row.RetryCount,
		LastError:      row.LastError,
		CreatedAt:      row.CreatedAt,
		PublishedAt:    row.PublishedAt,
		LastErrorAt:    row.LastErrorAt,
		ClaimToken:     row.ClaimToken,
		ClaimUntil:     row.ClaimUntil,
		DeadLetteredAt: row.DeadLetteredAt,
	}
}

func nullableString(v string) *string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// notFound maps gorm's missing-row error onto the domain sentinel.
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	return err
}
