package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/core-platform/M04-credential-lifecycle-service/internal/domain"
	"github.com/viralforge/mesh/services/core-platform/M04-credential-lifecycle-service/internal/ports"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type sessionRepository struct {
	db *gorm.DB
}

// CreateExclusive holds the user row lock for the whole transaction so concurrent
// logins of one user serialize and exactly one session ends up active.
func (r *sessionRepository) CreateExclusive(ctx context.Context, params ports.SessionCreateParams) (domain.Session, domain.SessionDeactivationLink, error) {
	var (
		session domain.Session
		link    domain.SessionDeactivationLink
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owner userModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("user_id").
			Where("user_id = ?", params.UserID).
			Where("deleted_at IS NULL").
			Take(&owner).Error; err != nil {
			return notFound(err)
		}

		rec := sessionModel{
			SessionID:    params.SessionID,
			UserID:       params.UserID,
			UserAgent:    params.UserAgent,
			IPAddress:    nullableString(params.IPAddress),
			IsActive:     true,
			LastAccessed: params.CreatedAt,
			ExpiresAt:    params.ExpiresAt,
			CreatedAt:    params.CreatedAt,
			UpdatedAt:    params.CreatedAt,
		}
		if err := tx.Create(&rec).Error; err != nil {
			if isUniqueViolation(err) {
				return domain.ErrConflict
			}
			return err
		}

		if err := tx.Model(&sessionModel{}).
			Where("user_id = ?", params.UserID).
			Where("session_id <> ?", params.SessionID).
			Where("is_active").
			Updates(map[string]any{
				"is_active":  false,
				"updated_at": params.CreatedAt,
			}).Error; err != nil {
			return err
		}

		linkRec := deactivationLinkModel{
			LinkHash:  params.LinkHash,
			SessionID: params.SessionID,
			CreatedAt: params.CreatedAt,
			UpdatedAt: params.CreatedAt,
		}
		if err := tx.Create(&linkRec).Error; err != nil {
			if isUniqueViolation(err) {
				return domain.ErrConflict
			}
			return err
		}

		session = toDomainSession(rec)
		link = toDomainDeactivationLink(linkRec)
		return nil
	})
	if err != nil {
		return domain.Session{}, domain.SessionDeactivationLink{}, err
	}
	return session, link, nil
}

func (r *sessionRepository) GetByID(ctx context.Context, sessionID string) (domain.Session, error) {
	var rec sessionModel
	if err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).Take(&rec).Error; err != nil {
		return domain.Session{}, notFound(err)
	}
	return toDomainSession(rec), nil
}

func (r *sessionRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Session, error) {
	var rows []sessionModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.Session, 0, len(rows))
	for _, item := range rows {
		result = append(result, toDomainSession(item))
	}
	return result, nil
}

func (r *sessionRepository) TouchAccess(ctx context.Context, sessionID string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&sessionModel{}).
		Where("session_id = ?", sessionID).
		Where("is_active").
		Update("last_accessed", at).Error
}

func (r *sessionRepository) Deactivate(ctx context.Context, sessionID string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&sessionModel{}).
		Where("session_id = ?", sessionID).
		Where("is_active").
		Updates(map[string]any{
			"is_active":  false,
			"updated_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *sessionRepository) ExpireIfPast(ctx context.Context, sessionID string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&sessionModel{}).
		Where("session_id = ?", sessionID).
		Where("is_active").
		Where("expires_at < ?", now).
		Updates(map[string]any{
			"is_active":  false,
			"updated_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *sessionRepository) DeactivateAllByUser(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&sessionModel{}).
		Where("user_id = ?", userID).
		Where("is_active").
		Updates(map[string]any{
			"is_active":  false,
			"updated_at": at,
		})
	return res.RowsAffected, res.Error
}

func (r *sessionRepository) GetDeactivationLink(ctx context.Context, linkHash string) (domain.SessionDeactivationLink, error) {
	var rec deactivationLinkModel
	if err := r.db.WithContext(ctx).Where("link_hash = ?", linkHash).Take(&rec).Error; err != nil {
		return domain.SessionDeactivationLink{}, notFound(err)
	}
	return toDomainDeactivationLink(rec), nil
}

func (r *sessionRepository) ConsumeDeactivationLink(ctx context.Context, linkHash string, at time.Time) (domain.SessionDeactivationLink, error) {
	var result domain.SessionDeactivationLink
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec deactivationLinkModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("link_hash = ?", linkHash).
			Take(&rec).Error; err != nil {
			return notFound(err)
		}
		if rec.IsUsed {
			return domain.ErrTokenConsumed
		}

		if err := tx.Model(&deactivationLinkModel{}).
			Where("link_hash = ?", linkHash).
			Updates(map[string]any{
				"is_used":    true,
				"updated_at": at,
			}).Error; err != nil {
			return err
		}
		if err := tx.Model(&sessionModel{}).
			Where("session_id = ?", rec.SessionID).
			Where("is_active").
			Updates(map[string]any{
				"is_active":  false,
				"updated_at": at,
			}).Error; err != nil {
			return err
		}

		rec.IsUsed = true
		rec.UpdatedAt = at
		result = toDomainDeactivationLink(rec)
		return nil
	})
	if err != nil {
		return domain.SessionDeactivationLink{}, err
	}
	return result, nil
}
