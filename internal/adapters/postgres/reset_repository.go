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

type resetRepository struct {
	db *gorm.DB
}

// Issue locks the owner row, so the outstanding check and the insert cannot interleave
// with a concurrent request for the same email.
func (r *resetRepository) Issue(ctx context.Context, params ports.ResetIssueParams) (ports.ResetIssueResult, error) {
	var result ports.ResetIssueResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockLiveUserByEmail(tx, params.Email); err != nil {
			return err
		}

		var outstanding []passwordResetLinkModel
		if err := tx.Where("email = ?", params.Email).
			Where("NOT is_used").
			Where("is_active").
			Where("created_at >= ?", params.CooldownStart).
			Order("created_at DESC").
			Limit(1).
			Find(&outstanding).Error; err != nil {
			return err
		}
		if len(outstanding) > 0 {
			result = ports.ResetIssueResult{Link: toDomainResetLink(outstanding[0]), Outstanding: true}
			return nil
		}

		if err := tx.Model(&passwordResetLinkModel{}).
			Where("email = ?", params.Email).
			Where("NOT is_used").
			Where("is_active").
			Updates(map[string]any{
				"is_active":  false,
				"updated_at": params.IssuedAt,
			}).Error; err != nil {
			return err
		}

		rec := passwordResetLinkModel{
			LinkHash:  params.LinkHash,
			Email:     params.Email,
			IsActive:  true,
			CreatedAt: params.IssuedAt,
			UpdatedAt: params.IssuedAt,
		}
		if err := tx.Create(&rec).Error; err != nil {
			if isUniqueViolation(err) {
				return domain.ErrConflict
			}
			return err
		}
		result = ports.ResetIssueResult{Link: toDomainResetLink(rec)}
		return nil
	})
	if err != nil {
		return ports.ResetIssueResult{}, err
	}
	return result, nil
}

func (r *resetRepository) GetByHash(ctx context.Context, linkHash string) (domain.PasswordResetLink, error) {
	var rec passwordResetLinkModel
	if err := r.db.WithContext(ctx).Where("link_hash = ?", linkHash).Take(&rec).Error; err != nil {
		return domain.PasswordResetLink{}, notFound(err)
	}
	return toDomainResetLink(rec), nil
}

func (r *resetRepository) ExpireIfStale(ctx context.Context, linkHash string, cutoff, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&passwordResetLinkModel{}).
		Where("link_hash = ?", linkHash).
		Where("NOT is_used").
		Where("is_active").
		Where("created_at < ?", cutoff).
		Updates(map[string]any{
			"is_active":  false,
			"updated_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *resetRepository) Complete(ctx context.Context, params ports.ResetCompletion) (uuid.UUID, error) {
	var userID uuid.UUID
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var link passwordResetLinkModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("link_hash = ?", params.LinkHash).
			Take(&link).Error; err != nil {
			return notFound(err)
		}
		switch {
		case link.IsUsed:
			return domain.ErrTokenConsumed
		case !link.IsActive, link.CreatedAt.Before(params.ValidAfter):
			return domain.ErrTokenExpired
		}

		owner, err := lockLiveUserByEmail(tx, link.Email)
		if err != nil {
			return err
		}

		if err := tx.Model(&passwordResetLinkModel{}).
			Where("link_hash = ?", link.LinkHash).
			Updates(map[string]any{
				"is_used":    true,
				"is_active":  false,
				"updated_at": params.CompletedAt,
			}).Error; err != nil {
			return err
		}
		if err := tx.Model(&userModel{}).
			Where("user_id = ?", owner.UserID).
			Updates(map[string]any{
				"password_hash": params.PasswordHash,
				"salt":          params.Salt,
				"updated_at":    params.CompletedAt,
			}).Error; err != nil {
			return err
		}
		if err := deactivateUserSessions(tx, owner.UserID, params.CompletedAt); err != nil {
			return err
		}
		userID = owner.UserID
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return userID, nil
}

func lockLiveUserByEmail(tx *gorm.DB, email string) (userModel, error) {
	var owner userModel
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("email = ?", email).
		Where("deleted_at IS NULL").
		Take(&owner).Error; err != nil {
		return userModel{}, notFound(err)
	}
	return owner, nil
}
