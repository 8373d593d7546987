package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/core-platform/M04-credential-lifecycle-service/internal/domain"
	"github.com/viralforge/mesh/services/core-platform/M04-credential-lifecycle-service/internal/ports"
	"gorm.io/gorm"
)

type userRepository struct {
	db *gorm.DB
}

func (r *userRepository) CreateVerified(ctx context.Context, params ports.CreateUserParams) (domain.User, error) {
	var result domain.User
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("email = ?", params.Email).
			Where("is_verified").
			Delete(&emailVerificationModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrEmailNotVerified
		}

		rec := userModel{
			UserID:       params.UserID,
			Email:        params.Email,
			PasswordHash: params.PasswordHash,
			Salt:         params.Salt,
			Name:         params.Name,
			CreatedAt:    params.CreatedAt,
			UpdatedAt:    params.CreatedAt,
		}
		if err := tx.Create(&rec).Error; err != nil {
			if isUniqueViolation(err) {
				return domain.ErrConflict
			}
			return err
		}
		result = toDomainUser(rec)
		return nil
	})
	if err != nil {
		return domain.User{}, err
	}
	return result, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	var rec userModel
	err := r.db.WithContext(ctx).
		Where("email = ?", email).
		Where("deleted_at IS NULL").
		Take(&rec).Error
	if err != nil {
		return domain.User{}, notFound(err)
	}
	return toDomainUser(rec), nil
}

func (r *userRepository) GetByID(ctx context.Context, userID uuid.UUID) (domain.User, error) {
	var rec userModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("deleted_at IS NULL").
		Take(&rec).Error
	if err != nil {
		return domain.User{}, notFound(err)
	}
	return toDomainUser(rec), nil
}

func (r *userRepository) UpdateName(ctx context.Context, userID uuid.UUID, name string, at time.Time) error {
	return r.updateLive(ctx, userID, map[string]any{
		"name":       name,
		"updated_at": at,
	})
}

func (r *userRepository) UpdateProfileURL(ctx context.Context, userID uuid.UUID, profileURL string, at time.Time) error {
	return r.updateLive(ctx, userID, map[string]any{
		"profile_url": profileURL,
		"updated_at":  at,
	})
}

func (r *userRepository) RotatePassword(ctx context.Context, params ports.PasswordRotation) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&userModel{}).
			Where("user_id = ?", params.UserID).
			Where("deleted_at IS NULL").
			Updates(map[string]any{
				"password_hash": params.PasswordHash,
				"salt":          params.Salt,
				"updated_at":    params.RotatedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return deactivateUserSessions(tx, params.UserID, params.RotatedAt)
	})
}

func (r *userRepository) SoftDelete(ctx context.Context, userID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deactivateUserSessions(tx, userID, at); err != nil {
			return err
		}
		res := tx.Model(&userModel{}).
			Where("user_id = ?", userID).
			Where("deleted_at IS NULL").
			Updates(map[string]any{
				"deleted_at": at,
				"updated_at": at,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

func (r *userRepository) updateLive(ctx context.Context, userID uuid.UUID, values map[string]any) error {
	res := r.db.WithContext(ctx).
		Model(&userModel{}).
		Where("user_id = ?", userID).
		Where("deleted_at IS NULL").
		Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func deactivateUserSessions(tx *gorm.DB, userID uuid.UUID, at time.Time) error {
	return tx.Model(&sessionModel{}).
		Where("user_id = ?", userID).
		Where("is_active").
		Updates(map[string]any{
			"is_active":  false,
			"updated_at": at,
		}).Error
}
