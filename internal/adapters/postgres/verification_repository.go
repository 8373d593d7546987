package postgres

import (
	"context"
	"time"

	"github.com/viralforge/mesh/services/core-platform/M04-credential-lifecycle-service/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type verificationRepository struct {
	db *gorm.DB
}

func (r *verificationRepository) Get(ctx context.Context, email string) (domain.EmailVerification, error) {
	var rec emailVerificationModel
	if err := r.db.WithContext(ctx).Where("email = ?", email).Take(&rec).Error; err != nil {
		return domain.EmailVerification{}, notFound(err)
	}
	return toDomainVerification(rec), nil
}

func (r *verificationRepository) Create(ctx context.Context, email, code string, at time.Time) (domain.EmailVerification, error) {
	rec := emailVerificationModel{
		Email:     email,
		Code:      code,
		CreatedAt: at,
		UpdatedAt: at,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.EmailVerification{}, domain.ErrConflict
		}
		return domain.EmailVerification{}, err
	}
	return toDomainVerification(rec), nil
}

// Reissue is a single conditional update so two resends inside one cooldown cannot both win.
func (r *verificationRepository) Reissue(ctx context.Context, email, code string, at, notAfter time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&emailVerificationModel{}).
		Where("email = ?", email).
		Where("created_at <= ?", notAfter).
		Updates(map[string]any{
			"code":          code,
			"is_verified":   false,
			"attempt_count": 0,
			"created_at":    at,
			"updated_at":    at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *verificationRepository) RecordAttempt(ctx context.Context, email string, at time.Time) (domain.EmailVerification, error) {
	var rec emailVerificationModel
	res := r.db.WithContext(ctx).
		Model(&rec).
		Clauses(clause.Returning{}).
		Where("email = ?", email).
		Where("NOT is_verified").
		Updates(map[string]any{
			"attempt_count": gorm.Expr("attempt_count + 1"),
			"updated_at":    at,
		})
	if res.Error != nil {
		return domain.EmailVerification{}, res.Error
	}
	if res.RowsAffected == 0 {
		existing, err := r.Get(ctx, email)
		if err != nil {
			return domain.EmailVerification{}, err
		}
		if existing.IsVerified {
			return domain.EmailVerification{}, domain.ErrAlreadyVerified
		}
		return domain.EmailVerification{}, domain.ErrNotFound
	}
	return toDomainVerification(rec), nil
}

func (r *verificationRepository) MarkVerified(ctx context.Context, email string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&emailVerificationModel{}).
		Where("email = ?", email).
		Where("NOT is_verified").
		Updates(map[string]any{
			"is_verified": true,
			"updated_at":  at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
