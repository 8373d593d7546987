package postgres

import (
	"github.com/viralforge/mesh/services/core-platform/M04-credential-lifecycle-service/internal/ports"
	"gorm.io/gorm"
)

type Repositories struct {
	Users         ports.UserRepository
	Sessions      ports.SessionRepository
	Verifications ports.EmailVerificationRepository
	Resets        ports.PasswordResetRepository
	Outbox        ports.OutboxRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Users:         &userRepository{db: db},
		Sessions:      &sessionRepository{db: db},
		Verifications: &verificationRepository{db: db},
		Resets:        &resetRepository{db: db},
		Outbox:        &outboxRepository{db: db},
	}
}
