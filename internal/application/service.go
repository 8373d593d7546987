package application

import (
	"sync"
	"time"

	"github.com/viralforge/mesh/services/core-platform/M04-credential-lifecycle-service/internal/ports"
)

// Service implements the credential validator and the session, verification and
// password reset managers. Every method re-reads authoritative state from the store.
type Service struct {
	cfg           Config
	users         ports.UserRepository
	sessions      ports.SessionRepository
	verifications ports.EmailVerificationRepository
	resets        ports.PasswordResetRepository
	lockouts      ports.LockoutStore
	notifier      ports.NotificationGateway
	hasher        ports.PasswordHasher
	tokens        ports.TokenSource
	nowFn         func() time.Time

	decoyOnce sync.Once
	decoyHash string
	decoySalt string
}

// Dependencies lists the ports a Service needs. Lockouts may be nil to disable login lockout.
type Dependencies struct {
	Config        Config
	Users         ports.UserRepository
	Sessions      ports.SessionRepository
	Verifications ports.EmailVerificationRepository
	Resets        ports.PasswordResetRepository
	Lockouts      ports.LockoutStore
	Notifier      ports.NotificationGateway
	Hasher        ports.PasswordHasher
	Tokens        ports.TokenSource
	Clock         func() time.Time
}

func NewService(deps Dependencies) *Service {
	nowFn := deps.Clock
	if nowFn == nil {
		nowFn = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		cfg:           deps.Config.withDefaults(),
		users:         deps.Users,
		sessions:      deps.Sessions,
		verifications: deps.Verifications,
		resets:        deps.Resets,
		lockouts:      deps.Lockouts,
		notifier:      deps.Notifier,
		hasher:        deps.Hasher,
		tokens:        deps.Tokens,
		nowFn:         func() time.Time { return nowFn().UTC() },
	}
}
