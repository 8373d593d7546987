package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/viralforge/mesh/services/core-platform/M04-credential-lifecycle-service/internal/adapters/metrics"
	"github.com/viralforge/mesh/services/core-platform/M04-credential-lifecycle-service/internal/application"
)

// CredentialService is the slice of the application layer the HTTP adapter drives.
type CredentialService interface {
	CreateSession(ctx context.Context, req application.LoginRequest) (application.LoginResult, error)
	GetSession(ctx context.Context, sessionID string) (application.SessionInfo, error)
	ListSessions(ctx context.Context, sessionID string) ([]application.SessionInfo, error)
	DeactivateSession(ctx context.Context, sessionID string) error
	ResolveDeactivationLink(ctx context.Context, linkHash string) (application.DeactivationLinkInfo, error)
	ConsumeDeactivationLink(ctx context.Context, linkHash string) error

	SendVerificationCode(ctx context.Context, email string) error
	VerifyCode(ctx context.Context, email, code string) error

	RequestReset(ctx context.Context, email string) error
	ResolveResetLink(ctx context.Context, linkHash string) (application.ResetLinkInfo, error)
	CompleteReset(ctx context.Context, linkHash, newPassword string) error
	ChangePassword(ctx context.Context, req application.ChangePasswordRequest) error

	CreateAccount(ctx context.Context, req application.CreateAccountRequest) (application.UserInfo, error)
	CurrentAccount(ctx context.Context, sessionID string) (application.UserInfo, error)
	DeleteAccount(ctx context.Context, email, password string) error
	ChangeName(ctx context.Context, sessionID, name string) error
	ChangeProfileImage(ctx context.Context, sessionID, profileURL string) error
}

// ReadinessCheck reports whether backing stores are reachable.
type ReadinessCheck func(ctx context.Context) error

type Handler struct {
	service        CredentialService
	metrics        *metrics.Metrics
	ready          ReadinessCheck
	metricsHandler http.Handler
}

// Options carries the optional collaborators of the router.
type Options struct {
	Metrics        *metrics.Metrics
	Ready          ReadinessCheck
	MetricsHandler http.Handler
}

func NewHandler(service CredentialService, opts Options) *Handler {
	return &Handler{
		service:        service,
		metrics:        opts.Metrics,
		ready:          opts.Ready,
		metricsHandler: opts.MetricsHandler,
	}
}

// NewRouter registers the credential routes under /auth/v1 with the shared middleware stack.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)
	r.Use(handler.metricsMiddleware)

	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)
	if handler.metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", handler.metricsHandler)
	}

	r.Route("/auth/v1", func(r chi.Router) {
		r.Post("/sessions", handler.login)
		r.Delete("/sessions/current", handler.logout)
		r.Get("/sessions/deactivation-links/{link_hash}", handler.resolveDeactivationLink)
		r.Post("/sessions/deactivation-links/{link_hash}", handler.consumeDeactivationLink)

		r.Post("/email/code", handler.sendCode)
		r.Post("/email/verify", handler.verifyCode)

		r.Post("/password/reset-request", handler.requestReset)
		r.Get("/password/reset/{link_hash}", handler.resolveResetLink)
		r.Post("/password/reset/{link_hash}", handler.completeReset)

		r.Post("/accounts", handler.createAccount)
		r.Delete("/accounts", handler.deleteAccount)

		r.Group(func(r chi.Router) {
			r.Use(handler.authMiddleware)
			r.Get("/sessions", handler.listSessions)
			r.Get("/sessions/current", handler.currentSession)
			r.Post("/password/change", handler.changePassword)
			r.Patch("/profile/name", handler.changeName)
			r.Patch("/profile/image", handler.changeProfileImage)
			r.Get("/accounts/me", handler.currentAccount)
		})
	})

	return r
}
