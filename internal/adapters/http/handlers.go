package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/viralforge/mesh/services/core-platform/M04-credential-lifecycle-service/internal/domain"
)

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, "ok")
}

func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.ready(ctx); err != nil {
			logHTTPOperationError(r.Context(), "readyz", http.StatusServiceUnavailable, "NOT_READY", "dependencies unavailable", err)
			writeError(w, http.StatusServiceUnavailable, "NOT_READY", "dependencies unavailable")
			return
		}
	}
	writeMessage(w, http.StatusOK, "ready")
}

// authMiddleware puts the bearer session id into the request context. The session
// itself is checked once, by the service call the handler makes.
func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := bearerTokenFromHeader(r.Header.Get("Authorization"))
		if err != nil {
			writeMissingBearerError(r.Context(), w, "authenticate")
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeySessionID, sessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// writeSessionError maps errors of bearer-authenticated calls. An unknown session id
// is a 401, not a 404.
func writeSessionError(ctx context.Context, w http.ResponseWriter, operation string, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		logHTTPOperationError(ctx, operation, http.StatusUnauthorized, "UNAUTHORIZED", "invalid session", nil)
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid session")
		return
	}
	writeMappedError(ctx, w, operation, err)
}
