package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/viralforge/mesh/services/core-platform/M04-credential-lifecycle-service/internal/application"
)

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req application.LoginRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "login", err)
		return
	}
	req.IPAddress = readIP(r)
	req.UserAgent = r.UserAgent()

	res, err := h.service.CreateSession(r.Context(), req)
	if err != nil {
		writeMappedError(r.Context(), w, "login", err)
		return
	}
	writeSuccess(w, http.StatusCreated, res)
}

func (h *Handler) currentSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDFromContext(r.Context())
	if !ok {
		writeMissingBearerError(r.Context(), w, "get_session")
		return
	}
	info, err := h.service.GetSession(r.Context(), sessionID)
	if err != nil {
		writeSessionError(r.Context(), w, "get_session", err)
		return
	}
	writeSuccess(w, http.StatusOK, info)
}

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDFromContext(r.Context())
	if !ok {
		writeMissingBearerError(r.Context(), w, "list_sessions")
		return
	}
	items, err := h.service.ListSessions(r.Context(), sessionID)
	if err != nil {
		writeSessionError(r.Context(), w, "list_sessions", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"sessions": items})
}

// logout sits outside authMiddleware so an inactive session reports "already logged out".
func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	sessionID, err := bearerTokenFromHeader(r.Header.Get("Authorization"))
	if err != nil {
		writeMissingBearerError(r.Context(), w, "logout")
		return
	}
	if err := h.service.DeactivateSession(r.Context(), sessionID); err != nil {
		writeMappedError(r.Context(), w, "logout", err)
		return
	}
	writeMessage(w, http.StatusOK, "Logged out successfully")
}

func (h *Handler) resolveDeactivationLink(w http.ResponseWriter, r *http.Request) {
	info, err := h.service.ResolveDeactivationLink(r.Context(), chi.URLParam(r, "link_hash"))
	if err != nil {
		writeMappedError(r.Context(), w, "resolve_deactivation_link", err)
		return
	}
	writeSuccess(w, http.StatusOK, info)
}

func (h *Handler) consumeDeactivationLink(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ConsumeDeactivationLink(r.Context(), chi.URLParam(r, "link_hash")); err != nil {
		writeMappedError(r.Context(), w, "consume_deactivation_link", err)
		return
	}
	writeMessage(w, http.StatusOK, "Session deactivated")
}
