package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/viralforge/mesh/services/core-platform/M04-credential-lifecycle-service/internal/application"
)

func (h *Handler) requestReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "password_reset_request", err)
		return
	}
	if err := h.service.RequestReset(r.Context(), req.Email); err != nil {
		writeMappedError(r.Context(), w, "password_reset_request", err)
		return
	}
	writeMessage(w, http.StatusAccepted, "A password reset link has been sent")
}

func (h *Handler) resolveResetLink(w http.ResponseWriter, r *http.Request) {
	info, err := h.service.ResolveResetLink(r.Context(), chi.URLParam(r, "link_hash"))
	if err != nil {
		writeMappedError(r.Context(), w, "resolve_reset_link", err)
		return
	}
	writeSuccess(w, http.StatusOK, info)
}

func (h *Handler) completeReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NewPassword string `json:"new_password"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "password_reset", err)
		return
	}
	if err := h.service.CompleteReset(r.Context(), chi.URLParam(r, "link_hash"), req.NewPassword); err != nil {
		writeMappedError(r.Context(), w, "password_reset", err)
		return
	}
	writeMessage(w, http.StatusOK, "Password reset successful. You can now login with your new password.")
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDFromContext(r.Context())
	if !ok {
		writeMissingBearerError(r.Context(), w, "change_password")
		return
	}
	var req application.ChangePasswordRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "change_password", err)
		return
	}
	req.SessionID = sessionID
	if err := h.service.ChangePassword(r.Context(), req); err != nil {
		writeSessionError(r.Context(), w, "change_password", err)
		return
	}
	writeMessage(w, http.StatusOK, "Password changed. Please log in again.")
}
