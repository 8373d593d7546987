package http

import (
	"net/http"

	"github.com/viralforge/mesh/services/core-platform/M04-credential-lifecycle-service/internal/application"
)

func (h *Handler) createAccount(w http.ResponseWriter, r *http.Request) {
	var req application.CreateAccountRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "create_account", err)
		return
	}
	info, err := h.service.CreateAccount(r.Context(), req)
	if err != nil {
		writeMappedError(r.Context(), w, "create_account", err)
		return
	}
	writeSuccess(w, http.StatusCreated, info)
}

func (h *Handler) currentAccount(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDFromContext(r.Context())
	if !ok {
		writeMissingBearerError(r.Context(), w, "get_account")
		return
	}
	info, err := h.service.CurrentAccount(r.Context(), sessionID)
	if err != nil {
		writeSessionError(r.Context(), w, "get_account", err)
		return
	}
	writeSuccess(w, http.StatusOK, info)
}

func (h *Handler) deleteAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "delete_account", err)
		return
	}
	if err := h.service.DeleteAccount(r.Context(), req.Email, req.Password); err != nil {
		writeMappedError(r.Context(), w, "delete_account", err)
		return
	}
	writeMessage(w, http.StatusOK, "Account deleted")
}

func (h *Handler) changeName(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDFromContext(r.Context())
	if !ok {
		writeMissingBearerError(r.Context(), w, "change_name")
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "change_name", err)
		return
	}
	if err := h.service.ChangeName(r.Context(), sessionID, req.Name); err != nil {
		writeSessionError(r.Context(), w, "change_name", err)
		return
	}
	writeMessage(w, http.StatusOK, "Name updated")
}

func (h *Handler) changeProfileImage(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDFromContext(r.Context())
	if !ok {
		writeMissingBearerError(r.Context(), w, "change_profile_image")
		return
	}
	var req struct {
		ProfileURL string `json:"profile_url"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "change_profile_image", err)
		return
	}
	if err := h.service.ChangeProfileImage(r.Context(), sessionID, req.ProfileURL); err != nil {
		writeSessionError(r.Context(), w, "change_profile_image", err)
		return
	}
	writeMessage(w, http.StatusOK, "Profile image updated")
}
