package http

import "net/http"

func (h *Handler) sendCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "send_verification_code", err)
		return
	}
	if err := h.service.SendVerificationCode(r.Context(), req.Email); err != nil {
		writeMappedError(r.Context(), w, "send_verification_code", err)
		return
	}
	writeMessage(w, http.StatusAccepted, "Verification code sent")
}

func (h *Handler) verifyCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "verify_code", err)
		return
	}
	if err := h.service.VerifyCode(r.Context(), req.Email, req.Code); err != nil {
		writeMappedError(r.Context(), w, "verify_code", err)
		return
	}
	writeMessage(w, http.StatusOK, "Email verified successfully")
}
