package http

import (
	"encoding/json"
	"net/http"

	"github.com/patronhq/patron/internal/auth/service"
	"github.com/patronhq/patron/pkg/httpx"
)

// MFAHandler serves TOTP enrollment and the login challenge completion.
type MFAHandler struct {
	MFA    *service.MFAService
	Tokens *service.TokenService
}

type mfaCodeRequest struct {
	Code string `json:"code"`
}

type mfaCompleteRequest struct {
	MFAToken string `json:"mfa_token"`
	Code     string `json:"code"`
	DeviceID string `json:"device_id,omitempty"`
}

func (h *MFAHandler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	userID := httpx.UserIDFromCtx(r.Context())

	url, err := h.MFA.Enroll(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, struct {
		OTPAuthURL string `json:"otpauth_url"`
	}{OTPAuthURL: url})
}

func (h *MFAHandler) HandleActivate(w http.ResponseWriter, r *http.Request) {
	var req mfaCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body.")
		return
	}

	userID := httpx.UserIDFromCtx(r.Context())
	if err := h.MFA.Activate(r.Context(), userID, req.Code); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *MFAHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	var req mfaCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body.")
		return
	}

	userID := httpx.UserIDFromCtx(r.Context())
	if err := h.MFA.Disable(r.Context(), userID, req.Code); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *MFAHandler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	var req mfaCompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body.")
		return
	}

	pair, err := h.MFA.CompleteChallenge(r.Context(), req.MFAToken, req.Code, req.DeviceID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeTokenPair(w, r, pair, h.Tokens.RefreshTTL)
}
