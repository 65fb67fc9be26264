package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/patronhq/patron/internal/auth/domain"
	"github.com/patronhq/patron/internal/auth/service"
	"github.com/patronhq/patron/pkg/httpx"
)

// AuthHandler serves registration, login, refresh and logout.
type AuthHandler struct {
	Users  *service.UserService
	Tokens *service.TokenService
	MFA    *service.MFAService
}

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type userResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	DeviceID string `json:"device_id,omitempty"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`

	// RefreshToken and DeviceID are only present for mobile clients; web
	// clients get them as httpOnly cookies instead.
	RefreshToken string `json:"refresh_token,omitempty"`
	DeviceID     string `json:"device_id,omitempty"`
}

type mfaChallengeResponse struct {
	MFARequired bool   `json:"mfa_required"`
	MFAToken    string `json:"mfa_token"`
}

func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body.")
		return
	}

	u, err := h.Users.Register(r.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, userResponse{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        u.Role,
	})
}

func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body.")
		return
	}

	u, err := h.Users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	// Accounts with an active second factor get a challenge, not tokens.
	if u.TOTPActive() {
		mfaToken, err := h.MFA.StartChallenge(r.Context(), u.ID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		httpx.NoCache(w)
		httpx.WriteJSON(w, http.StatusOK, mfaChallengeResponse{
			MFARequired: true,
			MFAToken:    mfaToken,
		})
		return
	}

	pair, err := h.Tokens.Issue(r.Context(), u, req.DeviceID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeTokenPair(w, r, pair, h.Tokens.RefreshTTL)
}

func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	token, deviceID := extractRefresh(r)

	pair, err := h.Tokens.Refresh(r.Context(), token, deviceID)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRefresh) && wantsCookies(r) {
			httpx.ClearSessionCookies(w)
		}
		writeServiceError(w, r, err)
		return
	}
	writeTokenPair(w, r, pair, h.Tokens.RefreshTTL)
}

func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	userID := httpx.UserIDFromCtx(r.Context())
	deviceID := httpx.DeviceIDFromCtx(r.Context())

	if err := h.Tokens.Revoke(r.Context(), userID, deviceID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if wantsCookies(r) {
		httpx.ClearSessionCookies(w)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) HandleLogoutAll(w http.ResponseWriter, r *http.Request) {
	userID := httpx.UserIDFromCtx(r.Context())

	if err := h.Tokens.RevokeAll(r.Context(), userID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if wantsCookies(r) {
		httpx.ClearSessionCookies(w)
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeTokenPair renders a token pair for the declared client type: cookies
// for web, body fields for mobile. The access token is always in the body.
func writeTokenPair(w http.ResponseWriter, r *http.Request, pair *domain.TokenPair, refreshTTL time.Duration) {
	httpx.NoCache(w)

	resp := tokenResponse{
		AccessToken: pair.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(pair.ExpiresIn.Seconds()),
	}
	if wantsCookies(r) {
		httpx.SetSessionCookies(w, pair.RefreshToken, pair.DeviceID, refreshTTL)
	} else {
		resp.RefreshToken = pair.RefreshToken
		resp.DeviceID = pair.DeviceID
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}
