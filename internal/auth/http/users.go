package http

import (
	"encoding/json"
	"net/http"

	"github.com/patronhq/patron/internal/auth/service"
	"github.com/patronhq/patron/pkg/httpx"
)

// UsersHandler serves the authenticated user's own account.
type UsersHandler struct {
	Users *service.UserService
}

func (h *UsersHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID := httpx.UserIDFromCtx(r.Context())

	u, err := h.Users.Store.Users().GetUserByID(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, struct {
		userResponse
		EmailConfirmed bool `json:"email_confirmed"`
		TOTPEnabled    bool `json:"totp_enabled"`
	}{
		userResponse: userResponse{
			ID:          u.ID,
			Email:       u.Email,
			DisplayName: u.DisplayName,
			Role:        u.Role,
		},
		EmailConfirmed: u.EmailConfirmedAt != nil,
		TOTPEnabled:    u.TOTPActive(),
	})
}

type updateProfileRequest struct {
	DisplayName string `json:"display_name"`
}

func (h *UsersHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body.")
		return
	}

	userID := httpx.UserIDFromCtx(r.Context())
	u, err := h.Users.UpdateDisplayName(r.Context(), userID, req.DisplayName)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, userResponse{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        u.Role,
	})
}

func (h *UsersHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID := httpx.UserIDFromCtx(r.Context())

	if err := h.Users.DeleteAccount(r.Context(), userID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if wantsCookies(r) {
		httpx.ClearSessionCookies(w)
	}
	w.WriteHeader(http.StatusNoContent)
}
