package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/patronhq/patron/internal/auth/service"
	"github.com/patronhq/patron/pkg/httpx"
)

// CredentialsHandler serves API credential management for creators, plus the
// signed server-to-server surface.
type CredentialsHandler struct {
	Credentials *service.CredentialService
	Plans       *service.PlanService
}

type createCredentialRequest struct {
	Label string `json:"label"`
}

type createdCredentialResponse struct {
	ClientID string `json:"client_id"`
	// ClientSecret is shown exactly once. There is no retrieval endpoint.
	ClientSecret string    `json:"client_secret"`
	Label        string    `json:"label,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type credentialResponse struct {
	ClientID  string     `json:"client_id"`
	Label     string     `json:"label,omitempty"`
	IsActive  bool       `json:"is_active"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func (h *CredentialsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body.")
		return
	}

	creatorID := httpx.UserIDFromCtx(r.Context())
	created, err := h.Credentials.Create(r.Context(), creatorID, req.Label)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusCreated, createdCredentialResponse{
		ClientID:     created.Credential.ClientID,
		ClientSecret: created.ClientSecret,
		Label:        created.Credential.Label,
		CreatedAt:    created.Credential.CreatedAt,
	})
}

func (h *CredentialsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	creatorID := httpx.UserIDFromCtx(r.Context())

	creds, err := h.Credentials.List(r.Context(), creatorID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]credentialResponse, 0, len(creds))
	for _, c := range creds {
		out = append(out, credentialResponse{
			ClientID:  c.ClientID,
			Label:     c.Label,
			IsActive:  c.IsActive,
			RevokedAt: c.RevokedAt,
			CreatedAt: c.CreatedAt,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *CredentialsHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	creatorID := httpx.UserIDFromCtx(r.Context())
	clientID := r.PathValue("client_id")

	if err := h.Credentials.Revoke(r.Context(), creatorID, clientID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleCreatorPlans is the signed server-to-server read: the creator is
// whoever owns the verified credential, never a client-supplied ID.
func (h *CredentialsHandler) HandleCreatorPlans(w http.ResponseWriter, r *http.Request) {
	creatorID := httpx.CreatorIDFromCtx(r.Context())

	plans, err := h.Plans.ListByCreator(r.Context(), creatorID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]planResponse, 0, len(plans))
	for _, p := range plans {
		out = append(out, newPlanResponse(p))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}
