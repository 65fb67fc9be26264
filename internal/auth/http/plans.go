package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/patronhq/patron/internal/auth/domain"
	"github.com/patronhq/patron/internal/auth/service"
	"github.com/patronhq/patron/pkg/httpx"
)

// PlansHandler serves a creator's subscription plans over bearer auth.
type PlansHandler struct {
	Plans *service.PlanService
}

type planRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	PriceCents  int64  `json:"price_cents"`
	Currency    string `json:"currency"`
	Interval    string `json:"interval"`
}

type planResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	PriceCents  int64     `json:"price_cents"`
	Currency    string    `json:"currency"`
	Interval    string    `json:"interval"`
	CreatedAt   time.Time `json:"created_at"`
}

func newPlanResponse(p domain.Plan) planResponse {
	return planResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		PriceCents:  p.PriceCents,
		Currency:    p.Currency,
		Interval:    p.Interval,
		CreatedAt:   p.CreatedAt,
	}
}

func (h *PlansHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body.")
		return
	}

	creatorID := httpx.UserIDFromCtx(r.Context())
	p, err := h.Plans.Create(r.Context(), creatorID, domain.Plan{
		Name:        req.Name,
		Description: req.Description,
		PriceCents:  req.PriceCents,
		Currency:    req.Currency,
		Interval:    req.Interval,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, newPlanResponse(p))
}

func (h *PlansHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	creatorID := httpx.UserIDFromCtx(r.Context())

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

func (h *PlansHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body.")
		return
	}

	creatorID := httpx.UserIDFromCtx(r.Context())
	p, err := h.Plans.Update(r.Context(), creatorID, domain.Plan{
		ID:          r.PathValue("id"),
		Name:        req.Name,
		Description: req.Description,
		PriceCents:  req.PriceCents,
		Currency:    req.Currency,
		Interval:    req.Interval,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newPlanResponse(p))
}

func (h *PlansHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	creatorID := httpx.UserIDFromCtx(r.Context())

	if err := h.Plans.Delete(r.Context(), creatorID, r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
