package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/patronhq/patron/internal/auth/domain"
	"github.com/patronhq/patron/internal/auth/store"
	"github.com/patronhq/patron/pkg/idx"
)

// PlanService manages a creator's subscription tiers.
type PlanService struct {
	Store store.Store
}

// Create adds a plan for a creator.
func (s *PlanService) Create(ctx context.Context, creatorID string, p domain.Plan) (domain.Plan, error) {
	if err := validatePlan(&p); err != nil {
		return domain.Plan{}, err
	}

	now := time.Now().UTC()
	p.ID = idx.New().String()
	p.CreatorID = creatorID
	p.CreatedAt = now
	p.UpdatedAt = now
	if err := s.Store.Plans().CreatePlan(ctx, p); err != nil {
		return domain.Plan{}, err
	}
	return p, nil
}

// ListByCreator returns a creator's plans ordered by price.
func (s *PlanService) ListByCreator(ctx context.Context, creatorID string) ([]domain.Plan, error) {
	return s.Store.Plans().ListPlansByCreator(ctx, creatorID)
}

// Update mutates a plan. Ownership is enforced: a plan belonging to another
// creator behaves as missing.
func (s *PlanService) Update(ctx context.Context, creatorID string, p domain.Plan) (domain.Plan, error) {
	if err := validatePlan(&p); err != nil {
		return domain.Plan{}, err
	}

	existing, err := s.Store.Plans().GetPlanByID(ctx, p.ID)
	if err != nil {
		return domain.Plan{}, err
	}
	if existing.CreatorID != creatorID {
		return domain.Plan{}, store.ErrNotFound
	}

	p.CreatorID = creatorID
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = time.Now().UTC()
	if err := s.Store.Plans().UpdatePlan(ctx, p); err != nil {
		return domain.Plan{}, err
	}
	return p, nil
}

// Delete removes a plan, ownership-checked.
func (s *PlanService) Delete(ctx context.Context, creatorID, planID string) error {
	existing, err := s.Store.Plans().GetPlanByID(ctx, planID)
	if err != nil {
		return err
	}
	if existing.CreatorID != creatorID {
		return store.ErrNotFound
	}
	return s.Store.Plans().DeletePlan(ctx, planID)
}

func validatePlan(p *domain.Plan) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return fmt.Errorf("%w: plan name required", ErrValidation)
	}
	if p.PriceCents < 0 {
		return fmt.Errorf("%w: price must not be negative", ErrValidation)
	}
	if p.Currency == "" {
		p.Currency = "USD"
	}
	switch p.Interval {
	case "":
		p.Interval = domain.IntervalMonthly
	case domain.IntervalMonthly, domain.IntervalYearly:
	default:
		return fmt.Errorf("%w: unknown billing interval %q", ErrValidation, p.Interval)
	}
	return nil
}
