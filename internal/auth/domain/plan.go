package domain

import "time"

// Billing intervals for subscription plans.
const (
	IntervalMonthly = "monthly"
	IntervalYearly  = "yearly"
)

// Plan is a subscription tier offered by a creator.
type Plan struct {
	ID          string
	CreatorID   string
	Name        string
	Description string
	PriceCents  int64
	Currency    string // ISO 4217, e.g. "USD"
	Interval    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
