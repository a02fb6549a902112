package models

import "time"

// EntitlementStatus represents the current state of a user's subscription
// entitlement
type EntitlementStatus string

const (
	EntitlementActive   EntitlementStatus = "active"
	EntitlementCanceled EntitlementStatus = "canceled"
	EntitlementExpired  EntitlementStatus = "expired"
	EntitlementTrial    EntitlementStatus = "trial"
	EntitlementInactive EntitlementStatus = "inactive"
)

// SubscriptionPlan is a purchasable plan. Price is in minor units.
type SubscriptionPlan struct {
	ID           string
	Name         string
	DurationDays int
	Price        int64
	Currency     string
	CreatedAt    time.Time
}

// Duration returns the access window one unit of the plan grants.
func (p *SubscriptionPlan) Duration() time.Duration {
	return time.Duration(p.DurationDays) * 24 * time.Hour
}

// SubscriptionEntitlement is the per-user singleton recording what the user
// currently has access to. Mutated only by the entitlement ledger.
type SubscriptionEntitlement struct {
	UserID    string
	PlanID    string
	Status    EntitlementStatus
	ExpiresAt time.Time
	UpdatedAt time.Time
}

// IsActive reports whether the entitlement grants access at the given instant.
func (e *SubscriptionEntitlement) IsActive(now time.Time) bool {
	return e.Status == EntitlementActive && e.ExpiresAt.After(now)
}
