package domain

import "time"

// Tier is a premium subscription tier
type Tier string

const (
	TierStandard Tier = "standard"
	TierAdvanced Tier = "advanced"
)

// SubscriptionStatus is the lifecycle state of a subscription
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionPaused    SubscriptionStatus = "paused"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// Subscription represents a user's premium subscription
type Subscription struct {
	UserID    int64              `json:"user_id" db:"user_id"`
	Tier      Tier               `json:"tier" db:"tier"`
	Status    SubscriptionStatus `json:"status" db:"status"`
	StartedAt time.Time          `json:"started_at" db:"started_at"`
	RenewsAt  time.Time          `json:"renews_at" db:"renews_at"`
	UpdatedAt time.Time          `json:"updated_at" db:"updated_at"`
}

// ParseTier validates a tier name
func ParseTier(s string) (Tier, bool) {
	switch Tier(s) {
	case TierStandard, TierAdvanced:
		return Tier(s), true
	}
	return "", false
}
