package models

import "time"

// ReferredUser represents one invited account inside a referral aggregate
type ReferredUser struct {
	Username         string    `json:"username"`
	JoinedAt         time.Time `json:"joinedAt"`
	TotalEarned      float64   `json:"totalEarned"`
	CommissionEarned float64   `json:"commissionEarned"`
}

// ReferralData represents the per-referrer aggregate document
type ReferralData struct {
	ReferrerID       int64                   `json:"referrerId" db:"referrer_id"`
	ReferralCode     string                  `json:"referralCode" db:"referral_code"`
	ReferredCount    int                     `json:"referredCount" db:"referred_count"`
	ReferralEarnings float64                 `json:"referralEarnings" db:"referral_earnings"`
	ReferredUsers    map[string]ReferredUser `json:"referredUsers" db:"referred_users"`
	UpdatedAt        time.Time               `json:"updatedAt" db:"updated_at"`
}
