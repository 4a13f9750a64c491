package models

import "time"

// LeaderboardSnapshot is the denormalized per-user scoreboard row.
// Counters are refreshed synchronously after a claim; Rank is only meaningful
// after a full recompute — between recomputes a changed row carries a stale
// rank (documented eventual consistency).
type LeaderboardSnapshot struct {
	ID             string `gorm:"primaryKey;type:uuid;default:(gen_random_uuid())" json:"id"`
	ExternalUserID string `gorm:"uniqueIndex;not null" json:"external_user_id"`

	Rank int `gorm:"not null;default:0;index" json:"rank"` // 0 until first full recompute

	TotalRentals      int64 `gorm:"not null;default:0" json:"total_rentals"`
	TotalPointsEarned int64 `gorm:"not null;default:0" json:"total_points_earned"`
	ReferralsCount    int64 `gorm:"not null;default:0" json:"referrals_count"`
	TimelyReturns     int64 `gorm:"not null;default:0" json:"timely_returns"`

	LastUpdated time.Time `gorm:"not null" json:"last_updated"`

	Timestamps
}
