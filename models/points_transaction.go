package models

import "time"

// PointsSource tags where a ledger entry came from
type PointsSource string

const (
	PointsSourceAchievement PointsSource = "ACHIEVEMENT"
	PointsSourceAdjustment  PointsSource = "ADJUSTMENT" // manual ops corrections
)

// PointsTransaction is an append-only ledger row. A user's balance is the sum
// of their transactions — rows are never updated or deleted.
type PointsTransaction struct {
	ID             string       `gorm:"primaryKey;type:uuid;default:(gen_random_uuid())" json:"id"`
	ExternalUserID string       `gorm:"index;not null" json:"external_user_id"`
	Amount         int          `gorm:"not null" json:"amount"`
	Source         PointsSource `gorm:"type:varchar(32);not null;index" json:"source"`
	Description    string       `gorm:"type:text" json:"description"`
	CreatedAt      time.Time    `gorm:"autoCreateTime" json:"created_at"`
}
