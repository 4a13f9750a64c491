package models

import (
	"time"

	"gorm.io/gorm"
)

// ProgressState is the per-user lifecycle of an achievement.
// Transitions are one-way: LOCKED → UNLOCKED → CLAIMED.
type ProgressState string

const (
	StateLocked   ProgressState = "LOCKED"
	StateUnlocked ProgressState = "UNLOCKED"
	StateClaimed  ProgressState = "CLAIMED"
)

// UserAchievementProgress tracks one user's progress toward one achievement.
// Created lazily on the first reconcile that sees the (user, achievement) pair.
type UserAchievementProgress struct {
	ID             string `gorm:"primaryKey;type:uuid;default:(gen_random_uuid())" json:"id"`
	ExternalUserID string `gorm:"not null;uniqueIndex:idx_user_achievement" json:"external_user_id"` // links to profile service
	AchievementID  string `gorm:"not null;uniqueIndex:idx_user_achievement" json:"achievement_id"`

	Achievement Achievement `gorm:"foreignKey:AchievementID" json:"achievement"`

	CurrentProgress int           `gorm:"not null;default:0" json:"current_progress"`
	State           ProgressState `gorm:"type:varchar(16);not null;default:'LOCKED';index" json:"state"`

	UnlockedAt    *time.Time `json:"unlocked_at,omitempty"`
	ClaimedAt     *time.Time `json:"claimed_at,omitempty"`
	PointsAwarded *int       `json:"points_awarded,omitempty"` // set on claim, equals Achievement.RewardPoints

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
