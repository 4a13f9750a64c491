package models

import "time"

// Mirrored activity rows synced from the rental platform. These are the
// source-of-truth counters the achievement engine consumes; the sync worker
// upserts them, nothing here mutates them.

type RentalStatus string

const (
	RentalStatusActive    RentalStatus = "active"
	RentalStatusCompleted RentalStatus = "completed"
	RentalStatusCancelled RentalStatus = "cancelled"
)

// RentalMirror mirrors one rental record (ID comes from the rental service)
type RentalMirror struct {
	ID             string       `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string       `gorm:"index;not null" json:"external_user_id"`
	VehicleID      string       `gorm:"index" json:"vehicle_id"`
	Status         RentalStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	ReturnedOnTime bool         `gorm:"not null;default:false" json:"returned_on_time"`
	StartedAt      time.Time    `json:"started_at"`
	CompletedAt    *time.Time   `json:"completed_at,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

type ReferralStatus string

const (
	ReferralStatusPending   ReferralStatus = "pending"
	ReferralStatusCompleted ReferralStatus = "completed" // referred user finished a rental
)

// ReferralMirror mirrors one referral record
type ReferralMirror struct {
	ID               string         `gorm:"primaryKey;type:uuid" json:"id"`
	ReferrerID       string         `gorm:"index;not null" json:"referrer_id"`
	ReferredID       string         `gorm:"uniqueIndex;not null" json:"referred_id"`
	ReferralCodeUsed string         `json:"referral_code_used"`
	Status           ReferralStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}
