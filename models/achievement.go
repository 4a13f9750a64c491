package models

import "time"

// CriteriaType is the activity counter an achievement is measured against
type CriteriaType string

const (
	CriteriaRentalCount       CriteriaType = "RENTAL_COUNT"
	CriteriaTimelyReturnCount CriteriaType = "TIMELY_RETURN_COUNT"
	CriteriaReferralCount     CriteriaType = "REFERRAL_COUNT"
)

// Achievement: static catalog config, managed by admin tooling (read-only here)
type Achievement struct {
	ID            string       `gorm:"primaryKey;type:uuid;default:(gen_random_uuid())" json:"id"`
	Code          string       `gorm:"uniqueIndex;not null" json:"code"` // e.g., "RENTAL_5", "REFER_3"
	Name          string       `gorm:"not null" json:"name"`
	Description   string       `gorm:"type:text" json:"description"`
	CriteriaType  CriteriaType `gorm:"type:varchar(32);not null;index" json:"criteria_type"`
	CriteriaValue int          `gorm:"not null" json:"criteria_value"` // >= 1
	RewardPoints  int          `gorm:"not null;default:0" json:"reward_points"`
	IsActive      bool         `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt     time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

// DefaultAchievements seeds the catalog on startup (upsert by Code, existing
// rows win so admin edits survive restarts)
var DefaultAchievements = []Achievement{
	{
		Code:          "RENTAL_1",
		Name:          "First Ride",
		Description:   "Complete your first rental",
		CriteriaType:  CriteriaRentalCount,
		CriteriaValue: 1,
		RewardPoints:  10,
		IsActive:      true,
	},
	{
		Code:          "RENTAL_5",
		Name:          "5 Rentals",
		Description:   "Complete 5 rentals",
		CriteriaType:  CriteriaRentalCount,
		CriteriaValue: 5,
		RewardPoints:  50,
		IsActive:      true,
	},
	{
		Code:          "RENTAL_25",
		Name:          "Frequent Rider",
		Description:   "Complete 25 rentals",
		CriteriaType:  CriteriaRentalCount,
		CriteriaValue: 25,
		RewardPoints:  250,
		IsActive:      true,
	},
	{
		Code:          "TIMELY_10",
		Name:          "Right On Time",
		Description:   "Return 10 rentals on time",
		CriteriaType:  CriteriaTimelyReturnCount,
		CriteriaValue: 10,
		RewardPoints:  100,
		IsActive:      true,
	},
	{
		Code:          "REFER_1",
		Name:          "Word of Mouth",
		Description:   "Refer a friend who completes a rental",
		CriteriaType:  CriteriaReferralCount,
		CriteriaValue: 1,
		RewardPoints:  100,
		IsActive:      true,
	},
	{
		Code:          "REFER_5",
		Name:          "Recruiter",
		Description:   "Refer 5 friends who complete a rental",
		CriteriaType:  CriteriaReferralCount,
		CriteriaValue: 5,
		RewardPoints:  500,
		IsActive:      true,
	},
}
