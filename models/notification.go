package models

import "time"

type NotificationStatus string

const (
	NotificationPending NotificationStatus = "PENDING"
	NotificationSent    NotificationStatus = "SENT"
)

// Notification is a queued outbound notification. Rows stay PENDING until the
// worker delivers them; a crash between delivery and the SENT update means the
// row is retried next tick (at-least-once).
type Notification struct {
	ID             string             `gorm:"primaryKey;type:uuid;default:(gen_random_uuid())" json:"id"`
	ExternalUserID string             `gorm:"index;not null" json:"external_user_id"`
	TemplateKey    string             `gorm:"not null" json:"template_key"` // e.g., "achievement_unlocked"
	Data           string             `gorm:"type:jsonb" json:"data"`
	Status         NotificationStatus `gorm:"type:varchar(16);not null;default:'PENDING';index" json:"status"`
	Attempts       int                `gorm:"not null;default:0" json:"attempts"`
	LastError      string             `gorm:"type:text" json:"last_error,omitempty"`
	CreatedAt      time.Time          `gorm:"autoCreateTime" json:"created_at"`
	SentAt         *time.Time         `json:"sent_at,omitempty"`
}
