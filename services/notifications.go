package services

import (
	"encoding/json"
	"log"

	"rental-rewards-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Notification template keys
const (
	TemplateAchievementUnlocked = "achievement_unlocked"
	TemplateAchievementClaimed  = "achievement_claimed"
	TemplateAchievementsClaimed = "achievements_claimed" // consolidated bulk claim
)

// NotificationDispatcher schedules a user-facing notification. Best effort:
// implementations log failures and never fail the triggering business
// operation, which is why Notify returns nothing.
type NotificationDispatcher interface {
	Notify(externalUserID, templateKey string, data map[string]interface{})
}

// QueueDispatcher persists notifications for the background worker to
// deliver. The worker retries rows it fails to deliver, so semantics are
// at-least-once end to end.
type QueueDispatcher struct {
	DB   *gorm.DB
	wake chan struct{}
}

func NewQueueDispatcher(db *gorm.DB) *QueueDispatcher {
	return &QueueDispatcher{
		DB:   db,
		wake: make(chan struct{}, 1),
	}
}

func (d *QueueDispatcher) Notify(externalUserID, templateKey string, data map[string]interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		log.Printf("❌ [NOTIFY] Failed to encode %s payload for %s: %v", templateKey, externalUserID, err)
		return
	}

	n := models.Notification{
		ID:             uuid.NewString(),
		ExternalUserID: externalUserID,
		TemplateKey:    templateKey,
		Data:           string(payload),
		Status:         models.NotificationPending,
	}
	if err := d.DB.Create(&n).Error; err != nil {
		log.Printf("❌ [NOTIFY] Failed to enqueue %s for %s: %v", templateKey, externalUserID, err)
		return
	}

	// Nudge the worker without blocking; it also polls on a ticker.
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Wake is consumed by the notification worker
func (d *QueueDispatcher) Wake() <-chan struct{} {
	return d.wake
}
