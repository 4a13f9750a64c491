package workers

import (
	"context"
	"log"
	"time"

	"rental-rewards-system/models"

	"gorm.io/gorm"
)

// Sender delivers a single notification to the outside world (push/SMS/email
// gateway). Implementations may be retried with the same row — delivery is
// at-least-once, consumers must tolerate duplicates.
type Sender interface {
	Send(n models.Notification) error
}

// LogSender is the default sender: it just logs. Real transports plug in via
// the Sender interface.
type LogSender struct{}

func (LogSender) Send(n models.Notification) error {
	log.Printf("🔔 [NOTIFY] user=%s template=%s data=%s", n.ExternalUserID, n.TemplateKey, n.Data)
	return nil
}

// NotificationWorker drains PENDING notification rows. It polls on a ticker
// and also wakes immediately when the dispatcher signals. Failed deliveries
// stay PENDING with Attempts/LastError updated and are retried next pass.
type NotificationWorker struct {
	db        *gorm.DB
	sender    Sender
	wake      <-chan struct{}
	interval  time.Duration
	batchSize int
}

func NewNotificationWorker(db *gorm.DB, sender Sender, wake <-chan struct{}) *NotificationWorker {
	return &NotificationWorker{
		db:        db,
		sender:    sender,
		wake:      wake,
		interval:  5 * time.Second,
		batchSize: 100,
	}
}

func (w *NotificationWorker) Run(ctx context.Context) {
	log.Println("Starting notification worker...")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Notification worker stopped.")
			return
		case <-ticker.C:
			w.deliverPending()
		case <-w.wake:
			w.deliverPending()
		}
	}
}

func (w *NotificationWorker) deliverPending() {
	var pending []models.Notification
	if err := w.db.Where("status = ?", models.NotificationPending).
		Order("created_at ASC").
		Limit(w.batchSize).
		Find(&pending).Error; err != nil {
		log.Printf("❌ [NOTIFY] Failed to load pending notifications: %v", err)
		return
	}

	for _, n := range pending {
		if err := w.sender.Send(n); err != nil {
			// Leave PENDING — retried next pass.
			log.Printf("❌ [NOTIFY] Delivery failed for %s (attempt %d): %v", n.ID, n.Attempts+1, err)
			if uerr := w.db.Model(&models.Notification{}).
				Where("id = ?", n.ID).
				Updates(map[string]interface{}{
					"attempts":   gorm.Expr("attempts + 1"),
					"last_error": err.Error(),
				}).Error; uerr != nil {
				log.Printf("❌ [NOTIFY] Failed to record delivery error for %s: %v", n.ID, uerr)
			}
			continue
		}

		now := time.Now()
		if err := w.db.Model(&models.Notification{}).
			Where("id = ?", n.ID).
			Updates(map[string]interface{}{
				"status":   models.NotificationSent,
				"attempts": gorm.Expr("attempts + 1"),
				"sent_at":  now,
			}).Error; err != nil {
			// Row stays PENDING and will be re-sent — acceptable under
			// at-least-once.
			log.Printf("❌ [NOTIFY] Failed to mark %s as sent: %v", n.ID, err)
		}
	}
}
