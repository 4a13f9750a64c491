package services

import (
	"errors"
	"fmt"
	"time"

	"rental-rewards-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UnlockService reconciles a user's progress rows against the active catalog
// and flips LOCKED rows to UNLOCKED when criteria are met. All collaborators
// are constructor-injected — no hidden dependencies.
type UnlockService struct {
	DB         *gorm.DB
	Progress   *ProgressService
	Catalog    AchievementCatalog
	Dispatcher NotificationDispatcher
}

func NewUnlockService(db *gorm.DB, progress *ProgressService, catalog AchievementCatalog, dispatcher NotificationDispatcher) *UnlockService {
	return &UnlockService{
		DB:         db,
		Progress:   progress,
		Catalog:    catalog,
		Dispatcher: dispatcher,
	}
}

// ReconcileResult carries the full per-user progress list plus the unlock
// summary the achievements endpoint returns.
type ReconcileResult struct {
	Rows           []models.UserAchievementProgress
	UnclaimedCount int // rows currently in UNLOCKED (claimable)
	NewlyUnlocked  []models.UserAchievementProgress
}

// Reconcile recomputes the user's counters and updates every progress row for
// the active catalog. Idempotent: unchanged counters produce identical rows
// and fire no additional unlock notifications. State never reverts to LOCKED
// even if a counter decreased (one-way ratchet).
func (s *UnlockService) Reconcile(externalUserID string) (*ReconcileResult, error) {
	defs, err := s.Catalog.ListActive()
	if err != nil {
		return nil, fmt.Errorf("list active achievements: %w", err)
	}
	if len(defs) == 0 {
		return &ReconcileResult{}, nil
	}

	// Counter source unavailable is fatal to the request — never return a
	// partial or stale achievement list silently.
	snapshot, err := s.Progress.ComputeProgress(externalUserID)
	if err != nil {
		return nil, fmt.Errorf("compute progress: %w", err)
	}

	result := &ReconcileResult{}
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		rows := make([]models.UserAchievementProgress, 0, len(defs))
		for _, def := range defs {
			var prog models.UserAchievementProgress
			err := tx.Where("external_user_id = ? AND achievement_id = ?", externalUserID, def.ID).
				First(&prog).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				prog = models.UserAchievementProgress{
					ID:             uuid.NewString(),
					ExternalUserID: externalUserID,
					AchievementID:  def.ID,
					State:          models.StateLocked,
				}
			} else if err != nil {
				return err
			}

			// Absolute overwrite — recomputation, not increments.
			prog.CurrentProgress = snapshot[def.CriteriaType]
			prog.Achievement = def

			if prog.State == models.StateLocked && prog.CurrentProgress >= def.CriteriaValue {
				now := time.Now()
				prog.State = models.StateUnlocked
				prog.UnlockedAt = &now
				result.NewlyUnlocked = append(result.NewlyUnlocked, prog)
			}

			rows = append(rows, prog)
		}

		// One batch upsert for the whole row set
		if err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"current_progress", "state", "unlocked_at", "updated_at",
			}),
		}).Create(&rows).Error; err != nil {
			return err
		}

		result.Rows = rows
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reconcile achievements for %s: %w", externalUserID, err)
	}

	for _, row := range result.Rows {
		if row.State == models.StateUnlocked {
			result.UnclaimedCount++
		}
	}

	// Notifications fire only on the LOCKED→UNLOCKED edge, after commit, so a
	// repeated reconcile never re-announces the same unlock.
	for _, row := range result.NewlyUnlocked {
		s.Dispatcher.Notify(externalUserID, TemplateAchievementUnlocked, map[string]interface{}{
			"achievement_id":   row.AchievementID,
			"achievement_name": row.Achievement.Name,
			"reward_points":    row.Achievement.RewardPoints,
		})
	}

	return result, nil
}
