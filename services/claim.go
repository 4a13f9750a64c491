package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"rental-rewards-system/models"

	"gorm.io/gorm"
)

// ClaimCode identifies why a claim failed. Callers branch on the code, not on
// error string matching.
type ClaimCode string

const (
	ClaimNotFound       ClaimCode = "NOT_FOUND"
	ClaimNotUnlocked    ClaimCode = "NOT_UNLOCKED"
	ClaimAlreadyClaimed ClaimCode = "ALREADY_CLAIMED"
	ClaimValidation     ClaimCode = "VALIDATION"
	ClaimInternal       ClaimCode = "INTERNAL"
)

// ClaimError is the typed claim failure
type ClaimError struct {
	Code    ClaimCode
	Message string
}

func (e *ClaimError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// MaxBulkClaim caps how many ids one bulk request may carry
const MaxBulkClaim = 50

// ClaimService executes reward claims. The UNLOCKED→CLAIMED transition is a
// conditional UPDATE inside the claim transaction: of two concurrent claims
// on the same row, exactly one sees RowsAffected == 1 and wins; the loser
// gets ALREADY_CLAIMED.
type ClaimService struct {
	DB          *gorm.DB
	Ledger      PointsLedger
	Leaderboard *LeaderboardService
	Dispatcher  NotificationDispatcher
}

func NewClaimService(db *gorm.DB, ledger PointsLedger, leaderboard *LeaderboardService, dispatcher NotificationDispatcher) *ClaimService {
	return &ClaimService{
		DB:          db,
		Ledger:      ledger,
		Leaderboard: leaderboard,
		Dispatcher:  dispatcher,
	}
}

// Claim claims a single unlocked achievement. On success the returned row is
// CLAIMED with PointsAwarded set; on failure the error is a *ClaimError and
// no state was changed (transaction rollback).
func (s *ClaimService) Claim(externalUserID, progressID string) (*models.UserAchievementProgress, error) {
	return s.claim(externalUserID, progressID, false)
}

func (s *ClaimService) claim(externalUserID, progressID string, suppressNotify bool) (*models.UserAchievementProgress, error) {
	var claimed models.UserAchievementProgress

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var prog models.UserAchievementProgress
		err := tx.Preload("Achievement").
			Where("id = ? AND external_user_id = ?", progressID, externalUserID).
			First(&prog).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &ClaimError{Code: ClaimNotFound, Message: "achievement progress not found"}
		}
		if err != nil {
			return &ClaimError{Code: ClaimInternal, Message: err.Error()}
		}

		switch prog.State {
		case models.StateLocked:
			return &ClaimError{Code: ClaimNotUnlocked, Message: "achievement is not unlocked yet"}
		case models.StateClaimed:
			return &ClaimError{Code: ClaimAlreadyClaimed, Message: "achievement reward already claimed"}
		}

		now := time.Now()
		points := prog.Achievement.RewardPoints

		// The atomic boundary: only the request that flips the row from
		// UNLOCKED wins. A concurrent claim that committed first leaves
		// RowsAffected at zero here.
		res := tx.Model(&models.UserAchievementProgress{}).
			Where("id = ? AND state = ?", prog.ID, models.StateUnlocked).
			Updates(map[string]interface{}{
				"state":          models.StateClaimed,
				"claimed_at":     now,
				"points_awarded": points,
			})
		if res.Error != nil {
			return &ClaimError{Code: ClaimInternal, Message: res.Error.Error()}
		}
		if res.RowsAffected == 0 {
			return &ClaimError{Code: ClaimAlreadyClaimed, Message: "achievement reward already claimed"}
		}

		// Ledger entry shares the transaction — a failed award rolls the
		// whole claim back.
		desc := fmt.Sprintf("Claimed achievement %q", prog.Achievement.Name)
		if err := s.Ledger.Award(tx, externalUserID, points, models.PointsSourceAchievement, desc); err != nil {
			return &ClaimError{Code: ClaimInternal, Message: fmt.Sprintf("points award failed: %v", err)}
		}

		prog.State = models.StateClaimed
		prog.ClaimedAt = &now
		prog.PointsAwarded = &points
		claimed = prog
		return nil
	})
	if err != nil {
		var ce *ClaimError
		if errors.As(err, &ce) {
			return nil, ce
		}
		return nil, &ClaimError{Code: ClaimInternal, Message: err.Error()}
	}

	// Cheap single-user refresh, synchronous per contract. The periodic rank
	// recompute repairs the snapshot if this slips through, so a failure is
	// logged rather than surfaced.
	if err := s.Leaderboard.UpdateSnapshot(externalUserID); err != nil {
		log.Printf("❌ [CLAIM] Snapshot update failed for %s: %v", externalUserID, err)
	}
	s.Leaderboard.RequestRecompute()

	if !suppressNotify {
		s.Dispatcher.Notify(externalUserID, TemplateAchievementClaimed, map[string]interface{}{
			"achievement_id":   claimed.AchievementID,
			"achievement_name": claimed.Achievement.Name,
			"points_awarded":   *claimed.PointsAwarded,
		})
	}

	return &claimed, nil
}

// BulkClaimFailure records one failed item of a bulk claim
type BulkClaimFailure struct {
	ProgressID string    `json:"progress_id"`
	ErrorCode  ClaimCode `json:"error_code"`
	Message    string    `json:"message"`
}

// BulkClaimResult reports a bulk claim outcome. Partial success is normal;
// callers act on the per-item lists.
type BulkClaimResult struct {
	SuccessCount       int                              `json:"success_count"`
	FailureCount       int                              `json:"failure_count"`
	TotalPointsAwarded int                              `json:"total_points_awarded"`
	Claimed            []models.UserAchievementProgress `json:"claimed"`
	Failures           []BulkClaimFailure               `json:"failures"`
}

// ClaimMultiple claims each id in order, each in its own transaction, so one
// failure never rolls back prior successes. Per-item errors land in the
// result; only structural problems with the batch itself return an error.
// The batch sends at most one consolidated notification.
func (s *ClaimService) ClaimMultiple(externalUserID string, progressIDs []string) (*BulkClaimResult, error) {
	if len(progressIDs) == 0 {
		return nil, &ClaimError{Code: ClaimValidation, Message: "no progress ids given"}
	}
	if len(progressIDs) > MaxBulkClaim {
		return nil, &ClaimError{Code: ClaimValidation, Message: fmt.Sprintf("at most %d claims per request", MaxBulkClaim)}
	}

	result := &BulkClaimResult{
		Claimed:  []models.UserAchievementProgress{},
		Failures: []BulkClaimFailure{},
	}
	for _, id := range progressIDs {
		rec, err := s.claim(externalUserID, id, true)
		if err != nil {
			code, msg := ClaimInternal, err.Error()
			var ce *ClaimError
			if errors.As(err, &ce) {
				code, msg = ce.Code, ce.Message
			}
			result.Failures = append(result.Failures, BulkClaimFailure{
				ProgressID: id,
				ErrorCode:  code,
				Message:    msg,
			})
			continue
		}
		result.Claimed = append(result.Claimed, *rec)
		result.TotalPointsAwarded += *rec.PointsAwarded
	}
	result.SuccessCount = len(result.Claimed)
	result.FailureCount = len(result.Failures)

	// Singular phrasing for one success, aggregate for several, silence if
	// everything failed.
	switch {
	case result.SuccessCount == 1:
		rec := result.Claimed[0]
		s.Dispatcher.Notify(externalUserID, TemplateAchievementClaimed, map[string]interface{}{
			"achievement_id":   rec.AchievementID,
			"achievement_name": rec.Achievement.Name,
			"points_awarded":   *rec.PointsAwarded,
		})
	case result.SuccessCount > 1:
		names := make([]string, 0, result.SuccessCount)
		for _, rec := range result.Claimed {
			names = append(names, rec.Achievement.Name)
		}
		s.Dispatcher.Notify(externalUserID, TemplateAchievementsClaimed, map[string]interface{}{
			"count":             result.SuccessCount,
			"total_points":      result.TotalPointsAwarded,
			"achievement_names": names,
		})
	}

	return result, nil
}
