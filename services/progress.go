package services

import (
	"fmt"

	"rental-rewards-system/models"

	"gorm.io/gorm"
)

// RentalStats are the raw rental counters for one user
type RentalStats struct {
	Total  int
	Timely int
}

// ProgressSource supplies raw activity counters per user. Implementations
// must be read-only; the engine recomputes truth from these every time rather
// than incrementing.
type ProgressSource interface {
	RentalStats(externalUserID string) (RentalStats, error)
	CompletedReferrals(externalUserID string) (int, error)
}

// ActivityStore is the DB-backed ProgressSource reading the mirrored
// activity tables maintained by the sync worker.
type ActivityStore struct {
	DB *gorm.DB
}

func NewActivityStore(db *gorm.DB) *ActivityStore {
	return &ActivityStore{DB: db}
}

func (s *ActivityStore) RentalStats(externalUserID string) (RentalStats, error) {
	var total, timely int64
	if err := s.DB.Model(&models.RentalMirror{}).
		Where("external_user_id = ? AND status = ?", externalUserID, models.RentalStatusCompleted).
		Count(&total).Error; err != nil {
		return RentalStats{}, fmt.Errorf("count completed rentals: %w", err)
	}
	if err := s.DB.Model(&models.RentalMirror{}).
		Where("external_user_id = ? AND status = ? AND returned_on_time = ?",
			externalUserID, models.RentalStatusCompleted, true).
		Count(&timely).Error; err != nil {
		return RentalStats{}, fmt.Errorf("count timely returns: %w", err)
	}
	return RentalStats{Total: int(total), Timely: int(timely)}, nil
}

func (s *ActivityStore) CompletedReferrals(externalUserID string) (int, error) {
	var count int64
	if err := s.DB.Model(&models.ReferralMirror{}).
		Where("referrer_id = ? AND status = ?", externalUserID, models.ReferralStatusCompleted).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count completed referrals: %w", err)
	}
	return int(count), nil
}

// ProgressService turns raw counters into a per-criteria-type snapshot
type ProgressService struct {
	Source ProgressSource
}

func NewProgressService(source ProgressSource) *ProgressService {
	return &ProgressService{Source: source}
}

// ComputeProgress returns the absolute counter snapshot for a user. Pure
// read, no side effects — not a delta.
func (s *ProgressService) ComputeProgress(externalUserID string) (map[models.CriteriaType]int, error) {
	stats, err := s.Source.RentalStats(externalUserID)
	if err != nil {
		return nil, fmt.Errorf("rental stats for %s: %w", externalUserID, err)
	}
	referrals, err := s.Source.CompletedReferrals(externalUserID)
	if err != nil {
		return nil, fmt.Errorf("completed referrals for %s: %w", externalUserID, err)
	}

	return map[models.CriteriaType]int{
		models.CriteriaRentalCount:       stats.Total,
		models.CriteriaTimelyReturnCount: stats.Timely,
		models.CriteriaReferralCount:     referrals,
	}, nil
}
