package services

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"rental-rewards-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LeaderboardCategory selects the sort key for a leaderboard view
type LeaderboardCategory string

const (
	CategoryOverall       LeaderboardCategory = "overall"
	CategoryRentals       LeaderboardCategory = "rentals"
	CategoryPoints        LeaderboardCategory = "points"
	CategoryReferrals     LeaderboardCategory = "referrals"
	CategoryTimelyReturns LeaderboardCategory = "timely_returns"
)

// Score weights for the overall ranking
const (
	weightPoints    = 0.4
	weightRentals   = 0.3
	weightReferrals = 20.0
	weightTimely    = 0.3
)

const defaultLeaderboardLimit = 20
const maxLeaderboardLimit = 100

// ErrUnknownCategory flags a leaderboard category the service does not serve
var ErrUnknownCategory = errors.New("unknown leaderboard category")

// LeaderboardService maintains per-user snapshots and the global rank
// ordering. Snapshot updates are O(1) per user and safe inline after a claim;
// the full rank recompute is O(N log N) and only ever runs out-of-band.
type LeaderboardService struct {
	DB     *gorm.DB
	Source ProgressSource
	Ledger PointsLedger

	recomputeMu sync.Mutex    // single-flight guard for RecalculateAllRanks
	recompute   chan struct{} // nudge channel drained by the scheduler
}

func NewLeaderboardService(db *gorm.DB, source ProgressSource, ledger PointsLedger) *LeaderboardService {
	return &LeaderboardService{
		DB:        db,
		Source:    source,
		Ledger:    ledger,
		recompute: make(chan struct{}, 1),
	}
}

// Score is the weighted composite used for the overall ranking
func Score(snap *models.LeaderboardSnapshot) float64 {
	return float64(snap.TotalPointsEarned)*weightPoints +
		float64(snap.TotalRentals)*weightRentals +
		float64(snap.ReferralsCount)*weightReferrals +
		float64(snap.TimelyReturns)*weightTimely
}

// UpdateSnapshot recomputes one user's counters from the source-of-truth
// stores and upserts the snapshot row. Rank is left untouched — it only
// changes during a full recompute.
func (s *LeaderboardService) UpdateSnapshot(externalUserID string) error {
	stats, err := s.Source.RentalStats(externalUserID)
	if err != nil {
		return fmt.Errorf("rental stats: %w", err)
	}
	referrals, err := s.Source.CompletedReferrals(externalUserID)
	if err != nil {
		return fmt.Errorf("completed referrals: %w", err)
	}
	balance, err := s.Ledger.Balance(externalUserID)
	if err != nil {
		return fmt.Errorf("points balance: %w", err)
	}

	snap := models.LeaderboardSnapshot{
		ID:                uuid.NewString(),
		ExternalUserID:    externalUserID,
		TotalRentals:      int64(stats.Total),
		TotalPointsEarned: balance,
		ReferralsCount:    int64(referrals),
		TimelyReturns:     int64(stats.Timely),
		LastUpdated:       time.Now(),
	}
	return s.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "external_user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"total_rentals", "total_points_earned", "referrals_count",
			"timely_returns", "last_updated", "updated_at",
		}),
	}).Create(&snap).Error
}

// RecalculateAllRanks assigns dense ranks 1..N over all snapshots, ordered by
// descending score with user id as the deterministic tie-break, and writes
// back only rows whose rank changed. Single-flight: a call that finds a
// recompute already running returns immediately with 0 changes.
func (s *LeaderboardService) RecalculateAllRanks() (int, error) {
	if !s.recomputeMu.TryLock() {
		return 0, nil
	}
	defer s.recomputeMu.Unlock()

	var snaps []models.LeaderboardSnapshot
	if err := s.DB.Find(&snaps).Error; err != nil {
		return 0, fmt.Errorf("load snapshots: %w", err)
	}

	sort.Slice(snaps, func(i, j int) bool {
		si, sj := Score(&snaps[i]), Score(&snaps[j])
		if si != sj {
			return si > sj
		}
		return snaps[i].ExternalUserID < snaps[j].ExternalUserID
	})

	changed := 0
	for i := range snaps {
		rank := i + 1
		if snaps[i].Rank == rank {
			continue
		}
		if err := s.DB.Model(&models.LeaderboardSnapshot{}).
			Where("id = ?", snaps[i].ID).
			Update("rank", rank).Error; err != nil {
			return changed, fmt.Errorf("write rank %d for %s: %w", rank, snaps[i].ExternalUserID, err)
		}
		changed++
	}
	return changed, nil
}

// RequestRecompute schedules an out-of-band rank recompute. Non-blocking;
// coalesces with a pending request.
func (s *LeaderboardService) RequestRecompute() {
	select {
	case s.recompute <- struct{}{}:
	default:
	}
}

// RecomputeRequests is drained by the rank scheduler
func (s *LeaderboardService) RecomputeRequests() <-chan struct{} {
	return s.recompute
}

// LeaderboardView is one category page plus, optionally, the requesting
// user's own row when it did not make the cut.
type LeaderboardView struct {
	Category  LeaderboardCategory          `json:"category"`
	Entries   []models.LeaderboardSnapshot `json:"entries"`
	UserEntry *models.LeaderboardSnapshot  `json:"user_entry,omitempty"`
}

// GetLeaderboard returns the top-limit snapshots for a category. Read-only.
// includeUserID, when set, appends that user's snapshot if it is not already
// in the returned page.
func (s *LeaderboardService) GetLeaderboard(category LeaderboardCategory, limit int, includeUserID string) (*LeaderboardView, error) {
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}
	if limit > maxLeaderboardLimit {
		limit = maxLeaderboardLimit
	}

	var order string
	switch category {
	case CategoryOverall, "":
		category = CategoryOverall
		// Unranked rows (rank 0, never recomputed) sort last.
		order = "(rank = 0), rank ASC, external_user_id ASC"
	case CategoryRentals:
		order = "total_rentals DESC, external_user_id ASC"
	case CategoryPoints:
		order = "total_points_earned DESC, external_user_id ASC"
	case CategoryReferrals:
		order = "referrals_count DESC, external_user_id ASC"
	case CategoryTimelyReturns:
		order = "timely_returns DESC, external_user_id ASC"
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}

	var entries []models.LeaderboardSnapshot
	if err := s.DB.Order(order).Limit(limit).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("load leaderboard: %w", err)
	}

	view := &LeaderboardView{Category: category, Entries: entries}
	if includeUserID == "" {
		return view, nil
	}
	for _, e := range entries {
		if e.ExternalUserID == includeUserID {
			return view, nil
		}
	}

	var own models.LeaderboardSnapshot
	err := s.DB.Where("external_user_id = ?", includeUserID).First(&own).Error
	if err == nil {
		view.UserEntry = &own
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("load user snapshot: %w", err)
	}
	return view, nil
}
