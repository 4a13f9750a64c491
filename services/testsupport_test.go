package services

import (
	"sync"
	"testing"

	"rental-rewards-system/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens an in-memory SQLite database. A single connection keeps the
// memory DB alive and serializes concurrent transactions.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&models.Achievement{},
		&models.UserAchievementProgress{},
		&models.LeaderboardSnapshot{},
		&models.PointsTransaction{},
		&models.RentalMirror{},
		&models.ReferralMirror{},
		&models.Notification{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

// fakeSource is a canned ProgressSource
type fakeSource struct {
	mu        sync.Mutex
	stats     map[string]RentalStats
	referrals map[string]int
	err       error
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		stats:     map[string]RentalStats{},
		referrals: map[string]int{},
	}
}

func (f *fakeSource) set(userID string, stats RentalStats, referrals int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stats[userID] = stats
	f.referrals[userID] = referrals
}

func (f *fakeSource) RentalStats(userID string) (RentalStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return RentalStats{}, f.err
	}
	return f.stats[userID], nil
}

func (f *fakeSource) CompletedReferrals(userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	return f.referrals[userID], nil
}

// recordingDispatcher captures notifications instead of queueing them
type dispatched struct {
	userID      string
	templateKey string
	data        map[string]interface{}
}

type recordingDispatcher struct {
	mu   sync.Mutex
	sent []dispatched
}

func (d *recordingDispatcher) Notify(userID, templateKey string, data map[string]interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, dispatched{userID: userID, templateKey: templateKey, data: data})
}

func (d *recordingDispatcher) byTemplate(templateKey string) []dispatched {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []dispatched
	for _, s := range d.sent {
		if s.templateKey == templateKey {
			out = append(out, s)
		}
	}
	return out
}

func (d *recordingDispatcher) total() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent)
}

// engine wires the whole core against fakes for the outside world
type engine struct {
	db         *gorm.DB
	source     *fakeSource
	dispatcher *recordingDispatcher
	catalog    *CatalogService
	ledger     *LedgerService
	board      *LeaderboardService
	unlock     *UnlockService
	claims     *ClaimService
}

func newEngine(t *testing.T) *engine {
	t.Helper()
	db := newTestDB(t)
	source := newFakeSource()
	dispatcher := &recordingDispatcher{}
	catalog := NewCatalogService(db)
	ledger := NewLedgerService(db)
	board := NewLeaderboardService(db, source, ledger)
	progress := NewProgressService(source)
	return &engine{
		db:         db,
		source:     source,
		dispatcher: dispatcher,
		catalog:    catalog,
		ledger:     ledger,
		board:      board,
		unlock:     NewUnlockService(db, progress, catalog, dispatcher),
		claims:     NewClaimService(db, ledger, board, dispatcher),
	}
}

func (e *engine) seedAchievement(t *testing.T, code, name string, criteriaType models.CriteriaType, criteriaValue, rewardPoints int) models.Achievement {
	t.Helper()
	def := models.Achievement{
		ID:            uuid.NewString(),
		Code:          code,
		Name:          name,
		CriteriaType:  criteriaType,
		CriteriaValue: criteriaValue,
		RewardPoints:  rewardPoints,
		IsActive:      true,
	}
	if err := e.db.Create(&def).Error; err != nil {
		t.Fatalf("seed achievement %s: %v", code, err)
	}
	return def
}
