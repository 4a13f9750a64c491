package services

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"rental-rewards-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// reconcileOne runs a reconcile and returns the single progress row
func reconcileOne(t *testing.T, e *engine, userID string) models.UserAchievementProgress {
	t.Helper()
	result, err := e.unlock.Reconcile(userID)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(result.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(result.Rows))
	}
	return result.Rows[0]
}

func claimCode(t *testing.T, err error) ClaimCode {
	t.Helper()
	var ce *ClaimError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *ClaimError, got %T: %v", err, err)
	}
	return ce.Code
}

func TestClaimFiveRentalsScenario(t *testing.T) {
	e := newEngine(t)
	e.seedAchievement(t, "RENTAL_5", "5 Rentals", models.CriteriaRentalCount, 5, 50)
	e.source.set("user-1", RentalStats{Total: 5, Timely: 4}, 0)

	result, err := e.unlock.Reconcile("user-1")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if result.UnclaimedCount != 1 {
		t.Fatalf("expected unclaimed count 1, got %d", result.UnclaimedCount)
	}
	row := result.Rows[0]
	if row.State != models.StateUnlocked {
		t.Fatalf("expected UNLOCKED, got %s", row.State)
	}

	claimed, err := e.claims.Claim("user-1", row.ID)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed.State != models.StateClaimed {
		t.Fatalf("expected CLAIMED, got %s", claimed.State)
	}
	if claimed.PointsAwarded == nil || *claimed.PointsAwarded != 50 {
		t.Fatalf("expected 50 points awarded, got %v", claimed.PointsAwarded)
	}
	if claimed.ClaimedAt == nil {
		t.Fatal("expected claimed_at to be set")
	}

	balance, err := e.ledger.Balance("user-1")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 50 {
		t.Fatalf("expected ledger balance 50, got %d", balance)
	}

	var snap models.LeaderboardSnapshot
	if err := e.db.Where("external_user_id = ?", "user-1").First(&snap).Error; err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if snap.TotalPointsEarned != 50 {
		t.Fatalf("expected snapshot points 50, got %d", snap.TotalPointsEarned)
	}
	if snap.TotalRentals != 5 || snap.TimelyReturns != 4 {
		t.Fatalf("unexpected snapshot counters: %+v", snap)
	}

	if got := len(e.dispatcher.byTemplate(TemplateAchievementClaimed)); got != 1 {
		t.Fatalf("expected 1 claim notification, got %d", got)
	}
}

func TestClaimNotFound(t *testing.T) {
	e := newEngine(t)
	_, err := e.claims.Claim("user-1", uuid.NewString())
	if code := claimCode(t, err); code != ClaimNotFound {
		t.Fatalf("expected NOT_FOUND, got %s", code)
	}
}

func TestClaimNotOwnedIsNotFound(t *testing.T) {
	e := newEngine(t)
	e.seedAchievement(t, "RENTAL_5", "5 Rentals", models.CriteriaRentalCount, 5, 50)
	e.source.set("user-1", RentalStats{Total: 5}, 0)
	row := reconcileOne(t, e, "user-1")

	_, err := e.claims.Claim("user-2", row.ID)
	if code := claimCode(t, err); code != ClaimNotFound {
		t.Fatalf("expected NOT_FOUND for foreign row, got %s", code)
	}
}

func TestClaimLockedRow(t *testing.T) {
	e := newEngine(t)
	e.seedAchievement(t, "RENTAL_5", "5 Rentals", models.CriteriaRentalCount, 5, 50)
	row := reconcileOne(t, e, "user-1") // zero counters, stays LOCKED

	_, err := e.claims.Claim("user-1", row.ID)
	if code := claimCode(t, err); code != ClaimNotUnlocked {
		t.Fatalf("expected NOT_UNLOCKED, got %s", code)
	}
}

func TestClaimExactlyOnce(t *testing.T) {
	e := newEngine(t)
	e.seedAchievement(t, "RENTAL_5", "5 Rentals", models.CriteriaRentalCount, 5, 50)
	e.source.set("user-1", RentalStats{Total: 5}, 0)
	row := reconcileOne(t, e, "user-1")

	if _, err := e.claims.Claim("user-1", row.ID); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	_, err := e.claims.Claim("user-1", row.ID)
	if code := claimCode(t, err); code != ClaimAlreadyClaimed {
		t.Fatalf("expected ALREADY_CLAIMED, got %s", code)
	}

	balance, _ := e.ledger.Balance("user-1")
	if balance != 50 {
		t.Fatalf("expected exactly one award of 50, got balance %d", balance)
	}
}

func TestConcurrentClaimsOnlyOneWins(t *testing.T) {
	e := newEngine(t)
	e.seedAchievement(t, "RENTAL_5", "5 Rentals", models.CriteriaRentalCount, 5, 50)
	e.source.set("user-1", RentalStats{Total: 5}, 0)
	row := reconcileOne(t, e, "user-1")

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = e.claims.Claim("user-1", row.ID)
		}(i)
	}
	wg.Wait()

	var successes, alreadyClaimed int
	for _, err := range results {
		if err == nil {
			successes++
			continue
		}
		var ce *ClaimError
		if errors.As(err, &ce) && ce.Code == ClaimAlreadyClaimed {
			alreadyClaimed++
		}
	}
	if successes != 1 || alreadyClaimed != 1 {
		t.Fatalf("expected 1 winner and 1 ALREADY_CLAIMED, got %d/%d (%v)", successes, alreadyClaimed, results)
	}

	balance, _ := e.ledger.Balance("user-1")
	if balance != 50 {
		t.Fatalf("expected reward counted once, got balance %d", balance)
	}
}

// failingLedger rejects every award
type failingLedger struct{}

func (failingLedger) Award(tx *gorm.DB, userID string, amount int, source models.PointsSource, description string) error {
	return errors.New("ledger unavailable")
}

func (failingLedger) Balance(userID string) (int64, error) {
	return 0, nil
}

func TestClaimRollsBackWhenLedgerFails(t *testing.T) {
	e := newEngine(t)
	e.seedAchievement(t, "RENTAL_5", "5 Rentals", models.CriteriaRentalCount, 5, 50)
	e.source.set("user-1", RentalStats{Total: 5}, 0)
	row := reconcileOne(t, e, "user-1")

	broken := NewClaimService(e.db, failingLedger{}, e.board, e.dispatcher)
	_, err := broken.Claim("user-1", row.ID)
	if code := claimCode(t, err); code != ClaimInternal {
		t.Fatalf("expected INTERNAL, got %s", code)
	}

	// The CAS must have rolled back with the award.
	var reloaded models.UserAchievementProgress
	if err := e.db.First(&reloaded, "id = ?", row.ID).Error; err != nil {
		t.Fatalf("reload row: %v", err)
	}
	if reloaded.State != models.StateUnlocked {
		t.Fatalf("expected row back to UNLOCKED, got %s", reloaded.State)
	}
	if reloaded.PointsAwarded != nil {
		t.Fatal("expected no points awarded after rollback")
	}
	var ledgerRows int64
	e.db.Model(&models.PointsTransaction{}).Count(&ledgerRows)
	if ledgerRows != 0 {
		t.Fatalf("expected empty ledger after rollback, got %d rows", ledgerRows)
	}
}

func TestClaimMultiplePartialFailure(t *testing.T) {
	e := newEngine(t)
	a := e.seedAchievement(t, "RENTAL_1", "First Ride", models.CriteriaRentalCount, 1, 10)
	b := e.seedAchievement(t, "RENTAL_5", "5 Rentals", models.CriteriaRentalCount, 5, 50)
	c := e.seedAchievement(t, "TIMELY_10", "Right On Time", models.CriteriaTimelyReturnCount, 10, 100)
	_ = a
	_ = b
	_ = c
	e.source.set("user-1", RentalStats{Total: 6, Timely: 12}, 0)

	result, err := e.unlock.Reconcile("user-1")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if result.UnclaimedCount != 3 {
		t.Fatalf("expected 3 unlocked, got %d", result.UnclaimedCount)
	}
	rowByCode := map[string]models.UserAchievementProgress{}
	for _, row := range result.Rows {
		rowByCode[row.Achievement.Code] = row
	}

	// Pre-claim the middle one so the batch hits ALREADY_CLAIMED on it.
	if _, err := e.claims.Claim("user-1", rowByCode["RENTAL_5"].ID); err != nil {
		t.Fatalf("pre-claim: %v", err)
	}
	e.dispatcher.mu.Lock()
	e.dispatcher.sent = nil
	e.dispatcher.mu.Unlock()

	ids := []string{rowByCode["RENTAL_1"].ID, rowByCode["RENTAL_5"].ID, rowByCode["TIMELY_10"].ID}
	bulk, err := e.claims.ClaimMultiple("user-1", ids)
	if err != nil {
		t.Fatalf("bulk claim: %v", err)
	}

	if bulk.SuccessCount != 2 || bulk.FailureCount != 1 {
		t.Fatalf("expected 2 successes and 1 failure, got %d/%d", bulk.SuccessCount, bulk.FailureCount)
	}
	if bulk.TotalPointsAwarded != 110 {
		t.Fatalf("expected 110 total points, got %d", bulk.TotalPointsAwarded)
	}
	if bulk.Failures[0].ProgressID != rowByCode["RENTAL_5"].ID {
		t.Fatalf("unexpected failed id %s", bulk.Failures[0].ProgressID)
	}
	if bulk.Failures[0].ErrorCode != ClaimAlreadyClaimed {
		t.Fatalf("expected ALREADY_CLAIMED, got %s", bulk.Failures[0].ErrorCode)
	}
	// Order-stable: successes keep input order.
	if bulk.Claimed[0].Achievement.Code != "RENTAL_1" || bulk.Claimed[1].Achievement.Code != "TIMELY_10" {
		t.Fatalf("successes out of order: %s, %s", bulk.Claimed[0].Achievement.Code, bulk.Claimed[1].Achievement.Code)
	}

	// Exactly one consolidated notification for the batch.
	if e.dispatcher.total() != 1 {
		t.Fatalf("expected 1 notification, got %d", e.dispatcher.total())
	}
	notes := e.dispatcher.byTemplate(TemplateAchievementsClaimed)
	if len(notes) != 1 {
		t.Fatalf("expected consolidated template, got %v", e.dispatcher.sent)
	}
	if notes[0].data["count"] != 2 || notes[0].data["total_points"] != 110 {
		t.Fatalf("unexpected consolidated payload: %v", notes[0].data)
	}
}

func TestClaimMultipleSingleSuccessUsesSingularNotification(t *testing.T) {
	e := newEngine(t)
	e.seedAchievement(t, "RENTAL_5", "5 Rentals", models.CriteriaRentalCount, 5, 50)
	e.source.set("user-1", RentalStats{Total: 5}, 0)
	row := reconcileOne(t, e, "user-1")

	bulk, err := e.claims.ClaimMultiple("user-1", []string{row.ID})
	if err != nil {
		t.Fatalf("bulk claim: %v", err)
	}
	if bulk.SuccessCount != 1 {
		t.Fatalf("expected 1 success, got %d", bulk.SuccessCount)
	}
	if got := len(e.dispatcher.byTemplate(TemplateAchievementClaimed)); got != 1 {
		t.Fatalf("expected singular claim notification, got %v", e.dispatcher.sent)
	}
	if got := len(e.dispatcher.byTemplate(TemplateAchievementsClaimed)); got != 0 {
		t.Fatal("consolidated template must not fire for a single success")
	}
}

func TestClaimMultipleAllFailedSendsNothing(t *testing.T) {
	e := newEngine(t)
	bulk, err := e.claims.ClaimMultiple("user-1", []string{uuid.NewString(), uuid.NewString()})
	if err != nil {
		t.Fatalf("bulk claim: %v", err)
	}
	if bulk.SuccessCount != 0 || bulk.FailureCount != 2 {
		t.Fatalf("expected 0/2, got %d/%d", bulk.SuccessCount, bulk.FailureCount)
	}
	if e.dispatcher.total() != 0 {
		t.Fatalf("expected no notifications, got %d", e.dispatcher.total())
	}
}

func TestClaimMultipleValidation(t *testing.T) {
	e := newEngine(t)

	_, err := e.claims.ClaimMultiple("user-1", nil)
	if code := claimCode(t, err); code != ClaimValidation {
		t.Fatalf("expected VALIDATION for empty batch, got %s", code)
	}

	ids := make([]string, MaxBulkClaim+1)
	for i := range ids {
		ids[i] = fmt.Sprintf("id-%d", i)
	}
	_, err = e.claims.ClaimMultiple("user-1", ids)
	if code := claimCode(t, err); code != ClaimValidation {
		t.Fatalf("expected VALIDATION for oversized batch, got %s", code)
	}
}
