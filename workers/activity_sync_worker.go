package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"rental-rewards-system/models"
	"rental-rewards-system/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ActivitySyncClient pulls changed rental and referral records from the
// rental platform's sync API and mirrors them locally. The mirror tables are
// what the achievement engine counts against.
type ActivitySyncClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	DB         *gorm.DB
}

func NewActivitySyncClient(db *gorm.DB, baseURL, serviceToken string) *ActivitySyncClient {
	return &ActivitySyncClient{
		BaseURL:    baseURL,
		Token:      serviceToken,
		DB:         db,
		HTTPClient: utils.HTTPClient,
	}
}

func (c *ActivitySyncClient) getChanges(ctx context.Context, path string, since time.Time, out interface{}) error {
	u, err := url.Parse(fmt.Sprintf("%s%s", c.BaseURL, path))
	if err != nil {
		return fmt.Errorf("failed to parse sync URL: %w", err)
	}
	q := u.Query()
	q.Set("since", since.UTC().Format(time.RFC3339))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Service-Token", c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call sync service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("sync service returned status %d: %s", resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode sync service response: %w", err)
	}
	return nil
}

func (c *ActivitySyncClient) GetChangedRentals(ctx context.Context, since time.Time) ([]models.RentalMirror, error) {
	var response struct {
		Rentals []models.RentalMirror `json:"rentals"`
	}
	if err := c.getChanges(ctx, "/api/v1/public/rentals", since, &response); err != nil {
		return nil, err
	}
	return response.Rentals, nil
}

func (c *ActivitySyncClient) GetChangedReferrals(ctx context.Context, since time.Time) ([]models.ReferralMirror, error) {
	var response struct {
		Referrals []models.ReferralMirror `json:"referrals"`
	}
	if err := c.getChanges(ctx, "/api/v1/public/referrals", since, &response); err != nil {
		return nil, err
	}
	return response.Referrals, nil
}

// UpsertRentals batch-upserts mirrored rentals in one statement
func (c *ActivitySyncClient) UpsertRentals(rentals []models.RentalMirror) error {
	if len(rentals) == 0 {
		return nil
	}
	return c.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"external_user_id", "vehicle_id", "status", "returned_on_time",
			"started_at", "completed_at", "updated_at",
		}),
	}).Create(&rentals).Error
}

// UpsertReferrals batch-upserts mirrored referrals in one statement
func (c *ActivitySyncClient) UpsertReferrals(referrals []models.ReferralMirror) error {
	if len(referrals) == 0 {
		return nil
	}
	return c.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"referrer_id", "referred_id", "referral_code_used", "status",
			"completed_at", "updated_at",
		}),
	}).Create(&referrals).Error
}

// PollActivity mirrors rental and referral changes on an interval. The sync
// watermark only advances when both upserts succeed, so a failed tick retries
// the same window.
func PollActivity(ctx context.Context, client *ActivitySyncClient, pollInterval time.Duration) {
	log.Println("Starting activity polling (DB-backed mirrors)...")
	lastSyncTime := time.Now().UTC().Add(-24 * time.Hour)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Activity polling stopped.")
			return
		case <-ticker.C:
			tickTime := time.Now().UTC()

			rentals, err := client.GetChangedRentals(ctx, lastSyncTime)
			if err != nil {
				log.Printf("❌ Error polling rentals: %v", err)
				continue
			}
			referrals, err := client.GetChangedReferrals(ctx, lastSyncTime)
			if err != nil {
				log.Printf("❌ Error polling referrals: %v", err)
				continue
			}

			if len(rentals) == 0 && len(referrals) == 0 {
				lastSyncTime = tickTime
				continue
			}

			if err := client.UpsertRentals(rentals); err != nil {
				log.Printf("❌ Failed to upsert %d rental(s): %v", len(rentals), err)
				continue
			}
			if err := client.UpsertReferrals(referrals); err != nil {
				log.Printf("❌ Failed to upsert %d referral(s): %v", len(referrals), err)
				continue
			}

			lastSyncTime = tickTime
			log.Printf("✅ Mirrored %d rental(s), %d referral(s)", len(rentals), len(referrals))
		}
	}
}
