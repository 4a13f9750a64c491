package services

import (
	"fmt"

	"rental-rewards-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PointsLedger awards points and reports balances. Award takes the caller's
// transaction handle so the entry commits or rolls back with the claim.
type PointsLedger interface {
	Award(tx *gorm.DB, externalUserID string, amount int, source models.PointsSource, description string) error
	Balance(externalUserID string) (int64, error)
}

// LedgerService is the DB-backed append-only points ledger
type LedgerService struct {
	DB *gorm.DB
}

func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{DB: db}
}

func (s *LedgerService) Award(tx *gorm.DB, externalUserID string, amount int, source models.PointsSource, description string) error {
	if tx == nil {
		tx = s.DB
	}
	if amount < 0 {
		return fmt.Errorf("negative award of %d points for %s", amount, externalUserID)
	}

	entry := models.PointsTransaction{
		ID:             uuid.NewString(),
		ExternalUserID: externalUserID,
		Amount:         amount,
		Source:         source,
		Description:    description,
	}
	return tx.Create(&entry).Error
}

func (s *LedgerService) Balance(externalUserID string) (int64, error) {
	var balance int64
	err := s.DB.Model(&models.PointsTransaction{}).
		Where("external_user_id = ?", externalUserID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&balance).Error
	return balance, err
}
