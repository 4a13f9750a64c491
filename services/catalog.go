package services

import (
	"log"

	"rental-rewards-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AchievementCatalog exposes the read side of the achievement definitions.
// Definitions are managed by admin tooling; the engine only lists active ones.
type AchievementCatalog interface {
	ListActive() ([]models.Achievement, error)
}

type CatalogService struct {
	DB *gorm.DB
}

func NewCatalogService(db *gorm.DB) *CatalogService {
	return &CatalogService{DB: db}
}

// ListActive returns active definitions in a stable order so reconcile
// results (and tests) are deterministic.
func (s *CatalogService) ListActive() ([]models.Achievement, error) {
	var defs []models.Achievement
	err := s.DB.Where("is_active = ?", true).
		Order("criteria_type ASC, criteria_value ASC").
		Find(&defs).Error
	return defs, err
}

// SeedDefaults inserts the built-in catalog, skipping codes that already
// exist so admin edits are never overwritten. Safe to run on every startup.
func (s *CatalogService) SeedDefaults() error {
	for i := range models.DefaultAchievements {
		def := models.DefaultAchievements[i]
		def.ID = uuid.NewString()
		if err := s.DB.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoNothing: true,
		}).Create(&def).Error; err != nil {
			return err
		}
	}
	log.Printf("✅ Achievement catalog seeded (%d definitions)", len(models.DefaultAchievements))
	return nil
}
