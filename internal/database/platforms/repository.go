// Package platforms provides database operations for live platform state.
package platforms

import (
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/stagesync/internal/entities"
)

// Repository handles all platform state database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new platform repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Get retrieves a platform state row by id.
func (r *Repository) Get(platformID string) (*entities.Platform, error) {
	var platform entities.Platform
	err := r.db.Where("id = ?", platformID).First(&platform).Error
	if err != nil {
		return nil, err
	}
	return &platform, nil
}

// List returns all platform state rows.
func (r *Repository) List() ([]entities.Platform, error) {
	var platforms []entities.Platform
	err := r.db.Order("id").Find(&platforms).Error
	return platforms, err
}

// Save persists the full platform row.
func (r *Repository) Save(platform *entities.Platform) error {
	platform.UpdatedAt = time.Now()
	return r.db.Save(platform).Error
}

// MarkTested records the outcome of a connectivity probe without touching
// any sync state.
func (r *Repository) MarkTested(platformID string, outcome entities.TestOutcome) error {
	return r.db.Model(&entities.Platform{}).
		Where("id = ?", platformID).
		Updates(map[string]any{
			"last_tested": time.Now(),
			"test_result": outcome,
			"updated_at":  time.Now(),
		}).Error
}

// MarkSynced stamps the last successful (or partial) sync time.
func (r *Repository) MarkSynced(platformID string, at time.Time) error {
	return r.db.Model(&entities.Platform{}).
		Where("id = ?", platformID).
		Updates(map[string]any{
			"last_sync":  at,
			"last_error": "",
			"updated_at": time.Now(),
		}).Error
}

// SetLastError records the most recent error for display. History remains
// the durable record; this slot is cleared by the next success.
func (r *Repository) SetLastError(platformID string, message string) error {
	return r.db.Model(&entities.Platform{}).
		Where("id = ?", platformID).
		Updates(map[string]any{
			"last_error": message,
			"updated_at": time.Now(),
		}).Error
}
