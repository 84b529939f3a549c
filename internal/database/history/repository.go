// Package history provides the append-only store of sync attempts.
//
// Records are immutable once written: the repository exposes no update or
// single-record delete operations, only appends and reverse-chronological
// reads. A retention task may purge whole age bands.
package history

import (
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/stagesync/internal/entities"
)

const defaultLimit = 50

// Repository handles sync record persistence and queries.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new history repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Append writes one record after validating its count/status invariants.
func (r *Repository) Append(record *entities.SyncRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	return r.db.Create(record).Error
}

// Recent returns records newest first. A platformID of "" returns records
// for all platforms. Pagination works by increasing limit; ordering is
// stable because records are immutable.
func (r *Repository) Recent(limit int, platformID string) ([]entities.SyncRecord, error) {
	if limit <= 0 {
		limit = defaultLimit
	}

	query := r.db.Model(&entities.SyncRecord{})
	if platformID != "" {
		query = query.Where("platform_id = ?", platformID)
	}

	var records []entities.SyncRecord
	err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&records).Error
	return records, err
}

// CountByPlatform returns the number of recorded attempts for a platform.
func (r *Repository) CountByPlatform(platformID string) (int64, error) {
	var total int64
	err := r.db.Model(&entities.SyncRecord{}).
		Where("platform_id = ?", platformID).
		Count(&total).Error
	return total, err
}

// DeleteOlderThan removes records past the retention horizon.
// Returns the number of deleted records.
func (r *Repository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result := r.db.Where("created_at < ?", cutoff).Delete(&entities.SyncRecord{})
	return result.RowsAffected, result.Error
}
