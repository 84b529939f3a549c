// Package audit provides the operator-facing event log. Security events
// (OAuth state mismatches in particular) always land here.
package audit

import (
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/stagesync/internal/entities"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// LogEvent saves an audit event to the database.
func (r *Repository) LogEvent(event *entities.AuditEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	return r.db.Create(event).Error
}

// LogSecurityEvent records a security violation, e.g. an OAuth anti-forgery
// failure. These are never silently dropped by callers.
func (r *Repository) LogSecurityEvent(platformID, action, description string) error {
	return r.LogEvent(&entities.AuditEvent{
		EventType:   entities.AuditEventSecurity,
		Action:      action,
		Description: description,
		PlatformID:  platformID,
		Status:      entities.AuditStatusFailed,
	})
}

// GetEvents retrieves paginated audit events, ordered by most recent first.
// An empty platformID returns events for all platforms.
func (r *Repository) GetEvents(platformID string, limit, offset int) ([]entities.AuditEvent, int64, error) {
	var events []entities.AuditEvent
	var total int64

	query := r.db.Model(&entities.AuditEvent{})
	if platformID != "" {
		query = query.Where("platform_id = ?", platformID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&events).Error
	return events, total, err
}

// GetEventsByType retrieves audit events filtered by type.
func (r *Repository) GetEventsByType(eventType entities.AuditEventType, limit, offset int) ([]entities.AuditEvent, int64, error) {
	var events []entities.AuditEvent
	var total int64

	query := r.db.Model(&entities.AuditEvent{}).Where("event_type = ?", eventType)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&events).Error
	return events, total, err
}

// DeleteOldEvents removes audit events older than the specified time.
// Returns the number of deleted events.
func (r *Repository) DeleteOldEvents(olderThan time.Time) (int64, error) {
	result := r.db.Where("created_at < ?", olderThan).Delete(&entities.AuditEvent{})
	return result.RowsAffected, result.Error
}
