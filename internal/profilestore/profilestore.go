// Package profilestore holds the locally authoritative performer
// aggregate, one opaque JSON payload per scope (profile, availability,
// media, bookings). The sync engine snapshots and restores whole slices;
// slice schemas belong to the callers.
package profilestore

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/stagesync/internal/entities"
)

// Store provides slice-level reads and writes of the local aggregate.
type Store struct {
	db *gorm.DB
}

// New creates a new aggregate store.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Get returns the payload for a scope, or "" when the scope has never
// been written.
func (s *Store) Get(scope string) (string, error) {
	var slice entities.AggregateSlice
	err := s.db.Where("scope = ?", scope).First(&slice).Error
	if err == gorm.ErrRecordNotFound {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read scope %q: %w", scope, err)
	}
	return slice.Payload, nil
}

// Put upserts the payload for a scope.
func (s *Store) Put(scope, payload string) error {
	slice := entities.AggregateSlice{Scope: scope, Payload: payload}
	result := s.db.Where("scope = ?", scope).
		Assign(map[string]any{
			"payload":    payload,
			"updated_at": time.Now(),
		}).
		FirstOrCreate(&slice)
	if result.Error != nil {
		return fmt.Errorf("failed to write scope %q: %w", scope, result.Error)
	}
	return nil
}

// UpdatedAt returns when a scope was last written, nil if never.
func (s *Store) UpdatedAt(scope string) (*time.Time, error) {
	var slice entities.AggregateSlice
	err := s.db.Where("scope = ?", scope).First(&slice).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &slice.UpdatedAt, nil
}
