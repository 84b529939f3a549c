package entities

import "time"

// AggregateSlice holds one locally authoritative slice of the performer
// aggregate (profile, availability, media, bookings) as an opaque JSON
// payload. The engine snapshots and restores whole slices; it does not
// interpret their schema.
type AggregateSlice struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Scope     string    `gorm:"size:100;uniqueIndex" json:"scope"`
	Payload   string    `gorm:"type:text" json:"payload"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (AggregateSlice) TableName() string {
	return "aggregate_slices"
}
