package entities

import (
	"errors"
	"time"
)

// SyncOperation names an attempted transfer or connection operation.
type SyncOperation string

const (
	OpPushProfile      SyncOperation = "push-profile"
	OpPushAvailability SyncOperation = "push-availability"
	OpPushMedia        SyncOperation = "push-media"
	OpPushBookings     SyncOperation = "push-bookings"
	OpPullProfile      SyncOperation = "pull-profile"
	OpPullAvailability SyncOperation = "pull-availability"
	OpConnect          SyncOperation = "connect"
	OpDisconnect       SyncOperation = "disconnect"
)

// PushOperationFor maps a data type to its push operation.
func PushOperationFor(dt DataType) SyncOperation {
	switch dt {
	case DataTypeProfile:
		return OpPushProfile
	case DataTypeAvailability:
		return OpPushAvailability
	case DataTypeMedia:
		return OpPushMedia
	case DataTypeBookings:
		return OpPushBookings
	}
	return SyncOperation("push-" + string(dt))
}

// PullOperationFor maps a data type to its pull operation.
func PullOperationFor(dt DataType) SyncOperation {
	switch dt {
	case DataTypeProfile:
		return OpPullProfile
	case DataTypeAvailability:
		return OpPullAvailability
	}
	return SyncOperation("pull-" + string(dt))
}

type SyncStatus string

const (
	SyncStatusPending SyncStatus = "pending"
	SyncStatusSuccess SyncStatus = "success"
	SyncStatusFailed  SyncStatus = "failed"
	SyncStatusPartial SyncStatus = "partial"
)

// SyncMode records whether an operation ran against a reachable backing
// service (live) or retained optimistic state because none was (fallback).
type SyncMode string

const (
	SyncModeLive     SyncMode = "live"
	SyncModeFallback SyncMode = "fallback"
)

var (
	ErrCountsOutOfRange = errors.New("items processed exceeds items total")
	ErrStatusMismatch   = errors.New("sync status does not match item counts")
)

// SyncRecord is the immutable history entry for one attempted operation.
type SyncRecord struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	SyncID     string `gorm:"size:36;uniqueIndex" json:"sync_id"`
	PlatformID string `gorm:"size:50;index" json:"platform_id"`

	Operation SyncOperation `gorm:"size:30;index" json:"operation"`
	Status    SyncStatus    `gorm:"size:20" json:"status"`
	Mode      SyncMode      `gorm:"size:20" json:"mode"`

	ItemsProcessed int   `json:"items_processed"`
	ItemsTotal     int   `json:"items_total"`
	DurationMs     int64 `json:"duration_ms"`

	// Error is the structured cause, empty on success.
	Error string `gorm:"size:500" json:"error,omitempty"`

	// Metadata carries extra JSON, e.g. the rejected item list of a
	// partial push or the synthetic-success marker of a fallback run.
	Metadata string `gorm:"type:text" json:"metadata,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (SyncRecord) TableName() string {
	return "sync_records"
}

// Validate enforces the count/status invariants before a record is written.
func (r *SyncRecord) Validate() error {
	if r.ItemsProcessed > r.ItemsTotal || r.ItemsProcessed < 0 {
		return ErrCountsOutOfRange
	}
	switch r.Status {
	case SyncStatusSuccess:
		if r.ItemsProcessed != r.ItemsTotal {
			return ErrStatusMismatch
		}
	case SyncStatusPartial:
		if r.ItemsProcessed == 0 || r.ItemsProcessed == r.ItemsTotal {
			return ErrStatusMismatch
		}
	}
	return nil
}
