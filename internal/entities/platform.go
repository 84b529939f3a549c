package entities

import (
	"encoding/json"
	"time"
)

// ConnectionType classifies how a platform is reached.
type ConnectionType string

const (
	ConnectionTypeAPI      ConnectionType = "api"
	ConnectionTypeAgent    ConnectionType = "agent"
	ConnectionTypeManual   ConnectionType = "manual"
	ConnectionTypeOAuthAPI ConnectionType = "oauth-api"
)

// DataType identifies a synchronizable slice of the performer aggregate.
type DataType string

const (
	DataTypeProfile      DataType = "profile"
	DataTypeAvailability DataType = "availability"
	DataTypeMedia        DataType = "media"
	DataTypeBookings     DataType = "bookings"
)

// TestOutcome is the result of a connectivity probe.
type TestOutcome string

const (
	TestOutcomePassed TestOutcome = "passed"
	TestOutcomeFailed TestOutcome = "failed"
)

// Platform tracks the live connection state for one external platform.
// Capability metadata (connection class, supported data types) lives in
// the registry, not here; this row only carries mutable state.
type Platform struct {
	ID             string         `gorm:"primaryKey;size:50" json:"id"`
	Name           string         `gorm:"size:100" json:"name"`
	ConnectionType ConnectionType `gorm:"size:20;not null" json:"connection_type"`
	Connected      bool           `json:"connected"`

	// SyncSettings is a JSON object mapping data type -> enabled flag.
	SyncSettings string `gorm:"type:text" json:"sync_settings,omitempty"`

	LastSync   *time.Time  `json:"last_sync,omitempty"`
	LastTested *time.Time  `json:"last_tested,omitempty"`
	TestResult TestOutcome `gorm:"size:20" json:"test_result,omitempty"`

	// LastError holds the most recent operation error for display.
	// Cleared by a subsequent successful call; history is the durable record.
	LastError string `gorm:"size:500" json:"last_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Platform) TableName() string {
	return "platforms"
}

// IsManual reports whether the platform is coordination-only.
func (p *Platform) IsManual() bool {
	return p.ConnectionType == ConnectionTypeManual
}

// SettingsMap decodes SyncSettings into a map. Missing or invalid
// settings decode to an empty map, which means "nothing enabled".
func (p *Platform) SettingsMap() map[DataType]bool {
	settings := make(map[DataType]bool)
	if p.SyncSettings == "" {
		return settings
	}
	if err := json.Unmarshal([]byte(p.SyncSettings), &settings); err != nil {
		return make(map[DataType]bool)
	}
	return settings
}

// SetSettingsMap encodes the map into SyncSettings.
func (p *Platform) SetSettingsMap(settings map[DataType]bool) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	p.SyncSettings = string(data)
	return nil
}

// SyncEnabled reports whether syncing of the given data type is enabled.
func (p *Platform) SyncEnabled(dt DataType) bool {
	return p.SettingsMap()[dt]
}
