// Package registry holds the static capability metadata for every
// supported platform. It is the single source of truth consulted before
// any transfer is attempted; no component bypasses it.
package registry

import (
	"errors"
	"fmt"

	"github.com/mrlokans/stagesync/internal/entities"
)

var ErrUnknownPlatform = errors.New("unknown platform")

// Capabilities describes what a platform supports. Connection class and
// supported data types are fixed per platform, not user-settable.
type Capabilities struct {
	ID                 string                  `json:"id"`
	Name               string                  `json:"name"`
	ConnectionType     entities.ConnectionType `json:"connection_type"`
	SupportedDataTypes []entities.DataType     `json:"supported_data_types"`
	Regions            []string                `json:"regions"`
}

// Supports reports whether the platform accepts the given data type.
func (c Capabilities) Supports(dt entities.DataType) bool {
	for _, supported := range c.SupportedDataTypes {
		if supported == dt {
			return true
		}
	}
	return false
}

var defaultPlatforms = []Capabilities{
	{
		ID:             "gigdesk",
		Name:           "GigDesk",
		ConnectionType: entities.ConnectionTypeAPI,
		SupportedDataTypes: []entities.DataType{
			entities.DataTypeProfile, entities.DataTypeAvailability, entities.DataTypeMedia,
		},
		Regions: []string{"us", "ca"},
	},
	{
		ID:             "stagebook",
		Name:           "StageBook",
		ConnectionType: entities.ConnectionTypeOAuthAPI,
		SupportedDataTypes: []entities.DataType{
			entities.DataTypeProfile, entities.DataTypeAvailability,
			entities.DataTypeMedia, entities.DataTypeBookings,
		},
		Regions: []string{"us", "eu", "uk"},
	},
	{
		ID:             "showcal",
		Name:           "ShowCal",
		ConnectionType: entities.ConnectionTypeAPI,
		SupportedDataTypes: []entities.DataType{
			entities.DataTypeAvailability, entities.DataTypeBookings,
		},
		Regions: []string{"us"},
	},
	{
		ID:             "promoly",
		Name:           "Promoly",
		ConnectionType: entities.ConnectionTypeAgent,
		SupportedDataTypes: []entities.DataType{
			entities.DataTypeProfile, entities.DataTypeMedia,
		},
		Regions: []string{"us", "eu"},
	},
	{
		ID:             "venuewire",
		Name:           "VenueWire",
		ConnectionType: entities.ConnectionTypeOAuthAPI,
		SupportedDataTypes: []entities.DataType{
			entities.DataTypeProfile, entities.DataTypeAvailability,
		},
		Regions: []string{"eu", "uk"},
	},
	{
		ID:             "fairlist",
		Name:           "FairList",
		ConnectionType: entities.ConnectionTypeManual,
		SupportedDataTypes: []entities.DataType{
			entities.DataTypeProfile,
		},
		Regions: []string{"us"},
	},
}

// Registry provides read-only capability lookups.
type Registry struct {
	platforms map[string]Capabilities
	order     []string
}

// New creates a registry with the built-in platform catalog.
func New() *Registry {
	return NewWithPlatforms(defaultPlatforms)
}

// NewWithPlatforms creates a registry from an explicit catalog. Used by
// tests to register fixture platforms.
func NewWithPlatforms(platforms []Capabilities) *Registry {
	r := &Registry{platforms: make(map[string]Capabilities, len(platforms))}
	for _, p := range platforms {
		r.platforms[p.ID] = p
		r.order = append(r.order, p.ID)
	}
	return r
}

// CapabilitiesOf returns the capability record for a platform id.
func (r *Registry) CapabilitiesOf(platformID string) (Capabilities, error) {
	caps, ok := r.platforms[platformID]
	if !ok {
		return Capabilities{}, fmt.Errorf("%w: %q", ErrUnknownPlatform, platformID)
	}
	return caps, nil
}

// All returns every registered platform in registration order.
func (r *Registry) All() []Capabilities {
	all := make([]Capabilities, 0, len(r.order))
	for _, id := range r.order {
		all = append(all, r.platforms[id])
	}
	return all
}
