// Package domain declares the location-selection types and ports shared by the
// pack-backed and database-backed providers
package domain

import (
	"geopack/internal/core/packfmt"
)

// Distribution picks how selection weight is spread across countries
type Distribution string

const (
	// DistributionProportional weights each country by its eligible record count
	DistributionProportional Distribution = "proportional"

	// DistributionEqual gives every eligible country the same weight
	DistributionEqual Distribution = "equal"

	// DistributionCustom uses caller-supplied per-country weights; countries
	// absent from the weight map are excluded
	DistributionCustom Distribution = "custom"
)

// Rules filter and weight the records a map draws from
type Rules struct {
	// Countries is an allow-list of ISO country codes; empty means all
	Countries []string `json:"countries,omitempty" validate:"omitempty,dive,len=2,uppercase"`

	// MinYear and MaxYear bound the capture year; nil means open-ended.
	// Records without a capture date always pass
	MinYear *int `json:"min_year,omitempty" validate:"omitempty,min=1900,max=2100"`
	MaxYear *int `json:"max_year,omitempty" validate:"omitempty,min=1900,max=2100"`

	// OutdoorOnly excludes scout (portable-camera) coverage
	OutdoorOnly bool `json:"outdoor_only,omitempty"`

	// Distribution selects the weighting strategy
	Distribution Distribution `json:"distribution" validate:"required,oneof=proportional equal custom"`

	// CustomWeights is required when Distribution is custom
	CustomWeights map[string]float64 `json:"custom_weights,omitempty" validate:"omitempty,dive,keys,len=2,uppercase,endkeys,gt=0"`
}

// Map is a named, registered rule set players select from
type Map struct {
	ID      string   `json:"id" validate:"omitempty,uuid4"`
	Slug    string   `json:"slug" validate:"required,lowercase"`
	Name    string   `json:"name" validate:"required"`
	Aliases []string `json:"aliases,omitempty" validate:"omitempty,dive,lowercase"`
	Rules   Rules    `json:"rules" validate:"required"`
}

// Location is one selected record together with the country it came from
type Location struct {
	Country string
	Record  packfmt.Record
}

// Hash returns the record's stable selection key
func (l Location) Hash() uint64 { return l.Record.Hash }

// Constraints restrict a single-location draw for anti-repetition
type Constraints struct {
	// MinDistanceMeters is the minimum great-circle distance to every prior
	// location; zero disables the constraint
	MinDistanceMeters float64

	// PriorLocations are this round's earlier picks
	PriorLocations []Location
}

// Active reports whether the constraint actually restricts anything
func (c Constraints) Active() bool {
	return c.MinDistanceMeters > 0 && len(c.PriorLocations) > 0
}
