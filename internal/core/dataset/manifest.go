package dataset

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// CountryMeta is one country's entry in the manifest
type CountryMeta struct {
	Count    int64  `json:"count"`
	Checksum string `json:"checksum,omitempty"` // optional checksum of the country's index document
}

// Manifest is the dataset-wide document listing every country and its
// aggregate count for one dataset version
type Manifest struct {
	SchemaVersion  int                    `json:"schema_version"`
	DatasetVersion string                 `json:"dataset_version"`
	GeneratedAt    time.Time              `json:"generated_at"`
	Countries      map[string]CountryMeta `json:"countries"`
	TotalCount     int64                  `json:"total_count"`
}

// ParseManifest decodes and validates a manifest document
func ParseManifest(b []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("dataset: parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the manifest's internal invariants
func (m *Manifest) Validate() error {
	if m.DatasetVersion == "" {
		return fmt.Errorf("dataset: manifest missing dataset version")
	}
	var sum int64
	for cc, meta := range m.Countries {
		if len(cc) != 2 {
			return fmt.Errorf("dataset: manifest has malformed country code %q", cc)
		}
		if meta.Count < 0 {
			return fmt.Errorf("dataset: manifest country %s has negative count", cc)
		}
		sum += meta.Count
	}
	if sum != m.TotalCount {
		return fmt.Errorf("dataset: manifest country counts sum to %d, document says %d", sum, m.TotalCount)
	}
	return nil
}

// CountryCodes returns all known country codes in sorted order
func (m *Manifest) CountryCodes() []string {
	out := make([]string, 0, len(m.Countries))
	for cc := range m.Countries {
		out = append(out, cc)
	}
	sort.Strings(out)
	return out
}

// HasCountry reports membership
func (m *Manifest) HasCountry(cc string) bool {
	_, ok := m.Countries[cc]
	return ok
}

// CountFor sums the aggregate counts over a subset of countries.
// An empty subset means all countries
func (m *Manifest) CountFor(subset []string) int64 {
	if len(subset) == 0 {
		return m.TotalCount
	}
	var n int64
	for _, cc := range subset {
		if meta, ok := m.Countries[cc]; ok {
			n += meta.Count
		}
	}
	return n
}
