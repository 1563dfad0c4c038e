// Package dataset models the structured documents that describe one pack
// dataset: the dataset-wide manifest and the per-country bucket indexes
package dataset

import (
	"encoding/json"
	"fmt"
	"sort"

	"geopack/internal/core/bucket"
	"geopack/internal/core/packfmt"
)

// BucketInfo describes one bucket's slice of a country
type BucketInfo struct {
	Count    int64  `json:"count"`
	PackFile string `json:"pack"`
}

// CountryIndex lists, per bucket, the record count and backing pack file for
// one country
type CountryIndex struct {
	Country        string                `json:"country"`
	DatasetVersion string                `json:"dataset_version"`
	RecordSize     int                   `json:"record_size"`
	TotalCount     int64                 `json:"total_count"`
	Buckets        map[string]BucketInfo `json:"buckets"`
}

// EligibleBucket is one bucket surviving a rules filter
type EligibleBucket struct {
	Key  bucket.Key
	Info BucketInfo
}

// ParseCountryIndex decodes and validates an index document
func ParseCountryIndex(b []byte) (*CountryIndex, error) {
	var ci CountryIndex
	if err := json.Unmarshal(b, &ci); err != nil {
		return nil, fmt.Errorf("dataset: parse country index: %w", err)
	}
	if err := ci.Validate(); err != nil {
		return nil, err
	}
	return &ci, nil
}

// Validate checks the document's internal invariants
func (ci *CountryIndex) Validate() error {
	if ci.Country == "" {
		return fmt.Errorf("dataset: index missing country code")
	}
	if ci.RecordSize != packfmt.RecordSize {
		return fmt.Errorf("dataset: index %s declares record size %d, runtime expects %d",
			ci.Country, ci.RecordSize, packfmt.RecordSize)
	}
	var sum int64
	for ks, info := range ci.Buckets {
		if _, err := bucket.ParseKey(ks); err != nil {
			return fmt.Errorf("dataset: index %s: %w", ci.Country, err)
		}
		if info.Count < 0 {
			return fmt.Errorf("dataset: index %s bucket %s has negative count", ci.Country, ks)
		}
		if info.Count > 0 && info.PackFile == "" {
			return fmt.Errorf("dataset: index %s bucket %s has no pack file", ci.Country, ks)
		}
		sum += info.Count
	}
	if sum != ci.TotalCount {
		return fmt.Errorf("dataset: index %s bucket counts sum to %d, document says %d",
			ci.Country, sum, ci.TotalCount)
	}
	return nil
}

// Total returns the record count across all buckets
func (ci *CountryIndex) Total() int64 {
	var n int64
	for _, info := range ci.Buckets {
		n += info.Count
	}
	return n
}

// EligibleBuckets returns every non-empty bucket whose year range overlaps
// [minYear, maxYear] and whose scout side passes the outdoor-only policy.
// Results are in stable key order. Widening any filter never shrinks the set
func (ci *CountryIndex) EligibleBuckets(minYear, maxYear *int, outdoorOnly bool) []EligibleBucket {
	keys := make([]string, 0, len(ci.Buckets))
	for ks := range ci.Buckets {
		keys = append(keys, ks)
	}
	sort.Strings(keys)

	var out []EligibleBucket
	for _, ks := range keys {
		info := ci.Buckets[ks]
		if info.Count == 0 {
			continue
		}
		k, err := bucket.ParseKey(ks)
		if err != nil {
			continue // Validate rejects these up front
		}
		if outdoorOnly && k.Scout == bucket.Scout {
			continue
		}
		if !k.Year.MatchesRange(minYear, maxYear) {
			continue
		}
		out = append(out, EligibleBucket{Key: k, Info: info})
	}
	return out
}

// EligibleCount sums the record counts of the eligible buckets
func (ci *CountryIndex) EligibleCount(minYear, maxYear *int, outdoorOnly bool) int64 {
	var n int64
	for _, eb := range ci.EligibleBuckets(minYear, maxYear, outdoorOnly) {
		n += eb.Info.Count
	}
	return n
}
