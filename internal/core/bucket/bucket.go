// Package bucket defines the (capture-year, scout) partition keys used to
// shard location records across pack files. Key assignment is a pure function
// of the record's capture date and scout flag; buckets are never reassigned
// after a dataset is built
package bucket

import (
	"fmt"
	"math"
)

// YearBucket is one of eight capture-year partitions
type YearBucket uint8

// Year buckets, in wire order. The dated ranges are contiguous and
// non-overlapping; YearUnknown is a distinct ninth-less case for records
// without a capture date
const (
	Y2009AndEarlier YearBucket = iota
	Y2010to2014
	Y2015to2017
	Y2018to2019
	Y2020to2021
	Y2022to2023
	Y2024AndLater
	YearUnknown

	numYearBuckets = 8
)

// yearRanges holds the inclusive [lo, hi] span per dated bucket.
// Open ends use math.MinInt / math.MaxInt
var yearRanges = [numYearBuckets - 1]struct{ lo, hi int }{
	{math.MinInt, 2009},
	{2010, 2014},
	{2015, 2017},
	{2018, 2019},
	{2020, 2021},
	{2022, 2023},
	{2024, math.MaxInt},
}

// YearBucketOf maps an optional capture year to exactly one bucket.
// nil means the capture date is unknown
func YearBucketOf(year *int) YearBucket {
	if year == nil {
		return YearUnknown
	}
	y := *year
	for i, r := range yearRanges {
		if y >= r.lo && y <= r.hi {
			return YearBucket(i)
		}
	}
	// unreachable: the dated ranges cover all of int
	return YearUnknown
}

// MatchesRange reports whether the bucket's year span overlaps [min, max].
// Nil bounds are open. YearUnknown always matches: records without a capture
// date cannot be excluded by a year filter
func (b YearBucket) MatchesRange(min, max *int) bool {
	if b == YearUnknown {
		return true
	}
	r := yearRanges[b]
	if min != nil && r.hi < *min {
		return false
	}
	if max != nil && r.lo > *max {
		return false
	}
	return true
}

// ScoutBucket splits vehicle-mounted (outdoor) coverage from portable
// (scout/trekker) coverage
type ScoutBucket uint8

// Scout buckets
const (
	Outdoor ScoutBucket = iota
	Scout
)

// Key is one (year, scout) partition
type Key struct {
	Year  YearBucket
	Scout ScoutBucket
}

// KeyOf derives the partition key for a record's capture year and scout flag
func KeyOf(year *int, scout bool) Key {
	k := Key{Year: YearBucketOf(year), Scout: Outdoor}
	if scout {
		k.Scout = Scout
	}
	return k
}

// String renders the wire form, e.g. "B4_S0"
func (k Key) String() string {
	return fmt.Sprintf("B%d_S%d", k.Year, k.Scout)
}

// ParseKey is the exact inverse of Key.String.
// Anything but a valid wire form is rejected
func ParseKey(s string) (Key, error) {
	// fixed shape: 'B' digit '_' 'S' digit
	if len(s) != 5 || s[0] != 'B' || s[2] != '_' || s[3] != 'S' {
		return Key{}, fmt.Errorf("bucket: malformed key %q", s)
	}
	y := s[1] - '0'
	sc := s[4] - '0'
	if y > numYearBuckets-1 {
		return Key{}, fmt.Errorf("bucket: year bucket out of range in %q", s)
	}
	if sc > 1 {
		return Key{}, fmt.Errorf("bucket: scout bucket out of range in %q", s)
	}
	return Key{Year: YearBucket(y), Scout: ScoutBucket(sc)}, nil
}

// AllKeys enumerates the 16 valid keys in stable wire order
func AllKeys() []Key {
	out := make([]Key, 0, numYearBuckets*2)
	for y := YearBucket(0); y < numYearBuckets; y++ {
		for _, sc := range []ScoutBucket{Outdoor, Scout} {
			out = append(out, Key{Year: y, Scout: sc})
		}
	}
	return out
}
