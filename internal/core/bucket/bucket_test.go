package bucket

import (
	"testing"
)

func intp(v int) *int { return &v }

func TestYearBucketOf_Table(t *testing.T) {
	tests := []struct {
		name string
		year *int
		want YearBucket
	}{
		{name: "nil is unknown", year: nil, want: YearUnknown},
		{name: "ancient", year: intp(1999), want: Y2009AndEarlier},
		{name: "edge 2009", year: intp(2009), want: Y2009AndEarlier},
		{name: "edge 2010", year: intp(2010), want: Y2010to2014},
		{name: "mid 2013", year: intp(2013), want: Y2010to2014},
		{name: "edge 2014", year: intp(2014), want: Y2010to2014},
		{name: "edge 2015", year: intp(2015), want: Y2015to2017},
		{name: "edge 2017", year: intp(2017), want: Y2015to2017},
		{name: "edge 2018", year: intp(2018), want: Y2018to2019},
		{name: "edge 2019", year: intp(2019), want: Y2018to2019},
		{name: "edge 2020", year: intp(2020), want: Y2020to2021},
		{name: "edge 2021", year: intp(2021), want: Y2020to2021},
		{name: "edge 2022", year: intp(2022), want: Y2022to2023},
		{name: "edge 2023", year: intp(2023), want: Y2022to2023},
		{name: "edge 2024", year: intp(2024), want: Y2024AndLater},
		{name: "future", year: intp(2038), want: Y2024AndLater},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := YearBucketOf(tc.year); got != tc.want {
				t.Fatalf("YearBucketOf(%v) = %v, want %v", tc.year, got, tc.want)
			}
		})
	}
}

// Every year lands in exactly one dated bucket: contiguity and non-overlap.
func TestYearBuckets_Contiguous(t *testing.T) {
	prev := YearBucketOf(intp(1800))
	for y := 1801; y <= 2100; y++ {
		b := YearBucketOf(intp(y))
		if b == YearUnknown {
			t.Fatalf("year %d mapped to YearUnknown", y)
		}
		if b != prev && b != prev+1 {
			t.Fatalf("year %d jumped from bucket %v to %v", y, prev, b)
		}
		prev = b
	}
}

func TestMatchesRange(t *testing.T) {
	tests := []struct {
		name     string
		b        YearBucket
		min, max *int
		want     bool
	}{
		{name: "unknown matches closed range", b: YearUnknown, min: intp(2015), max: intp(2016), want: true},
		{name: "unknown matches open range", b: YearUnknown, want: true},
		{name: "open both ends", b: Y2015to2017, want: true},
		{name: "min below", b: Y2015to2017, min: intp(2010), want: true},
		{name: "min inside", b: Y2015to2017, min: intp(2017), want: true},
		{name: "min above", b: Y2015to2017, min: intp(2018), want: false},
		{name: "max above", b: Y2015to2017, max: intp(2020), want: true},
		{name: "max inside", b: Y2015to2017, max: intp(2015), want: true},
		{name: "max below", b: Y2015to2017, max: intp(2014), want: false},
		{name: "oldest never fails max", b: Y2009AndEarlier, max: intp(1850), want: true},
		{name: "oldest fails min", b: Y2009AndEarlier, min: intp(2010), want: false},
		{name: "newest never fails min", b: Y2024AndLater, min: intp(2999), want: true},
		{name: "newest fails max", b: Y2024AndLater, max: intp(2023), want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.b.MatchesRange(tc.min, tc.max); got != tc.want {
				t.Fatalf("MatchesRange(%v, %v) = %v, want %v", tc.min, tc.max, got, tc.want)
			}
		})
	}
}

func TestKey_StringParse_RoundTrip(t *testing.T) {
	keys := AllKeys()
	if len(keys) != 16 {
		t.Fatalf("AllKeys() = %d keys, want 16", len(keys))
	}
	seen := map[string]bool{}
	for _, k := range keys {
		s := k.String()
		if seen[s] {
			t.Fatalf("duplicate key form %q", s)
		}
		seen[s] = true
		got, err := ParseKey(s)
		if err != nil {
			t.Fatalf("ParseKey(%q): %v", s, err)
		}
		if got != k {
			t.Fatalf("ParseKey(%q) = %+v, want %+v", s, got, k)
		}
	}
}

func TestParseKey_Rejects(t *testing.T) {
	bad := []string{
		"", "B4", "B4_S", "b4_s0", "B4-S0", "B8_S0", "B9_S1", "B4_S2",
		"B4_S00", "Bx_S0", "B4_Sx", " B4_S0", "B4_S0 ",
	}
	for _, s := range bad {
		if _, err := ParseKey(s); err == nil {
			t.Fatalf("ParseKey(%q) succeeded, want error", s)
		}
	}
}

func TestKeyOf(t *testing.T) {
	if k := KeyOf(intp(2021), false); k != (Key{Year: Y2020to2021, Scout: Outdoor}) {
		t.Fatalf("KeyOf(2021, false) = %+v", k)
	}
	if k := KeyOf(nil, true); k != (Key{Year: YearUnknown, Scout: Scout}) {
		t.Fatalf("KeyOf(nil, true) = %+v", k)
	}
}
