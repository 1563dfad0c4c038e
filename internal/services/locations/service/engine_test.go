package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"geopack/internal/adapters/packstore"
	"geopack/internal/core/bucket"
	"geopack/internal/core/dataset"
	"geopack/internal/core/geo"
	"geopack/internal/core/packfmt"
	"geopack/internal/platform/testkit"
	"geopack/internal/services/locations/domain"
)

const testVersion = "v1"

// countrySpec describes one fixture country: a home coordinate and a record
// count per bucket
type countrySpec struct {
	lat, lng float64
	buckets  map[bucket.Key]int
}

// representative capture day for a bucket's year range, 0 for unknown
func captureDaysFor(y bucket.YearBucket) uint16 {
	years := map[bucket.YearBucket]int{
		bucket.Y2009AndEarlier: 2008,
		bucket.Y2010to2014:     2012,
		bucket.Y2015to2017:     2016,
		bucket.Y2018to2019:     2018,
		bucket.Y2020to2021:     2020,
		bucket.Y2022to2023:     2022,
		bucket.Y2024AndLater:   2024,
	}
	yr, ok := years[y]
	if !ok {
		return 0
	}
	t := time.Date(yr, time.June, 1, 0, 0, 0, 0, time.UTC)
	return uint16(t.Unix() / 86400)
}

// writeDataset lays out a fixture dataset and returns its root directory
func writeDataset(t *testing.T, spec map[string]countrySpec) string {
	t.Helper()
	dir := t.TempDir()

	var manifestCountries []string
	var grandTotal int64

	for cc, cs := range spec {
		ccDir := filepath.Join(dir, testVersion, "countries", cc)
		testkit.MustNoErr(t, os.MkdirAll(ccDir, 0o755))

		var entries []string
		var ccTotal int64
		for k, n := range cs.buckets {
			packName := dataset.PackObjectName(cc, k)
			pack := make([]byte, 0, n*packfmt.RecordSize)
			for i := 0; i < n; i++ {
				rec := packfmt.Record{
					PanoID:      fmt.Sprintf("%s-%s-%04d", cc, k, i),
					Lat:         cs.lat,
					Lng:         cs.lng,
					CaptureDays: captureDaysFor(k.Year),
					Scout:       k.Scout == bucket.Scout,
				}
				buf, err := packfmt.Encode(rec)
				testkit.MustNoErr(t, err)
				pack = append(pack, buf...)
			}
			testkit.MustNoErr(t, os.WriteFile(filepath.Join(ccDir, packName), pack, 0o644))
			entries = append(entries, fmt.Sprintf("%q: {\"count\": %d, \"pack\": %q}", k.String(), n, packName))
			ccTotal += int64(n)
		}

		index := fmt.Sprintf(`{
			"country": %q, "dataset_version": %q, "record_size": %d,
			"total_count": %d, "buckets": {%s}
		}`, cc, testVersion, packfmt.RecordSize, ccTotal, strings.Join(entries, ","))
		testkit.MustNoErr(t, os.WriteFile(filepath.Join(ccDir, "index.json"), []byte(index), 0o644))

		manifestCountries = append(manifestCountries, fmt.Sprintf("%q: {\"count\": %d}", cc, ccTotal))
		grandTotal += ccTotal
	}

	manifest := fmt.Sprintf(`{
		"schema_version": 1, "dataset_version": %q,
		"generated_at": "2026-01-15T00:00:00Z",
		"countries": {%s}, "total_count": %d
	}`, testVersion, strings.Join(manifestCountries, ","), grandTotal)
	testkit.MustNoErr(t, os.WriteFile(filepath.Join(dir, testVersion, "manifest.json"), []byte(manifest), 0o644))
	return dir
}

func newTestEngine(t *testing.T, spec map[string]countrySpec, cfg Config) *Engine {
	t.Helper()
	if cfg.Seed == 0 {
		cfg.Seed = 42
	}
	dir := writeDataset(t, spec)
	return NewEngine(packstore.NewFS(dir, testVersion), NewRegistry(), cfg)
}

func outdoorKey(y bucket.YearBucket) bucket.Key {
	return bucket.Key{Year: y, Scout: bucket.Outdoor}
}

func proportional() domain.Rules {
	return domain.Rules{Distribution: domain.DistributionProportional}
}

func TestSelectLocations_SingleBucketScenario(t *testing.T) {
	e := newTestEngine(t, map[string]countrySpec{
		"AD": {lat: 42.5, lng: 1.5, buckets: map[bucket.Key]int{outdoorKey(bucket.Y2020to2021): 1000}},
	}, Config{})

	locs, err := e.SelectLocations(context.Background(), proportional(), nil, 5)
	testkit.MustNoErr(t, err)
	if len(locs) != 5 {
		t.Fatalf("got %d locations, want 5", len(locs))
	}
	seen := map[uint64]bool{}
	for _, l := range locs {
		if l.Country != "AD" {
			t.Fatalf("unexpected country %q", l.Country)
		}
		if seen[l.Hash()] {
			t.Fatalf("duplicate hash %d", l.Hash())
		}
		seen[l.Hash()] = true
		if l.Record.Hash != packfmt.HashPanoID(l.Record.PanoID) {
			t.Fatal("hash does not match pano id")
		}
	}
}

func TestSelectLocations_ExcludeAndDisabled(t *testing.T) {
	e := newTestEngine(t, map[string]countrySpec{
		"AD": {lat: 42.5, lng: 1.5, buckets: map[bucket.Key]int{outdoorKey(bucket.Y2020to2021): 20}},
	}, Config{})
	ctx := context.Background()

	excluded := packfmt.HashPanoID("AD-B4_S0-0003")
	testkit.MustNoErr(t, e.MarkLocationFailed(ctx, "AD-B4_S0-0007"))

	for trial := 0; trial < 20; trial++ {
		locs, err := e.SelectLocations(ctx, proportional(), []uint64{excluded}, 10)
		testkit.MustNoErr(t, err)
		for _, l := range locs {
			if l.Hash() == excluded {
				t.Fatal("excluded hash returned")
			}
			if l.Record.PanoID == "AD-B4_S0-0007" {
				t.Fatal("disabled location returned")
			}
		}
	}
}

func TestSelectLocations_PartialSuccess(t *testing.T) {
	e := newTestEngine(t, map[string]countrySpec{
		"AD": {lat: 42.5, lng: 1.5, buckets: map[bucket.Key]int{outdoorKey(bucket.Y2020to2021): 3}},
	}, Config{})

	// only 3 records exist; asking for 10 should return the 3, not error
	locs, err := e.SelectLocations(context.Background(), proportional(), nil, 10)
	testkit.MustNoErr(t, err)
	if len(locs) != 3 {
		t.Fatalf("got %d locations, want 3", len(locs))
	}
}

func TestSelectLocations_NoEligible(t *testing.T) {
	e := newTestEngine(t, map[string]countrySpec{
		"AD": {lat: 42.5, lng: 1.5, buckets: map[bucket.Key]int{outdoorKey(bucket.Y2020to2021): 10}},
	}, Config{})
	ctx := context.Background()

	// allow-list disjoint from the manifest
	rules := proportional()
	rules.Countries = []string{"ZZ"}
	_, err := e.SelectLocations(ctx, rules, nil, 1)
	testkit.MustErrIs(t, err, domain.ErrNoEligibleBuckets)

	// year filter excludes the only bucket
	minYear, maxYear := 2010, 2012
	rules = proportional()
	rules.MinYear, rules.MaxYear = &minYear, &maxYear
	_, err = e.SelectLocations(ctx, rules, nil, 1)
	testkit.MustErrIs(t, err, domain.ErrNoEligibleBuckets)

	// custom weights that zero out every country
	rules = domain.Rules{
		Distribution:  domain.DistributionCustom,
		CustomWeights: map[string]float64{"ZZ": 5},
	}
	_, err = e.SelectLocations(ctx, rules, nil, 1)
	testkit.MustErrIs(t, err, domain.ErrNoEligibleBuckets)
}

func TestSelectLocations_NoLocationsAvailable(t *testing.T) {
	e := newTestEngine(t, map[string]countrySpec{
		"AD": {lat: 42.5, lng: 1.5, buckets: map[bucket.Key]int{outdoorKey(bucket.Y2020to2021): 2}},
	}, Config{})

	// exclude every record in the dataset
	exclude := []uint64{
		packfmt.HashPanoID("AD-B4_S0-0000"),
		packfmt.HashPanoID("AD-B4_S0-0001"),
	}
	_, err := e.SelectLocations(context.Background(), proportional(), exclude, 1)
	testkit.MustErrIs(t, err, domain.ErrNoLocationsAvailable)
}

func TestSelectLocations_OutdoorOnly(t *testing.T) {
	e := newTestEngine(t, map[string]countrySpec{
		"AD": {lat: 42.5, lng: 1.5, buckets: map[bucket.Key]int{
			outdoorKey(bucket.Y2020to2021):                  5,
			{Year: bucket.Y2020to2021, Scout: bucket.Scout}: 5,
		}},
	}, Config{})

	rules := proportional()
	rules.OutdoorOnly = true
	for trial := 0; trial < 10; trial++ {
		locs, err := e.SelectLocations(context.Background(), rules, nil, 5)
		testkit.MustNoErr(t, err)
		for _, l := range locs {
			if l.Record.Scout {
				t.Fatal("scout record returned under outdoor-only rules")
			}
		}
	}
}

func TestSelectLocations_CustomWeightsMajority(t *testing.T) {
	e := newTestEngine(t, map[string]countrySpec{
		"US": {lat: 39.0, lng: -95.0, buckets: map[bucket.Key]int{outdoorKey(bucket.Y2020to2021): 1000}},
		"FR": {lat: 46.6, lng: 2.5, buckets: map[bucket.Key]int{outdoorKey(bucket.Y2020to2021): 100}},
		"AD": {lat: 42.5, lng: 1.5, buckets: map[bucket.Key]int{outdoorKey(bucket.Y2020to2021): 10}},
	}, Config{})

	rules := domain.Rules{
		Distribution:  domain.DistributionCustom,
		CustomWeights: map[string]float64{"AD": 8, "US": 1, "FR": 1},
	}
	hits := map[string]int{}
	for i := 0; i < 100; i++ {
		locs, err := e.SelectLocations(context.Background(), rules, nil, 1)
		testkit.MustNoErr(t, err)
		hits[locs[0].Country]++
	}
	if hits["AD"] <= 50 {
		t.Fatalf("AD drawn %d/100 times, want clear majority (weights 8:1:1)", hits["AD"])
	}
}

func TestSelectLocations_EqualDistribution(t *testing.T) {
	e := newTestEngine(t, map[string]countrySpec{
		"US": {lat: 39.0, lng: -95.0, buckets: map[bucket.Key]int{outdoorKey(bucket.Y2020to2021): 1000}},
		"FR": {lat: 46.6, lng: 2.5, buckets: map[bucket.Key]int{outdoorKey(bucket.Y2020to2021): 100}},
		"AD": {lat: 42.5, lng: 1.5, buckets: map[bucket.Key]int{outdoorKey(bucket.Y2020to2021): 10}},
	}, Config{})

	rules := domain.Rules{Distribution: domain.DistributionEqual}
	hits := map[string]int{}
	for i := 0; i < 300; i++ {
		locs, err := e.SelectLocations(context.Background(), rules, nil, 1)
		testkit.MustNoErr(t, err)
		hits[locs[0].Country]++
	}
	// equal weighting ignores country size; each should land well clear of
	// its proportional share
	for _, cc := range []string{"US", "FR", "AD"} {
		if hits[cc] < 40 {
			t.Fatalf("%s drawn %d/300 times under equal weighting, want >= 40", cc, hits[cc])
		}
	}
}

func TestSelectLocationWithConstraints(t *testing.T) {
	// two clusters ~8,700km apart
	e := newTestEngine(t, map[string]countrySpec{
		"AD": {lat: 42.5, lng: 1.5, buckets: map[bucket.Key]int{outdoorKey(bucket.Y2020to2021): 50}},
		"US": {lat: 39.0, lng: -95.0, buckets: map[bucket.Key]int{outdoorKey(bucket.Y2020to2021): 50}},
	}, Config{})
	ctx := context.Background()

	m, err := e.RegisterMap(ctx, domain.Map{
		Slug:  "world",
		Name:  "World",
		Rules: proportional(),
	})
	testkit.MustNoErr(t, err)

	prior := domain.Location{Country: "AD", Record: packfmt.Record{PanoID: "prior", Lat: 42.5, Lng: 1.5}}
	c := domain.Constraints{MinDistanceMeters: 1_000_000, PriorLocations: []domain.Location{prior}}

	for trial := 0; trial < 10; trial++ {
		loc, err := e.SelectLocationWithConstraints(ctx, m.ID, nil, c)
		testkit.MustNoErr(t, err)
		d := geo.DistanceMeters(loc.Record.Lat, loc.Record.Lng, prior.Record.Lat, prior.Record.Lng)
		if d < c.MinDistanceMeters {
			t.Fatalf("returned location %.0fm from prior, want >= %.0fm", d, c.MinDistanceMeters)
		}
		if loc.Country != "US" {
			t.Fatalf("only US records satisfy the constraint, got %q", loc.Country)
		}
	}
}

func TestSelectLocationWithConstraints_Fallback(t *testing.T) {
	// single cluster: the constraint can never hold, fallback must still serve
	e := newTestEngine(t, map[string]countrySpec{
		"AD": {lat: 42.5, lng: 1.5, buckets: map[bucket.Key]int{outdoorKey(bucket.Y2020to2021): 20}},
	}, Config{ConstraintAttempts: 3})
	ctx := context.Background()

	m, err := e.RegisterMap(ctx, domain.Map{Slug: "andorra", Name: "Andorra", Rules: proportional()})
	testkit.MustNoErr(t, err)

	prior := domain.Location{Country: "AD", Record: packfmt.Record{PanoID: "prior", Lat: 42.5, Lng: 1.5}}
	c := domain.Constraints{MinDistanceMeters: 5_000_000, PriorLocations: []domain.Location{prior}}

	loc, err := e.SelectLocationWithConstraints(ctx, m.ID, nil, c)
	testkit.MustNoErr(t, err)
	if loc.Country != "AD" {
		t.Fatalf("fallback should still return a location, got country %q", loc.Country)
	}
}

func TestSelectLocationWithConstraints_InactiveConstraint(t *testing.T) {
	e := newTestEngine(t, map[string]countrySpec{
		"AD": {lat: 42.5, lng: 1.5, buckets: map[bucket.Key]int{outdoorKey(bucket.Y2020to2021): 20}},
	}, Config{})
	ctx := context.Background()

	m, err := e.RegisterMap(ctx, domain.Map{Slug: "andorra", Name: "Andorra", Rules: proportional()})
	testkit.MustNoErr(t, err)

	// no priors: plain single selection
	loc, err := e.SelectLocationWithConstraints(ctx, m.ID, nil, domain.Constraints{MinDistanceMeters: 100})
	testkit.MustNoErr(t, err)
	if loc.Country != "AD" {
		t.Fatalf("got country %q", loc.Country)
	}

	_, err = e.SelectLocationWithConstraints(ctx, "nope", nil, domain.Constraints{})
	testkit.MustErrIs(t, err, domain.ErrMapNotFound)
}

func TestGetLocationCount(t *testing.T) {
	e := newTestEngine(t, map[string]countrySpec{
		"AD": {lat: 42.5, lng: 1.5, buckets: map[bucket.Key]int{
			outdoorKey(bucket.Y2020to2021): 100,
			outdoorKey(bucket.Y2010to2014): 50,
		}},
		"FR": {lat: 46.6, lng: 2.5, buckets: map[bucket.Key]int{outdoorKey(bucket.Y2020to2021): 30}},
	}, Config{})
	ctx := context.Background()

	world, err := e.RegisterMap(ctx, domain.Map{Slug: "world", Name: "World", Rules: proportional()})
	testkit.MustNoErr(t, err)
	n, err := e.GetLocationCount(ctx, world.ID)
	testkit.MustNoErr(t, err)
	if n != 180 {
		t.Fatalf("count = %d, want 180", n)
	}

	minYear := 2019
	recent, err := e.RegisterMap(ctx, domain.Map{
		Slug: "recent", Name: "Recent",
		Rules: domain.Rules{Distribution: domain.DistributionProportional, MinYear: &minYear},
	})
	testkit.MustNoErr(t, err)
	n, err = e.GetLocationCount(ctx, recent.ID)
	testkit.MustNoErr(t, err)
	if n != 130 {
		t.Fatalf("count = %d, want 130 (year filter drops the 2010-2014 bucket)", n)
	}

	// an infeasible window counts as zero; only selection raises no-eligible
	minOld, maxOld := 1990, 1995
	empty, err := e.RegisterMap(ctx, domain.Map{
		Slug: "empty", Name: "Empty",
		Rules: domain.Rules{Distribution: domain.DistributionProportional, MinYear: &minOld, MaxYear: &maxOld},
	})
	testkit.MustNoErr(t, err)
	n, err = e.GetLocationCount(ctx, empty.ID)
	testkit.MustNoErr(t, err)
	if n != 0 {
		t.Fatalf("count = %d, want 0 for an infeasible year window", n)
	}
	_, err = e.SelectLocations(ctx, empty.Rules, nil, 1)
	testkit.MustErrIs(t, err, domain.ErrNoEligibleBuckets)
}

func TestMarkLocationFailed_IDFormats(t *testing.T) {
	e := newTestEngine(t, map[string]countrySpec{
		"AD": {lat: 42.5, lng: 1.5, buckets: map[bucket.Key]int{outdoorKey(bucket.Y2020to2021): 5}},
	}, Config{})
	ctx := context.Background()

	h := packfmt.HashPanoID("some-pano")
	testkit.MustNoErr(t, e.MarkLocationFailed(ctx, fmt.Sprintf("hash:%d", h)))
	testkit.MustNoErr(t, e.MarkLocationFailed(ctx, "another-pano"))

	if err := e.MarkLocationFailed(ctx, "hash:not-a-number"); err == nil {
		t.Fatal("expected error for malformed hash id")
	}
}

func TestEngine_WarmManifest(t *testing.T) {
	e := newTestEngine(t, map[string]countrySpec{
		"AD": {lat: 42.5, lng: 1.5, buckets: map[bucket.Key]int{outdoorKey(bucket.Y2020to2021): 5}},
	}, Config{})

	testkit.MustNoErr(t, e.WarmManifest(context.Background()))
	m, err := e.Manifest(context.Background())
	testkit.MustNoErr(t, err)
	if m.TotalCount != 5 {
		t.Fatalf("total = %d, want 5", m.TotalCount)
	}
}
