// geopack-probe runs selections against a dataset from the command line and
// prints what comes back, one line per location
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/joho/godotenv"

	"geopack/internal/modkit"
	"geopack/internal/platform/config"
	"geopack/internal/platform/logger"

	"geopack/internal/services/locations/domain"
	locmod "geopack/internal/services/locations/module"
)

func main() {
	_ = godotenv.Load(".env")

	var (
		flagMap         = flag.String("map", "probe", "slug for the map the rules are registered under")
		flagCount       = flag.Int("count", 5, "locations to select")
		flagCountries   = flag.String("countries", "", "comma-separated allow-list, e.g. FR,DE (empty = all)")
		flagMinYear     = flag.Int("min-year", 0, "minimum capture year (0 = open)")
		flagMaxYear     = flag.Int("max-year", 0, "maximum capture year (0 = open)")
		flagOutdoor     = flag.Bool("outdoor-only", false, "exclude scout coverage")
		flagDist        = flag.String("distribution", "proportional", "proportional | equal")
		flagMinDistance = flag.Float64("min-distance", 0, "min distance in meters between consecutive picks")
	)
	flag.Parse()

	root := config.New()
	l := logger.Get()

	lm := locmod.New(modkit.Deps{Cfg: root, Log: *l}, locmod.Options{Provider: "pack"})
	provider := lm.Ports().(locmod.Ports).Provider

	rules := domain.Rules{
		OutdoorOnly:  *flagOutdoor,
		Distribution: domain.Distribution(*flagDist),
	}
	if *flagCountries != "" {
		rules.Countries = strings.Split(strings.ToUpper(*flagCountries), ",")
	}
	if *flagMinYear > 0 {
		rules.MinYear = flagMinYear
	}
	if *flagMaxYear > 0 {
		rules.MaxYear = flagMaxYear
	}

	ctx := context.Background()
	if _, err := provider.RegisterMap(ctx, domain.Map{Slug: *flagMap, Name: *flagMap, Rules: rules}); err != nil {
		log.Fatalf("bad rules: %v", err)
	}
	m, err := provider.GetMap(ctx, *flagMap)
	if err != nil {
		log.Fatalf("map lookup failed: %v", err)
	}

	n, err := provider.GetLocationCount(ctx, m.ID)
	if err != nil {
		log.Fatalf("count failed: %v", err)
	}
	fmt.Printf("eligible records (estimate): %d\n", n)

	if *flagMinDistance > 0 {
		var prior []domain.Location
		for i := 0; i < *flagCount; i++ {
			loc, err := provider.SelectLocationWithConstraints(ctx, m.ID, nil, domain.Constraints{
				MinDistanceMeters: *flagMinDistance,
				PriorLocations:    prior,
			})
			if err != nil {
				log.Fatalf("selection failed: %v", err)
			}
			prior = append(prior, loc)
			printLocation(loc)
		}
		return
	}

	locs, err := provider.SelectLocations(ctx, rules, nil, *flagCount)
	if err != nil {
		log.Fatalf("selection failed: %v", err)
	}
	for _, loc := range locs {
		printLocation(loc)
	}
}

func printLocation(loc domain.Location) {
	r := loc.Record
	year := "????"
	if y := r.CaptureYear(); y != nil {
		year = fmt.Sprintf("%d", *y)
	}
	fmt.Printf("%s  %9.5f,%10.5f  %s  year=%s scout=%v hash=%d\n",
		loc.Country, r.Lat, r.Lng, r.PanoID, year, r.Scout, r.Hash)
}
