package dataset

import (
	"fmt"

	"geopack/internal/core/bucket"
)

// Storage layout convention, shared by both backends:
//
//	{base}/{version}/manifest.json
//	{base}/{version}/countries/{CC}/index.json
//	{base}/{version}/countries/{CC}/{CC}_{bucket}.pack

// ManifestPath returns the manifest object path relative to the dataset base
func ManifestPath(version string) string {
	return fmt.Sprintf("%s/manifest.json", version)
}

// IndexPath returns a country's index object path relative to the dataset base
func IndexPath(version, cc string) string {
	return fmt.Sprintf("%s/countries/%s/index.json", version, cc)
}

// PackPath returns a pack object path relative to the dataset base
func PackPath(version, cc, packFile string) string {
	return fmt.Sprintf("%s/countries/%s/%s", version, cc, packFile)
}

// PackObjectName returns the conventional pack file name for a country bucket,
// e.g. "FR_B4_S0.pack"
func PackObjectName(cc string, k bucket.Key) string {
	return fmt.Sprintf("%s_%s.pack", cc, k)
}
