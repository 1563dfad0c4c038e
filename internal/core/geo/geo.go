// Package geo provides the great-circle distance used by distance-constrained
// selection
package geo

import (
	"github.com/golang/geo/s2"
)

// Mean Earth radius per IUGG
const earthRadiusMeters = 6371008.8

// DistanceMeters returns the great-circle distance between two points given
// in degrees
func DistanceMeters(lat1, lng1, lat2, lng2 float64) float64 {
	a := s2.LatLngFromDegrees(lat1, lng1)
	b := s2.LatLngFromDegrees(lat2, lng2)
	return a.Distance(b).Radians() * earthRadiusMeters
}
