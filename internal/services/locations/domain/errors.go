package domain

import (
	perr "geopack/internal/platform/errors"
)

// Sentinels for the provider boundary. Match with errors.Is; each carries a
// stable perr code so transports can map them to status codes uniformly
var (
	// ErrMapNotFound means the id, slug, or alias resolves to nothing
	ErrMapNotFound = perr.New(perr.ErrorCodeNotFound, "map not found")

	// ErrNoEligibleBuckets means the rules exclude everything before any I/O
	ErrNoEligibleBuckets = perr.New(perr.ErrorCodeInvalidArgument, "no eligible buckets for rules")

	// ErrNoLocationsAvailable means I/O succeeded but every candidate was
	// filtered out or the retry budget ran dry
	ErrNoLocationsAvailable = perr.New(perr.ErrorCodeNotFound, "no locations available")
)
