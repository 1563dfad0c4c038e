// Package packstore fetches dataset documents and pack byte ranges from
// wherever a dataset lives: a remote object store over HTTP or a local
// directory. Both backends serve the same logical paths
package packstore

import (
	"context"

	"geopack/internal/core/dataset"
	perr "geopack/internal/platform/errors"
)

// ErrCountryNotFound signals a missing index document. It is distinct from a
// transport failure: the dataset is reachable but incomplete
var ErrCountryNotFound = perr.New(perr.ErrorCodeNotFound, "country index not found")

// Backend is the capability the selection engine consumes
type Backend interface {
	// FetchManifest reads and parses the dataset manifest
	FetchManifest(ctx context.Context) (*dataset.Manifest, error)

	// FetchCountryIndex reads and parses one country's index document.
	// A missing document is reported as ErrCountryNotFound
	FetchCountryIndex(ctx context.Context, cc string) (*dataset.CountryIndex, error)

	// FetchRange reads [off, off+length) from a named pack file belonging
	// to a country
	FetchRange(ctx context.Context, cc, packFile string, off, length int64) ([]byte, error)
}
