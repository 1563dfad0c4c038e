package packstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"geopack/internal/core/dataset"
	perr "geopack/internal/platform/errors"
)

// FSBackend reads a dataset from a local directory laid out with the same
// logical paths the HTTP backend uses. Range reads seek within the pack file
type FSBackend struct {
	root    string
	version string
}

// NewFS builds a filesystem backend rooted at dir
func NewFS(dir, version string) *FSBackend {
	return &FSBackend{root: dir, version: version}
}

// FetchManifest implements Backend
func (b *FSBackend) FetchManifest(ctx context.Context) (*dataset.Manifest, error) {
	body, err := os.ReadFile(b.path(dataset.ManifestPath(b.version)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, perr.Wrap(err, perr.ErrorCodeNotFound, "manifest not found")
		}
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "read manifest")
	}
	m, err := dataset.ParseManifest(body)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeJSON, "parse manifest")
	}
	return m, nil
}

// FetchCountryIndex implements Backend
func (b *FSBackend) FetchCountryIndex(ctx context.Context, cc string) (*dataset.CountryIndex, error) {
	body, err := os.ReadFile(b.path(dataset.IndexPath(b.version, cc)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", cc, ErrCountryNotFound)
		}
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "read index for %s", cc)
	}
	idx, err := dataset.ParseCountryIndex(body)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeJSON, "parse index for %s", cc)
	}
	return idx, nil
}

// FetchRange implements Backend
func (b *FSBackend) FetchRange(ctx context.Context, cc, packFile string, off, length int64) ([]byte, error) {
	if length <= 0 {
		return nil, perr.Newf(perr.ErrorCodeInvalidArgument, "range length must be positive, got %d", length)
	}
	f, err := os.Open(b.path(dataset.PackPath(b.version, cc, packFile)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, perr.Newf(perr.ErrorCodeNotFound, "pack %s not found for %s", packFile, cc)
		}
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "open pack %s", packFile)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Seek(off, io.SeekStart); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "seek pack %s", packFile)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "short range read from %s", packFile)
	}
	return buf, nil
}

func (b *FSBackend) path(logical string) string {
	return filepath.Join(b.root, filepath.FromSlash(logical))
}
