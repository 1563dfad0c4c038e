package packstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"geopack/internal/core/dataset"
	perr "geopack/internal/platform/errors"
	"geopack/internal/platform/logger"
)

// HTTPBackend reads dataset documents and pack ranges from an object store
// exposed over HTTP. Range reads use a single Range request per call; servers
// that ignore Range and return the whole object are tolerated
type HTTPBackend struct {
	base    string
	version string
	client  *http.Client
	log     logger.Logger
}

// HTTPOptions configures an HTTPBackend
type HTTPOptions struct {
	// BaseURL is the root of the dataset tree, without trailing slash
	BaseURL string

	// Version is the dataset version prefix, e.g. "v3"
	Version string

	// Timeout bounds every request. Zero means 30s
	Timeout time.Duration
}

// NewHTTP builds an HTTP backend
func NewHTTP(opts HTTPOptions) *HTTPBackend {
	to := opts.Timeout
	if to <= 0 {
		to = 30 * time.Second
	}
	return &HTTPBackend{
		base:    strings.TrimRight(opts.BaseURL, "/"),
		version: opts.Version,
		client:  &http.Client{Timeout: to},
		log:     *logger.Named("packstore"),
	}
}

// FetchManifest implements Backend
func (b *HTTPBackend) FetchManifest(ctx context.Context) (*dataset.Manifest, error) {
	body, err := b.get(ctx, dataset.ManifestPath(b.version))
	if err != nil {
		return nil, err
	}
	m, err := dataset.ParseManifest(body)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeJSON, "parse manifest")
	}
	return m, nil
}

// FetchCountryIndex implements Backend
func (b *HTTPBackend) FetchCountryIndex(ctx context.Context, cc string) (*dataset.CountryIndex, error) {
	body, err := b.get(ctx, dataset.IndexPath(b.version, cc))
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeNotFound) {
			return nil, fmt.Errorf("%s: %w", cc, ErrCountryNotFound)
		}
		return nil, err
	}
	idx, err := dataset.ParseCountryIndex(body)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeJSON, "parse index for %s", cc)
	}
	return idx, nil
}

// FetchRange implements Backend. off and length are in bytes; the returned
// slice is exactly length long or the call errors
func (b *HTTPBackend) FetchRange(ctx context.Context, cc, packFile string, off, length int64) ([]byte, error) {
	if length <= 0 {
		return nil, perr.Newf(perr.ErrorCodeInvalidArgument, "range length must be positive, got %d", length)
	}
	url := b.base + "/" + dataset.PackPath(b.version, cc, packFile)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnknown, "packstore new request")
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", off, off+length-1))

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "fetch range %s", packFile)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			b.log.Warn().Err(cerr).Str("pack", packFile).Msg("body close failed")
		}
	}()

	switch resp.StatusCode {
	case http.StatusPartialContent:
		buf := make([]byte, length)
		if _, err := io.ReadFull(resp.Body, buf); err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "short range read from %s", packFile)
		}
		return buf, nil
	case http.StatusOK:
		// server ignored Range and returned the whole object; slice it
		whole, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "read %s", packFile)
		}
		if off+length > int64(len(whole)) {
			return nil, perr.Newf(perr.ErrorCodeInvalidArgument,
				"range [%d,%d) exceeds pack %s of %d bytes", off, off+length, packFile, len(whole))
		}
		return whole[off : off+length], nil
	case http.StatusNotFound, http.StatusRequestedRangeNotSatisfiable:
		return nil, perr.Newf(perr.ErrorCodeNotFound, "pack %s range [%d,%d) not available", packFile, off, off+length)
	default:
		return nil, perr.Newf(perr.ErrorCodeUnavailable, "unexpected status %d for %s", resp.StatusCode, url)
	}
}

// get fetches a whole document and returns its body
func (b *HTTPBackend) get(ctx context.Context, path string) ([]byte, error) {
	url := b.base + "/" + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnknown, "packstore new request")
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "fetch %s", path)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			b.log.Warn().Err(cerr).Str("path", path).Msg("body close failed")
		}
	}()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, perr.Newf(perr.ErrorCodeNotFound, "%s not found", path)
	case resp.StatusCode != http.StatusOK:
		return nil, perr.Newf(perr.ErrorCodeUnavailable, "unexpected status %d for %s", resp.StatusCode, url)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "read %s", path)
	}
	return body, nil
}
