package service

import (
	"context"
	"errors"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"geopack/internal/adapters/packstore"
	"geopack/internal/core/dataset"
	"geopack/internal/core/disabled"
	"geopack/internal/core/packfmt"
	perr "geopack/internal/platform/errors"
	"geopack/internal/platform/logger"
	"geopack/internal/services/locations/domain"
)

// Config tunes the selection engine. Zero values take the defaults below
type Config struct {
	// BatchSize caps how many consecutive records one range read covers
	BatchSize int

	// IdleIterations bounds consecutive non-productive selection iterations
	IdleIterations int

	// ConstraintAttempts bounds distance-constrained retries
	ConstraintAttempts int

	// DisabledCapacity sizes the disabled-record cache
	DisabledCapacity int

	// Seed makes the engine deterministic when non-zero
	Seed int64
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 16
	}
	if c.IdleIterations <= 0 {
		c.IdleIterations = 5
	}
	if c.ConstraintAttempts <= 0 {
		c.ConstraintAttempts = 10
	}
	if c.DisabledCapacity <= 0 {
		c.DisabledCapacity = 1 << 20
	}
	return c
}

// Engine is the pack-backed provider. Manifest and per-country indexes load
// once and stay cached; selection requests share them under a read lock
type Engine struct {
	backend  packstore.Backend
	disabled *disabled.Cache
	registry *Registry
	cfg      Config
	log      logger.Logger

	mu       sync.RWMutex
	manifest *dataset.Manifest
	indexes  map[string]*dataset.CountryIndex

	rngMu sync.Mutex
	rng   *rand.Rand
}

var _ domain.ProviderPort = (*Engine)(nil)

// NewEngine builds a pack-backed provider over a storage backend
func NewEngine(backend packstore.Backend, reg *Registry, cfg Config) *Engine {
	cfg = cfg.withDefaults()
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if reg == nil {
		reg = NewRegistry()
	}
	return &Engine{
		backend:  backend,
		disabled: disabled.New(cfg.DisabledCapacity),
		registry: reg,
		cfg:      cfg,
		log:      *logger.Named("locations.engine"),
		indexes:  make(map[string]*dataset.CountryIndex),
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// Disabled exposes the engine's disabled-record cache for startup bulk loads
func (e *Engine) Disabled() *disabled.Cache { return e.disabled }

// WarmManifest forces the manifest load, for readiness checks
func (e *Engine) WarmManifest(ctx context.Context) error {
	_, err := e.getManifest(ctx)
	return err
}

// Manifest returns the cached manifest, loading it on first use
func (e *Engine) Manifest(ctx context.Context) (*dataset.Manifest, error) {
	return e.getManifest(ctx)
}

// getManifest loads the manifest once. The write lock is held across the
// fetch so a cold-start stampede performs a single load
func (e *Engine) getManifest(ctx context.Context) (*dataset.Manifest, error) {
	e.mu.RLock()
	m := e.manifest
	e.mu.RUnlock()
	if m != nil {
		return m, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.manifest != nil {
		return e.manifest, nil
	}
	m, err := e.backend.FetchManifest(ctx)
	if err != nil {
		return nil, err
	}
	e.manifest = m
	e.log.Info().
		Str("dataset_version", m.DatasetVersion).
		Int("countries", len(m.Countries)).
		Int64("total", m.TotalCount).
		Msg("manifest loaded")
	return m, nil
}

// getIndex loads one country's index once, same discipline as getManifest
func (e *Engine) getIndex(ctx context.Context, cc string) (*dataset.CountryIndex, error) {
	e.mu.RLock()
	idx := e.indexes[cc]
	e.mu.RUnlock()
	if idx != nil {
		return idx, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if idx := e.indexes[cc]; idx != nil {
		return idx, nil
	}
	idx, err := e.backend.FetchCountryIndex(ctx, cc)
	if err != nil {
		return nil, err
	}
	e.indexes[cc] = idx
	return idx, nil
}

// GetLocationCount sums eligible bucket counts across the map's countries.
// The result is an estimate: it ignores disabled hashes and a cached index
// may be stale relative to the dataset. Rules that match nothing count as
// zero rather than erroring; only selection raises no-eligible-buckets
func (e *Engine) GetLocationCount(ctx context.Context, mapID string) (int64, error) {
	m, err := e.registry.Get(ctx, mapID)
	if err != nil {
		return 0, err
	}
	cands, err := e.candidates(ctx, m.Rules)
	if err != nil {
		if errors.Is(err, domain.ErrNoEligibleBuckets) {
			return 0, nil
		}
		return 0, err
	}
	var n int64
	for _, c := range cands {
		n += c.count
	}
	return n, nil
}

// MarkLocationFailed disables a location's hash in memory. Durable disabling
// is the caller's responsibility
func (e *Engine) MarkLocationFailed(_ context.Context, locationID string) error {
	h, err := parseLocationID(locationID)
	if err != nil {
		return err
	}
	e.disabled.MarkDisabled(h)
	e.log.Debug().Uint64("hash", h).Msg("location marked failed")
	return nil
}

// parseLocationID accepts "hash:<decimal>" or a raw panorama id
func parseLocationID(locationID string) (uint64, error) {
	if rest, ok := strings.CutPrefix(locationID, "hash:"); ok {
		h, err := strconv.ParseUint(rest, 10, 64)
		if err != nil {
			return 0, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "bad location id %q", locationID)
		}
		return h, nil
	}
	return packfmt.HashPanoID(locationID), nil
}

// RegisterMap implements domain.ProviderPort
func (e *Engine) RegisterMap(ctx context.Context, m domain.Map) (domain.Map, error) {
	return e.registry.Register(ctx, m)
}

// GetMap implements domain.ProviderPort
func (e *Engine) GetMap(ctx context.Context, idOrAlias string) (domain.Map, error) {
	return e.registry.Get(ctx, idOrAlias)
}

// GetDefaultMap implements domain.ProviderPort
func (e *Engine) GetDefaultMap(ctx context.Context) (domain.Map, error) {
	return e.registry.Default(ctx)
}

// intn draws from the engine's rng under its own lock
func (e *Engine) intn(n int64) int64 {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return e.rng.Int63n(n)
}

func (e *Engine) drawCountry(cands []candidate, total float64) candidate {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return drawWeighted(e.rng, cands, total)
}

func (e *Engine) drawEligibleBucket(counts []int64, total int64) int {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return drawBucket(e.rng, counts, total)
}
