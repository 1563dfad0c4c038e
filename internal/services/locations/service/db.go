package service

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	perr "geopack/internal/platform/errors"
	"geopack/internal/platform/logger"
	"geopack/internal/services/locations/domain"
	"geopack/internal/services/locations/repo"
)

// DBProvider serves the same port as the pack engine from a relational
// locations table. It shares the map registry and weighting logic; the
// random draw itself happens in SQL
type DBProvider struct {
	store    repo.Storage
	registry *Registry
	cfg      Config
	log      logger.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

var _ domain.ProviderPort = (*DBProvider)(nil)

// NewDBProvider builds a database-backed provider
func NewDBProvider(store repo.Storage, reg *Registry, cfg Config) *DBProvider {
	cfg = cfg.withDefaults()
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if reg == nil {
		reg = NewRegistry()
	}
	return &DBProvider{
		store:    store,
		registry: reg,
		cfg:      cfg,
		log:      *logger.Named("locations.db"),
		rng:      rand.New(rand.NewSource(seed)),
	}
}

func filtersFor(rules domain.Rules) repo.Filters {
	return repo.Filters{
		Countries:   rules.Countries,
		MinYear:     rules.MinYear,
		MaxYear:     rules.MaxYear,
		OutdoorOnly: rules.OutdoorOnly,
	}
}

// SelectLocations implements domain.ProviderPort
func (p *DBProvider) SelectLocations(
	ctx context.Context,
	rules domain.Rules,
	exclude []uint64,
	count int,
) ([]domain.Location, error) {
	if count <= 0 {
		return nil, nil
	}

	counts, err := p.store.CountByCountry(ctx, filtersFor(rules))
	if err != nil {
		return nil, err
	}
	codes := make([]string, 0, len(counts))
	for cc := range counts {
		codes = append(codes, cc)
	}
	sort.Strings(codes)

	cands := make([]candidate, 0, len(codes))
	for _, cc := range codes {
		if counts[cc] > 0 {
			cands = append(cands, candidate{country: cc, count: counts[cc]})
		}
	}
	if len(cands) == 0 {
		return nil, fmt.Errorf("rules match no countries: %w", domain.ErrNoEligibleBuckets)
	}
	total := applyWeights(cands, rules.Distribution, rules.CustomWeights)
	if total <= 0 {
		return nil, fmt.Errorf("all country weights are zero: %w", domain.ErrNoEligibleBuckets)
	}

	out := make([]domain.Location, 0, count)
	seen := make(map[uint64]struct{}, count)
	skip := make([]int64, 0, len(exclude)+count)
	for _, h := range exclude {
		skip = append(skip, repo.HashKey(h))
	}

	idle := 0
	for len(out) < count && idle < p.cfg.IdleIterations {
		p.rngMu.Lock()
		c := drawWeighted(p.rng, cands, total)
		p.rngMu.Unlock()

		f := filtersFor(rules)
		f.Countries = []string{c.country}
		limit := count - len(out)
		if limit > p.cfg.BatchSize {
			limit = p.cfg.BatchSize
		}
		batch, err := p.store.SelectRandom(ctx, f, skip, limit)
		if err != nil {
			// transient contention burns an iteration instead of failing the call
			if perr.IsRetryable(err) {
				idle++
				continue
			}
			return nil, err
		}

		before := len(out)
		for _, loc := range batch {
			if _, ok := seen[loc.Hash()]; ok {
				continue
			}
			seen[loc.Hash()] = struct{}{}
			skip = append(skip, repo.HashKey(loc.Hash()))
			out = append(out, loc)
		}
		if len(out) == before {
			idle++
		} else {
			idle = 0
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("retry budget exhausted: %w", domain.ErrNoLocationsAvailable)
	}
	return out, nil
}

// SelectLocationWithConstraints implements domain.ProviderPort
func (p *DBProvider) SelectLocationWithConstraints(
	ctx context.Context,
	mapID string,
	exclude []uint64,
	c domain.Constraints,
) (domain.Location, error) {
	m, err := p.registry.Get(ctx, mapID)
	if err != nil {
		return domain.Location{}, err
	}

	if !c.Active() {
		return p.selectOne(ctx, m.Rules, exclude)
	}

	loc, ok, err := pickConstrained(ctx, p.cfg.ConstraintAttempts, p.cfg.BatchSize, c,
		func(ctx context.Context, n int) ([]domain.Location, error) {
			return p.SelectLocations(ctx, m.Rules, exclude, n)
		})
	if err != nil {
		return domain.Location{}, err
	}
	if ok {
		return loc, nil
	}

	p.log.Warn().
		Str("map", m.Slug).
		Float64("min_distance_m", c.MinDistanceMeters).
		Int("priors", len(c.PriorLocations)).
		Msg("distance constraint unsatisfied, falling back to unconstrained selection")
	return p.selectOne(ctx, m.Rules, exclude)
}

func (p *DBProvider) selectOne(ctx context.Context, rules domain.Rules, exclude []uint64) (domain.Location, error) {
	locs, err := p.SelectLocations(ctx, rules, exclude, 1)
	if err != nil {
		return domain.Location{}, err
	}
	return locs[0], nil
}

// GetLocationCount implements domain.ProviderPort. Counts are live rather
// than cached here, but still documented as an estimate so both providers
// carry the same contract: rules that match nothing count as zero
func (p *DBProvider) GetLocationCount(ctx context.Context, mapID string) (int64, error) {
	m, err := p.registry.Get(ctx, mapID)
	if err != nil {
		return 0, err
	}
	return p.store.Count(ctx, filtersFor(m.Rules))
}

// MarkLocationFailed implements domain.ProviderPort; the database row is the
// durable disable record for this provider
func (p *DBProvider) MarkLocationFailed(ctx context.Context, locationID string) error {
	h, err := parseLocationID(locationID)
	if err != nil {
		return err
	}
	return p.store.DisableByHash(ctx, repo.HashKey(h))
}

// RegisterMap implements domain.ProviderPort
func (p *DBProvider) RegisterMap(ctx context.Context, m domain.Map) (domain.Map, error) {
	return p.registry.Register(ctx, m)
}

// GetMap implements domain.ProviderPort
func (p *DBProvider) GetMap(ctx context.Context, idOrAlias string) (domain.Map, error) {
	return p.registry.Get(ctx, idOrAlias)
}

// GetDefaultMap implements domain.ProviderPort
func (p *DBProvider) GetDefaultMap(ctx context.Context) (domain.Map, error) {
	return p.registry.Default(ctx)
}
