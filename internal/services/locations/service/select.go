package service

import (
	"context"
	"errors"
	"fmt"

	"geopack/internal/core/geo"
	"geopack/internal/core/packfmt"
	"geopack/internal/services/locations/domain"
)

// candidates resolves the countries a rule set can draw from: the allow-list
// intersected with manifest membership (or all manifest countries), each with
// its eligible record count, zero-count countries dropped
func (e *Engine) candidates(ctx context.Context, rules domain.Rules) ([]candidate, error) {
	m, err := e.getManifest(ctx)
	if err != nil {
		return nil, err
	}

	codes := rules.Countries
	if len(codes) == 0 {
		codes = m.CountryCodes()
	}

	var out []candidate
	for _, cc := range codes {
		if !m.HasCountry(cc) {
			continue
		}
		idx, err := e.getIndex(ctx, cc)
		if err != nil {
			return nil, err
		}
		n := idx.EligibleCount(rules.MinYear, rules.MaxYear, rules.OutdoorOnly)
		if n == 0 {
			continue
		}
		out = append(out, candidate{country: cc, count: n})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("rules match no countries: %w", domain.ErrNoEligibleBuckets)
	}
	return out, nil
}

// SelectLocations implements domain.ProviderPort.
//
// Each iteration draws a country then a bucket by cumulative weighted random
// selection, issues one range read for a small batch of consecutive records,
// and keeps the survivors. The loop stops at count collected or after
// IdleIterations consecutive iterations that contributed nothing
func (e *Engine) SelectLocations(
	ctx context.Context,
	rules domain.Rules,
	exclude []uint64,
	count int,
) ([]domain.Location, error) {
	if count <= 0 {
		return nil, nil
	}

	cands, err := e.candidates(ctx, rules)
	if err != nil {
		return nil, err
	}
	total := applyWeights(cands, rules.Distribution, rules.CustomWeights)
	if total <= 0 {
		return nil, fmt.Errorf("all country weights are zero: %w", domain.ErrNoEligibleBuckets)
	}

	excluded := make(map[uint64]struct{}, len(exclude))
	for _, h := range exclude {
		excluded[h] = struct{}{}
	}

	out := make([]domain.Location, 0, count)
	seen := make(map[uint64]struct{}, count)
	idle := 0

	for len(out) < count && idle < e.cfg.IdleIterations {
		c := e.drawCountry(cands, total)

		idx, err := e.getIndex(ctx, c.country)
		if err != nil {
			return nil, err
		}
		ebs := idx.EligibleBuckets(rules.MinYear, rules.MaxYear, rules.OutdoorOnly)
		if len(ebs) == 0 {
			idle++
			continue
		}
		counts := make([]int64, len(ebs))
		var bucketTotal int64
		for i, eb := range ebs {
			counts[i] = eb.Info.Count
			bucketTotal += eb.Info.Count
		}
		eb := ebs[e.drawEligibleBucket(counts, bucketTotal)]

		n := int64(e.cfg.BatchSize)
		if eb.Info.Count < n {
			n = eb.Info.Count
		}
		start := e.intn(eb.Info.Count - n + 1)

		data, err := e.backend.FetchRange(ctx, c.country, eb.Info.PackFile,
			start*packfmt.RecordSize, n*packfmt.RecordSize)
		if err != nil {
			return nil, err
		}
		recs, skipped := packfmt.DecodeBatch(data)
		if skipped > 0 {
			e.log.Warn().
				Str("country", c.country).
				Str("pack", eb.Info.PackFile).
				Int("skipped", skipped).
				Msg("corrupt records in batch")
		}

		hashes := make([]uint64, len(recs))
		for i, r := range recs {
			hashes[i] = r.Hash
		}
		disabledHashes, _ := e.disabled.CheckBatch(hashes)
		dead := make(map[uint64]struct{}, len(disabledHashes))
		for _, h := range disabledHashes {
			dead[h] = struct{}{}
		}

		before := len(out)
		for _, r := range recs {
			if len(out) == count {
				break
			}
			if _, ok := excluded[r.Hash]; ok {
				continue
			}
			if _, ok := seen[r.Hash]; ok {
				continue
			}
			if _, ok := dead[r.Hash]; ok {
				continue
			}
			seen[r.Hash] = struct{}{}
			out = append(out, domain.Location{Country: c.country, Record: r})
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

// SelectLocationWithConstraints implements domain.ProviderPort.
//
// Without an active constraint this is a single-result SelectLocations call.
// With one, up to ConstraintAttempts batches are drawn and the first candidate
// far enough from every prior location wins; exhaustion falls back to an
// unconstrained draw rather than failing the round
func (e *Engine) SelectLocationWithConstraints(
	ctx context.Context,
	mapID string,
	exclude []uint64,
	c domain.Constraints,
) (domain.Location, error) {
	m, err := e.registry.Get(ctx, mapID)
	if err != nil {
		return domain.Location{}, err
	}

	if !c.Active() {
		return e.selectOne(ctx, m.Rules, exclude)
	}

	loc, ok, err := pickConstrained(ctx, e.cfg.ConstraintAttempts, e.cfg.BatchSize, c,
		func(ctx context.Context, n int) ([]domain.Location, error) {
			return e.SelectLocations(ctx, m.Rules, exclude, n)
		})
	if err != nil {
		return domain.Location{}, err
	}
	if ok {
		return loc, nil
	}

	e.log.Warn().
		Str("map", m.Slug).
		Float64("min_distance_m", c.MinDistanceMeters).
		Int("priors", len(c.PriorLocations)).
		Msg("distance constraint unsatisfied, falling back to unconstrained selection")
	return e.selectOne(ctx, m.Rules, exclude)
}

func (e *Engine) selectOne(ctx context.Context, rules domain.Rules, exclude []uint64) (domain.Location, error) {
	locs, err := e.SelectLocations(ctx, rules, exclude, 1)
	if err != nil {
		return domain.Location{}, err
	}
	return locs[0], nil
}

// pickConstrained runs the bounded constraint loop over a batch selector.
// ok is false when every attempt came up short; only unexpected errors
// propagate, a drained selector just ends the loop early
func pickConstrained(
	ctx context.Context,
	attempts, batchSize int,
	c domain.Constraints,
	selectBatch func(context.Context, int) ([]domain.Location, error),
) (domain.Location, bool, error) {
	for attempt := 0; attempt < attempts; attempt++ {
		batch, err := selectBatch(ctx, batchSize)
		if err != nil {
			if errors.Is(err, domain.ErrNoLocationsAvailable) {
				continue
			}
			return domain.Location{}, false, err
		}
		for _, loc := range batch {
			if satisfiesDistance(loc, c) {
				return loc, true, nil
			}
		}
	}
	return domain.Location{}, false, nil
}

// satisfiesDistance reports whether loc is at least the minimum great-circle
// distance from every prior location
func satisfiesDistance(loc domain.Location, c domain.Constraints) bool {
	for _, p := range c.PriorLocations {
		d := geo.DistanceMeters(loc.Record.Lat, loc.Record.Lng, p.Record.Lat, p.Record.Lng)
		if d < c.MinDistanceMeters {
			return false
		}
	}
	return true
}
