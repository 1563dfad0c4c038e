// Package repo provides the relational locations repository backing the
// database provider
package repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"geopack/internal/modkit/repokit"
	perr "geopack/internal/platform/errors"
	"geopack/internal/platform/store"
	"geopack/internal/services/locations/domain"
)

type (
	pg     struct{ q repokit.Queryer }
	binder struct{}
)

// NewPG constructs a new repo binder for Postgres
func NewPG() repokit.Binder[Storage] { return binder{} }

// Bind implements repokit.Binder
func (binder) Bind(q repokit.Queryer) Storage { return &pg{q: q} }

// Filters narrow the locations table the same way index buckets narrow packs
type Filters struct {
	Countries   []string
	MinYear     *int
	MaxYear     *int
	OutdoorOnly bool
}

// Storage defines the locations repository
type Storage interface {
	// SelectRandom returns up to limit random enabled locations matching f,
	// excluding the given hashes. Hashes travel as int64, the BIGINT image
	// of the unsigned content hash
	SelectRandom(ctx context.Context, f Filters, exclude []int64, limit int) ([]domain.Location, error)

	// CountByCountry returns per-country enabled counts under f
	CountByCountry(ctx context.Context, f Filters) (map[string]int64, error)

	// Count returns the total enabled count under f
	Count(ctx context.Context, f Filters) (int64, error)

	// DisableByHash flags one location disabled
	DisableByHash(ctx context.Context, hash int64) error
}

// appendFilters adds the clauses shared by selects and counts
func appendFilters(sb *strings.Builder, f Filters, arg func(any) string) {
	sb.WriteString(" WHERE NOT disabled")
	if len(f.Countries) > 0 {
		sb.WriteString(" AND country = ANY(" + arg(f.Countries) + ")")
	}
	if f.OutdoorOnly {
		sb.WriteString(" AND NOT scout")
	}
	// capture_days 0 means unknown and always passes year filters
	if f.MinYear != nil {
		sb.WriteString(" AND (capture_days = 0 OR capture_days >= " + arg(daysAtYearStart(*f.MinYear)) + ")")
	}
	if f.MaxYear != nil {
		sb.WriteString(" AND (capture_days = 0 OR capture_days < " + arg(daysAtYearStart(*f.MaxYear+1)) + ")")
	}
}

// daysAtYearStart converts a year to days since the 1970-01-01 epoch
func daysAtYearStart(year int) int {
	t := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return int(t.Unix() / 86400)
}

// scanLocation maps one selected row into a domain Location
func scanLocation(r store.Row) (domain.Location, error) {
	var (
		loc         domain.Location
		captureDays int
		heading     *float64
		hash        int64
	)
	if err := r.Scan(
		&loc.Country, &loc.Record.PanoID, &loc.Record.Lat, &loc.Record.Lng,
		&loc.Record.Subdivision, &captureDays, &loc.Record.Scout, &heading,
		&loc.Record.Surface, &loc.Record.Arrows, &loc.Record.Buildings,
		&loc.Record.Roads, &loc.Record.Elevation, &hash,
	); err != nil {
		return domain.Location{}, err
	}
	loc.Record.CaptureDays = uint16(captureDays)
	loc.Record.Heading = heading
	loc.Record.Hash = uint64(hash)
	return loc, nil
}

// SelectRandom implements Storage
func (s *pg) SelectRandom(ctx context.Context, f Filters, exclude []int64, limit int) ([]domain.Location, error) {
	var sb strings.Builder
	var args []any
	arg := func(v any) string { args = append(args, v); return fmt.Sprintf("$%d", len(args)) }

	sb.WriteString(`SELECT country, pano_id, lat, lng, subdivision, capture_days,
		scout, heading, surface, arrows, buildings, roads, elevation, hash
	FROM locations`)
	appendFilters(&sb, f, arg)
	if len(exclude) > 0 {
		sb.WriteString(" AND hash <> ALL(" + arg(exclude) + ")")
	}
	sb.WriteString(" ORDER BY random() LIMIT " + arg(limit))

	out, err := store.Many(ctx, s.q, scanLocation, sb.String(), args...)
	if err != nil {
		return nil, perr.FromPostgresf(err, "select random locations")
	}
	return out, nil
}

// CountByCountry implements Storage
func (s *pg) CountByCountry(ctx context.Context, f Filters) (map[string]int64, error) {
	var sb strings.Builder
	var args []any
	arg := func(v any) string { args = append(args, v); return fmt.Sprintf("$%d", len(args)) }

	sb.WriteString(`SELECT country, COUNT(*) FROM locations`)
	appendFilters(&sb, f, arg)
	sb.WriteString(" GROUP BY country")

	type countryCount struct {
		cc string
		n  int64
	}
	rows, err := store.Many(ctx, s.q, func(r store.Row) (countryCount, error) {
		var c countryCount
		err := r.Scan(&c.cc, &c.n)
		return c, err
	}, sb.String(), args...)
	if err != nil {
		return nil, perr.FromPostgresf(err, "count locations by country")
	}

	out := make(map[string]int64, len(rows))
	for _, c := range rows {
		out[c.cc] = c.n
	}
	return out, nil
}

// Count implements Storage
func (s *pg) Count(ctx context.Context, f Filters) (int64, error) {
	var sb strings.Builder
	var args []any
	arg := func(v any) string { args = append(args, v); return fmt.Sprintf("$%d", len(args)) }

	sb.WriteString(`SELECT COUNT(*) FROM locations`)
	appendFilters(&sb, f, arg)

	n, err := store.Scalar[int64](ctx, s.q, sb.String(), args...)
	if err != nil {
		return 0, perr.FromPostgresf(err, "count locations")
	}
	return n, nil
}

// DisableByHash implements Storage
func (s *pg) DisableByHash(ctx context.Context, hash int64) error {
	_, err := store.Exec(ctx, s.q, `UPDATE locations SET disabled = TRUE WHERE hash = $1`, hash)
	return perr.FromPostgresf(err, "disable location %d", hash)
}

// HashKey converts a content hash to its BIGINT column image
func HashKey(h uint64) int64 { return int64(h) }
