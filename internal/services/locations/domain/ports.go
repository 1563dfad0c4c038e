package domain

import "context"

// ProviderPort is the upward capability interface the game layer consumes.
// Pack-backed and database-backed providers satisfy it identically
type ProviderPort interface {
	// SelectLocations returns up to count locations matching rules, excluding
	// the given hashes. A non-empty short result is a valid partial success;
	// an empty one is ErrNoLocationsAvailable
	SelectLocations(ctx context.Context, rules Rules, exclude []uint64, count int) ([]Location, error)

	// SelectLocationWithConstraints draws one location for a map, honoring a
	// minimum-distance constraint against prior locations when one is active
	SelectLocationWithConstraints(ctx context.Context, mapID string, exclude []uint64, c Constraints) (Location, error)

	// GetLocationCount estimates how many records a map can draw from.
	// It ignores disabled hashes and may reflect a stale cached index
	GetLocationCount(ctx context.Context, mapID string) (int64, error)

	// MarkLocationFailed flags a location unusable for future selection.
	// locationID is either "hash:<decimal>" or a raw panorama id
	MarkLocationFailed(ctx context.Context, locationID string) error

	// RegisterMap validates and stores a map; an empty ID is assigned
	RegisterMap(ctx context.Context, m Map) (Map, error)

	// GetMap resolves a map by id, slug, or alias
	GetMap(ctx context.Context, idOrAlias string) (Map, error)

	// GetDefaultMap returns the map with slug "default", or the first
	// registered map when none carries that slug
	GetDefaultMap(ctx context.Context) (Map, error)
}

// Ports are the dependencies other modules receive from the locations module
type Ports struct {
	Provider ProviderPort
}
