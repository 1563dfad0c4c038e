// Package service implements the pack-backed selection engine and the shared
// in-memory map registry
package service

import (
	"context"
	"fmt"
	"sync"

	"geopack/internal/services/locations/domain"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Registry is the in-memory map store. The game-management layer populates it
// at startup; nothing here persists
type Registry struct {
	mu      sync.RWMutex
	byID    map[string]domain.Map
	bySlug  map[string]string // slug or alias -> id
	ordered []string          // registration order, for the default fallback
}

// NewRegistry builds an empty registry
func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[string]domain.Map),
		bySlug: make(map[string]string),
	}
}

// Register validates m, assigns an id when empty, and indexes slug and aliases.
// Re-registering an existing id replaces the entry
func (r *Registry) Register(_ context.Context, m domain.Map) (domain.Map, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if err := validate.Struct(m); err != nil {
		return domain.Map{}, fmt.Errorf("register map %q: %w", m.Slug, err)
	}
	if m.Rules.Distribution == domain.DistributionCustom && len(m.Rules.CustomWeights) == 0 {
		return domain.Map{}, fmt.Errorf("register map %q: custom distribution needs custom_weights", m.Slug)
	}
	if m.Rules.MinYear != nil && m.Rules.MaxYear != nil && *m.Rules.MaxYear < *m.Rules.MinYear {
		return domain.Map{}, fmt.Errorf("register map %q: max_year below min_year", m.Slug)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// slug and aliases may only move between registrations of the same map
	for _, s := range append([]string{m.Slug}, m.Aliases...) {
		if owner, ok := r.bySlug[s]; ok && owner != m.ID {
			return domain.Map{}, fmt.Errorf("register map %q: %q already names another map", m.Slug, s)
		}
	}

	if prev, ok := r.byID[m.ID]; ok {
		delete(r.bySlug, prev.Slug)
		for _, a := range prev.Aliases {
			delete(r.bySlug, a)
		}
	} else {
		r.ordered = append(r.ordered, m.ID)
	}
	r.byID[m.ID] = m
	r.bySlug[m.Slug] = m.ID
	for _, a := range m.Aliases {
		r.bySlug[a] = m.ID
	}
	return m, nil
}

// Get resolves by id first, then slug or alias
func (r *Registry) Get(_ context.Context, idOrAlias string) (domain.Map, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if m, ok := r.byID[idOrAlias]; ok {
		return m, nil
	}
	if id, ok := r.bySlug[idOrAlias]; ok {
		return r.byID[id], nil
	}
	return domain.Map{}, fmt.Errorf("%q: %w", idOrAlias, domain.ErrMapNotFound)
}

// Default returns the map with slug "default", else the first registered map
func (r *Registry) Default(_ context.Context) (domain.Map, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if id, ok := r.bySlug["default"]; ok {
		return r.byID[id], nil
	}
	if len(r.ordered) > 0 {
		return r.byID[r.ordered[0]], nil
	}
	return domain.Map{}, fmt.Errorf("no maps registered: %w", domain.ErrMapNotFound)
}
