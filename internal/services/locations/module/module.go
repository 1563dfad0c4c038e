// Package module wires the locations provider from config
package module

import (
	"strings"

	"geopack/internal/adapters/packstore"
	"geopack/internal/modkit"
	"geopack/internal/modkit/repokit"
	"geopack/internal/services/locations/domain"
	"geopack/internal/services/locations/repo"
	"geopack/internal/services/locations/service"
)

// Ports exposed by the locations module
type Ports struct {
	Provider domain.ProviderPort
}

// Module implements modkit.Module
type Module struct {
	deps   modkit.Deps
	built  modkit.Built
	engine *service.Engine // nil when the pg provider is active
}

// New constructs the locations module. Overrides beat config; zero values
// fall through to config then defaults
func New(deps modkit.Deps, overrides Options) *Module {
	cfg := FromConfig(deps.Cfg)
	if overrides.Provider != "" {
		cfg.Provider = overrides.Provider
	}
	if overrides.Base != "" {
		cfg.Base = overrides.Base
	}
	if overrides.Version != "" {
		cfg.Version = overrides.Version
	}
	if overrides.Timeout != 0 {
		cfg.Timeout = overrides.Timeout
	}
	if overrides.BatchSize != 0 {
		cfg.BatchSize = overrides.BatchSize
	}
	if overrides.IdleIterations != 0 {
		cfg.IdleIterations = overrides.IdleIterations
	}
	if overrides.ConstraintAttempts != 0 {
		cfg.ConstraintAttempts = overrides.ConstraintAttempts
	}
	if overrides.DisabledCapacity != 0 {
		cfg.DisabledCapacity = overrides.DisabledCapacity
	}
	if overrides.Seed != 0 {
		cfg.Seed = overrides.Seed
	}

	svcCfg := service.Config{
		BatchSize:          cfg.BatchSize,
		IdleIterations:     cfg.IdleIterations,
		ConstraintAttempts: cfg.ConstraintAttempts,
		DisabledCapacity:   cfg.DisabledCapacity,
		Seed:               cfg.Seed,
	}
	reg := service.NewRegistry()

	m := &Module{deps: deps}
	var ports Ports
	switch cfg.Provider {
	case "pg":
		q, ok := deps.PG.(repokit.Queryer)
		if !ok {
			panic("locations module: pg provider needs a SQL store in deps.PG")
		}
		storage := repokit.MustBind(repo.NewPG(), q)
		ports = Ports{Provider: service.NewDBProvider(storage, reg, svcCfg)}
	default:
		backend := buildBackend(cfg)
		eng := service.NewEngine(backend, reg, svcCfg)
		m.engine = eng
		ports = Ports{Provider: eng}
	}
	m.built = modkit.Build(modkit.WithName("locations"), modkit.WithPorts(ports))
	return m
}

// buildBackend picks HTTP or local FS by the dataset base's shape
func buildBackend(cfg Options) packstore.Backend {
	if strings.HasPrefix(cfg.Base, "http://") || strings.HasPrefix(cfg.Base, "https://") {
		return packstore.NewHTTP(packstore.HTTPOptions{
			BaseURL: cfg.Base,
			Version: cfg.Version,
			Timeout: cfg.Timeout,
		})
	}
	return packstore.NewFS(cfg.Base, cfg.Version)
}

// Engine exposes the pack engine for warm-up and stats; nil under pg
func (m *Module) Engine() *service.Engine { return m.engine }

// Name satisfies modkit.Module
func (m *Module) Name() string { return m.built.Name }

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return m.built.Ports }
