package module

import (
	"time"

	"geopack/internal/platform/config"
)

// Options holds configuration settings for the locations module
type Options struct {
	// Provider picks the backing implementation: "pack" or "pg"
	Provider string

	// Base is the dataset root: an http(s) URL or a local directory
	Base string

	// Version is the dataset version prefix
	Version string

	// Timeout bounds remote document and range fetches
	Timeout time.Duration

	BatchSize          int
	IdleIterations     int
	ConstraintAttempts int
	DisabledCapacity   int
	Seed               int64
}

// FromConfig extracts Options from the given config.Conf
func FromConfig(cfg config.Conf) Options {
	lc := cfg.Prefix("CORE_LOCATIONS_")
	pk := cfg.Prefix("PACKS_")
	return Options{
		Provider:           lc.MayEnum("PROVIDER", "pack", "pack", "pg"),
		Base:               pk.MayString("BASE", "./data/packs"),
		Version:            pk.MayString("VERSION", "v1"),
		Timeout:            pk.MayDuration("TIMEOUT", 30*time.Second),
		BatchSize:          lc.MayInt("BATCH_SIZE", 16),
		IdleIterations:     lc.MayInt("IDLE_ITERATIONS", 5),
		ConstraintAttempts: lc.MayInt("CONSTRAINT_ATTEMPTS", 10),
		DisabledCapacity:   lc.MayInt("DISABLED_CAPACITY", 1<<20),
		Seed:               int64(lc.MayInt("SEED", 0)),
	}
}
