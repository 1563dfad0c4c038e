// Package modkit provides module wiring and core deps
package modkit

import (
	"geopack/internal/modkit/repokit"
	"geopack/internal/platform/config"
	"geopack/internal/platform/logger"
)

// Deps holds core dependencies passed to modules
// this is wiring only and does not introduce new abstractions
type Deps struct {
	Log logger.Logger
	Cfg config.Conf

	// PG is optional; modules that run on the pack backend leave it nil
	PG repokit.TxRunner
}

// ZeroOK returns true when deps are safe to use with zero values in tests
// consumers should still nil check for optional stores
func (d Deps) ZeroOK() bool { return true }
