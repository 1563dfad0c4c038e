// geopack-locd is the locations daemon: it builds the configured provider,
// warms the dataset manifest, and serves the ops HTTP surface
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"geopack/internal/modkit"
	regmod "geopack/internal/modkit/module"
	"geopack/internal/modkit/repokit"
	"geopack/internal/ops"
	"geopack/internal/platform/config"
	"geopack/internal/platform/logger"
	"geopack/internal/platform/store"

	locmod "geopack/internal/services/locations/module"
)

func main() {
	_ = godotenv.Load(".env")

	root := config.New()
	l := logger.Get()

	deps := modkit.Deps{
		Cfg: root,
		Log: *l,
	}

	opts := locmod.FromConfig(root)
	if opts.Provider == "pg" {
		pgCfg := root.Prefix("SERVICE_PGSQL_")
		st, err := store.Open(context.Background(), store.Config{
			AppName: "geopack-locd",
			PG: store.PGConfig{
				Enabled:     true,
				URL:         pgCfg.MustString("DBURL"),
				MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 4)),
				SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
				LogSQL:      pgCfg.MayBool("LOG_SQL", false),
			},
		}, store.WithLogger(*l))
		if err != nil {
			l.Panic().Err(err).Msg("store.Open failed")
		}
		defer func() {
			if err := st.Close(context.Background()); err != nil {
				l.Error().Err(err).Msg("failed to close store")
			}
		}()
		guardCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		repokit.MustGuard(guardCtx, st)
		cancel()
		deps.PG = st.PG
	}

	lm := locmod.New(deps, locmod.Options{})
	regmod.Register(lm.Name(), lm.Ports())

	if eng := lm.Engine(); eng != nil {
		warmCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := eng.WarmManifest(warmCtx); err != nil {
			l.Warn().Err(err).Msg("manifest warm-up failed, readiness will lag")
		}
		cancel()
	}

	addr := root.Prefix("OPS_").MayString("ADDR", ":8091")
	srv := ops.New(addr, lm.Engine())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			l.Fatal().Err(err).Msg("ops server failed")
		}
	case sig := <-stop:
		l.Info().Str("signal", sig.String()).Msg("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			l.Error().Err(err).Msg("shutdown failed")
		}
	}
}
