// Package ops serves the operational HTTP surface of the locations daemon:
// liveness, readiness, and dataset statistics. Selection itself is not
// exposed here
package ops

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"geopack/internal/core/version"
	"geopack/internal/platform/logger"
	"geopack/internal/services/locations/service"
)

// Server wraps the ops HTTP listener
type Server struct {
	srv *http.Server
	log logger.Logger
}

// New builds the ops server. engine may be nil when the pg provider is
// active; readiness then only reflects process liveness
func New(addr string, engine *service.Engine) *Server {
	log := logger.Named("ops")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLog)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "ok",
			"build":  version.Info(),
		})
	})

	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		if engine == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		if _, err := engine.Manifest(req.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status": "loading",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	r.Get("/statz", func(w http.ResponseWriter, req *http.Request) {
		if engine == nil {
			writeJSON(w, http.StatusOK, map[string]any{"provider": "pg"})
			return
		}
		m, err := engine.Manifest(req.Context())
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": err.Error()})
			return
		}
		type countryStat struct {
			Country string `json:"country"`
			Count   int64  `json:"count"`
		}
		stats := make([]countryStat, 0, len(m.Countries))
		for cc, meta := range m.Countries {
			stats = append(stats, countryStat{Country: cc, Count: meta.Count})
		}
		sort.Slice(stats, func(i, j int) bool { return stats[i].Country < stats[j].Country })
		writeJSON(w, http.StatusOK, map[string]any{
			"provider":        "pack",
			"dataset_version": m.DatasetVersion,
			"total_count":     m.TotalCount,
			"countries":       stats,
			"disabled_cached": engine.Disabled().Len(),
		})
	})

	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: *log,
	}
}

// requestLog annotates the context with the chi request id and logs each
// request through the context-enriched logger
func requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ctx := logger.WithRequest(req.Context(), middleware.GetReqID(req.Context()), "")
		logger.C(ctx).Debug().
			Str("method", req.Method).
			Str("path", req.URL.Path).
			Msg("ops request")
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Start serves until the listener fails or Shutdown is called
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.srv.Addr).Msg("ops server listening")
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
