// Package api exposes the read-only observability HTTP interface served
// while a crawl runs.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/formpick/picklist-crawler/internal/catalog"
)

// SnapshotSource exposes the live aggregate for inspection. The catalog
// Aggregator satisfies it.
type SnapshotSource interface {
	Snapshot() []catalog.Record
	Len() int
}

// Server wires HTTP handlers to the aggregator and metrics registry.
type Server struct {
	router   chi.Router
	source   SnapshotSource
	registry *prometheus.Registry
	logger   *zap.Logger
}

// NewServer constructs a Server with routes for health, metrics, and the
// current record snapshot.
func NewServer(source SnapshotSource, registry *prometheus.Registry, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		source:   source,
		registry: registry,
		logger:   logger,
	}
	r := chi.NewRouter()
	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	r.Route("/v1", func(r chi.Router) {
		r.Get("/records", s.getRecords)
	})
	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) getRecords(w http.ResponseWriter, _ *http.Request) {
	records := s.source.Snapshot()
	if records == nil {
		records = []catalog.Record{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(records),
		"records": records,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("write response failed", zap.Error(err))
	}
}
