package config

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/mirraman/logpipe/pkg/model"
)

// Server is the Config service's HTTP API.
//
//   - GET  /quotas  -> 200 with a JSON array of all quota entries.
//   - POST /quotas  -> 200; upserts the submitted entry by app_name.
type Server struct {
	registry *Registry
	logger   *slog.Logger
	mux      *http.ServeMux
}

// NewServer creates a Config API server backed by registry.
func NewServer(registry *Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{registry: registry, logger: logger, mux: http.NewServeMux()}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /quotas", s.handleListQuotas)
	s.mux.HandleFunc("POST /quotas", s.handleUpsertQuota)
}

// ServeHTTP implements http.Handler, logging every request the way the
// Ingestion and Storage servers do.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s.mux.ServeHTTP(w, r)
	s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
}

func (s *Server) handleListQuotas(w http.ResponseWriter, r *http.Request) {
	quotas := s.registry.List()
	s.writeJSON(w, http.StatusOK, quotas)
}

func (s *Server) handleUpsertQuota(w http.ResponseWriter, r *http.Request) {
	var q model.QuotaConfig
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if q.AppName == "" {
		s.writeError(w, http.StatusBadRequest, "app_name is required")
		return
	}

	s.registry.Upsert(q)
	s.logger.Info("quota upserted", "app_name", q.AppName, "logs_per_second", q.LogsPerSecond)

	w.WriteHeader(http.StatusOK)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
