package storage

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/mirraman/logpipe/pkg/model"
)

// Server is the Storage service's HTTP API.
type Server struct {
	index  Index
	logger *slog.Logger
	mux    *http.ServeMux
}

// NewServer creates a Storage API server backed by index.
func NewServer(index Index, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{index: index, logger: logger, mux: http.NewServeMux()}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /store", s.handleStore)
	s.mux.HandleFunc("POST /search", s.handleSearch)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s.mux.ServeHTTP(w, r)
	s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
}

func (s *Server) handleStore(w http.ResponseWriter, r *http.Request) {
	var batch model.LogBatch
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if err := s.index.Upsert(r.Context(), HotIndex, batch.Logs); err != nil {
		s.logger.Error("bulk upsert failed", "batch_id", batch.BatchID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "storage error")
		return
	}

	s.logger.Info("stored batch", "batch_id", batch.BatchID, "count", len(batch.Logs))
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query model.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	results, err := s.index.Search(r.Context(), []string{HotIndex, ColdIndex}, query)
	if err != nil {
		s.logger.Error("search failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "storage error")
		return
	}

	s.writeJSON(w, http.StatusOK, results)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
