// Package search implements the Search service: a thin query facade
// that forwards to Storage (spec.md §4.6).
package search

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/mirraman/logpipe/internal/search/cache"
	"github.com/mirraman/logpipe/pkg/model"
)

// Server is the Search service's HTTP API.
type Server struct {
	storageURL string
	httpClient *http.Client
	logger     *slog.Logger
	mux        *http.ServeMux
	cache      *cache.Cache // optional; nil disables result caching
}

// Config bundles the dependencies NewServer needs.
type Config struct {
	StorageURL string
	HTTPClient *http.Client
	Logger     *slog.Logger
	Cache      *cache.Cache // optional Redis-backed result cache
}

// NewServer creates a Search API server.
func NewServer(cfg Config) *Server {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		storageURL: cfg.StorageURL,
		httpClient: client,
		logger:     logger,
		mux:        http.NewServeMux(),
		cache:      cfg.Cache,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /search", s.handleSearchPost)
	s.mux.HandleFunc("GET /search", s.handleSearchGet)
	s.mux.HandleFunc("GET /health", s.handleHealth)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s.mux.ServeHTTP(w, r)
	s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleSearchPost(w http.ResponseWriter, r *http.Request) {
	var query model.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	s.forward(w, r, query)
}

func (s *Server) handleSearchGet(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	query := model.SearchQuery{}
	if appName := params.Get("app_name"); appName != "" {
		query.AppName = &appName
	}
	if levelParam := params.Get("level"); levelParam != "" {
		if level, ok := model.ParseLevel(levelParam); ok {
			query.Level = &level
		}
		// Unknown values silently yield no level filter, per spec.md §4.6.
	}
	if limitParam := params.Get("limit"); limitParam != "" {
		if limit, err := strconv.Atoi(limitParam); err == nil {
			query.Limit = &limit
		}
	}

	s.forward(w, r, query)
}

func (s *Server) forward(w http.ResponseWriter, r *http.Request, query model.SearchQuery) {
	if s.cache != nil {
		if logs, ok := s.cache.Get(r.Context(), query); ok {
			s.writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
			return
		}
	}

	payload, err := json.Marshal(query)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to encode query")
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, s.storageURL+"/search", bytes.NewReader(payload))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to build storage request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Error("failed to reach storage", "error", err)
		s.writeError(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.Error("storage returned an error", "status", resp.StatusCode)
		s.writeError(w, http.StatusInternalServerError, "storage error")
		return
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to read storage response")
		return
	}

	var logs []model.LogEntry
	if err := json.Unmarshal(body, &logs); err != nil {
		s.logger.Error("failed to parse storage response", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to parse results")
		return
	}

	s.logger.Info("search complete", "count", len(logs))
	if s.cache != nil {
		s.cache.Set(r.Context(), query, logs)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
