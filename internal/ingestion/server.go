package ingestion

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/mirraman/logpipe/pkg/model"
	"github.com/mirraman/logpipe/pkg/redact"
)

// quotaRefreshInterval is how often the background task polls Config for
// the current quota table (spec.md §4.3).
const quotaRefreshInterval = 10 * time.Second

// Server is the Ingestion service's HTTP API.
type Server struct {
	limiter    *RateLimiter
	configURL  string
	storageURL string
	httpClient *http.Client
	logger     *slog.Logger
	mux        *http.ServeMux

	refreshOnce sync.Once
}

// Config bundles the dependencies NewServer needs.
type Config struct {
	ConfigURL  string
	StorageURL string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// NewServer creates an Ingestion API server. It does not start the quota
// refresh loop; call StartQuotaRefresh for that.
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
		limiter:    NewRateLimiter(),
		configURL:  cfg.ConfigURL,
		storageURL: cfg.StorageURL,
		httpClient: client,
		logger:     logger,
		mux:        http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /ingest", s.handleIngest)
	s.mux.HandleFunc("GET /health", s.handleHealth)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s.mux.ServeHTTP(w, r)
	s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
}

// StartQuotaRefresh launches the background quota-polling task. It is
// idempotent; subsequent calls are no-ops. The loop logs and continues on
// error; it stops only when ctx is cancelled.
func (s *Server) StartQuotaRefresh(ctx context.Context) {
	s.refreshOnce.Do(func() {
		go s.runQuotaRefresh(ctx)
	})
}

func (s *Server) runQuotaRefresh(ctx context.Context) {
	ticker := time.NewTicker(quotaRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refreshQuotas(ctx)
		}
	}
}

func (s *Server) refreshQuotas(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.configURL+"/quotas", nil)
	if err != nil {
		s.logger.Error("failed to build quota refresh request", "error", err)
		return
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Error("failed to fetch quotas", "error", err)
		return
	}
	defer resp.Body.Close()

	var quotas []model.QuotaConfig
	if err := json.NewDecoder(resp.Body).Decode(&quotas); err != nil {
		s.logger.Error("failed to decode quotas", "error", err)
		return
	}

	for _, q := range quotas {
		s.limiter.UpdateQuota(q)
	}
	s.logger.Debug("quota table refreshed", "count", len(quotas))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	gz, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid gzip")
		return
	}
	defer gz.Close()

	var batch model.LogBatch
	if err := json.NewDecoder(gz).Decode(&batch); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if len(batch.Logs) > 0 {
		appName := batch.Logs[0].AppName
		if err := s.limiter.CheckRate(appName, uint64(len(batch.Logs))); err != nil {
			s.logger.Info("rate limit exceeded", "app_name", appName, "count", len(batch.Logs))
			s.writeError(w, http.StatusTooManyRequests, err.Error())
			return
		}
	}

	redact.Batch(batch.Logs)

	if err := s.forwardToStorage(r.Context(), batch); err != nil {
		s.logger.Error("failed to forward batch to storage", "batch_id", batch.BatchID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "storage error")
		return
	}

	s.logger.Info("stored batch", "batch_id", batch.BatchID, "count", len(batch.Logs))
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) forwardToStorage(ctx context.Context, batch model.LogBatch) error {
	payload, err := json.Marshal(batch)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.storageURL+"/store", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return &model.NetworkError{Detail: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &model.StorageError{Detail: resp.Status}
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
