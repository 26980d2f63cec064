// Package agent provides the client-side log agent.
//
// # Lifecycle
//
//  1. Construct with New, passing the ingestion URL and batch size.
//  2. Call Log for every record the host application emits.
//  3. Call StartFlushLoop once to begin the 1-second flush timer.
//  4. On shutdown, call Flush to drain and ship whatever remains.
//
// # Design
//
// Records are buffered in an in-process FIFO and shipped in batches when
// either the buffer crosses batch_size or the flush timer fires — whichever
// comes first. The handle is the *Agent pointer returned by New: every
// copy of that pointer shares the same buffer and HTTP client, so
// duplicating the handle never copies the buffer.
//
// # Resilience
//
// A failed batch is retried up to 3 total attempts with exponential
// backoff, then spilled to local disk as a last resort. The Agent never
// retries a spilled batch itself; recovering spill files is out of scope
// (see SPEC_FULL.md §4.1 in the repo root).
package agent

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/mirraman/logpipe/pkg/model"
)

// maxAttempts bounds the Agent's retry loop per spec.md §4.1: 3 total
// attempts, exponential backoff between them, then spill.
const maxAttempts = 3

// defaultOutboundRate caps how fast the Agent issues POSTs to Ingestion
// when many flush goroutines are in flight at once (size-triggered
// drains racing the flush timer). It does not affect the retry backoff
// within a single shipBatch call.
const defaultOutboundRate = 50

// Config configures an Agent.
type Config struct {
	IngestionURL  string        // base URL of the Ingestion service
	BatchSize     int           // size-triggered drain threshold
	FlushInterval time.Duration // flush timer period (spec: 1s)
	SpillDir      string        // directory for failed_batch_<id>.json (default: CWD)
	Client        *http.Client  // HTTP client (optional)
	Logger        *slog.Logger  // logger (optional)
	OutboundRate  int           // max outbound requests/sec to Ingestion (default: 50)
}

// Agent buffers, batches, compresses, and ships log records.
//
// The *Agent pointer is the handle: every copy of the pointer shares the
// same buffer and HTTP client. The struct itself holds its mutex and
// buffer slice by value, so copying an Agent value (dereferencing) does
// not share state — always pass *Agent around.
type Agent struct {
	client        *http.Client
	ingestionURL  string
	batchSize     int
	flushInterval time.Duration
	spillDir      string
	logger        *slog.Logger

	mu     sync.Mutex
	buffer []model.LogEntry

	outboundLimiter *rate.Limiter

	flushOnce sync.Once

	statsMu sync.Mutex
	shipped int64
	failed  int64
	spilled int64
}

// New creates an Agent. Panics if cfg.BatchSize <= 0.
func New(cfg Config) *Agent {
	if cfg.BatchSize <= 0 {
		panic("agent: BatchSize must be positive")
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 1 * time.Second
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.OutboundRate <= 0 {
		cfg.OutboundRate = defaultOutboundRate
	}

	return &Agent{
		client:          cfg.Client,
		ingestionURL:    cfg.IngestionURL,
		batchSize:       cfg.BatchSize,
		flushInterval:   cfg.FlushInterval,
		spillDir:        cfg.SpillDir,
		logger:          cfg.Logger,
		buffer:          make([]model.LogEntry, 0, cfg.BatchSize),
		outboundLimiter: rate.NewLimiter(rate.Limit(cfg.OutboundRate), cfg.OutboundRate),
	}
}

// Log enqueues a record. If, after enqueue, the buffer holds at least
// BatchSize records, the entire buffer is drained and shipped
// concurrently with further Log calls. Log never blocks on I/O.
func (a *Agent) Log(e model.LogEntry) {
	a.mu.Lock()
	a.buffer = append(a.buffer, e)
	var drained []model.LogEntry
	if len(a.buffer) >= a.batchSize {
		drained = a.buffer
		a.buffer = make([]model.LogEntry, 0, a.batchSize)
	}
	a.mu.Unlock()

	if drained != nil {
		go a.shipBatch(context.Background(), drained)
	}
}

// StartFlushLoop launches the background timer that drains and ships any
// non-empty buffer every FlushInterval. Idempotent across calls: only the
// first call starts the loop. Returns immediately; the loop runs in its
// own goroutine until ctx is cancelled, then flushes once more and exits.
func (a *Agent) StartFlushLoop(ctx context.Context) {
	a.flushOnce.Do(func() {
		go a.runFlushLoop(ctx)
	})
}

func (a *Agent) runFlushLoop(ctx context.Context) {
	ticker := time.NewTicker(a.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.Flush(context.Background())
			return
		case <-ticker.C:
			a.Flush(ctx)
		}
	}
}

// Flush drains the buffer, if non-empty, and ships the resulting batch.
// Safe to call concurrently with Log and the flush loop.
func (a *Agent) Flush(ctx context.Context) {
	a.mu.Lock()
	if len(a.buffer) == 0 {
		a.mu.Unlock()
		return
	}
	drained := a.buffer
	a.buffer = make([]model.LogEntry, 0, a.batchSize)
	a.mu.Unlock()

	a.shipBatch(ctx, drained)
}

// shipBatch serializes, compresses, and POSTs one batch, retrying on
// failure up to maxAttempts with exponential backoff, then spilling to
// disk as a last resort.
func (a *Agent) shipBatch(ctx context.Context, logs []model.LogEntry) {
	if len(logs) == 0 {
		return
	}

	batch := model.NewLogBatch(logs)

	compressed, err := compressBatch(batch)
	if err != nil {
		a.logger.Error("failed to encode batch", "batch_id", batch.BatchID, "error", err)
		a.spill(batch)
		return
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := a.send(ctx, compressed)
		if err == nil {
			a.logger.Info("shipped batch", "batch_id", batch.BatchID, "count", len(batch.Logs))
			a.statsMu.Lock()
			a.shipped += int64(len(batch.Logs))
			a.statsMu.Unlock()
			return
		}

		a.logger.Warn("batch send failed", "batch_id", batch.BatchID, "attempt", attempt, "error", err)

		if attempt < maxAttempts {
			time.Sleep(time.Duration(1<<uint(attempt)) * time.Second)
		}
	}

	a.statsMu.Lock()
	a.failed += int64(len(batch.Logs))
	a.statsMu.Unlock()

	a.logger.Error("batch failed after all attempts, spilling to disk", "batch_id", batch.BatchID, "count", len(batch.Logs))
	a.spill(batch)
}

func compressBatch(batch model.LogBatch) ([]byte, error) {
	data, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("marshaling batch: %w", err)
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(data); err != nil {
		return nil, fmt.Errorf("compressing batch: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("closing gzip writer: %w", err)
	}

	return buf.Bytes(), nil
}

func (a *Agent) send(ctx context.Context, compressed []byte) error {
	if err := a.outboundLimiter.Wait(ctx); err != nil {
		return &model.NetworkError{Detail: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.ingestionURL+"/ingest", bytes.NewReader(compressed))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Encoding", "gzip")
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return &model.NetworkError{Detail: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

// spill writes the batch to failed_batch_<batch_id>.json, pretty-printed.
// Best effort: any error is logged and swallowed, per spec.md §4.1.
func (a *Agent) spill(batch model.LogBatch) {
	data, err := json.MarshalIndent(batch, "", "  ")
	if err != nil {
		a.logger.Error("spill: failed to marshal batch", "batch_id", batch.BatchID, "error", err)
		return
	}

	path := fmt.Sprintf("failed_batch_%s.json", batch.BatchID)
	if a.spillDir != "" {
		path = a.spillDir + string(os.PathSeparator) + path
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		a.logger.Error("spill: failed to write file", "batch_id", batch.BatchID, "path", path, "error", err)
		return
	}

	a.statsMu.Lock()
	a.spilled += int64(len(batch.Logs))
	a.statsMu.Unlock()

	a.logger.Info("spilled batch to disk", "batch_id", batch.BatchID, "path", path)
}

// Stats reports Agent delivery counters.
type Stats struct {
	Queued  int
	Shipped int64
	Failed  int64
	Spilled int64
}

// Stats returns a snapshot of the Agent's delivery counters.
func (a *Agent) Stats() Stats {
	a.mu.Lock()
	queued := len(a.buffer)
	a.mu.Unlock()

	a.statsMu.Lock()
	defer a.statsMu.Unlock()
	return Stats{
		Queued:  queued,
		Shipped: a.shipped,
		Failed:  a.failed,
		Spilled: a.spilled,
	}
}
