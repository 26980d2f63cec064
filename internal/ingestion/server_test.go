package ingestion

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mirraman/logpipe/pkg/model"
)

func gzipJSON(t *testing.T, v any) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(raw); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

func TestHandleHealth(t *testing.T) {
	s := NewServer(Config{})
	ts := httptest.NewServer(s)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "OK" {
		t.Errorf("body = %q, want OK", body)
	}
}

// TestHandleIngestSuccess mirrors spec.md §8's redaction-through-ingest
// scenario: a batch with a sensitive message arrives and the forwarded
// batch seen by Storage is redacted.
func TestHandleIngestSuccess(t *testing.T) {
	var storedBatch model.LogBatch
	storage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&storedBatch); err != nil {
			t.Fatalf("storage decode: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer storage.Close()

	s := NewServer(Config{StorageURL: storage.URL})
	ts := httptest.NewServer(s)
	defer ts.Close()

	batch := model.NewLogBatch([]model.LogEntry{
		model.NewLogEntry("checkout", model.LevelInfo, "card 1234567890123456 charged", nil),
	})
	payload := gzipJSON(t, batch)

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/ingest", bytes.NewReader(payload))
	req.Header.Set("Content-Encoding", "gzip")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST /ingest: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if len(storedBatch.Logs) != 1 {
		t.Fatalf("storage saw %d logs, want 1", len(storedBatch.Logs))
	}
	if got := storedBatch.Logs[0].Message; got != "card ****-****-****-**** charged" {
		t.Errorf("message = %q, want redacted card number", got)
	}
}

func TestHandleIngestInvalidGzip(t *testing.T) {
	s := NewServer(Config{})
	ts := httptest.NewServer(s)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/ingest", "application/octet-stream", bytes.NewReader([]byte("not gzip")))
	if err != nil {
		t.Fatalf("POST /ingest: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHandleIngestRateLimited(t *testing.T) {
	s := NewServer(Config{StorageURL: "http://unused.invalid"})
	s.limiter.UpdateQuota(model.QuotaConfig{AppName: "checkout", LogsPerSecond: 1})
	ts := httptest.NewServer(s)
	defer ts.Close()

	logs := make([]model.LogEntry, 5)
	for i := range logs {
		logs[i] = model.NewLogEntry("checkout", model.LevelInfo, "hello", nil)
	}
	batch := model.NewLogBatch(logs)
	payload := gzipJSON(t, batch)

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/ingest", bytes.NewReader(payload))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST /ingest: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", resp.StatusCode)
	}
}

func TestHandleIngestStorageFailure(t *testing.T) {
	storage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer storage.Close()

	s := NewServer(Config{StorageURL: storage.URL})
	ts := httptest.NewServer(s)
	defer ts.Close()

	batch := model.NewLogBatch([]model.LogEntry{model.NewLogEntry("checkout", model.LevelInfo, "hi", nil)})
	payload := gzipJSON(t, batch)

	resp, err := http.Post(ts.URL+"/ingest", "application/octet-stream", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST /ingest: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
}

func TestRefreshQuotas(t *testing.T) {
	configSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]model.QuotaConfig{
			{AppName: "checkout", LogsPerSecond: 42},
		})
	}))
	defer configSrv.Close()

	s := NewServer(Config{ConfigURL: configSrv.URL})
	s.refreshQuotas(context.Background())

	if got := s.limiter.limitFor("checkout"); got != 42 {
		t.Errorf("limitFor(checkout) = %d, want 42", got)
	}
}
