package agent

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mirraman/logpipe/pkg/model"
)

func decodeBatch(t *testing.T, r *http.Request) model.LogBatch {
	t.Helper()
	if r.Header.Get("Content-Encoding") != "gzip" {
		t.Fatalf("missing Content-Encoding: gzip header")
	}
	gz, err := gzip.NewReader(r.Body)
	if err != nil {
		t.Fatalf("gzip.NewReader: %v", err)
	}
	defer gz.Close()

	var batch model.LogBatch
	if err := json.NewDecoder(gz).Decode(&batch); err != nil {
		t.Fatalf("decode batch: %v", err)
	}
	return batch
}

// TestLogSizeTrigger mirrors spec.md §8 scenario 1: batch_size=10, no flush
// loop, logging 10 records triggers exactly one POST with all 10.
func TestLogSizeTrigger(t *testing.T) {
	var posts int32
	var gotCount int
	done := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		batch := decodeBatch(t, r)
		gotCount = len(batch.Logs)
		atomic.AddInt32(&posts, 1)
		w.WriteHeader(http.StatusOK)
		close(done)
	}))
	defer srv.Close()

	a := New(Config{IngestionURL: srv.URL, BatchSize: 10})
	for i := 0; i < 10; i++ {
		a.Log(model.NewLogEntry("a", model.LevelInfo, "msg", nil))
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for batch to be posted")
	}

	if atomic.LoadInt32(&posts) != 1 {
		t.Errorf("posts = %d, want 1", posts)
	}
	if gotCount != 10 {
		t.Errorf("batch size = %d, want 10", gotCount)
	}
}

// TestFlushLoop mirrors spec.md §8 scenario 2 with a shortened timer:
// batch_size=100, flush loop running every 200ms, logging 3 records ships
// exactly one batch of 3 within 2s.
func TestFlushLoop(t *testing.T) {
	var posts int32
	var gotCount int
	done := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		batch := decodeBatch(t, r)
		gotCount = len(batch.Logs)
		atomic.AddInt32(&posts, 1)
		w.WriteHeader(http.StatusOK)
		select {
		case <-done:
		default:
			close(done)
		}
	}))
	defer srv.Close()

	a := New(Config{IngestionURL: srv.URL, BatchSize: 100, FlushInterval: 200 * time.Millisecond})
	a.StartFlushLoop(context.Background())

	for i := 0; i < 3; i++ {
		a.Log(model.NewLogEntry("a", model.LevelInfo, "msg", nil))
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for flush")
	}

	if atomic.LoadInt32(&posts) != 1 {
		t.Errorf("posts = %d, want 1", posts)
	}
	if gotCount != 3 {
		t.Errorf("batch size = %d, want 3", gotCount)
	}
}

func TestRetryThenSpill(t *testing.T) {
	dir := t.TempDir()
	var attempts int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	a := New(Config{IngestionURL: srv.URL, BatchSize: 1, SpillDir: dir})
	a.shipBatch(context.Background(), []model.LogEntry{
		model.NewLogEntry("a", model.LevelInfo, "msg", nil),
	})

	if got := atomic.LoadInt32(&attempts); got != maxAttempts {
		t.Errorf("attempts = %d, want %d", got, maxAttempts)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("spill dir has %d files, want 1", len(entries))
	}
	if stats := a.Stats(); stats.Failed != 1 || stats.Spilled != 1 {
		t.Errorf("stats = %+v, want Failed=1 Spilled=1", stats)
	}
}
