package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mirraman/logpipe/internal/storage/memindex"
	"github.com/mirraman/logpipe/pkg/model"
)

func TestStoreThenSearch(t *testing.T) {
	idx := memindex.New()
	srv := NewServer(idx, nil)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	batch := model.NewLogBatch([]model.LogEntry{
		model.NewLogEntry("checkout", model.LevelError, "payment failed", nil),
		model.NewLogEntry("checkout", model.LevelInfo, "payment ok", nil),
	})
	body, _ := json.Marshal(batch)

	resp, err := http.Post(ts.URL+"/store", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /store: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("store status = %d, want 200", resp.StatusCode)
	}

	level := model.LevelError
	query := model.SearchQuery{Level: &level}
	qbody, _ := json.Marshal(query)

	resp, err = http.Post(ts.URL+"/search", "application/json", bytes.NewReader(qbody))
	if err != nil {
		t.Fatalf("POST /search: %v", err)
	}
	defer resp.Body.Close()

	var results []model.LogEntry
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	if results[0].Message != "payment failed" {
		t.Errorf("message = %q, want %q", results[0].Message, "payment failed")
	}
}

func TestSearchEmptyQueryMatchesAll(t *testing.T) {
	idx := memindex.New()
	srv := NewServer(idx, nil)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	batch := model.NewLogBatch([]model.LogEntry{
		model.NewLogEntry("a", model.LevelInfo, "1", nil),
		model.NewLogEntry("b", model.LevelInfo, "2", nil),
	})
	body, _ := json.Marshal(batch)
	resp, _ := http.Post(ts.URL+"/store", "application/json", bytes.NewReader(body))
	resp.Body.Close()

	qbody, _ := json.Marshal(model.SearchQuery{})
	resp, err := http.Post(ts.URL+"/search", "application/json", bytes.NewReader(qbody))
	if err != nil {
		t.Fatalf("POST /search: %v", err)
	}
	defer resp.Body.Close()

	var results []model.LogEntry
	json.NewDecoder(resp.Body).Decode(&results)
	if len(results) != 2 {
		t.Errorf("len(results) = %d, want 2", len(results))
	}
}

func TestMigratorRunOnce(t *testing.T) {
	idx := memindex.New()
	idx.EnsureIndices(context.Background())

	now := time.Now()
	old := model.NewLogEntry("a", model.LevelInfo, "old", nil)
	old.Timestamp = now.Add(-10 * 24 * time.Hour)
	veryOld := model.NewLogEntry("a", model.LevelInfo, "very old", nil)
	veryOld.Timestamp = now.Add(-40 * 24 * time.Hour)
	fresh := model.NewLogEntry("a", model.LevelInfo, "fresh", nil)
	fresh.Timestamp = now

	idx.Upsert(context.Background(), HotIndex, []model.LogEntry{old, fresh})
	idx.Upsert(context.Background(), ColdIndex, []model.LogEntry{veryOld})

	m := NewMigrator(idx)
	m.clock = func() time.Time { return now }

	if err := m.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	hotResults, _ := idx.Search(context.Background(), []string{HotIndex}, model.SearchQuery{})
	if len(hotResults) != 1 || hotResults[0].Message != "fresh" {
		t.Errorf("hot index after migration = %+v, want only 'fresh'", hotResults)
	}

	coldResults, _ := idx.Search(context.Background(), []string{ColdIndex}, model.SearchQuery{})
	if len(coldResults) != 1 || coldResults[0].Message != "old" {
		t.Errorf("cold index after migration = %+v, want only 'old'", coldResults)
	}
}
