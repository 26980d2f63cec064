package model

import (
	"testing"
	"time"
)

func TestNewLogEntry(t *testing.T) {
	e := NewLogEntry("test-app", LevelInfo, "hello", map[string]string{"user_id": "123"})

	if e.AppName != "test-app" {
		t.Errorf("app_name = %q, want test-app", e.AppName)
	}
	if e.Level != LevelInfo {
		t.Errorf("level = %q, want Info", e.Level)
	}
	if e.Message != "hello" {
		t.Errorf("message = %q, want hello", e.Message)
	}
	if e.Attributes["user_id"] != "123" {
		t.Errorf("attributes[user_id] = %q, want 123", e.Attributes["user_id"])
	}
	if e.ID == "" {
		t.Error("id should not be empty")
	}
	if e.Timestamp.Location() != time.UTC {
		t.Error("timestamp should be UTC")
	}
}

func TestNewLogBatch(t *testing.T) {
	logs := []LogEntry{
		NewLogEntry("app1", LevelInfo, "log 1", nil),
		NewLogEntry("app2", LevelError, "log 2", nil),
	}
	batch := NewLogBatch(logs)

	if len(batch.Logs) != 2 {
		t.Errorf("len(logs) = %d, want 2", len(batch.Logs))
	}
	if batch.BatchID == "" {
		t.Error("batch_id should not be empty")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
		ok   bool
	}{
		{"Debug", LevelDebug, true},
		{"Info", LevelInfo, true},
		{"Warn", LevelWarn, true},
		{"Error", LevelError, true},
		{"info", "", false},
		{"Critical", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseLevel(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseLevel(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestSearchQueryEffectiveLimit(t *testing.T) {
	q := SearchQuery{}
	if got := q.EffectiveLimit(); got != DefaultSearchLimit {
		t.Errorf("EffectiveLimit() = %d, want default %d", got, DefaultSearchLimit)
	}

	limit := 5
	q.Limit = &limit
	if got := q.EffectiveLimit(); got != 5 {
		t.Errorf("EffectiveLimit() = %d, want 5", got)
	}

	zero := 0
	q.Limit = &zero
	if got := q.EffectiveLimit(); got != DefaultSearchLimit {
		t.Errorf("EffectiveLimit() with zero limit = %d, want default %d", got, DefaultSearchLimit)
	}
}
