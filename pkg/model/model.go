// Package model defines the domain types shared across every service in the
// pipeline: the Agent, Config, Ingestion, Storage, and Search.
//
// # Design Principles
//
// 1. Simplicity: types represent the domain model directly, no ORM layer.
// 2. Serialization: every type round-trips through JSON for HTTP transport.
// 3. Immutability: LogEntry's id, app_name, and timestamp never change after
//    creation; only message and attributes may be rewritten, and only once,
//    by the redaction pass.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Level is a log severity. The wire encoding is the capitalized string
// ("Debug", "Info", "Warn", "Error"), not a numeric code.
type Level string

const (
	LevelDebug Level = "Debug"
	LevelInfo  Level = "Info"
	LevelWarn  Level = "Warn"
	LevelError Level = "Error"
)

// ParseLevel parses a level string, returning ok=false for anything outside
// the four recognized values. Callers that should silently ignore an
// unrecognized level (the Search GET endpoint, Storage's hit parser) use
// this instead of a direct string comparison.
func ParseLevel(s string) (Level, bool) {
	switch Level(s) {
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
		return Level(s), true
	default:
		return "", false
	}
}

// LogEntry is the unit record emitted by an application.
//
// ID, AppName, and Timestamp are immutable after creation. Message and
// Attributes may be rewritten exactly once, by the redaction pass
// (see package redact), and by no one else.
type LogEntry struct {
	ID         string            `json:"id"`
	AppName    string            `json:"app_name"`
	Level      Level             `json:"level"`
	Timestamp  time.Time         `json:"timestamp"`
	Message    string            `json:"message"`
	Attributes map[string]string `json:"attributes"`
}

// NewLogEntry creates a LogEntry with a fresh ID and the current UTC time.
func NewLogEntry(appName string, level Level, message string, attributes map[string]string) LogEntry {
	if attributes == nil {
		attributes = make(map[string]string)
	}
	return LogEntry{
		ID:         uuid.New().String(),
		AppName:    appName,
		Level:      level,
		Timestamp:  time.Now().UTC(),
		Message:    message,
		Attributes: attributes,
	}
}

// LogBatch is the transport envelope shipped from the Agent to Ingestion.
//
// BatchID is assigned once, when the batch leaves the Agent's buffer, and
// never changes across retries of the same contents. Empty batches are
// never transmitted.
type LogBatch struct {
	BatchID string     `json:"batch_id"`
	Logs    []LogEntry `json:"logs"`
}

// NewLogBatch wraps logs in a fresh batch envelope. Callers must not call
// this with an empty slice — see LogBatch's transport invariant.
func NewLogBatch(logs []LogEntry) LogBatch {
	return LogBatch{
		BatchID: uuid.New().String(),
		Logs:    logs,
	}
}

// QuotaConfig is a per-app rate ceiling, expressed in logs per second.
type QuotaConfig struct {
	AppName       string `json:"app_name"`
	LogsPerSecond uint64 `json:"logs_per_second"`
}

// SearchQuery filters a search over the Storage tiers. A nil/zero field
// means "no constraint on this dimension." When both From and To are set,
// From must be <= To; callers that violate this get an empty result set by
// construction, not an error (see storage package).
type SearchQuery struct {
	AppName    *string           `json:"app_name,omitempty"`
	Level      *Level            `json:"level,omitempty"`
	From       *time.Time        `json:"from,omitempty"`
	To         *time.Time        `json:"to,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Limit      *int              `json:"limit,omitempty"`
}

// DefaultSearchLimit is applied when a SearchQuery's Limit is nil or <= 0.
const DefaultSearchLimit = 100

// EffectiveLimit returns q.Limit if set and positive, else DefaultSearchLimit.
func (q SearchQuery) EffectiveLimit() int {
	if q.Limit != nil && *q.Limit > 0 {
		return *q.Limit
	}
	return DefaultSearchLimit
}
