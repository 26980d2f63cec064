// Package storage implements the Storage service: a hot/cold document
// index with an hourly tier-migration job (spec.md §4.5).
package storage

import (
	"context"
	"time"

	"github.com/mirraman/logpipe/pkg/model"
)

const (
	// HotIndex holds records younger than 7 days.
	HotIndex = "logs-hot"
	// ColdIndex holds records between 7 and 30 days old.
	ColdIndex = "logs-cold"
)

// Index is the backing document store Storage sits on top of: bulk
// upsert, filtered search, reindex, and delete-by-query over an
// age predicate. The production implementation (package esindex) wraps
// Elasticsearch; package memindex provides an in-memory double for tests.
type Index interface {
	// EnsureIndices creates HotIndex and ColdIndex if they do not already
	// exist, using the schema described in spec.md §4.5.
	EnsureIndices(ctx context.Context) error

	// Upsert bulk-inserts or replaces entries into the named index,
	// keyed by id.
	Upsert(ctx context.Context, index string, entries []model.LogEntry) error

	// Search runs query against the named indices and returns matches
	// sorted by timestamp descending, capped at query.EffectiveLimit().
	Search(ctx context.Context, indices []string, query model.SearchQuery) ([]model.LogEntry, error)

	// ReindexOlderThan copies every record in srcIndex with timestamp <
	// before into dstIndex. It does not modify srcIndex.
	ReindexOlderThan(ctx context.Context, srcIndex, dstIndex string, before time.Time) error

	// DeleteOlderThan removes every record in index with timestamp <
	// before.
	DeleteOlderThan(ctx context.Context, index string, before time.Time) error
}
