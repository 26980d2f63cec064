// Package memindex is an in-memory double for storage.Index, used in
// tests in place of a live Elasticsearch cluster. Its match predicate
// mirrors original_source/storage/src/main.rs's LogStorage::matches.
package memindex

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mirraman/logpipe/pkg/model"
)

// Index is a sync.RWMutex-guarded map of index name to the slice of
// entries it holds.
type Index struct {
	mu      sync.RWMutex
	indices map[string][]model.LogEntry
}

// New creates an empty Index.
func New() *Index {
	return &Index{indices: make(map[string][]model.LogEntry)}
}

func (i *Index) EnsureIndices(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.indices == nil {
		i.indices = make(map[string][]model.LogEntry)
	}
	return nil
}

func (i *Index) Upsert(ctx context.Context, index string, entries []model.LogEntry) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	existing := i.indices[index]
	byID := make(map[string]int, len(existing))
	for idx, e := range existing {
		byID[e.ID] = idx
	}

	for _, e := range entries {
		if idx, ok := byID[e.ID]; ok {
			existing[idx] = e
			continue
		}
		byID[e.ID] = len(existing)
		existing = append(existing, e)
	}
	i.indices[index] = existing
	return nil
}

func (i *Index) Search(ctx context.Context, indices []string, query model.SearchQuery) ([]model.LogEntry, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	var results []model.LogEntry
	for _, name := range indices {
		for _, e := range i.indices[name] {
			if matches(e, query) {
				results = append(results, e)
			}
		}
	}

	sort.Slice(results, func(a, b int) bool {
		return results[a].Timestamp.After(results[b].Timestamp)
	})

	limit := query.EffectiveLimit()
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (i *Index) ReindexOlderThan(ctx context.Context, srcIndex, dstIndex string, before time.Time) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	var toCopy []model.LogEntry
	for _, e := range i.indices[srcIndex] {
		if e.Timestamp.Before(before) {
			toCopy = append(toCopy, e)
		}
	}
	i.indices[dstIndex] = append(i.indices[dstIndex], toCopy...)
	return nil
}

func (i *Index) DeleteOlderThan(ctx context.Context, index string, before time.Time) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	kept := i.indices[index][:0:0]
	for _, e := range i.indices[index] {
		if !e.Timestamp.Before(before) {
			kept = append(kept, e)
		}
	}
	i.indices[index] = kept
	return nil
}

func matches(e model.LogEntry, q model.SearchQuery) bool {
	if q.AppName != nil && e.AppName != *q.AppName {
		return false
	}
	if q.Level != nil && e.Level != *q.Level {
		return false
	}
	if q.From != nil && e.Timestamp.Before(*q.From) {
		return false
	}
	if q.To != nil && e.Timestamp.After(*q.To) {
		return false
	}
	for key, value := range q.Attributes {
		if e.Attributes[key] != value {
			return false
		}
	}
	return true
}
