package storage

import (
	"context"
	"time"
)

// migrationInterval is how often the tier migration job runs
// (spec.md §4.5).
const migrationInterval = time.Hour

const (
	hotRetention  = 7 * 24 * time.Hour
	coldRetention = 30 * 24 * time.Hour
)

// Migrator runs the hourly hot-to-cold tier migration job. It is a
// simple loop with no distributed lock — a single migration worker per
// Storage process, per spec.md §4.5.
type Migrator struct {
	index Index
	clock func() time.Time
}

// NewMigrator creates a Migrator over index, using time.Now for its
// clock.
func NewMigrator(index Index) *Migrator {
	return &Migrator{index: index, clock: time.Now}
}

// Run blocks, running one migration pass every migrationInterval until
// ctx is canceled. Errors are logged by the caller via RunOnce's return
// value and do not stop the loop; the next hourly tick retries.
func (m *Migrator) Run(ctx context.Context, onError func(error)) {
	ticker := time.NewTicker(migrationInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.RunOnce(ctx); err != nil && onError != nil {
				onError(err)
			}
		}
	}
}

// RunOnce performs a single migration pass: reindex logs-hot entries
// older than 7 days into logs-cold, delete them from logs-hot on
// success, then delete logs-cold entries older than 30 days.
func (m *Migrator) RunOnce(ctx context.Context) error {
	now := m.clock()
	t7 := now.Add(-hotRetention)
	t30 := now.Add(-coldRetention)

	if err := m.index.ReindexOlderThan(ctx, HotIndex, ColdIndex, t7); err != nil {
		return err
	}
	if err := m.index.DeleteOlderThan(ctx, HotIndex, t7); err != nil {
		return err
	}
	if err := m.index.DeleteOlderThan(ctx, ColdIndex, t30); err != nil {
		return err
	}
	return nil
}
