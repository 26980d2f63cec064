// Package ingestion implements the Ingestion service: a per-app quota
// gate that forwards redacted batches to Storage (spec.md §4.3).
package ingestion

import (
	"sync"
	"time"

	"github.com/mirraman/logpipe/pkg/model"
)

// defaultLogsPerSecond is used for any app with no quota entry on file.
const defaultLogsPerSecond = 1000

type bucketState struct {
	available uint64
	updatedAt time.Time
}

// RateLimiter is a per-app token bucket. Capacity and refill rate both
// equal the app's quota (logs_per_second), so a full bucket refills in
// exactly one second. Quotas and token state are guarded by separate
// locks, matching original_source/ingestion/src/main.rs's split between a
// quotas map and a tokens map: a reader-writer lock for quotas, and a
// mutex for token state, since every CheckRate may write it.
type RateLimiter struct {
	quotasMu sync.RWMutex
	quotas   map[string]model.QuotaConfig

	tokensMu sync.Mutex
	tokens   map[string]bucketState
}

// NewRateLimiter creates an empty RateLimiter. Apps with no quota entry
// default to defaultLogsPerSecond.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		quotas: make(map[string]model.QuotaConfig),
		tokens: make(map[string]bucketState),
	}
}

// UpdateQuota upserts a single app's quota, as learned from Config.
func (rl *RateLimiter) UpdateQuota(q model.QuotaConfig) {
	rl.quotasMu.Lock()
	defer rl.quotasMu.Unlock()
	rl.quotas[q.AppName] = q
}

func (rl *RateLimiter) limitFor(appName string) uint64 {
	rl.quotasMu.RLock()
	defer rl.quotasMu.RUnlock()
	if q, ok := rl.quotas[appName]; ok {
		return q.LogsPerSecond
	}
	return defaultLogsPerSecond
}

// CheckRate attempts to admit count records for appName. On success it
// subtracts count from the app's bucket and persists (remaining, now). On
// rejection the bucket's stored state is left untouched — a rejected
// request never consumes tokens.
func (rl *RateLimiter) CheckRate(appName string, count uint64) error {
	limit := rl.limitFor(appName)

	rl.tokensMu.Lock()
	defer rl.tokensMu.Unlock()

	now := time.Now()
	state, ok := rl.tokens[appName]
	if !ok {
		state = bucketState{available: limit, updatedAt: now}
	}

	elapsed := now.Sub(state.updatedAt).Seconds()
	refilled := float64(state.available) + elapsed*float64(limit)
	if refilled > float64(limit) {
		refilled = float64(limit)
	}
	available := uint64(refilled)

	if available >= count {
		rl.tokens[appName] = bucketState{available: available - count, updatedAt: now}
		return nil
	}
	return &model.RateLimitError{AppName: appName}
}
