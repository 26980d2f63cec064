// Package config implements the Config service: an in-memory quota
// registry served over HTTP (spec.md §4.2).
package config

import (
	"sync"

	"github.com/mirraman/logpipe/pkg/model"
)

// Registry is a single in-memory mapping from app_name to QuotaConfig,
// guarded by a reader-writer lock (many readers, rare writers).
type Registry struct {
	mu     sync.RWMutex
	quotas map[string]model.QuotaConfig
}

// NewRegistry creates a Registry seeded with the two built-in entries
// spec.md §4.2 names: user-service at 1000 logs/s, payment-service at
// 5000 logs/s.
func NewRegistry() *Registry {
	return &Registry{
		quotas: map[string]model.QuotaConfig{
			"user-service": {
				AppName:       "user-service",
				LogsPerSecond: 1000,
			},
			"payment-service": {
				AppName:       "payment-service",
				LogsPerSecond: 5000,
			},
		},
	}
}

// List returns all quota entries. Order is unspecified.
func (r *Registry) List() []model.QuotaConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.QuotaConfig, 0, len(r.quotas))
	for _, q := range r.quotas {
		out = append(out, q)
	}
	return out
}

// Upsert inserts or replaces the entry for q.AppName.
func (r *Registry) Upsert(q model.QuotaConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.quotas[q.AppName] = q
}
