// Package cache provides optional Redis-backed caching of Search
// results, adapted from the same Redis response-cache pattern used
// elsewhere in this codebase's ancestry for API responses.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mirraman/logpipe/pkg/model"
)

const keyPrefix = "logpipe:search:"

// Cache is a Redis-backed cache of SearchQuery -> results. It is an
// optimization only: a cache miss or a Redis outage falls back to
// querying Storage directly, never surfaced to the caller as an error.
type Cache struct {
	client *redis.Client
	logger *slog.Logger
	ttl    time.Duration
}

// New creates a Cache against the Redis instance at redisURL and
// verifies connectivity with a short-lived ping.
func New(redisURL string, ttl time.Duration, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &Cache{client: client, logger: logger, ttl: ttl}, nil
}

// Get returns cached results for query, or ok=false on a cache miss or
// any Redis error (logged, not propagated).
func (c *Cache) Get(ctx context.Context, query model.SearchQuery) (logs []model.LogEntry, ok bool) {
	data, err := c.client.Get(ctx, keyPrefix+queryKey(query)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("search cache get failed", "error", err)
		return nil, false
	}
	if err := json.Unmarshal(data, &logs); err != nil {
		c.logger.Warn("search cache decode failed", "error", err)
		return nil, false
	}
	return logs, true
}

// Set stores results for query with the cache's configured TTL. Errors
// are logged and swallowed.
func (c *Cache) Set(ctx context.Context, query model.SearchQuery, logs []model.LogEntry) {
	data, err := json.Marshal(logs)
	if err != nil {
		c.logger.Warn("search cache encode failed", "error", err)
		return
	}
	if err := c.client.Set(ctx, keyPrefix+queryKey(query), data, c.ttl).Err(); err != nil {
		c.logger.Warn("search cache set failed", "error", err)
	}
}

// queryKey derives a stable cache key from a SearchQuery's JSON form.
func queryKey(query model.SearchQuery) string {
	data, _ := json.Marshal(query)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
