// Package cache caches search results in Redis, deduplicating concurrent
// identical queries with singleflight and shielding Redis behind a circuit
// breaker.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/studykit/qadex/internal/search/executor"
	"github.com/studykit/qadex/internal/search/parser"
	"github.com/studykit/qadex/pkg/config"
	"github.com/studykit/qadex/pkg/metrics"
	pkgredis "github.com/studykit/qadex/pkg/redis"
	"github.com/studykit/qadex/pkg/resilience"
)

const keyPrefix = "search:"

// QueryCache is a Redis-backed cache for search results.
type QueryCache struct {
	client  *pkgredis.Client
	cfg     config.RedisConfig
	metrics *metrics.Metrics
	breaker *resilience.CircuitBreaker
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New creates a QueryCache over the given Redis client. m may be nil when
// metrics are not collected.
func New(client *pkgredis.Client, cfg config.RedisConfig, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		client:  client,
		cfg:     cfg,
		metrics: m,
		breaker: resilience.NewCircuitBreaker("redis-cache", resilience.CircuitBreakerConfig{}),
		logger:  slog.Default().With("component", "query-cache"),
	}
}

// Get returns the cached result for the plan, if present. Redis failures
// and circuit-open states count as misses so searches degrade gracefully.
func (c *QueryCache) Get(ctx context.Context, plan parser.QueryPlan, limit int) (*executor.SearchResult, bool) {
	key := c.buildKey(plan, limit)

	var data string
	err := c.breaker.Execute(func() error {
		var getErr error
		data, getErr = c.client.Get(ctx, key)
		if pkgredis.IsNilError(getErr) {
			data = ""
			return nil
		}
		return getErr
	})
	if err != nil {
		c.logger.Error("cache get failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	if data == "" {
		c.miss()
		return nil, false
	}

	var result executor.SearchResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	c.logger.Debug("cache hit", "query", plan.Raw, "key", key)
	return &result, true
}

// Set stores the result under the plan's key. Failures are logged, not
// returned, since caching is best effort.
func (c *QueryCache) Set(ctx context.Context, plan parser.QueryPlan, limit int, result *executor.SearchResult) {
	key := c.buildKey(plan, limit)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.client.Set(ctx, key, data, c.cfg.CacheTTL)
	})
	if err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result or computes it once, even when
// called concurrently for the same key. The bool reports a cache hit.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	plan parser.QueryPlan,
	limit int,
	computeFn func() (*executor.SearchResult, error),
) (*executor.SearchResult, bool, error) {
	if result, ok := c.Get(ctx, plan, limit); ok {
		return result, true, nil
	}
	key := c.buildKey(plan, limit)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if result, ok := c.Get(ctx, plan, limit); ok {
			return result, nil
		}
		result, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, plan, limit, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*executor.SearchResult), false, nil
}

// Invalidate deletes every cached search result.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	pattern := keyPrefix + "*"
	var deleted int64
	err := c.breaker.Execute(func() error {
		var flushErr error
		deleted, flushErr = c.client.FlushByPattern(ctx, pattern)
		return flushErr
	})
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

// Stats returns cache hit and miss counts since startup.
func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// buildKey hashes the plan's canonical form so semantically identical
// queries share a cache entry regardless of term order.
func (c *QueryCache) buildKey(plan parser.QueryPlan, limit int) string {
	raw := fmt.Sprintf("%s:limit=%d", plan.Normalize(), limit)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
