// Package cache memoizes search responses in Redis. Keys include the index
// generation, so a rebuilt snapshot never serves stale pages even before the
// old keys are invalidated.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/lets-connect/channel-search/internal/channelsearch"
	"github.com/lets-connect/channel-search/pkg/config"
	"github.com/lets-connect/channel-search/pkg/metrics"
	pkgredis "github.com/lets-connect/channel-search/pkg/redis"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "channelsearch:"

// SearchCache is a Redis-backed cache of SearchResult pages. A nil
// *SearchCache is valid and caches nothing.
type SearchCache struct {
	client  *pkgredis.Client
	cfg     config.RedisConfig
	metrics *metrics.Metrics
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New creates a SearchCache. m may be nil.
func New(client *pkgredis.Client, cfg config.RedisConfig, m *metrics.Metrics) *SearchCache {
	return &SearchCache{
		client:  client,
		cfg:     cfg,
		metrics: m,
		logger:  slog.Default().With("component", "search-cache"),
	}
}

// Get returns the cached page for key, if any.
func (c *SearchCache) Get(ctx context.Context, key string) (*channelsearch.SearchResult, bool) {
	data, err := c.client.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.recordMiss()
		return nil, false
	}
	var result channelsearch.SearchResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.recordMiss()
		return nil, false
	}
	c.recordHit()
	c.logger.Debug("cache hit", "key", key)
	return &result, true
}

// Set stores result under key with the configured TTL.
func (c *SearchCache) Set(ctx context.Context, key string, result *channelsearch.SearchResult) {
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.cfg.CacheTTL); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached page for (query, opts, generation) or
// computes and stores it. Concurrent misses for the same key share one
// computation. The boolean reports a cache hit.
func (c *SearchCache) GetOrCompute(
	ctx context.Context,
	query string,
	opts channelsearch.SearchOptions,
	generation uint64,
	computeFn func() channelsearch.SearchResult,
) (channelsearch.SearchResult, bool) {
	if c == nil {
		return computeFn(), false
	}
	key := BuildKey(query, opts, generation)
	if result, ok := c.Get(ctx, key); ok {
		return *result, true
	}
	val, _, _ := c.group.Do(key, func() (any, error) {
		result := computeFn()
		c.Set(ctx, key, &result)
		return result, nil
	})
	return val.(channelsearch.SearchResult), false
}

// Invalidate deletes every cached page.
func (c *SearchCache) Invalidate(ctx context.Context) error {
	if c == nil {
		return nil
	}
	deleted, err := c.client.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return nil
}

func (c *SearchCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Ping checks the Redis connection.
func (c *SearchCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx)
}

func (c *SearchCache) recordHit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *SearchCache) recordMiss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// BuildKey derives the cache key of one search page. Queries that tokenize
// identically share a key; facet filters compare case-insensitively, like
// the search itself.
func BuildKey(query string, opts channelsearch.SearchOptions, generation uint64) string {
	fuzzy := opts.Fuzzy == nil || *opts.Fuzzy
	limit := opts.Limit
	if limit <= 0 {
		limit = channelsearch.DefaultLimit
	}
	sortBy := opts.SortBy
	if sortBy == "" {
		sortBy = channelsearch.SortRelevance
	}
	raw := strings.Join([]string{
		"q=" + strings.Join(channelsearch.Tokenize(query), " "),
		"blank=" + strconv.FormatBool(strings.TrimSpace(query) == ""),
		"category=" + strings.ToLower(opts.Category),
		"country=" + strings.ToLower(opts.Country),
		"language=" + strings.ToLower(opts.Language),
		"source=" + strings.ToLower(opts.Source),
		"sort=" + sortBy,
		"limit=" + strconv.Itoa(limit),
		"offset=" + strconv.Itoa(max(opts.Offset, 0)),
		"fuzzy=" + strconv.FormatBool(fuzzy),
	}, "|")
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%sg%d:%x", keyPrefix, generation, hash[:16])
}
