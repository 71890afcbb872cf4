package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"github.com/zeebo/xxh3"
)

// DefaultCacheTTL bounds how long an aggregate is kept. Entries never go
// stale before that since the key changes with the event log.
const DefaultCacheTTL = 24 * time.Hour

// Cache stores computed aggregates.
type Cache interface {
	Get(ctx context.Context, key string) (*Aggregates, bool, error)
	Set(ctx context.Context, key string, agg *Aggregates) error
}

// CacheKey derives the cache key of an aggregate from the DOI, the event
// log's high-water mark and the family precedence in effect.
func CacheKey(doi string, highWater int64, precedence []string) string {
	h := xxh3.New()
	_, _ = h.WriteString(Key(doi))
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(strconv.FormatInt(highWater, 10))
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(strings.Join(precedence, ","))
	return fmt.Sprintf("aggregates:%016x", h.Sum64())
}

// MemoryCache keeps aggregates in process. It stores and hands out copies.
type MemoryCache struct {
	cache *gocache.Cache
}

// NewMemoryCache creates an in-process cache. A zero ttl uses
// DefaultCacheTTL.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &MemoryCache{cache: gocache.New(ttl, 2*ttl)}
}

func (c *MemoryCache) Get(_ context.Context, key string) (*Aggregates, bool, error) {
	value, found := c.cache.Get(key)
	if !found {
		return nil, false, nil
	}
	agg, ok := value.(*Aggregates)
	if !ok {
		slog.Error("wrong type in aggregate cache", "key", key)
		return nil, false, nil
	}
	return agg.Clone(), true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, agg *Aggregates) error {
	c.cache.SetDefault(key, agg.Clone())
	return nil
}

// Len is the number of cached aggregates.
func (c *MemoryCache) Len() int {
	return c.cache.ItemCount()
}

// RedisCache shares aggregates between processes.
type RedisCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisCache wraps a go-redis client. A zero ttl uses DefaultCacheTTL.
func NewRedisCache(client redis.UniversalClient, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) (*Aggregates, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	var agg Aggregates
	if err := json.Unmarshal(data, &agg); err != nil {
		return nil, false, fmt.Errorf("decoding cached aggregate %s: %w", key, err)
	}
	return &agg, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, agg *Aggregates) error {
	data, err := json.Marshal(agg)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// Source reads a consistent slice of the event log.
type Source interface {
	// EventsFor returns every event involving doi, as of one point in time.
	EventsFor(ctx context.Context, doi string) ([]Event, error)
	// HighWater returns the sequence of the newest event involving doi.
	HighWater(ctx context.Context, doi string) (int64, error)
}

// Aggregator computes aggregates through a cache.
type Aggregator struct {
	source  Source
	cache   Cache
	options Options

	// OnCache, when set, is told whether each lookup hit the cache.
	OnCache func(hit bool)
}

// NewAggregator creates an Aggregator. cache may be nil.
func NewAggregator(source Source, cache Cache, opts Options) *Aggregator {
	return &Aggregator{source: source, cache: cache, options: opts}
}

// Aggregates returns the aggregates of doi, computing them when the cache
// has no entry for the current high-water mark. Cache failures are logged
// and otherwise ignored.
func (a *Aggregator) Aggregates(ctx context.Context, doi string) (*Aggregates, error) {
	hw, err := a.source.HighWater(ctx, doi)
	if err != nil {
		return nil, fmt.Errorf("reading event high-water mark: %w", err)
	}
	key := CacheKey(doi, hw, a.options.Precedence)
	if a.cache != nil {
		agg, ok, err := a.cache.Get(ctx, key)
		if err != nil {
			slog.Warn("aggregate cache read failed", "doi", doi, "err", err)
		} else if ok {
			slog.Debug("aggregate cache hit", "doi", doi, "key", key)
			a.observe(true)
			return agg, nil
		}
		a.observe(false)
	}

	evs, err := a.source.EventsFor(ctx, doi)
	if err != nil {
		return nil, fmt.Errorf("reading events: %w", err)
	}
	agg := Aggregate(doi, evs, a.options)
	if a.cache != nil && agg.HighWater == hw {
		if err := a.cache.Set(ctx, key, agg); err != nil {
			slog.Warn("aggregate cache write failed", "doi", doi, "err", err)
		}
	}
	return agg, nil
}

func (a *Aggregator) observe(hit bool) {
	if a.OnCache != nil {
		a.OnCache(hit)
	}
}
