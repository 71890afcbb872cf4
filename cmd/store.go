package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/lehigh-university-libraries/doiregistry/doi"
	"github.com/lehigh-university-libraries/doiregistry/events"
	"github.com/lehigh-university-libraries/doiregistry/mapping"
	"github.com/lehigh-university-libraries/doiregistry/metrics"
	"github.com/lehigh-university-libraries/doiregistry/store/memory"
	"github.com/lehigh-university-libraries/doiregistry/store/postgres"
	"github.com/lehigh-university-libraries/doiregistry/store/sqlite"
	"github.com/lehigh-university-libraries/doiregistry/suffix"
)

// backend is what every store driver provides.
type backend interface {
	doi.Store
	doi.ClientDirectory
	events.Source
	events.Sink
}

// openStore opens the configured store. The returned func releases it.
func openStore(ctx context.Context) (backend, func(), error) {
	switch cfg.Store.Driver {
	case "sqlite":
		s, err := sqlite.Open(ctx, cfg.Store.Path)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("Opened sqlite store", "path", cfg.Store.Path)
		return s, func() { _ = s.Close() }, nil
	case "postgres":
		s, err := postgres.Connect(ctx, cfg.Store.DSN)
		if err != nil {
			return nil, nil, err
		}
		if err := s.Ready(ctx); err != nil {
			s.Close()
			return nil, nil, fmt.Errorf("postgres not ready: %w", err)
		}
		slog.Info("Connected to postgres store")
		return s, s.Close, nil
	default:
		slog.Warn("Using the in-memory store; records are lost on exit")
		return memory.New(), func() {}, nil
	}
}

// vocabulary loads the configured vocabulary and applies the configured
// family precedence.
func vocabulary() (*mapping.Vocabulary, error) {
	v := mapping.Default()
	if cfg.Vocabulary != "" {
		loaded, err := mapping.LoadVocabulary(cfg.Vocabulary)
		if err != nil {
			return nil, err
		}
		v = loaded
	}
	if len(cfg.Precedence) > 0 {
		return v.WithPrecedence(cfg.Precedence)
	}
	return v, nil
}

// aggregateCache is redis when an address is configured, in-process
// otherwise. The returned func closes the redis client.
func aggregateCache() (events.Cache, func()) {
	if cfg.Cache.RedisAddr == "" {
		return events.NewMemoryCache(cfg.Cache.TTL), func() {}
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddr})
	slog.Info("Caching aggregates in redis", "addr", cfg.Cache.RedisAddr)
	return events.NewRedisCache(client, cfg.Cache.TTL), func() { _ = client.Close() }
}

// newService wires a doi.Service over store from the configuration.
func newService(store backend, m *metrics.Metrics) (*doi.Service, func(), error) {
	voc, err := vocabulary()
	if err != nil {
		return nil, nil, err
	}
	cache, closeCache := aggregateCache()
	agg := events.NewAggregator(store, cache, events.Options{Vocabulary: voc, Precedence: cfg.Precedence})
	agg.OnCache = m.ObserveCache

	svc := doi.NewService(store,
		doi.WithTestPrefixes(cfg.TestPrefixes),
		doi.WithAggregator(agg),
		doi.WithGenerator(suffix.NewGenerator(store, suffix.WithRetries(cfg.Suffix.Retries))),
		doi.WithClients(store),
		doi.WithMetrics(m),
	)
	return svc, closeCache, nil
}
