package main

import (
	"context"
	"fmt"

	"github.com/macrolens/shelfprice/config"
	"github.com/macrolens/shelfprice/internal/domain"
	"github.com/macrolens/shelfprice/internal/infrastructure/cache"
	"github.com/macrolens/shelfprice/internal/infrastructure/fetch"
	"github.com/macrolens/shelfprice/internal/infrastructure/retailers"
	"github.com/macrolens/shelfprice/internal/logger"
	"github.com/macrolens/shelfprice/internal/usecase"
)

// app is the wired search pipeline plus whatever must be released on exit
type app struct {
	search  *usecase.SearchService
	closers []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warn().Err(err).Msg("shutdown step failed")
		}
	}
}

// buildApp wires store -> freshness cache -> fetcher -> extractors -> services
func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}

	store, err := newStore(ctx, cfg.Cache, a)
	if err != nil {
		a.Close()
		return nil, err
	}
	productCache := cache.NewFreshnessCache(store, cache.Policy{
		Base:     cfg.Cache.BaseDuration,
		Variance: cfg.Cache.Variance,
	})

	fetcher, err := newFetcher(cfg.Fetch, a)
	if err != nil {
		a.Close()
		return nil, err
	}

	ids := make([]domain.SourceID, 0, len(cfg.Sources.Enabled))
	for _, name := range cfg.Sources.Enabled {
		id, err := domain.ParseSourceID(name)
		if err != nil {
			a.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	extractors, err := retailers.All(ids, nil)
	if err != nil {
		a.Close()
		return nil, err
	}

	serviceConfig := usecase.SourceServiceConfig{
		NetworkIdle:    cfg.Fetch.NetworkIdle,
		BlockResources: cfg.Fetch.BlockResources,
		Timeout:        cfg.Fetch.Timeout,
	}
	sources := make([]domain.ProductSource, 0, len(extractors))
	for _, extractor := range extractors {
		sources = append(sources, usecase.NewSourceService(extractor, fetcher, productCache, serviceConfig))
	}
	a.search = usecase.NewSearchService(sources...)

	logger.Info().
		Str("cache", cfg.Cache.Type).
		Str("fetch", cfg.Fetch.Driver).
		Strs("sources", cfg.Sources.Enabled).
		Dur("cache_base", cfg.Cache.BaseDuration).
		Dur("cache_variance", cfg.Cache.Variance).
		Msg("search pipeline ready")
	return a, nil
}

func newStore(ctx context.Context, cfg config.CacheConfig, a *app) (domain.CacheStore, error) {
	switch cfg.Type {
	case "file":
		return cache.NewFileStore(cfg.Dir)
	case "memory":
		store := cache.NewMemoryStore()
		a.closers = append(a.closers, func() error {
			logger.Info().Int("entries", store.Size()).Msg("discarding memory cache")
			store.Clear()
			return nil
		})
		return store, nil
	case "redis":
		client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		return cache.NewRedisStore(client, cfg.Retention), nil
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cfg.Type)
	}
}

func newFetcher(cfg config.FetchConfig, a *app) (domain.Fetcher, error) {
	limits := fetch.Limits{RatePerSecond: cfg.RatePerSecond, Burst: cfg.Burst}

	switch cfg.Driver {
	case "http":
		return fetch.NewHTTPFetcher(cfg.UserAgent, limits), nil
	case "browser":
		browser, err := fetch.NewBrowserFetcher(fetch.BrowserConfig{
			Headless:  cfg.Headless,
			NoSandbox: cfg.NoSandbox,
			BinPath:   cfg.BinPath,
			UserAgent: cfg.UserAgent,
			Limits:    limits,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, browser.Close)
		return browser, nil
	default:
		return nil, fmt.Errorf("unsupported fetch driver: %s", cfg.Driver)
	}
}
