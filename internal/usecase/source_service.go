package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/macrolens/shelfprice/internal/domain"
	"github.com/macrolens/shelfprice/internal/logger"
)

// SourceServiceConfig holds the fetch settings shared by every store
type SourceServiceConfig struct {
	NetworkIdle    bool
	BlockResources bool
	Timeout        time.Duration
}

// SourceService serves one store's products: fresh cache first,
// otherwise fetch, extract and write through.
type SourceService struct {
	extractor domain.Extractor
	fetcher   domain.Fetcher
	cache     domain.ProductCache
	options   domain.FetchOptions
}

// NewSourceService creates the orchestrator for the extractor's store
func NewSourceService(
	extractor domain.Extractor,
	fetcher domain.Fetcher,
	cache domain.ProductCache,
	config SourceServiceConfig,
) *SourceService {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 90 * time.Second
	}

	return &SourceService{
		extractor: extractor,
		fetcher:   fetcher,
		cache:     cache,
		options: domain.FetchOptions{
			WaitSelector:      extractor.WaitSelector(),
			NoResultsSelector: extractor.NoResultsSelector(),
			NetworkIdle:       config.NetworkIdle,
			BlockResources:    config.BlockResources,
			Timeout:           timeout,
		},
	}
}

// Source returns the store this service reads from
func (s *SourceService) Source() domain.SourceID {
	return s.extractor.Source()
}

// GetProducts returns the store's products for term.
// Flow: fresh cache -> fetch -> extract -> cache non-empty result -> return.
// Fetch and extraction failures come back as *domain.SourceError.
func (s *SourceService) GetProducts(ctx context.Context, term string) ([]domain.Product, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, domain.ErrInvalidRequest
	}
	source := s.Source()

	if !s.cache.IsStale(ctx, source, term) {
		cached, err := s.cache.Read(ctx, source, term)
		if err == nil {
			logger.Debug().Str("source", string(source)).Str("term", term).Int("products", len(cached)).Msg("cache hit")
			return cached, nil
		}
	}

	logger.Info().Str("source", string(source)).Str("term", term).Msg("cache stale, fetching fresh data")
	url := s.extractor.SearchURL(term)
	raw, err := s.fetcher.Fetch(ctx, url, s.options)
	if err != nil {
		logger.Error().Err(err).Str("source", string(source)).Str("url", url).Msg("fetch failed")
		return nil, &domain.SourceError{Source: source, Err: fetchError(ctx, err)}
	}

	products, err := s.extractor.Extract(raw)
	if err != nil {
		logger.Error().Err(err).Str("source", string(source)).Str("term", term).Msg("extraction failed")
		return nil, &domain.SourceError{Source: source, Err: err}
	}

	// An empty page is not cached so it cannot hide products for a whole TTL
	if len(products) > 0 {
		if err := s.cache.Write(ctx, source, term, products); err != nil {
			logger.Warn().Err(err).Str("source", string(source)).Str("term", term).Msg("failed to cache products")
		}
	}

	return products, nil
}

// fetchError makes sure a collaborator failure matches ErrFetchFailed or ErrFetchTimeout
func fetchError(ctx context.Context, err error) error {
	if errors.Is(err, domain.ErrFetchFailed) || errors.Is(err, domain.ErrFetchTimeout) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrFetchTimeout, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrFetchFailed, err)
}
