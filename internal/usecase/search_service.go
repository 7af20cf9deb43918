package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/macrolens/shelfprice/internal/domain"
	"github.com/macrolens/shelfprice/internal/logger"
)

// SearchService fans a search out to every requested store and merges
// the results. Stores are queried in the order they were registered.
type SearchService struct {
	sources map[domain.SourceID]domain.ProductSource
	order   []domain.SourceID
}

// NewSearchService registers the given stores; later duplicates are ignored
func NewSearchService(sources ...domain.ProductSource) *SearchService {
	s := &SearchService{sources: make(map[domain.SourceID]domain.ProductSource, len(sources))}
	for _, src := range sources {
		id := src.Source()
		if _, dup := s.sources[id]; dup {
			continue
		}
		s.sources[id] = src
		s.order = append(s.order, id)
	}
	return s
}

// Sources lists the registered stores in query order
func (s *SearchService) Sources() []domain.SourceID {
	out := make([]domain.SourceID, len(s.order))
	copy(out, s.order)
	return out
}

// outcome is the per-store result of one fan-out branch
type outcome struct {
	source   domain.SourceID
	products []domain.Product
	err      error
}

// Search returns the merged, deduplicated and sorted products of the requested
// stores. Store failures never fail the search; they are listed in
// SearchResult.Failures. Only an invalid request returns an error.
func (s *SearchService) Search(ctx context.Context, request *domain.SearchRequest) (*domain.SearchResult, error) {
	if request == nil || strings.TrimSpace(request.Term) == "" {
		return nil, fmt.Errorf("%w: search term is required", domain.ErrInvalidRequest)
	}
	sortBy, err := domain.ParseSortKey(string(request.SortBy))
	if err != nil {
		return nil, err
	}
	selected, err := s.selectSources(request.Sources)
	if err != nil {
		return nil, err
	}

	term := strings.TrimSpace(request.Term)
	start := time.Now()
	outcomes := s.fanOut(ctx, term, selected)

	result := &domain.SearchResult{Products: []domain.Product{}}
	seen := make(map[string]struct{})
	for _, o := range outcomes {
		if o.err != nil {
			logger.Warn().Err(o.err).Str("source", string(o.source)).Str("term", term).Msg("store failed")
			result.Failures = append(result.Failures, domain.SourceFailure{Source: o.source, Error: o.err.Error()})
			continue
		}
		for _, p := range o.products {
			key := p.Key()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			result.Products = append(result.Products, withPricePerUnit(p))
		}
	}

	sortProducts(result.Products, sortBy)
	result.Count = len(result.Products)

	logger.Info().
		Str("term", term).
		Int("stores", len(selected)).
		Int("failed", len(result.Failures)).
		Int("products", result.Count).
		Dur("elapsed", time.Since(start)).
		Msg("search completed")
	return result, nil
}

// selectSources keeps registration order; an empty request means every store
func (s *SearchService) selectSources(requested []domain.SourceID) ([]domain.SourceID, error) {
	if len(requested) == 0 {
		return s.Sources(), nil
	}

	want := make(map[domain.SourceID]bool, len(requested))
	for _, id := range requested {
		if _, ok := s.sources[id]; !ok {
			return nil, fmt.Errorf("%w: store %q is not available", domain.ErrInvalidRequest, id)
		}
		want[id] = true
	}

	selected := make([]domain.SourceID, 0, len(want))
	for _, id := range s.order {
		if want[id] {
			selected = append(selected, id)
		}
	}
	return selected, nil
}

// fanOut queries every store concurrently and waits for all of them.
// One branch failing or panicking does not cancel the others.
func (s *SearchService) fanOut(ctx context.Context, term string, selected []domain.SourceID) []outcome {
	outcomes := make([]outcome, len(selected))

	var wg sync.WaitGroup
	for i, id := range selected {
		wg.Add(1)
		go func(i int, src domain.ProductSource) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					outcomes[i] = outcome{
						source: src.Source(),
						err:    &domain.SourceError{Source: src.Source(), Err: fmt.Errorf("panic: %v", r)},
					}
				}
			}()

			products, err := src.GetProducts(ctx, term)
			outcomes[i] = outcome{source: src.Source(), products: products, err: err}
		}(i, s.sources[id])
	}
	wg.Wait()

	return outcomes
}

// withPricePerUnit fills in a missing price per unit from the unit size.
// A value supplied by the store takes precedence.
func withPricePerUnit(p domain.Product) domain.Product {
	if p.PricePerUnit != nil {
		return p
	}
	size, ok := domain.ParseUnitSize(p.UnitSize)
	if !ok {
		return p
	}
	if ppu, ok := domain.DerivePricePerUnit(p.Price, size); ok {
		p.PricePerUnit = &ppu
	}
	return p
}

// sortProducts orders by the sort key, keeping merge order on ties.
// Products without a price per unit sort last.
func sortProducts(products []domain.Product, by domain.SortKey) {
	sort.SliceStable(products, func(i, j int) bool {
		a, b := products[i], products[j]
		if by == domain.SortByPrice {
			return a.Price.LessThan(b.Price)
		}
		switch {
		case a.PricePerUnit == nil:
			return false
		case b.PricePerUnit == nil:
			return true
		default:
			return a.PricePerUnit.Value.LessThan(b.PricePerUnit.Value)
		}
	})
}
