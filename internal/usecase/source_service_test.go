package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/macrolens/shelfprice/internal/domain"
	"github.com/macrolens/shelfprice/internal/infrastructure/retailers"
	"github.com/shopspring/decimal"
)

// MockFetcher is a mock implementation of domain.Fetcher
type MockFetcher struct {
	mu      sync.Mutex
	body    []byte
	err     error
	delay   time.Duration
	calls   int
	lastURL string
	lastOpt domain.FetchOptions
}

func (m *MockFetcher) Fetch(ctx context.Context, url string, opts domain.FetchOptions) ([]byte, error) {
	m.mu.Lock()
	m.calls++
	m.lastURL = url
	m.lastOpt = opts
	m.mu.Unlock()

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.body, nil
}

func (m *MockFetcher) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockExtractor is a mock implementation of domain.Extractor
type MockExtractor struct {
	source   domain.SourceID
	products []domain.Product
	err      error
	gotRaw   []byte
}

func (m *MockExtractor) Source() domain.SourceID { return m.source }

func (m *MockExtractor) SearchURL(term string) string {
	return "https://" + string(m.source) + ".test/search?q=" + term
}

func (m *MockExtractor) WaitSelector() string { return ".card" }

func (m *MockExtractor) NoResultsSelector() string { return ".empty" }

func (m *MockExtractor) Extract(raw []byte) ([]domain.Product, error) {
	m.gotRaw = raw
	if m.err != nil {
		return nil, m.err
	}
	return m.products, nil
}

// MockProductCache is a mock implementation of domain.ProductCache
type MockProductCache struct {
	mu       sync.Mutex
	data     map[string][]domain.Product
	stale    bool
	readErr  error
	writeErr error
	writes   int
}

func NewMockProductCache() *MockProductCache {
	return &MockProductCache{data: make(map[string][]domain.Product), stale: true}
}

func cacheKey(source domain.SourceID, term string) string {
	return string(source) + "|" + term
}

func (m *MockProductCache) IsStale(ctx context.Context, source domain.SourceID, term string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[cacheKey(source, term)]
	return m.stale || !ok
}

func (m *MockProductCache) Read(ctx context.Context, source domain.SourceID, term string) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	products, ok := m.data[cacheKey(source, term)]
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	return products, nil
}

func (m *MockProductCache) Write(ctx context.Context, source domain.SourceID, term string, products []domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	if m.writeErr != nil {
		return m.writeErr
	}
	m.data[cacheKey(source, term)] = products
	return nil
}

func product(source domain.SourceID, name, price, unit string) domain.Product {
	return domain.Product{
		Source:      source,
		Name:        name,
		Price:       decimal.RequireFromString(price),
		UnitSize:    unit,
		StockStatus: domain.DefaultStockStatus,
	}
}

func TestNewSourceService(t *testing.T) {
	extractor := &MockExtractor{source: domain.SourceAH}

	t.Run("applies default timeout", func(t *testing.T) {
		svc := NewSourceService(extractor, &MockFetcher{}, NewMockProductCache(), SourceServiceConfig{})
		if svc.options.Timeout != 90*time.Second {
			t.Errorf("Timeout = %v, want 90s", svc.options.Timeout)
		}
		if svc.options.WaitSelector != ".card" {
			t.Errorf("WaitSelector = %q, want .card", svc.options.WaitSelector)
		}
		if svc.Source() != domain.SourceAH {
			t.Errorf("Source() = %s, want ah", svc.Source())
		}
	})

	t.Run("keeps configured options", func(t *testing.T) {
		svc := NewSourceService(extractor, &MockFetcher{}, NewMockProductCache(), SourceServiceConfig{
			NetworkIdle:    true,
			BlockResources: true,
			Timeout:        5 * time.Second,
		})
		want := domain.FetchOptions{
			WaitSelector:      ".card",
			NoResultsSelector: ".empty",
			NetworkIdle:       true,
			BlockResources:    true,
			Timeout:           5 * time.Second,
		}
		if svc.options != want {
			t.Errorf("options = %+v, want %+v", svc.options, want)
		}
	})
}

func TestSourceService_GetProducts(t *testing.T) {
	ctx := context.Background()
	fresh := []domain.Product{product(domain.SourceAH, "Gouda", "3.50", "500g")}

	t.Run("returns fresh cache without fetching", func(t *testing.T) {
		cache := NewMockProductCache()
		cache.stale = false
		cache.data[cacheKey(domain.SourceAH, "kaas")] = fresh
		fetcher := &MockFetcher{}

		svc := NewSourceService(&MockExtractor{source: domain.SourceAH}, fetcher, cache, SourceServiceConfig{})
		got, err := svc.GetProducts(ctx, "kaas")

		if err != nil {
			t.Fatalf("GetProducts() error = %v", err)
		}
		if len(got) != 1 || got[0].Name != "Gouda" {
			t.Errorf("GetProducts() = %+v, want cached Gouda", got)
		}
		if fetcher.Calls() != 0 {
			t.Errorf("fetcher called %d times, want 0", fetcher.Calls())
		}
	})

	t.Run("fetches and writes through on stale cache", func(t *testing.T) {
		cache := NewMockProductCache()
		fetcher := &MockFetcher{body: []byte("<html>")}
		extractor := &MockExtractor{source: domain.SourceAH, products: fresh}

		svc := NewSourceService(extractor, fetcher, cache, SourceServiceConfig{})
		got, err := svc.GetProducts(ctx, "  kaas ")

		if err != nil {
			t.Fatalf("GetProducts() error = %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("len = %d, want 1", len(got))
		}
		if fetcher.lastURL != "https://ah.test/search?q=kaas" {
			t.Errorf("fetched %q", fetcher.lastURL)
		}
		if fetcher.lastOpt.WaitSelector != ".card" {
			t.Errorf("WaitSelector = %q", fetcher.lastOpt.WaitSelector)
		}
		if string(extractor.gotRaw) != "<html>" {
			t.Errorf("extractor got %q", extractor.gotRaw)
		}
		if cache.writes != 1 {
			t.Errorf("cache writes = %d, want 1", cache.writes)
		}
		if _, ok := cache.data[cacheKey(domain.SourceAH, "kaas")]; !ok {
			t.Error("expected products cached under trimmed term")
		}
	})

	t.Run("falls back to fetch when cache read fails", func(t *testing.T) {
		cache := NewMockProductCache()
		cache.stale = false
		cache.data[cacheKey(domain.SourceAH, "kaas")] = fresh
		cache.readErr = domain.ErrCacheMiss
		fetcher := &MockFetcher{body: []byte("<html>")}

		svc := NewSourceService(&MockExtractor{source: domain.SourceAH, products: fresh}, fetcher, cache, SourceServiceConfig{})
		if _, err := svc.GetProducts(ctx, "kaas"); err != nil {
			t.Fatalf("GetProducts() error = %v", err)
		}
		if fetcher.Calls() != 1 {
			t.Errorf("fetcher called %d times, want 1", fetcher.Calls())
		}
	})

	t.Run("does not cache an empty result", func(t *testing.T) {
		cache := NewMockProductCache()
		svc := NewSourceService(&MockExtractor{source: domain.SourceJumbo}, &MockFetcher{body: []byte("<html>")}, cache, SourceServiceConfig{})

		got, err := svc.GetProducts(ctx, "unicorn")
		if err != nil {
			t.Fatalf("GetProducts() error = %v", err)
		}
		if len(got) != 0 {
			t.Errorf("len = %d, want 0", len(got))
		}
		if cache.writes != 0 {
			t.Errorf("cache writes = %d, want 0", cache.writes)
		}
	})

	t.Run("cache write failure is not fatal", func(t *testing.T) {
		cache := NewMockProductCache()
		cache.writeErr = errors.New("disk full")
		svc := NewSourceService(&MockExtractor{source: domain.SourcePlus, products: fresh}, &MockFetcher{body: []byte("x")}, cache, SourceServiceConfig{})

		got, err := svc.GetProducts(ctx, "kaas")
		if err != nil {
			t.Fatalf("GetProducts() error = %v", err)
		}
		if len(got) != 1 {
			t.Errorf("len = %d, want 1", len(got))
		}
	})

	t.Run("rejects empty term", func(t *testing.T) {
		svc := NewSourceService(&MockExtractor{source: domain.SourceAH}, &MockFetcher{}, NewMockProductCache(), SourceServiceConfig{})
		if _, err := svc.GetProducts(ctx, "  "); !errors.Is(err, domain.ErrInvalidRequest) {
			t.Errorf("error = %v, want ErrInvalidRequest", err)
		}
	})
}

const jumboNoResultsPage = `<html><body>
<main>
  <div class="search-no-results">
    <h1>Geen resultaten voor "xyzzy"</h1>
  </div>
</main>
</body></html>`

func TestSourceService_NoResultsPage(t *testing.T) {
	extractor, err := retailers.New(domain.SourceJumbo, nil)
	if err != nil {
		t.Fatalf("retailers.New() error = %v", err)
	}
	fetcher := &MockFetcher{body: []byte(jumboNoResultsPage)}
	productCache := NewMockProductCache()
	svc := NewSourceService(extractor, fetcher, productCache, SourceServiceConfig{})

	t.Run("fetch waits for cards or the empty marker", func(t *testing.T) {
		if _, err := svc.GetProducts(context.Background(), "xyzzy"); err != nil {
			t.Fatalf("GetProducts() error = %v", err)
		}
		if fetcher.lastOpt.WaitSelector != "article.product-container" {
			t.Errorf("WaitSelector = %q", fetcher.lastOpt.WaitSelector)
		}
		if fetcher.lastOpt.NoResultsSelector != ".search-no-results" {
			t.Errorf("NoResultsSelector = %q, want .search-no-results", fetcher.lastOpt.NoResultsSelector)
		}
	})

	t.Run("empty page is a successful empty result", func(t *testing.T) {
		search := NewSearchService(svc)
		result, err := search.Search(context.Background(), &domain.SearchRequest{Term: "xyzzy"})
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if result.Count != 0 || len(result.Products) != 0 {
			t.Errorf("products = %d, want 0", len(result.Products))
		}
		if len(result.Failures) != 0 {
			t.Errorf("failures = %+v, want none", result.Failures)
		}
		if productCache.writes != 0 {
			t.Errorf("cache writes = %d, want 0", productCache.writes)
		}
	})
}

func TestSourceService_Failures(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		fetcher   *MockFetcher
		extractor *MockExtractor
		timeout   time.Duration
		want      error
	}{
		{
			name:      "fetch failure",
			fetcher:   &MockFetcher{err: domain.ErrFetchFailed},
			extractor: &MockExtractor{source: domain.SourceAH},
			want:      domain.ErrFetchFailed,
		},
		{
			name:      "untyped fetch error",
			fetcher:   &MockFetcher{err: errors.New("connection reset")},
			extractor: &MockExtractor{source: domain.SourceAH},
			want:      domain.ErrFetchFailed,
		},
		{
			name:      "fetch timeout",
			fetcher:   &MockFetcher{delay: time.Second},
			extractor: &MockExtractor{source: domain.SourceJumbo},
			timeout:   20 * time.Millisecond,
			want:      domain.ErrFetchTimeout,
		},
		{
			name:      "extraction failure",
			fetcher:   &MockFetcher{body: []byte("<html>")},
			extractor: &MockExtractor{source: domain.SourcePlus, err: domain.ErrExtractionFailed},
			want:      domain.ErrExtractionFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := NewMockProductCache()
			svc := NewSourceService(tt.extractor, tt.fetcher, cache, SourceServiceConfig{})

			callCtx := ctx
			if tt.timeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(ctx, tt.timeout)
				defer cancel()
			}

			got, err := svc.GetProducts(callCtx, "kaas")
			if got != nil {
				t.Errorf("products = %+v, want nil", got)
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
			var srcErr *domain.SourceError
			if !errors.As(err, &srcErr) || srcErr.Source != tt.extractor.source {
				t.Errorf("error = %v, want *SourceError for %s", err, tt.extractor.source)
			}
			if cache.writes != 0 {
				t.Errorf("cache writes = %d, want 0", cache.writes)
			}
		})
	}
}
