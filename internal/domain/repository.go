package domain

import (
	"context"
	"time"
)

// FetchOptions tunes how the fetch collaborator loads a search page.
// NoResultsSelector marks a rendered page that legitimately has no products;
// a fetcher that waits for WaitSelector stops waiting when it appears.
// Headless mode is a property of the browser, not of a single fetch.
type FetchOptions struct {
	WaitSelector      string
	NoResultsSelector string
	NetworkIdle       bool
	BlockResources    bool
	Timeout           time.Duration
}

// Fetcher loads the raw markup behind a URL.
// Failures wrap ErrFetchFailed or ErrFetchTimeout.
type Fetcher interface {
	Fetch(ctx context.Context, url string, opts FetchOptions) ([]byte, error)
}

// Extractor turns one retailer's search page into canonical products
type Extractor interface {
	Source() SourceID
	SearchURL(term string) string
	WaitSelector() string
	NoResultsSelector() string
	Extract(raw []byte) ([]Product, error)
}

// CacheStore defines the key-value operations backing the freshness cache
type CacheStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// ProductCache stores the last successful result per (source, term)
type ProductCache interface {
	IsStale(ctx context.Context, source SourceID, term string) bool
	Read(ctx context.Context, source SourceID, term string) ([]Product, error)
	Write(ctx context.Context, source SourceID, term string, products []Product) error
}

// ProductSource returns the current products of one store for a term
type ProductSource interface {
	Source() SourceID
	GetProducts(ctx context.Context, term string) ([]Product, error)
}
