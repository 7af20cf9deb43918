package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SourceID identifies a retailer whose listings are extracted independently
type SourceID string

const (
	SourceAH    SourceID = "ah"
	SourceJumbo SourceID = "jumbo"
	SourcePlus  SourceID = "plus"
)

// AllSources lists every known retailer in iteration order.
// Merged results keep this order before sorting.
var AllSources = []SourceID{SourceAH, SourceJumbo, SourcePlus}

// ParseSourceID normalises a store name into a known SourceID
func ParseSourceID(s string) (SourceID, error) {
	id := SourceID(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllSources {
		if id == known {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: unknown store %q", ErrInvalidRequest, s)
}

// DefaultStockStatus is used when a card carries no stock information
const DefaultStockStatus = "in stock"

// Product is the canonical listing produced by every retailer extractor
type Product struct {
	Source        SourceID         `json:"source"`
	ID            string           `json:"id,omitempty"`
	Name          string           `json:"name"`
	Brand         string           `json:"brand,omitempty"`
	Price         decimal.Decimal  `json:"price"`
	OriginalPrice *decimal.Decimal `json:"original_price,omitempty"`
	IsPromotional bool             `json:"is_promotional"`
	UnitSize      string           `json:"unit_size,omitempty"`
	PricePerUnit  *PricePerUnit    `json:"price_per_unit,omitempty"`
	UnitPriceText string           `json:"unit_price_text,omitempty"` // per-unit label as shown by the retailer
	ImageURL      string           `json:"image_url,omitempty"`
	DetailURL     string           `json:"detail_url,omitempty"`
	Properties    []string         `json:"properties,omitempty"`
	NutriLabel    string           `json:"nutri_label,omitempty"`
	StockStatus   string           `json:"stock_status"`
	ScrapedAt     time.Time        `json:"scraped_at"`
}

// Key returns the identity of a product within one aggregated result set
func (p Product) Key() string {
	return string(p.Source) + "\x00" + p.Name
}

// Validate checks the invariants every stored or returned product must hold
func (p Product) Validate() error {
	if p.Source == "" {
		return fmt.Errorf("product %q: missing source", p.Name)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("product from %s: missing name", p.Source)
	}
	if p.Price.IsNegative() {
		return fmt.Errorf("product %q: negative price %s", p.Name, p.Price)
	}
	if p.OriginalPrice != nil {
		if !p.IsPromotional {
			return fmt.Errorf("product %q: original price without promotion", p.Name)
		}
		if !p.OriginalPrice.GreaterThan(p.Price) {
			return fmt.Errorf("product %q: original price %s not above price %s", p.Name, p.OriginalPrice, p.Price)
		}
	}
	if p.PricePerUnit != nil {
		if p.PricePerUnit.Kind == "" {
			return fmt.Errorf("product %q: price per unit without kind", p.Name)
		}
		if p.PricePerUnit.Value.IsNegative() {
			return fmt.Errorf("product %q: negative price per unit", p.Name)
		}
	}
	return nil
}

// SortKey selects the ordering of an aggregated result
type SortKey string

const (
	SortByPricePerUnit SortKey = "price_per_unit"
	SortByPrice        SortKey = "price"
)

// ParseSortKey maps the empty string to the default price_per_unit ordering
func ParseSortKey(s string) (SortKey, error) {
	switch SortKey(strings.ToLower(strings.TrimSpace(s))) {
	case "", SortByPricePerUnit:
		return SortByPricePerUnit, nil
	case SortByPrice:
		return SortByPrice, nil
	default:
		return "", fmt.Errorf("%w: unknown sort key %q", ErrInvalidRequest, s)
	}
}

// SearchRequest represents an aggregated product search
type SearchRequest struct {
	Term    string     `json:"search_term" binding:"required"`
	Sources []SourceID `json:"stores,omitempty"`
	SortBy  SortKey    `json:"sort_by,omitempty"`
}

// SourceFailure records a store that contributed nothing to a search
type SourceFailure struct {
	Source SourceID `json:"source"`
	Error  string   `json:"error"`
}

// SearchResult is the merged, deduplicated and sorted outcome of a search
type SearchResult struct {
	Products []Product       `json:"products"`
	Count    int             `json:"count"`
	Failures []SourceFailure `json:"failed_sources,omitempty"`
}

// FailedSources returns the ids of every failed store in result order
func (r *SearchResult) FailedSources() []SourceID {
	ids := make([]SourceID, 0, len(r.Failures))
	for _, f := range r.Failures {
		ids = append(ids, f.Source)
	}
	return ids
}
