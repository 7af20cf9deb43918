package retailers

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/macrolens/shelfprice/internal/domain"
	"github.com/macrolens/shelfprice/internal/logger"
	"github.com/shopspring/decimal"
)

// normalizer turns one raw card into a product, or returns a skip error
type normalizer func(rec Record) (domain.Product, error)

// extractor runs a retailer's schema and normalizer over a search page
type extractor struct {
	source    domain.SourceID
	searchURL string // format with one %s for the escaped term
	noResults string // marker the store renders for an empty search
	schema    Schema
	normalize normalizer
	now       func() time.Time
}

func (e *extractor) Source() domain.SourceID {
	return e.source
}

func (e *extractor) SearchURL(term string) string {
	return fmt.Sprintf(e.searchURL, url.QueryEscape(strings.TrimSpace(term)))
}

func (e *extractor) WaitSelector() string {
	return e.schema.Base
}

func (e *extractor) NoResultsSelector() string {
	return e.noResults
}

// Extract returns the page's products sorted by price. Cards missing a
// required field are skipped; a page whose cards are all skipped fails with
// ErrExtractionFailed, while a page without cards yields an empty list.
func (e *extractor) Extract(raw []byte) ([]domain.Product, error) {
	records, err := e.schema.Apply(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExtractionFailed, err)
	}

	scrapedAt := e.now().UTC()
	products := make([]domain.Product, 0, len(records))
	for i, rec := range records {
		p, err := e.normalize(rec)
		if err == nil {
			p = e.finish(p, scrapedAt)
			err = p.Validate()
		}
		if err != nil {
			logger.Debug().Err(err).Str("source", string(e.source)).Int("card", i).Msg("skipping card")
			continue
		}
		products = append(products, p)
	}

	logger.Info().Str("source", string(e.source)).Int("cards", len(records)).Int("products", len(products)).Msg("extracted products")
	if len(records) > 0 && len(products) == 0 {
		return nil, fmt.Errorf("%w: all %d cards skipped", domain.ErrExtractionFailed, len(records))
	}

	sort.SliceStable(products, func(i, j int) bool {
		return products[i].Price.LessThan(products[j].Price)
	})
	return products, nil
}

func (e *extractor) finish(p domain.Product, scrapedAt time.Time) domain.Product {
	p.Source = e.source
	p.ScrapedAt = scrapedAt
	if p.StockStatus == "" {
		p.StockStatus = domain.DefaultStockStatus
	}
	p.Properties = uniqueTags(p.Properties)
	return p
}

// requirePrice parses a price and rejects zero or negative amounts
func requirePrice(parse func() (decimal.Decimal, error)) (decimal.Decimal, error) {
	price, err := parse()
	if err != nil {
		return decimal.Zero, domain.Skip("price", err.Error())
	}
	if !price.IsPositive() {
		return decimal.Zero, domain.Skip("price", "not positive")
	}
	return price, nil
}

// applyPromotion marks the product promotional and keeps the original price
// only when it parses and exceeds the current price.
func applyPromotion(p *domain.Product, promoted bool, originalText string) {
	if !promoted {
		return
	}
	p.IsPromotional = true
	if originalText == "" {
		return
	}
	original, err := domain.ParsePrice(originalText)
	if err != nil || !original.GreaterThan(p.Price) {
		return
	}
	p.OriginalPrice = &original
}

// applyUnitSize stores the canonical size; unknown text is kept verbatim
func applyUnitSize(p *domain.Product, text string) domain.UnitSize {
	size, ok := domain.ParseUnitSize(text)
	if ok {
		p.UnitSize = size.String()
	}
	return size
}

// applyUnitPrice keeps the retailer's own per-unit label and value
func applyUnitPrice(p *domain.Product, text string) (domain.PricePerUnit, bool) {
	if text == "" {
		return domain.PricePerUnit{}, false
	}
	p.UnitPriceText = text
	ppu, ok := domain.ParseUnitPrice(text)
	if ok {
		p.PricePerUnit = &ppu
	}
	return ppu, ok
}

// absoluteURL resolves href against base; "" when href is empty or invalid
func absoluteURL(base, href string) string {
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	return b.ResolveReference(ref).String()
}

func uniqueTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
