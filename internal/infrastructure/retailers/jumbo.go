package retailers

import (
	"strings"
	"time"

	"github.com/macrolens/shelfprice/internal/domain"
	"github.com/shopspring/decimal"
)

const jumboBaseURL = "https://www.jumbo.com"

var jumboSchema = Schema{
	Base: "article.product-container",
	Fields: []Field{
		{Name: "name", Selector: ".title-link"},
		{Name: "image", Selector: ".product-image img", Kind: Attr, Attr: "src"},
		{Name: "link", Selector: "a.link, a.title-link", Kind: Attr, Attr: "href"},
		{Name: "price_whole", Selector: ".current-price .whole"},
		{Name: "price_fraction", Selector: ".current-price .fractional"},
		{Name: "price", Selector: ".current-price"},
		{Name: "original_price", Selector: ".old-price"},
		{Name: "promotion", Selector: ".promotional-price, .bonus-price", Kind: Exists},
		{
			Name: "unit_price", Selector: ".price-per-unit .screenreader-only",
			Transform: func(v string) string {
				return strings.TrimSpace(strings.NewReplacer("<!--[-->", "", "<!--]-->", "").Replace(v))
			},
		},
		{Name: "properties", Selector: ".product-label", Kind: List},
		{Name: "brand", Selector: ".product-brand"},
	},
}

// NewJumbo returns the Jumbo extractor. Jumbo has no size slot, so the
// size is read from the product name.
func NewJumbo(now func() time.Time) domain.Extractor {
	return &extractor{
		source:    domain.SourceJumbo,
		searchURL: jumboBaseURL + "/zoeken?searchType=keyword&searchTerms=%s",
		noResults: ".search-no-results",
		schema:    jumboSchema,
		normalize: normalizeJumbo,
		now:       now,
	}
}

func normalizeJumbo(rec Record) (domain.Product, error) {
	name := rec.Text("name")
	if name == "" {
		return domain.Product{}, domain.Skip("name", "missing")
	}

	price, err := requirePrice(func() (decimal.Decimal, error) {
		if rec.Text("price_whole") != "" {
			return domain.ParsePriceParts(rec.Text("price_whole"), rec.Text("price_fraction"))
		}
		return domain.ParsePrice(rec.Text("price"))
	})
	if err != nil {
		return domain.Product{}, err
	}

	link := absoluteURL(jumboBaseURL, rec.Text("link"))
	if link == "" {
		return domain.Product{}, domain.Skip("link", "missing")
	}

	p := domain.Product{
		Name:       name,
		Brand:      rec.Text("brand"),
		Price:      price,
		ImageURL:   absoluteURL(jumboBaseURL, rec.Text("image")),
		DetailURL:  link,
		Properties: rec.List("properties"),
	}

	applyPromotion(&p, rec.Has("promotion"), rec.Text("original_price"))

	if size, ok := domain.ParseUnitSize(name); ok && size.Known() {
		p.UnitSize = size.String()
	}
	if ppu, ok := applyUnitPrice(&p, rec.Text("unit_price")); ok && p.UnitSize == "" && ppu.Kind == domain.PerPiece {
		p.UnitSize = domain.UnitSize{Family: domain.UnitCount, Quantity: 1}.String()
	}
	return p, nil
}
