package retailers

import (
	"regexp"
	"strings"
	"time"

	"github.com/macrolens/shelfprice/internal/domain"
	"github.com/shopspring/decimal"
)

const ahBaseURL = "https://www.ah.nl"

var (
	ahProductIDRegex = regexp.MustCompile(`/product/(?:wi)?(\d+)`)
	ahNutriRegex     = regexp.MustCompile(`nutriscore-([a-eA-E])\b`)
)

var ahSchema = Schema{
	Base: `[data-testhook="product-card"]`,
	Fields: []Field{
		{Name: "name", Selector: `[data-testhook="product-title-line-clamp"], [data-testhook="product-title"]`},
		{Name: "price_integer", Selector: `[data-testhook="price-amount"] [class*="price-amount_integer"]`},
		{Name: "price_fraction", Selector: `[data-testhook="price-amount"] [class*="price-amount_fractional"]`},
		{Name: "price", Selector: `[data-testhook="price-amount"]`},
		{Name: "promotion", Selector: `[class*="price-promotion"]`, Kind: Exists},
		{Name: "original_price", Selector: `[class*="price-promotion"] [class*="strike"]`},
		{Name: "unit_size", Selector: `[data-testhook="product-unit-size"]`},
		{Name: "unit_price", Selector: `[data-testhook="price-amount-per-unit"]`},
		{Name: "image", Selector: `[data-testhook="product-image"]`, Kind: Attr, Attr: "src"},
		{Name: "link", Selector: `a[href^="/producten/product"]`, Kind: Attr, Attr: "href"},
		{Name: "properties", Selector: `[data-testhook="product-properties"] svg title`, Kind: List},
		{
			Name: "nutri", Selector: `[data-testhook="product-highlight"]`, Kind: Attr, Attr: "class",
			Transform: func(class string) string {
				if m := ahNutriRegex.FindStringSubmatch(class); m != nil {
					return strings.ToUpper(m[1])
				}
				return ""
			},
		},
		{Name: "brand", Selector: `[data-testhook="product-brand"]`},
		{Name: "stock", Selector: `[data-testhook="product-stock"]`, Transform: strings.ToLower},
	},
}

// NewAH returns the Albert Heijn extractor
func NewAH(now func() time.Time) domain.Extractor {
	return &extractor{
		source:    domain.SourceAH,
		searchURL: ahBaseURL + "/zoeken?query=%s",
		noResults: `[data-testhook="search-no-results"]`,
		schema:    ahSchema,
		normalize: normalizeAH,
		now:       now,
	}
}

func normalizeAH(rec Record) (domain.Product, error) {
	name := rec.Text("name")
	if name == "" {
		return domain.Product{}, domain.Skip("name", "missing")
	}

	price, err := requirePrice(func() (decimal.Decimal, error) {
		if rec.Text("price_integer") != "" || rec.Text("price_fraction") != "" {
			return domain.ParsePriceParts(rec.Text("price_integer"), rec.Text("price_fraction"))
		}
		return domain.ParsePrice(rec.Text("price"))
	})
	if err != nil {
		return domain.Product{}, err
	}

	image := rec.Text("image")
	if image == "" {
		return domain.Product{}, domain.Skip("image", "missing")
	}
	link := absoluteURL(ahBaseURL, rec.Text("link"))
	if link == "" {
		return domain.Product{}, domain.Skip("link", "missing")
	}

	p := domain.Product{
		Name:        name,
		Brand:       rec.Text("brand"),
		Price:       price,
		ImageURL:    absoluteURL(ahBaseURL, image),
		DetailURL:   link,
		Properties:  rec.List("properties"),
		NutriLabel:  rec.Text("nutri"),
		StockStatus: rec.Text("stock"),
	}
	if m := ahProductIDRegex.FindStringSubmatch(link); m != nil {
		p.ID = m[1]
	}

	applyPromotion(&p, rec.Has("promotion"), rec.Text("original_price"))
	applyUnitSize(&p, rec.Text("unit_size"))
	applyUnitPrice(&p, rec.Text("unit_price"))
	return p, nil
}
