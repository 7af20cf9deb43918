package retailers

import (
	"regexp"
	"strings"
	"time"

	"github.com/macrolens/shelfprice/internal/domain"
	"github.com/shopspring/decimal"
)

const plusBaseURL = "https://www.plus.nl"

var (
	plusImageIDRegex = regexp.MustCompile(`/(\d+)_M/`)
	slugStripRegex   = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugSpaceRegex   = regexp.MustCompile(`[\s-]+`)
)

// plusKnownBrands are matched as name prefixes before falling back to the first word
var plusKnownBrands = []string{"PLUS", "AH", "Jumbo", "Milner", "Beemster", "Old Amsterdam", "Leerdammer"}

var plusSchema = Schema{
	Base: ".list-item.cart-item-wrapper.plp-item-wrapper",
	Fields: []Field{
		{Name: "name", Selector: ".plp-item-name h3 span"},
		{Name: "image", Selector: ".plp-item-image img", Kind: Attr, Attr: "src"},
		{Name: "price_integer", Selector: ".product-header-price-integer span"},
		{Name: "price_decimal", Selector: ".product-header-price-decimals span"},
		{Name: "unit_info", Selector: ".plp-item-complementary .margin-bottom-xs span"},
	},
}

// NewPlus returns the PLUS extractor. PLUS cards carry no link, so the
// detail URL is rebuilt from the name and the id in the image path.
func NewPlus(now func() time.Time) domain.Extractor {
	return &extractor{
		source:    domain.SourcePlus,
		searchURL: plusBaseURL + "/zoekresultaten?SearchTerm=%s",
		noResults: ".plp-no-results",
		schema:    plusSchema,
		normalize: normalizePlus,
		now:       now,
	}
}

func normalizePlus(rec Record) (domain.Product, error) {
	name := rec.Text("name")
	if name == "" {
		return domain.Product{}, domain.Skip("name", "missing")
	}

	price, err := requirePrice(func() (decimal.Decimal, error) {
		return domain.ParsePriceParts(rec.Text("price_integer"), rec.Text("price_decimal"))
	})
	if err != nil {
		return domain.Product{}, err
	}

	image := rec.Text("image")
	if image == "" {
		return domain.Product{}, domain.Skip("image", "missing")
	}

	p := domain.Product{
		Name:     name,
		Brand:    plusBrand(name),
		Price:    price,
		ImageURL: absoluteURL(plusBaseURL, image),
	}
	if m := plusImageIDRegex.FindStringSubmatch(image); m != nil {
		p.ID = m[1]
		p.DetailURL = plusDetailURL(name, m[1])
	}

	if info := rec.Text("unit_info"); info != "" {
		applyUnitSize(&p, info)
	} else if size, ok := domain.ParseUnitSize(name); ok && size.Known() {
		p.UnitSize = size.String()
	}
	return p, nil
}

func plusBrand(name string) string {
	for _, brand := range plusKnownBrands {
		if strings.HasPrefix(name, brand) {
			return brand
		}
	}
	if fields := strings.Fields(name); len(fields) > 0 {
		return fields[0]
	}
	return ""
}

// plusDetailURL rebuilds the product page URL, e.g.
// "PLUS Jong belegen 48+ plakken" + "140299" -> /product/plus-jong-belegen-48-plakken-tray-140299
func plusDetailURL(name, id string) string {
	lower := strings.ToLower(name)
	slug := slugStripRegex.ReplaceAllString(lower, "")
	slug = strings.Trim(slugSpaceRegex.ReplaceAllString(strings.TrimSpace(slug), "-"), "-")
	if strings.Contains(lower, "plakken") {
		slug += "-tray"
	}
	return plusBaseURL + "/product/" + slug + "-" + id
}
