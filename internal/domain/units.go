package domain

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// UnitFamily groups unit sizes that can be compared with each other
type UnitFamily string

const (
	UnitUnknown UnitFamily = ""
	UnitWeight  UnitFamily = "weight"
	UnitCount   UnitFamily = "count"
	UnitSlice   UnitFamily = "slice"
)

// Fixed weights for Dutch bread loaf shorthand
const (
	halfLoafGrams  = 400
	wholeLoafGrams = 800
)

// UnitSize is a canonical package size. Quantity is grams for the weight
// family, pieces for count and slices for slice. Raw keeps the text of an
// unrecognised size.
type UnitSize struct {
	Family   UnitFamily
	Quantity int64
	Raw      string
}

// String renders the canonical form: "500g", "2 piece", "10 slice"
func (u UnitSize) String() string {
	switch u.Family {
	case UnitWeight:
		return fmt.Sprintf("%dg", u.Quantity)
	case UnitCount:
		return fmt.Sprintf("%d piece", u.Quantity)
	case UnitSlice:
		return fmt.Sprintf("%d slice", u.Quantity)
	default:
		return u.Raw
	}
}

// Known reports whether the size belongs to a comparable family
func (u UnitSize) Known() bool {
	return u.Family != UnitUnknown && u.Quantity > 0
}

// PerUnitKind tags the comparison unit of a price-per-unit value
type PerUnitKind string

const (
	PerKg    PerUnitKind = "per-kg"
	PerPiece PerUnitKind = "per-piece"
	PerSlice PerUnitKind = "per-slice"
)

// PricePerUnit is a price normalized to one kilogram, piece or slice
type PricePerUnit struct {
	Value decimal.Decimal `json:"value"`
	Kind  PerUnitKind     `json:"kind"`
}

const (
	weightWords = `kilogram|kilo|kg|k|gram|gr|g`
	countWords  = `stuks|stuk|st|pieces|piece|pcs`
	sliceWords  = `plakken|plakjes|plakje|plak|slices|slice`
	quantityPat = `(\d+(?:[.,]\d+)?)`
)

var (
	multipackRegex = regexp.MustCompile(`(\d+)\s*x\s*` + quantityPat + `\s*(` + weightWords + `)\b`)
	countPackRegex = regexp.MustCompile(`(\d+)\s*x\s*(\d+)\s*(?:` + countWords + `)\b`)
	slicePackRegex = regexp.MustCompile(`(\d+)\s*x\s*(\d+)\s*(?:` + sliceWords + `)\b`)
	weightRegex    = regexp.MustCompile(quantityPat + `\s*(` + weightWords + `)\b`)
	countRegex     = regexp.MustCompile(`(\d+)\s*(?:x\s*)?(?:` + countWords + `)\b`)
	sliceRegex     = regexp.MustCompile(`(\d+)\s*(?:x\s*)?(?:` + sliceWords + `)\b`)
	bareUnitRegex  = regexp.MustCompile(`^(?:(` + weightWords + `)|(` + countWords + `)|(` + sliceWords + `))$`)
	bareNumRegex   = regexp.MustCompile(`^\d+$`)
	halfLoafRegex  = regexp.MustCompile(`\bhalf\b`)
	wholeLoafRegex = regexp.MustCompile(`\bheel\b`)
	perPrefixRegex = regexp.MustCompile(`^per\s+`)
)

// ParseUnitSize recognises a package size in free text such as "500 g",
// "Per 0,4 kg", "6x500g", "10 plakken" or "Tarwebrood heel". ok is false only
// for blank text; unrecognised text comes back unchanged with UnitUnknown.
func ParseUnitSize(text string) (UnitSize, bool) {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return UnitSize{}, false
	}
	s := perPrefixRegex.ReplaceAllString(strings.ToLower(raw), "")

	// a multipack whose total does not fit is left unrecognised rather than
	// read as a single pack
	if m := multipackRegex.FindStringSubmatch(s); m != nil {
		packs, _ := strconv.ParseInt(m[1], 10, 64)
		if total, ok := multiply(packs, toGrams(m[2], m[3])); ok {
			return UnitSize{Family: UnitWeight, Quantity: total}, true
		}
		return UnitSize{Raw: raw}, true
	}
	if m := countPackRegex.FindStringSubmatch(s); m != nil {
		if total, ok := multiplyText(m[1], m[2]); ok {
			return UnitSize{Family: UnitCount, Quantity: total}, true
		}
		return UnitSize{Raw: raw}, true
	}
	if m := slicePackRegex.FindStringSubmatch(s); m != nil {
		if total, ok := multiplyText(m[1], m[2]); ok {
			return UnitSize{Family: UnitSlice, Quantity: total}, true
		}
		return UnitSize{Raw: raw}, true
	}
	if m := weightRegex.FindStringSubmatch(s); m != nil {
		if grams := toGrams(m[1], m[2]); grams > 0 {
			return UnitSize{Family: UnitWeight, Quantity: grams}, true
		}
	}
	if m := countRegex.FindStringSubmatch(s); m != nil {
		if n, _ := strconv.ParseInt(m[1], 10, 64); n > 0 {
			return UnitSize{Family: UnitCount, Quantity: n}, true
		}
	}
	if m := sliceRegex.FindStringSubmatch(s); m != nil {
		if n, _ := strconv.ParseInt(m[1], 10, 64); n > 0 {
			return UnitSize{Family: UnitSlice, Quantity: n}, true
		}
	}

	// "per kilo", "per stuk": one of the unit
	if m := bareUnitRegex.FindStringSubmatch(s); m != nil {
		switch {
		case m[1] != "":
			return UnitSize{Family: UnitWeight, Quantity: toGrams("1", m[1])}, true
		case m[2] != "":
			return UnitSize{Family: UnitCount, Quantity: 1}, true
		default:
			return UnitSize{Family: UnitSlice, Quantity: 1}, true
		}
	}

	switch {
	case halfLoafRegex.MatchString(s):
		return UnitSize{Family: UnitWeight, Quantity: halfLoafGrams}, true
	case wholeLoafRegex.MatchString(s):
		return UnitSize{Family: UnitWeight, Quantity: wholeLoafGrams}, true
	case bareNumRegex.MatchString(s):
		n, _ := strconv.ParseInt(s, 10, 64)
		if n > 0 {
			return UnitSize{Family: UnitWeight, Quantity: n}, true
		}
	}

	return UnitSize{Raw: raw}, true
}

// multiply returns packs*each, ok is false for non-positive factors or overflow
func multiply(packs, each int64) (int64, bool) {
	if packs <= 0 || each <= 0 || each > math.MaxInt64/packs {
		return 0, false
	}
	return packs * each, true
}

func multiplyText(packs, each string) (int64, bool) {
	p, err := strconv.ParseInt(packs, 10, 64)
	if err != nil {
		return 0, false
	}
	e, err := strconv.ParseInt(each, 10, 64)
	if err != nil {
		return 0, false
	}
	return multiply(p, e)
}

var maxGrams = decimal.NewFromInt(math.MaxInt64)

// toGrams converts an amount in the given weight unit to whole grams.
// It returns 0 when the amount is unreadable or does not fit an int64.
func toGrams(amount, unit string) int64 {
	d, err := decimal.NewFromString(strings.ReplaceAll(amount, ",", "."))
	if err != nil {
		return 0
	}
	switch unit {
	case "k", "kg", "kilo", "kilogram":
		d = d.Mul(decimal.NewFromInt(1000))
	}
	d = d.Round(0)
	if d.GreaterThan(maxGrams) {
		return 0
	}
	return d.IntPart()
}

// DerivePricePerUnit normalizes a price to per-kg, per-piece or per-slice.
// ok is false when the size is unknown or has no quantity.
func DerivePricePerUnit(price decimal.Decimal, size UnitSize) (PricePerUnit, bool) {
	if !size.Known() {
		return PricePerUnit{}, false
	}
	q := decimal.NewFromInt(size.Quantity)
	switch size.Family {
	case UnitWeight:
		return PricePerUnit{Value: price.Mul(decimal.NewFromInt(1000)).Div(q).Round(4), Kind: PerKg}, true
	case UnitCount:
		return PricePerUnit{Value: price.Div(q).Round(4), Kind: PerPiece}, true
	case UnitSlice:
		return PricePerUnit{Value: price.Div(q).Round(4), Kind: PerSlice}, true
	}
	return PricePerUnit{}, false
}

var unitPriceSplitRegex = regexp.MustCompile(`\s*(?:/|\bper\b)\s*`)

// ParseUnitPrice reads a retailer's own per-unit label such as "€ 13.98 / kg",
// "€ 2,19 per stuk" or "€ 0,89 per 100 gram" and normalizes it.
func ParseUnitPrice(text string) (PricePerUnit, bool) {
	parts := unitPriceSplitRegex.Split(strings.ToLower(strings.TrimSpace(text)), 2)
	if len(parts) != 2 {
		return PricePerUnit{}, false
	}
	value, err := ParsePrice(parts[0])
	if err != nil {
		return PricePerUnit{}, false
	}
	size, ok := ParseUnitSize(parts[1])
	if !ok {
		return PricePerUnit{}, false
	}
	return DerivePricePerUnit(value, size)
}
