package domain

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// priceTokenRegex matches one run of digits and separators, e.g. "1.234,56" or ",99"
var priceTokenRegex = regexp.MustCompile(`[.,]?\d[\d.,]*`)

// ParsePrice converts a localized price string such as "€ 3,50", "3.50" or
// "1.234,56" into a decimal. Only the first price-shaped token is read, so
// "€ 3,49 Prijs: 3 euro 49" is 3.49. The last separator is the decimal
// separator and a missing fraction means .00. Fails only when the text holds
// no digits.
func ParsePrice(text string) (decimal.Decimal, error) {
	cleaned := strings.TrimRight(priceTokenRegex.FindString(text), ".,")
	if !hasDigit(cleaned) {
		return decimal.Zero, &ParseError{Input: text, What: "price"}
	}

	integer, fraction := cleaned, ""
	if i := strings.LastIndexAny(cleaned, ".,"); i >= 0 {
		integer, fraction = cleaned[:i], cleaned[i+1:]
	}
	return combine(digitsOnly(integer), digitsOnly(fraction)), nil
}

// ParsePriceParts combines a price rendered as separate integer and fraction
// elements. Digits are kept as written, so ("3", "5") is 3.50. Fails only when
// neither part holds a digit.
func ParsePriceParts(integer, fraction string) (decimal.Decimal, error) {
	i, f := digitsOnly(integer), digitsOnly(fraction)
	if i == "" && f == "" {
		return decimal.Zero, &ParseError{Input: integer + "|" + fraction, What: "price"}
	}
	return combine(i, f), nil
}

// FormatPrice renders a price in the canonical two-decimal dot form
func FormatPrice(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// combine never fails: both inputs contain digits only
func combine(integer, fraction string) decimal.Decimal {
	if integer == "" {
		integer = "0"
	}
	if fraction == "" {
		fraction = "0"
	}
	d, err := decimal.NewFromString(integer + "." + fraction)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func hasDigit(s string) bool {
	return strings.ContainsAny(s, "0123456789")
}
