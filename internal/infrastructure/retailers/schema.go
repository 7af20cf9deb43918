package retailers

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// FieldKind selects how a field's value is read from the matched element
type FieldKind int

const (
	// Text reads the whitespace-collapsed text of the first match
	Text FieldKind = iota
	// Attr reads an attribute of the first match
	Attr
	// Exists records whether any element matches
	Exists
	// List reads the text of every match
	List
)

// Field is one tagged descriptor of a card: where to find it and how to
// clean it up. An empty Selector addresses the card element itself.
type Field struct {
	Name      string
	Selector  string
	Kind      FieldKind
	Attr      string
	Transform func(string) string
}

// Schema is a declarative field map: a base selector for the repeated card
// plus the fields read from each card.
type Schema struct {
	Base   string
	Fields []Field
}

// Record holds the raw values read from one card
type Record struct {
	values map[string]string
	lists  map[string][]string
}

// NewRecord builds a record from plain values, mostly for tests
func NewRecord(values map[string]string, lists map[string][]string) Record {
	if values == nil {
		values = map[string]string{}
	}
	if lists == nil {
		lists = map[string][]string{}
	}
	return Record{values: values, lists: lists}
}

// Text returns a text or attribute field, "" when absent
func (r Record) Text(name string) string {
	return r.values[name]
}

// Has reports whether an Exists field matched
func (r Record) Has(name string) bool {
	return r.values[name] != ""
}

// List returns the values of a List field
func (r Record) List(name string) []string {
	return r.lists[name]
}

// Apply evaluates the schema over a raw document, one record per card
func (s Schema) Apply(raw []byte) ([]Record, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}

	cards := doc.Find(s.Base)
	records := make([]Record, 0, cards.Length())
	cards.Each(func(_ int, card *goquery.Selection) {
		records = append(records, s.read(card))
	})
	return records, nil
}

func (s Schema) read(card *goquery.Selection) Record {
	rec := NewRecord(nil, nil)
	for _, f := range s.Fields {
		sel := card
		if f.Selector != "" {
			sel = card.Find(f.Selector)
		}

		switch f.Kind {
		case Exists:
			if sel.Length() > 0 {
				rec.values[f.Name] = "true"
			}
		case List:
			var items []string
			sel.Each(func(_ int, item *goquery.Selection) {
				if v := f.apply(cleanText(item.Text())); v != "" {
					items = append(items, v)
				}
			})
			rec.lists[f.Name] = items
		case Attr:
			if v, ok := sel.First().Attr(f.Attr); ok {
				rec.values[f.Name] = f.apply(strings.TrimSpace(v))
			}
		default:
			if sel.Length() > 0 {
				rec.values[f.Name] = f.apply(cleanText(sel.First().Text()))
			}
		}
	}
	return rec
}

func (f Field) apply(v string) string {
	if f.Transform == nil {
		return v
	}
	return f.Transform(v)
}

// cleanText collapses runs of whitespace into single spaces
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
