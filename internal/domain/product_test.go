package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestProductValidate(t *testing.T) {
	price := decimal.RequireFromString("2.99")
	higher := decimal.RequireFromString("3.49")
	lower := decimal.RequireFromString("1.99")

	tests := []struct {
		name    string
		product Product
		wantErr bool
	}{
		{
			name:    "plain product",
			product: Product{Source: SourceAH, Name: "Gouda", Price: price},
		},
		{
			name:    "promotion with higher original",
			product: Product{Source: SourceAH, Name: "Gouda", Price: price, IsPromotional: true, OriginalPrice: &higher},
		},
		{
			name:    "promotion without original",
			product: Product{Source: SourceJumbo, Name: "Gouda", Price: price, IsPromotional: true},
		},
		{
			name:    "missing name",
			product: Product{Source: SourceAH, Price: price},
			wantErr: true,
		},
		{
			name:    "missing source",
			product: Product{Name: "Gouda", Price: price},
			wantErr: true,
		},
		{
			name:    "negative price",
			product: Product{Source: SourceAH, Name: "Gouda", Price: decimal.RequireFromString("-1")},
			wantErr: true,
		},
		{
			name:    "original without promotion",
			product: Product{Source: SourceAH, Name: "Gouda", Price: price, OriginalPrice: &higher},
			wantErr: true,
		},
		{
			name:    "original not above price",
			product: Product{Source: SourceAH, Name: "Gouda", Price: price, IsPromotional: true, OriginalPrice: &lower},
			wantErr: true,
		},
		{
			name:    "per unit without kind",
			product: Product{Source: SourcePlus, Name: "Gouda", Price: price, PricePerUnit: &PricePerUnit{Value: price}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.product.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestProductKey(t *testing.T) {
	a := Product{Source: SourceAH, Name: "Gouda"}
	b := Product{Source: SourceJumbo, Name: "Gouda"}
	c := Product{Source: SourceAH, Name: "Gouda", Price: decimal.NewFromInt(9)}

	assert.NotEqual(t, a.Key(), b.Key())
	assert.Equal(t, a.Key(), c.Key())
}

func TestParseSourceID(t *testing.T) {
	id, err := ParseSourceID(" Jumbo ")
	assert.NoError(t, err)
	assert.Equal(t, SourceJumbo, id)

	_, err = ParseSourceID("lidl")
	assert.True(t, errors.Is(err, ErrInvalidRequest))
}

func TestParseSortKey(t *testing.T) {
	tests := []struct {
		input   string
		want    SortKey
		wantErr bool
	}{
		{input: "", want: SortByPricePerUnit},
		{input: "price_per_unit", want: SortByPricePerUnit},
		{input: "PRICE", want: SortByPrice},
		{input: "name", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSortKey(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRequest)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSourceErrorUnwrap(t *testing.T) {
	err := &SourceError{Source: SourcePlus, Err: ErrFetchTimeout}

	assert.True(t, errors.Is(err, ErrFetchTimeout))
	assert.Equal(t, "plus: fetch timed out", err.Error())
	assert.True(t, errors.Is(Skip("price", "missing"), ErrExtractionSkip))
}
