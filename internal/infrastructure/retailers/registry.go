package retailers

import (
	"fmt"
	"time"

	"github.com/macrolens/shelfprice/internal/domain"
)

// New returns the extractor for one retailer
func New(source domain.SourceID, now func() time.Time) (domain.Extractor, error) {
	if now == nil {
		now = time.Now
	}
	switch source {
	case domain.SourceAH:
		return NewAH(now), nil
	case domain.SourceJumbo:
		return NewJumbo(now), nil
	case domain.SourcePlus:
		return NewPlus(now), nil
	default:
		return nil, fmt.Errorf("%w: no extractor for store %q", domain.ErrInvalidRequest, source)
	}
}

// All returns extractors for the given sources in the order given
func All(sources []domain.SourceID, now func() time.Time) ([]domain.Extractor, error) {
	out := make([]domain.Extractor, 0, len(sources))
	for _, s := range sources {
		e, err := New(s, now)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
