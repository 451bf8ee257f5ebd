package provider

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"tickerfeed/internal/application"
	"tickerfeed/internal/domain"
)

// Ensure Fake implements application.QuoteSource.
var _ application.QuoteSource = (*Fake)(nil)

// Fake returns the same price for every symbol; useful for dev without API
// access.
type Fake struct {
	price decimal.Decimal
}

func NewFake(price float64) *Fake {
	return &Fake{price: decimal.NewFromFloat(price).Round(2)}
}

func (f *Fake) Fetch(_ context.Context, symbols []domain.Symbol) (map[string]domain.Quote, error) {
	out := make(map[string]domain.Quote, len(symbols))
	for _, s := range symbols {
		out[s.Ticker] = domain.Quote{
			Symbol:    s,
			Price:     f.price,
			Change:    decimal.Zero,
			ChangePct: decimal.Zero,
			FetchedAt: time.Now().UTC(),
		}
	}
	return out, nil
}
