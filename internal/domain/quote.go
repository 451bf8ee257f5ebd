package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a single priced snapshot of a symbol. Quotes are immutable; a new
// fetch produces a new Quote that replaces the old one for that symbol.
type Quote struct {
	Symbol    Symbol
	Price     decimal.Decimal
	Change    decimal.Decimal
	ChangePct decimal.Decimal
	Volume    *int64
	MarketCap *int64
	FetchedAt time.Time
}

// Freshness classifies a cache lookup from the consumer's point of view.
// It is the only fetch outcome a consumer ever observes.
type Freshness string

const (
	FreshnessFresh   Freshness = "fresh"
	FreshnessStale   Freshness = "stale"
	FreshnessUnknown Freshness = "unknown"
)
