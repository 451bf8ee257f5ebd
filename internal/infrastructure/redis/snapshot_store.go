package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"tickerfeed/internal/domain"
)

const defaultPrefix = "tickerfeed:quote:"

// Store persists last-known quotes so a restart serves stale data instead
// of nothing. Entries expire after TTL; anything older is not worth showing.
type Store struct {
	Client *redis.Client
	TTL    time.Duration
	Prefix string
}

func New(client *redis.Client, ttl time.Duration) *Store {
	return &Store{Client: client, TTL: ttl, Prefix: defaultPrefix}
}

type quoteDoc struct {
	Ticker    string          `json:"ticker"`
	Kind      string          `json:"kind"`
	Price     decimal.Decimal `json:"price"`
	Change    decimal.Decimal `json:"change"`
	ChangePct decimal.Decimal `json:"change_pct"`
	Volume    *int64          `json:"volume,omitempty"`
	MarketCap *int64          `json:"market_cap,omitempty"`
	FetchedAt time.Time       `json:"fetched_at"`
}

func (s *Store) Save(ctx context.Context, q domain.Quote) error {
	doc := quoteDoc{
		Ticker:    q.Symbol.Ticker,
		Kind:      string(q.Symbol.Kind),
		Price:     q.Price,
		Change:    q.Change,
		ChangePct: q.ChangePct,
		Volume:    q.Volume,
		MarketCap: q.MarketCap,
		FetchedAt: q.FetchedAt,
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("snapshot marshal: %w", err)
	}
	if err := s.Client.Set(ctx, s.key(q.Symbol.Ticker), b, s.TTL).Err(); err != nil {
		return fmt.Errorf("snapshot set: %w", err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context) ([]domain.Quote, error) {
	var quotes []domain.Quote
	var cursor uint64
	for {
		keys, next, err := s.Client.Scan(ctx, cursor, s.key("*"), 100).Result()
		if err != nil {
			return nil, fmt.Errorf("snapshot scan: %w", err)
		}
		for _, k := range keys {
			raw, err := s.Client.Get(ctx, k).Bytes()
			if err == redis.Nil {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("snapshot get %s: %w", k, err)
			}
			var doc quoteDoc
			if err := json.Unmarshal(raw, &doc); err != nil {
				// skip corrupted entries; they will be rewritten
				continue
			}
			quotes = append(quotes, domain.Quote{
				Symbol:    domain.Symbol{Ticker: doc.Ticker, Kind: domain.SymbolKind(doc.Kind)},
				Price:     doc.Price,
				Change:    doc.Change,
				ChangePct: doc.ChangePct,
				Volume:    doc.Volume,
				MarketCap: doc.MarketCap,
				FetchedAt: doc.FetchedAt,
			})
		}
		cursor = next
		if cursor == 0 {
			return quotes, nil
		}
	}
}

func (s *Store) key(ticker string) string {
	p := s.Prefix
	if p == "" {
		p = defaultPrefix
	}
	return p + ticker
}
