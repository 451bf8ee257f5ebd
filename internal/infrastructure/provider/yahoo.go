package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"tickerfeed/internal/application"
	"tickerfeed/internal/domain"
	"tickerfeed/internal/infrastructure/httpx"
)

const (
	DefaultYahooBaseURL = "https://query1.finance.yahoo.com"
	chartPathPrefix     = "/v8/finance/chart/"
)

// YahooProvider fetches quotes from the Yahoo Finance chart API, one request
// per symbol with bounded fan-out. Crypto symbols are quoted against USD on
// the wire but stored under their bare ticker.
type YahooProvider struct {
	BaseURL        string
	Client         *httpx.Client
	MaxConcurrency int
}

var _ application.QuoteSource = (*YahooProvider)(nil)

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol              string  `json:"symbol"`
				RegularMarketPrice  float64 `json:"regularMarketPrice"`
				PreviousClose       float64 `json:"previousClose"`
				ChartPreviousClose  float64 `json:"chartPreviousClose"`
				RegularMarketVolume int64   `json:"regularMarketVolume"`
			} `json:"meta"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (p *YahooProvider) Fetch(ctx context.Context, symbols []domain.Symbol) (map[string]domain.Quote, error) {
	if len(symbols) == 0 {
		return map[string]domain.Quote{}, nil
	}

	limit := p.MaxConcurrency
	if limit <= 0 {
		limit = 4
	}

	var mu sync.Mutex
	out := make(map[string]domain.Quote, len(symbols))
	failed := make(map[string]error)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, s := range symbols {
		s := s
		g.Go(func() error {
			q, err := p.fetchOne(gctx, s)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed[s.Ticker] = err
				return nil
			}
			out[s.Ticker] = q
			return nil
		})
	}
	_ = g.Wait()

	if len(failed) > 0 {
		return out, &domain.PartialFailure{Failed: failed}
	}
	return out, nil
}

func (p *YahooProvider) fetchOne(ctx context.Context, s domain.Symbol) (domain.Quote, error) {
	base := p.BaseURL
	if base == "" {
		base = DefaultYahooBaseURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("yahoo: invalid base url: %w", err)
	}
	u.Path = chartPathPrefix + apiSymbol(s)
	q := u.Query()
	q.Set("interval", "5m")
	q.Set("range", "1d")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("yahoo: create request: %w", err)
	}

	client := p.Client
	if client == nil {
		client = httpx.New(0)
	}
	var body chartResponse
	if err := client.DoJSON(ctx, req, &body); err != nil {
		return domain.Quote{}, classify(s, err)
	}
	if body.Chart.Error != nil {
		return domain.Quote{}, fmt.Errorf("%w: %s: %s %s",
			domain.ErrFetchFailed, s.Ticker, body.Chart.Error.Code, body.Chart.Error.Description)
	}
	if len(body.Chart.Result) == 0 {
		return domain.Quote{}, fmt.Errorf("%w: %s: empty chart result", domain.ErrFetchFailed, s.Ticker)
	}

	meta := body.Chart.Result[0].Meta
	price := decimal.NewFromFloat(meta.RegularMarketPrice).Round(2)

	prevClose := meta.PreviousClose
	if prevClose == 0 {
		prevClose = meta.ChartPreviousClose
	}
	prev := decimal.NewFromFloat(prevClose)
	change := decimal.Zero
	pct := decimal.Zero
	if prev.IsPositive() {
		change = price.Sub(prev).Round(2)
		pct = change.Div(prev).Mul(decimal.NewFromInt(100)).Round(2)
	}

	var volume *int64
	if meta.RegularMarketVolume > 0 {
		v := meta.RegularMarketVolume
		volume = &v
	}

	return domain.Quote{
		Symbol:    s,
		Price:     price,
		Change:    change,
		ChangePct: pct,
		Volume:    volume,
		FetchedAt: time.Now().UTC(),
	}, nil
}

func classify(s domain.Symbol, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %v", domain.ErrFetchTimeout, s.Ticker, err)
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrFetchFailed, s.Ticker, err)
}

// apiSymbol maps a symbol to its Yahoo identifier. Crypto tickers gain the
// -USD suffix unless already present.
func apiSymbol(s domain.Symbol) string {
	if s.Kind == domain.SymbolKindCrypto && !hasUSDSuffix(s.Ticker) {
		return s.Ticker + "-USD"
	}
	return s.Ticker
}

func hasUSDSuffix(t string) bool {
	const suf = "-USD"
	return len(t) > len(suf) && t[len(t)-len(suf):] == suf
}
