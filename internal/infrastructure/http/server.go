package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"tickerfeed/internal/application"
	"tickerfeed/internal/domain"
	"tickerfeed/internal/render"
)

// Server exposes read-only views of the quote cache. It serves whatever the
// cache holds; it never triggers a fetch.
type Server struct {
	cache *application.QuoteCache
}

func NewServer(cache *application.QuoteCache) *Server { return &Server{cache: cache} }

type quoteResponse struct {
	Symbol    string           `json:"symbol"`
	Kind      string           `json:"kind"`
	Price     decimal.Decimal  `json:"price"`
	Change    decimal.Decimal  `json:"change"`
	ChangePct decimal.Decimal  `json:"change_pct"`
	Volume    *int64           `json:"volume,omitempty"`
	MarketCap *int64           `json:"market_cap,omitempty"`
	Freshness domain.Freshness `json:"freshness"`
	AgeMS     int64            `json:"age_ms"`
	Line      string           `json:"line"`
}

func (s *Server) getQuote(w http.ResponseWriter, r *http.Request) {
	l := s.cache.Get(chi.URLParam(r, "symbol"))
	if l.Freshness == domain.FreshnessUnknown {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, quoteResponse{
		Symbol:    l.Symbol.Ticker,
		Kind:      string(l.Symbol.Kind),
		Price:     l.Quote.Price,
		Change:    l.Quote.Change,
		ChangePct: l.Quote.ChangePct,
		Volume:    l.Quote.Volume,
		MarketCap: l.Quote.MarketCap,
		Freshness: l.Freshness,
		AgeMS:     l.Age.Milliseconds(),
		Line:      render.Line(l),
	})
}

func (s *Server) getTape(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(render.Tape(s.cache.Lookups())))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
