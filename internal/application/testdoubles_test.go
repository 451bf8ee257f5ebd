package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"tickerfeed/internal/domain"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// stubSource is a scriptable QuoteSource. fail maps a ticker to how many
// times it should fail before succeeding (-1 = forever); err fails whole
// batches. It records batches and flags overlapping fetches per ticker.
type stubSource struct {
	now   func() time.Time
	price decimal.Decimal

	mu      sync.Mutex
	delay   time.Duration
	err     error
	fail    map[string]int
	fetches int
	batches [][]string
	active  map[string]int
	overlap bool
}

func newStubSource(now func() time.Time) *stubSource {
	return &stubSource{
		now:    now,
		price:  decimal.RequireFromString("150.25"),
		fail:   map[string]int{},
		active: map[string]int{},
	}
}

func (s *stubSource) Fetch(ctx context.Context, symbols []domain.Symbol) (map[string]domain.Quote, error) {
	s.mu.Lock()
	s.fetches++
	batch := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		batch = append(batch, sym.Ticker)
		s.active[sym.Ticker]++
		if s.active[sym.Ticker] > 1 {
			s.overlap = true
		}
	}
	s.batches = append(s.batches, batch)
	delay, batchErr := s.delay, s.err
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
		}
	}

	defer func() {
		s.mu.Lock()
		for _, sym := range symbols {
			s.active[sym.Ticker]--
		}
		s.mu.Unlock()
	}()

	if batchErr != nil {
		return nil, batchErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]domain.Quote, len(symbols))
	failed := map[string]error{}
	for _, sym := range symbols {
		if n, ok := s.fail[sym.Ticker]; ok && n != 0 {
			if n > 0 {
				s.fail[sym.Ticker] = n - 1
			}
			failed[sym.Ticker] = fmt.Errorf("%w: %s", domain.ErrFetchFailed, sym.Ticker)
			continue
		}
		out[sym.Ticker] = domain.Quote{
			Symbol:    sym,
			Price:     s.price,
			Change:    decimal.Zero,
			ChangePct: decimal.Zero,
			FetchedAt: s.now(),
		}
	}
	if len(failed) > 0 {
		return out, &domain.PartialFailure{Failed: failed}
	}
	return out, nil
}

func (s *stubSource) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

func (s *stubSource) lastBatch() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.batches) == 0 {
		return nil
	}
	return s.batches[len(s.batches)-1]
}

func (s *stubSource) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *stubSource) setDelay(d time.Duration) {
	s.mu.Lock()
	s.delay = d
	s.mu.Unlock()
}

func (s *stubSource) overlapped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overlap
}

type fakeSnapshots struct {
	mu      sync.Mutex
	saved   map[string]domain.Quote
	loadErr error
}

func newFakeSnapshots() *fakeSnapshots {
	return &fakeSnapshots{saved: map[string]domain.Quote{}}
}

func (f *fakeSnapshots) Save(_ context.Context, q domain.Quote) error {
	f.mu.Lock()
	f.saved[q.Symbol.Ticker] = q
	f.mu.Unlock()
	return nil
}

func (f *fakeSnapshots) Load(context.Context) ([]domain.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	out := make([]domain.Quote, 0, len(f.saved))
	for _, q := range f.saved {
		out = append(out, q)
	}
	return out, nil
}

func stock(ticker string) domain.Symbol {
	return domain.Symbol{Ticker: ticker, Kind: domain.SymbolKindStock}
}

func testPlan(symbols ...domain.Symbol) RefreshPlan {
	return RefreshPlan{
		Symbols:            symbols,
		Interval:           time.Second,
		Timeout:            time.Second,
		MaxRetries:         0,
		StalenessThreshold: 30 * time.Second,
	}
}
