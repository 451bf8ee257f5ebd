package application

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"tickerfeed/internal/domain"
)

// Lookup is the result of a non-blocking cache read. Absence of data is a
// normal result (FreshnessUnknown), never an error.
type Lookup struct {
	Symbol    domain.Symbol
	Quote     domain.Quote
	Age       time.Duration
	Freshness domain.Freshness
}

// FetchFailure is the per-symbol record kept after a refresh job exhausted
// its retry budget. The cached entry itself is left untouched.
type FetchFailure struct {
	Count   int
	LastErr string
	At      time.Time
}

// QuoteCache is a bounded-staleness read-through cache over a QuoteSource.
// Reads never touch the network; a background refresh task repopulates the
// entries on a timer. One instance is shared by the display consumer and
// the refresh task; lifecycle is Start / Shutdown, not a process singleton.
type QuoteCache struct {
	source    QuoteSource
	snapshots SnapshotStore
	clock     Clock
	log       *zap.Logger
	retryBase time.Duration

	mu       sync.RWMutex
	plan     RefreshPlan
	entries  map[string]domain.Quote
	inflight map[string]struct{}
	failures map[string]FetchFailure

	// replan wakes the refresh loop so an interval change reschedules the
	// ticker instead of waiting out the pending tick.
	replan chan struct{}

	runMu   sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool
	fetches sync.WaitGroup
}

type Option func(*QuoteCache)

func WithClock(c Clock) Option                 { return func(q *QuoteCache) { q.clock = c } }
func WithLogger(l *zap.Logger) Option          { return func(q *QuoteCache) { q.log = l } }
func WithSnapshotStore(s SnapshotStore) Option { return func(q *QuoteCache) { q.snapshots = s } }

// WithRetryBase overrides the initial retry backoff interval.
func WithRetryBase(d time.Duration) Option { return func(q *QuoteCache) { q.retryBase = d } }

func New(source QuoteSource, plan RefreshPlan, opts ...Option) (*QuoteCache, error) {
	norm, err := plan.normalized()
	if err != nil {
		return nil, err
	}
	c := &QuoteCache{
		source:    source,
		plan:      norm,
		entries:   make(map[string]domain.Quote),
		inflight:  make(map[string]struct{}),
		failures:  make(map[string]FetchFailure),
		replan:    make(chan struct{}, 1),
		retryBase: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.clock == nil {
		c.clock = realClock{}
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	return c, nil
}

// Get returns the most recent cached quote for ticker together with its age
// and freshness classification. It holds the read lock only for the map
// lookup and never blocks on I/O.
func (c *QuoteCache) Get(ticker string) Lookup {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	now := c.clock.Now()

	c.mu.RLock()
	q, ok := c.entries[t]
	threshold := c.plan.StalenessThreshold
	c.mu.RUnlock()

	if !ok {
		return Lookup{Symbol: domain.Symbol{Ticker: t}, Freshness: domain.FreshnessUnknown}
	}
	age := now.Sub(q.FetchedAt)
	if age < 0 {
		age = 0
	}
	fr := domain.FreshnessFresh
	if age > threshold {
		fr = domain.FreshnessStale
	}
	return Lookup{Symbol: q.Symbol, Quote: q, Age: age, Freshness: fr}
}

// Lookups returns one Lookup per configured symbol in plan order.
func (c *QuoteCache) Lookups() []Lookup {
	plan := c.Plan()
	out := make([]Lookup, 0, len(plan.Symbols))
	for _, s := range plan.Symbols {
		out = append(out, c.Get(s.Ticker))
	}
	return out
}

// Configure replaces the active refresh plan. The replacement is validated
// synchronously; the refresh loop is woken so a changed interval reschedules
// the ticker immediately rather than after the pending tick fires.
func (c *QuoteCache) Configure(plan RefreshPlan) error {
	norm, err := plan.normalized()
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.plan = norm
	c.mu.Unlock()
	select {
	case c.replan <- struct{}{}:
	default:
	}
	c.log.Info("plan_replaced",
		zap.String("plan_id", norm.ID),
		zap.Int("symbols", len(norm.Symbols)),
		zap.Duration("interval", norm.Interval),
		zap.Int("priority", norm.Priority),
	)
	return nil
}

// Plan returns a copy of the active plan. Priority is carried here for an
// external scheduler to read; the cache applies no priority logic itself.
func (c *QuoteCache) Plan() RefreshPlan {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p := c.plan
	p.Symbols = append([]domain.Symbol(nil), c.plan.Symbols...)
	return p
}

// LastFailure reports the failure record for ticker, if a refresh job has
// exhausted its retries since the last successful fetch.
func (c *QuoteCache) LastFailure(ticker string) (FetchFailure, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.failures[strings.ToUpper(ticker)]
	return f, ok
}

// WarmStart seeds the cache from the snapshot store. Restored entries keep
// their original FetchedAt, so they classify as stale rather than unknown.
func (c *QuoteCache) WarmStart(ctx context.Context) error {
	if c.snapshots == nil {
		return nil
	}
	quotes, err := c.snapshots.Load(ctx)
	if err != nil {
		return fmt.Errorf("warm start: %w", err)
	}
	c.mu.Lock()
	restored := 0
	for _, q := range quotes {
		t := q.Symbol.Ticker
		if cur, ok := c.entries[t]; ok && !q.FetchedAt.After(cur.FetchedAt) {
			continue
		}
		c.entries[t] = q
		restored++
	}
	c.mu.Unlock()
	c.log.Info("warm_start", zap.Int("restored", restored))
	return nil
}

// commit atomically replaces the entry for q's symbol. FetchedAt is
// monotonically non-decreasing per symbol; an older quote never overwrites
// a newer one.
func (c *QuoteCache) commit(ctx context.Context, q domain.Quote) {
	t := q.Symbol.Ticker
	c.mu.Lock()
	if cur, ok := c.entries[t]; ok && q.FetchedAt.Before(cur.FetchedAt) {
		c.mu.Unlock()
		return
	}
	c.entries[t] = q
	delete(c.failures, t)
	c.mu.Unlock()

	if c.snapshots != nil {
		sctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := c.snapshots.Save(sctx, q); err != nil {
			c.log.Warn("snapshot_save_failed", zap.String("symbol", t), zap.Error(err))
		}
	}
}
