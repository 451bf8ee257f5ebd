package application

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"tickerfeed/internal/domain"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestCache(t *testing.T, src QuoteSource, plan RefreshPlan, clock Clock, opts ...Option) *QuoteCache {
	t.Helper()
	opts = append([]Option{WithClock(clock), WithRetryBase(time.Millisecond)}, opts...)
	c, err := New(src, plan, opts...)
	require.NoError(t, err)
	return c
}

// runTick drives one scheduling tick synchronously.
func runTick(c *QuoteCache) {
	c.tick(context.Background())
	c.fetches.Wait()
}

func Test_Get_NeverFetched_Unknown(t *testing.T) {
	t.Parallel()
	clock := newFakeClock(t0)
	src := newStubSource(clock.Now)
	c := newTestCache(t, src, testPlan(stock("AAPL")), clock)

	l := c.Get("MSFT")
	require.Equal(t, domain.FreshnessUnknown, l.Freshness)
	require.Equal(t, "MSFT", l.Symbol.Ticker)

	// configured but not yet fetched is unknown too
	require.Equal(t, domain.FreshnessUnknown, c.Get("AAPL").Freshness)
}

func Test_Get_FreshUntilThreshold(t *testing.T) {
	t.Parallel()
	clock := newFakeClock(t0)
	src := newStubSource(clock.Now)
	c := newTestCache(t, src, testPlan(stock("AAPL")), clock)

	runTick(c)

	l := c.Get("AAPL")
	require.Equal(t, domain.FreshnessFresh, l.Freshness)
	require.Equal(t, time.Duration(0), l.Age)
	require.True(t, l.Quote.Price.Equal(decimal.RequireFromString("150.25")))

	clock.Advance(30 * time.Second) // exactly at threshold
	require.Equal(t, domain.FreshnessFresh, c.Get("AAPL").Freshness)

	clock.Advance(time.Millisecond)
	l = c.Get("aapl") // lookups are case-insensitive
	require.Equal(t, domain.FreshnessStale, l.Freshness)
	require.True(t, l.Age > 30*time.Second)
}

func Test_Refresh_FailureLeavesPriorEntry(t *testing.T) {
	t.Parallel()
	clock := newFakeClock(t0)
	src := newStubSource(clock.Now)
	plan := testPlan(stock("AAPL"))
	plan.MaxRetries = 2
	c := newTestCache(t, src, plan, clock)

	runTick(c)
	before := c.Get("AAPL").Quote

	src.setErr(fmt.Errorf("%w: boom", domain.ErrFetchFailed))
	runTick(c)

	after := c.Get("AAPL").Quote
	require.True(t, before.Price.Equal(after.Price))
	require.Equal(t, before.FetchedAt, after.FetchedAt)

	f, ok := c.LastFailure("AAPL")
	require.True(t, ok)
	require.Equal(t, 1, f.Count)
	require.Contains(t, f.LastErr, "boom")

	// initial fetch + failing attempt + 2 retries
	require.Equal(t, 4, src.count())
}

func Test_Refresh_PartialFailure(t *testing.T) {
	t.Parallel()
	clock := newFakeClock(t0)
	src := newStubSource(clock.Now)
	src.fail["MSFT"] = -1
	plan := testPlan(stock("AAPL"), stock("MSFT"))
	plan.MaxRetries = 1
	c := newTestCache(t, src, plan, clock)

	runTick(c)

	require.Equal(t, domain.FreshnessFresh, c.Get("AAPL").Freshness)
	require.Equal(t, domain.FreshnessUnknown, c.Get("MSFT").Freshness)
	_, ok := c.LastFailure("MSFT")
	require.True(t, ok)
	_, ok = c.LastFailure("AAPL")
	require.False(t, ok)

	// the retry carried only the failed symbol
	require.Equal(t, []string{"MSFT"}, src.lastBatch())
}

func Test_Refresh_PartialFailure_RetrySucceeds(t *testing.T) {
	t.Parallel()
	clock := newFakeClock(t0)
	src := newStubSource(clock.Now)
	src.fail["MSFT"] = 1 // fail once, then succeed
	plan := testPlan(stock("AAPL"), stock("MSFT"))
	plan.MaxRetries = 3
	c := newTestCache(t, src, plan, clock)

	runTick(c)

	require.Equal(t, domain.FreshnessFresh, c.Get("AAPL").Freshness)
	require.Equal(t, domain.FreshnessFresh, c.Get("MSFT").Freshness)
	_, ok := c.LastFailure("MSFT")
	require.False(t, ok)
	require.Equal(t, 2, src.count())
}

func Test_Refresh_StaleScenario_TimeoutNeverUnknown(t *testing.T) {
	t.Parallel()
	clock := newFakeClock(t0)
	src := newStubSource(clock.Now)
	plan := RefreshPlan{
		Symbols:            []domain.Symbol{{Ticker: "BTC", Kind: domain.SymbolKindCrypto}},
		Interval:           time.Second,
		Timeout:            time.Second,
		MaxRetries:         5,
		StalenessThreshold: 10 * time.Second,
	}
	c := newTestCache(t, src, plan, clock)

	runTick(c) // seed the cache
	seeded := c.Get("BTC").Quote

	src.setErr(fmt.Errorf("%w: BTC", domain.ErrFetchTimeout))
	runTick(c) // 1 attempt + 5 retries, all timing out

	require.Equal(t, 7, src.count())
	l := c.Get("BTC")
	require.NotEqual(t, domain.FreshnessUnknown, l.Freshness)
	require.True(t, seeded.Price.Equal(l.Quote.Price))
	require.Equal(t, seeded.FetchedAt, l.Quote.FetchedAt)

	clock.Advance(time.Minute)
	l = c.Get("BTC")
	require.Equal(t, domain.FreshnessStale, l.Freshness)
	require.True(t, seeded.Price.Equal(l.Quote.Price))
}

func Test_Commit_FetchedAtMonotonic(t *testing.T) {
	t.Parallel()
	clock := newFakeClock(t0)
	src := newStubSource(clock.Now)
	c := newTestCache(t, src, testPlan(stock("AAPL")), clock)

	newer := domain.Quote{Symbol: stock("AAPL"), Price: decimal.RequireFromString("151.00"), FetchedAt: t0.Add(time.Minute)}
	older := domain.Quote{Symbol: stock("AAPL"), Price: decimal.RequireFromString("150.00"), FetchedAt: t0}

	ctx := context.Background()
	c.commit(ctx, newer)
	c.commit(ctx, older)

	got := c.Get("AAPL").Quote
	require.True(t, newer.Price.Equal(got.Price))
	require.Equal(t, newer.FetchedAt, got.FetchedAt)
}

func Test_Tick_NoOverlappingFetchPerSymbol(t *testing.T) {
	t.Parallel()
	clock := newFakeClock(t0)
	src := newStubSource(clock.Now)
	src.setDelay(50 * time.Millisecond)
	c := newTestCache(t, src, testPlan(stock("AAPL"), stock("MSFT")), clock)

	ctx := context.Background()
	c.tick(ctx)
	c.tick(ctx) // first fetch still in flight; both symbols must be skipped
	c.tick(ctx)
	c.fetches.Wait()

	require.False(t, src.overlapped())
	require.Equal(t, 1, src.count())

	// released after the job finished, so the next tick fetches again
	c.tick(ctx)
	c.fetches.Wait()
	require.Equal(t, 2, src.count())
}

func Test_Configure_ReplacesPlan(t *testing.T) {
	t.Parallel()
	clock := newFakeClock(t0)
	src := newStubSource(clock.Now)
	c := newTestCache(t, src, testPlan(stock("AAPL")), clock)

	err := c.Configure(testPlan(stock("NVDA"), stock("INTC")))
	require.NoError(t, err)

	runTick(c)
	require.Equal(t, domain.FreshnessUnknown, c.Get("AAPL").Freshness)
	require.Equal(t, domain.FreshnessFresh, c.Get("NVDA").Freshness)
	require.Equal(t, domain.FreshnessFresh, c.Get("INTC").Freshness)
}

func Test_Configure_InvalidRejected(t *testing.T) {
	t.Parallel()
	clock := newFakeClock(t0)
	src := newStubSource(clock.Now)
	c := newTestCache(t, src, testPlan(stock("AAPL")), clock)

	bad := testPlan(domain.Symbol{Ticker: "not a ticker!", Kind: domain.SymbolKindStock})
	err := c.Configure(bad)
	require.ErrorIs(t, err, ErrInvalidPlan)

	// the active plan is untouched
	require.Equal(t, "AAPL", c.Plan().Symbols[0].Ticker)
}

func Test_Snapshots_SavedOnCommitAndRestored(t *testing.T) {
	t.Parallel()
	clock := newFakeClock(t0)
	src := newStubSource(clock.Now)
	snaps := newFakeSnapshots()
	c := newTestCache(t, src, testPlan(stock("AAPL")), clock, WithSnapshotStore(snaps))

	runTick(c)
	require.Contains(t, snaps.saved, "AAPL")

	// a second cache warm-starts from the same store
	c2 := newTestCache(t, newStubSource(clock.Now), testPlan(stock("AAPL")), clock, WithSnapshotStore(snaps))
	require.NoError(t, c2.WarmStart(context.Background()))

	clock.Advance(time.Hour)
	l := c2.Get("AAPL")
	require.Equal(t, domain.FreshnessStale, l.Freshness)
	require.True(t, l.Quote.Price.Equal(decimal.RequireFromString("150.25")))
}

func Test_Plan_ExposesPriority(t *testing.T) {
	t.Parallel()
	clock := newFakeClock(t0)
	src := newStubSource(clock.Now)
	plan := testPlan(stock("AAPL"))
	plan.Priority = 7
	c := newTestCache(t, src, plan, clock)

	require.Equal(t, 7, c.Plan().Priority)
}
