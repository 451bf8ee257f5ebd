package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"tickerfeed/internal/domain"
)

// Start runs the background refresh loop until ctx is canceled or Shutdown
// is called. It blocks; run it on its own goroutine. After Shutdown, Start
// returns immediately.
func (c *QuoteCache) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.runMu.Lock()
	if c.stopped || c.done != nil {
		c.runMu.Unlock()
		cancel()
		return
	}
	done := make(chan struct{})
	c.cancel, c.done = cancel, done
	c.runMu.Unlock()
	defer close(done)

	interval := c.Plan().Interval
	t := time.NewTicker(interval)
	defer t.Stop()

	c.log.Info("refresh_started", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			c.log.Info("refresh_stopped")
			return
		case <-c.replan:
			if cur := c.Plan().Interval; cur != interval {
				interval = cur
				t.Reset(interval)
			}
		case <-t.C:
			c.tick(ctx)
		}
	}
}

// Shutdown stops the refresh loop and waits for in-flight fetch jobs to
// finish committing. The wait is bounded by ctx, or by the plan timeout
// when ctx carries no deadline. Shutdown is terminal: a Start racing it,
// or called afterwards, returns without running the loop.
func (c *QuoteCache) Shutdown(ctx context.Context) error {
	c.runMu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.stopped = true
	c.runMu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()

	if _, ok := ctx.Deadline(); !ok {
		var cancelWait context.CancelFunc
		ctx, cancelWait = context.WithTimeout(ctx, c.Plan().Timeout)
		defer cancelWait()
	}

	finished := make(chan struct{})
	go func() {
		<-done
		c.fetches.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		c.log.Info("cache_stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown: %w", ctx.Err())
	}
}

// tick claims every configured symbol that is not already mid-fetch and
// launches one refresh job per symbol kind. Claimed symbols stay marked
// until their job releases them, so a slow job never overlaps the next
// tick's fetch of the same symbol.
func (c *QuoteCache) tick(ctx context.Context) {
	plan := c.Plan()
	for _, batch := range c.claim(plan.Symbols) {
		batch := batch
		c.fetches.Add(1)
		go func() {
			defer c.fetches.Done()
			c.refresh(ctx, plan, batch)
		}()
	}
}

func (c *QuoteCache) claim(symbols []domain.Symbol) [][]domain.Symbol {
	byKind := make(map[domain.SymbolKind][]domain.Symbol)
	c.mu.Lock()
	for _, s := range symbols {
		if _, busy := c.inflight[s.Ticker]; busy {
			continue
		}
		c.inflight[s.Ticker] = struct{}{}
		byKind[s.Kind] = append(byKind[s.Kind], s)
	}
	c.mu.Unlock()

	out := make([][]domain.Symbol, 0, len(byKind))
	for _, batch := range byKind {
		out = append(out, batch)
	}
	return out
}

func (c *QuoteCache) release(symbols []domain.Symbol) {
	c.mu.Lock()
	for _, s := range symbols {
		delete(c.inflight, s.Ticker)
	}
	c.mu.Unlock()
}

// refresh fetches one batch, committing whatever succeeds and retrying the
// failed remainder up to plan.MaxRetries. Shutdown stops further retries
// but lets the attempt in progress finish and commit; each attempt is
// bounded by plan.Timeout either way.
func (c *QuoteCache) refresh(ctx context.Context, plan RefreshPlan, symbols []domain.Symbol) {
	defer c.release(symbols)

	base := context.WithoutCancel(ctx)
	remaining := symbols

	attempt := func() error {
		fctx, cancel := context.WithTimeout(base, plan.Timeout)
		defer cancel()
		got, err := c.source.Fetch(fctx, remaining)
		for _, q := range got {
			c.commit(base, q)
		}
		remaining = without(remaining, got)
		if len(remaining) == 0 {
			return nil
		}
		if err == nil {
			err = fmt.Errorf("%w: %d symbols missing from response", domain.ErrFetchFailed, len(remaining))
		}
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryBase
	bo.MaxElapsedTime = 0
	err := backoff.Retry(attempt, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(plan.MaxRetries)), ctx))
	if err == nil {
		c.log.Debug("refresh_done", zap.String("plan_id", plan.ID), zap.Int("symbols", len(symbols)))
		return
	}
	c.recordFailures(remaining, err)
	c.log.Warn("refresh_failed",
		zap.String("plan_id", plan.ID),
		zap.Int("failed", len(remaining)),
		zap.Error(err),
	)
}

func (c *QuoteCache) recordFailures(symbols []domain.Symbol, err error) {
	perSymbol := map[string]error{}
	var pf *domain.PartialFailure
	if errors.As(err, &pf) {
		perSymbol = pf.Failed
	}
	now := c.clock.Now()
	c.mu.Lock()
	for _, s := range symbols {
		cause := err
		if e, ok := perSymbol[s.Ticker]; ok {
			cause = e
		}
		f := c.failures[s.Ticker]
		f.Count++
		f.LastErr = cause.Error()
		f.At = now
		c.failures[s.Ticker] = f
	}
	c.mu.Unlock()
}

func without(symbols []domain.Symbol, got map[string]domain.Quote) []domain.Symbol {
	out := symbols[:0:0]
	for _, s := range symbols {
		if _, ok := got[s.Ticker]; !ok {
			out = append(out, s)
		}
	}
	return out
}
