package application

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"tickerfeed/internal/domain"
)

const (
	// Interval is how often we try; StalenessThreshold is how old data may
	// get before the consumer is told it is stale. They are independent.
	MinRefreshInterval = 1 * time.Second
	MaxRefreshInterval = 1 * time.Hour

	DefaultFetchTimeout = 10 * time.Second
	MaxFetchRetries     = 10

	MinPriority = 0
	MaxPriority = 100

	// Default threshold when none is configured: tolerate a couple of
	// missed refresh cycles before flagging data as stale.
	defaultStalenessFactor = 3
)

// RefreshPlan is the full configuration of the background refresh task.
// A plan lives from Configure to Configure; ID correlates its log lines.
type RefreshPlan struct {
	ID                 string
	Symbols            []domain.Symbol
	Interval           time.Duration
	Timeout            time.Duration
	MaxRetries         int
	Priority           int
	StalenessThreshold time.Duration
}

// normalized validates symbols and clamps numeric fields into documented
// bounds. Bad symbols are rejected, out-of-range durations repaired, so
// misconfiguration surfaces here and never at fetch time.
func (p RefreshPlan) normalized() (RefreshPlan, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	syms := make([]domain.Symbol, 0, len(p.Symbols))
	seen := make(map[string]struct{}, len(p.Symbols))
	for _, s := range p.Symbols {
		ns, err := domain.NewSymbol(s.Ticker, s.Kind)
		if err != nil {
			return p, fmt.Errorf("%w: %v", ErrInvalidPlan, err)
		}
		if _, dup := seen[ns.Ticker]; dup {
			return p, fmt.Errorf("%w: duplicate symbol %s", ErrInvalidPlan, ns.Ticker)
		}
		seen[ns.Ticker] = struct{}{}
		syms = append(syms, ns)
	}
	p.Symbols = syms

	if p.Interval < MinRefreshInterval {
		p.Interval = MinRefreshInterval
	}
	if p.Interval > MaxRefreshInterval {
		p.Interval = MaxRefreshInterval
	}
	if p.Timeout <= 0 {
		p.Timeout = DefaultFetchTimeout
	}
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.MaxRetries > MaxFetchRetries {
		p.MaxRetries = MaxFetchRetries
	}
	if p.Priority < MinPriority {
		p.Priority = MinPriority
	}
	if p.Priority > MaxPriority {
		p.Priority = MaxPriority
	}
	if p.StalenessThreshold <= 0 {
		p.StalenessThreshold = defaultStalenessFactor * p.Interval
	}
	return p, nil
}
