package application

import (
	"context"
	"time"

	"tickerfeed/internal/domain"
)

// QuoteSource is the injected market-data collaborator. Fetch returns the
// quotes it obtained keyed by ticker; when only part of the batch succeeded
// the map holds the succeeded subset and the error is a
// *domain.PartialFailure carrying per-symbol causes.
type QuoteSource interface {
	Fetch(ctx context.Context, symbols []domain.Symbol) (map[string]domain.Quote, error)
}

// SnapshotStore persists last-known quotes so a restarted process can serve
// stale data instead of nothing until the first fetch lands.
type SnapshotStore interface {
	Save(ctx context.Context, q domain.Quote) error
	Load(ctx context.Context) ([]domain.Quote, error)
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }
