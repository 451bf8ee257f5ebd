package redisstore

import (
	"context"

	"tickerfeed/internal/domain"
)

// Noop discards snapshots; used when Redis is disabled.
type Noop struct{}

func (Noop) Save(context.Context, domain.Quote) error { return nil }

func (Noop) Load(context.Context) ([]domain.Quote, error) { return nil, nil }
