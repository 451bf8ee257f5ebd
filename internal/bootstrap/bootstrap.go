package bootstrap

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"tickerfeed/internal/application"
	"tickerfeed/internal/config"
	"tickerfeed/internal/domain"
	"tickerfeed/internal/infrastructure/httpx"
	"tickerfeed/internal/infrastructure/logx"
	"tickerfeed/internal/infrastructure/provider"
	redisstore "tickerfeed/internal/infrastructure/redis"
)

// BuildSource returns the configured quote source.
func BuildSource(cfg config.Config) application.QuoteSource {
	switch cfg.Provider {
	case "fake":
		return provider.NewFake(100.00)
	default:
		return &provider.YahooProvider{
			BaseURL:        cfg.YahooBaseURL,
			Client:         httpx.New(cfg.FetchTimeout),
			MaxConcurrency: cfg.MaxConcurrency,
		}
	}
}

// BuildSnapshots builds the warm-start snapshot store (redis or noop).
func BuildSnapshots(cfg config.Config) (application.SnapshotStore, func(), error) {
	if cfg.SnapshotBackend != "redis" {
		return redisstore.Noop{}, func() {}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	store := redisstore.New(client, cfg.SnapshotTTL)
	return store, func() { _ = client.Close() }, nil
}

// BuildPlan assembles the refresh plan from the recognized config options.
func BuildPlan(cfg config.Config) (application.RefreshPlan, error) {
	symbols := make([]domain.Symbol, 0, len(cfg.StockSymbols)+len(cfg.CryptoSymbols))
	for _, t := range cfg.StockSymbols {
		symbols = append(symbols, domain.Symbol{Ticker: t, Kind: domain.SymbolKindStock})
	}
	for _, t := range cfg.CryptoSymbols {
		symbols = append(symbols, domain.Symbol{Ticker: t, Kind: domain.SymbolKindCrypto})
	}
	return application.RefreshPlan{
		Symbols:            symbols,
		Interval:           cfg.UpdateInterval,
		Timeout:            cfg.FetchTimeout,
		MaxRetries:         cfg.MaxRetries,
		Priority:           cfg.Priority,
		StalenessThreshold: cfg.StalenessThreshold,
	}, nil
}

// BuildCache wires the cache with its source, snapshots and logger.
func BuildCache(cfg config.Config) (*application.QuoteCache, func(), error) {
	plan, err := BuildPlan(cfg)
	if err != nil {
		return nil, func() {}, err
	}
	snapshots, closeSnapshots, err := BuildSnapshots(cfg)
	if err != nil {
		return nil, func() {}, err
	}
	cache, err := application.New(BuildSource(cfg), plan,
		application.WithSnapshotStore(snapshots),
		application.WithLogger(logx.L()),
	)
	if err != nil {
		closeSnapshots()
		return nil, func() {}, fmt.Errorf("build cache: %w", err)
	}
	return cache, closeSnapshots, nil
}
