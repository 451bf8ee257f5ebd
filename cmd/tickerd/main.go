package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"tickerfeed/internal/bootstrap"
	"tickerfeed/internal/config"
	httpserver "tickerfeed/internal/infrastructure/http"
	"tickerfeed/internal/infrastructure/logx"
)

func init() { _ = godotenv.Load() }

func main() {
	logger := logx.L()
	cfg := config.Load()
	addr := ":" + cfg.Port

	cache, cleanup, err := bootstrap.BuildCache(cfg)
	if err != nil {
		logger.Fatal("bootstrap cache", zap.Error(err))
	}
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := cache.WarmStart(ctx); err != nil {
		logger.Warn("warm start failed", zap.Error(err))
	}
	go cache.Start(ctx)

	srv := httpserver.NewServer(cache)
	server := &http.Server{
		Addr:    addr,
		Handler: httpserver.NewRouter(srv),
	}

	go func() {
		logger.Info("server started", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, shCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shCancel()
	if err := cache.Shutdown(shutdownCtx); err != nil {
		logger.Warn("cache shutdown", zap.Error(err))
	}
	_ = server.Shutdown(shutdownCtx)
	logger.Info("server stopped")
}
