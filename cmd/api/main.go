package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spacesedan/emotiflow/internal/api"
	"github.com/spacesedan/emotiflow/internal/bootstrap"
	"github.com/spacesedan/emotiflow/internal/logging"
)

func main() {
	cfg, err := bootstrap.LoadConfig(os.Getenv("APP_ENV"))
	if err != nil {
		slog.Error("[Main] Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logging.InitLogger(cfg.LogLevel)

	stack, err := bootstrap.NewStack(cfg)
	if err != nil {
		slog.Error("[Main] Failed to build classifier", slog.String("error", err.Error()))
		os.Exit(1)
	}

	server := api.NewServer(stack.Classifier, api.Options{
		DefaultCredential: cfg.DefaultCredential(),
		Breaker:           stack.Breaker,
		AllowOrigins:      cfg.CORSAllowOrigins,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.WarmUp {
		go server.WarmUp(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Listen(cfg.HTTPAddr)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			slog.Error("[Main] Server stopped", slog.String("error", err.Error()))
			os.Exit(1)
		}
	case <-ctx.Done():
		slog.Info("[Main] Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("[Main] Graceful shutdown failed", slog.String("error", err.Error()))
		}
	}
}
