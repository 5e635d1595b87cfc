package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/utafrali/stripe-gateway/internal/app"
	"github.com/utafrali/stripe-gateway/internal/config"
	"github.com/utafrali/stripe-gateway/pkg/logger"
)

func main() {
	// Load configuration from the environment and settings file.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.New(cfg.Tracing.ServiceName, cfg.LogLevel)
	log.Info("starting stripe gateway",
		slog.String("environment", cfg.Environment),
		slog.String("provider", cfg.Provider),
		slog.Int("http_port", cfg.HTTPPort),
	)

	application, err := app.NewApp(cfg, log)
	if err != nil {
		log.Error("failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Create a context that is canceled on SIGINT or SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := application.Run(ctx); err != nil {
		log.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info("stripe gateway stopped")
}
