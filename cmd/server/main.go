package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nthlam/WEB-NOVA-SCI/internal/app"
	"github.com/nthlam/WEB-NOVA-SCI/internal/config"
	"github.com/nthlam/WEB-NOVA-SCI/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New("webnova-orders", cfg.LogLevel)
	log.Info("starting ordering service",
		slog.String("environment", cfg.Environment),
		slog.Int("http_port", cfg.HTTPPort),
	)

	application, err := app.NewApp(cfg, log)
	if err != nil {
		return fmt.Errorf("initialize application: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Run blocks until the context is canceled and shutdown completes.
	if err := application.Run(ctx); err != nil {
		return fmt.Errorf("application error: %w", err)
	}

	log.Info("ordering service stopped")
	return nil
}
