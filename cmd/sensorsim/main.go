package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"smartsense/sensorsim/internal/app"
	"smartsense/sensorsim/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	a, err := app.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init error: %v\n", err)
		os.Exit(1)
	}
	logger := a.Logger()
	logger.Info("sensor service starting",
		"listen", cfg.ListenAddress,
		"collector", cfg.CollectorBaseURL,
		"readingInterval", cfg.ReadingInterval.String(),
		"syncInterval", cfg.SyncInterval.String(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		logger.Error("service terminated", "err", err)
		os.Exit(1)
	}
}
