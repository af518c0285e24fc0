package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"TechWatchBot/internal/app"
	"TechWatchBot/internal/config"
	"TechWatchBot/internal/logging"
)

// Exit codes: 2 for configuration errors (nothing processed), 1 for run
// failures, 0 for a completed batch even when it produced no new items.
const (
	exitRunFailure = 1
	exitBadConfig  = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("configuration error", "error", err)
		os.Exit(exitBadConfig)
	}

	if err := application.Run(ctx); err != nil {
		logger.Error("application stopped", "error", err)
		os.Exit(exitRunFailure)
	}
}
