package main

import (
	"context"
	"errors"
	"os"

	"sfinapp/internal/cli"
	applog "sfinapp/internal/log"
	"sfinapp/internal/worker"
)

func main() {
	cfg, logger := cli.LoadConfig(applog.ComponentWorker)
	logger.Info("Starting sfinapp-worker")

	if !cfg.AMQPEnabled() {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	ctx, stop := cli.SignalContext()
	defer stop()

	b := cli.OpenBackend(ctx, cfg, logger)
	defer func() {
		if err := b.Close(); err != nil {
			logger.Error("Failed to close backend", applog.FieldError, err)
		}
	}()
	if b.Publisher == nil {
		logger.Error("AMQP broker unreachable, cannot consume changes", "queue", cfg.AMQPQueue)
		os.Exit(1)
	}

	changes := worker.NewChangeWorker(b.Repository, b.Versions)

	err := b.Publisher.ConsumeChanges(ctx, changes.HandleChange)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.LogError(context.Background(), "Message consumption failed", err, applog.ErrorTypeNetwork, "consume")
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
