package main

import (
	"context"
	"errors"
	"os"
	"time"

	"fintrack/internal/app"
	"fintrack/internal/cli"
	"fintrack/internal/log"
	"fintrack/internal/worker"
)

func main() {
	cfg := cli.MustLoadConfig()
	logger := cli.SetupLogger(cfg, log.ComponentExport)

	logger.Info("Starting export-worker")

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the export worker")
		os.Exit(1)
	}

	ctx, cancel := cli.SignalContext(context.Background(), logger)
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize application", "error", err)
		os.Exit(1)
	}
	if a.AMQP == nil {
		logger.Error("AMQP client unavailable, cannot consume ledger events")
		_ = a.Close(ctx)
		os.Exit(1)
	}

	exporter, err := a.Exporter(ctx)
	if err != nil {
		logger.Error("Failed to initialize exporter", "error", err)
		_ = a.Close(ctx)
		os.Exit(1)
	}
	exportWorker := worker.NewExportWorker(a.Repo, exporter, cfg.RecurringBatchSize)

	err = a.AMQP.ConsumeLedgerEvents(ctx, exportWorker.HandleLedgerEvent)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", "error", err)
	}

	logger.Info("Shutting down export-worker...")
	if err := cli.Shutdown(logger, 30*time.Second, a.Close); err != nil {
		os.Exit(1)
	}
}
