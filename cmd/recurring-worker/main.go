package main

import (
	"context"
	"os"
	"time"

	"fintrack/internal/app"
	"fintrack/internal/cli"
	"fintrack/internal/log"
)

func main() {
	cfg := cli.MustLoadConfig()
	logger := cli.SetupLogger(cfg, log.ComponentScheduler)

	logger.Info("Starting recurring-worker",
		"run_hour", cfg.RecurringRunHour,
		"allocation_day", cfg.AllocationDay,
		"timezone", cfg.Timezone)

	ctx, cancel := cli.SignalContext(context.Background(), logger)
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize application", "error", err)
		os.Exit(1)
	}

	runner := a.Runner
	if err := runner.Start(ctx); err != nil {
		logger.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Shutting down recurring-worker...")

	err = cli.Shutdown(logger, 30*time.Second, func(ctx context.Context) error {
		if err := runner.Stop(ctx); err != nil {
			return err
		}
		return a.Close(ctx)
	})
	if err != nil {
		os.Exit(1)
	}
}
