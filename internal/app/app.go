// Package app builds the ledger, its cascades and the optional integrations
// from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/cache"
	"fintrack/internal/config"
	"fintrack/internal/currency"
	"fintrack/internal/log"
	"fintrack/internal/scheduler"
	"fintrack/internal/services"
	"fintrack/internal/sheets"
	gsheet "fintrack/internal/sheets/google"
	"fintrack/internal/sheets/memory"
	"fintrack/internal/storage"

	"github.com/redis/go-redis/v9"
)

// Scheduled job names, shared by the worker and the CLI.
const (
	JobRecurrence = "recurrence"
	JobAllocation = "allocation"
)

const (
	rateCachePrefix = "fintrack:rates:"
	lockPrefix      = "fintrack:lock:"
	cleanupInterval = 10 * time.Minute
)

// App holds every wired component. Optional integrations are nil when not
// configured.
type App struct {
	Config *config.Config
	Logger *log.Logger

	Repo          *storage.SQLiteRepository
	Converter     *currency.HTTPConverter
	Notifications *services.NotificationService
	Notices       *services.NotificationQueue
	Reports       *services.ReportService
	Goals         *services.GoalService
	Budgets       *services.BudgetService
	Ledger        *services.Ledger
	Recurrence    *services.RecurrenceEngine
	Allocator     *services.SavingsAllocator

	AMQP   *amqp.Client
	Redis  *redis.Client
	Locker scheduler.Locker
	// Runner guards every job run, scheduled or started from the CLI.
	Runner *scheduler.Runner

	caches  *cache.Manager
	closers []func() error
}

// New opens storage and wires the services. Redis and AMQP failures are
// logged and the process continues without them.
func New(ctx context.Context, cfg *config.Config, logger *log.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app config is nil")
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	a := &App{Config: cfg, Logger: logger.WithComponent(log.ComponentApp)}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath, storage.WithTimeout(cfg.StorageTimeout))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	a.Repo = repo
	a.closers = append(a.closers, repo.Close)

	if cfg.RedisURL != "" {
		client, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			a.Logger.Warn("Failed to connect to Redis, using in-process rate cache", "error", err)
		} else {
			a.Redis = client
			a.Locker = scheduler.NewRedisLocker(client, lockPrefix)
			a.closers = append(a.closers, client.Close)
		}
	}
	a.Converter = currency.NewHTTPConverter(cfg.ExchangeRateURL, cfg.ExchangeRateTimeout,
		currency.WithCache(a.rateCache()))

	var publisher services.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			a.Logger.Warn("Failed to initialize AMQP client, continuing without ledger events", "error", err)
		} else {
			a.AMQP = client
			publisher = client
			a.closers = append(a.closers, client.Close)
			a.Logger.Info("Initialized AMQP client",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
		}
	}

	a.Notifications = services.NewNotificationService(repo, repo)
	a.Notices = services.NewNotificationQueue(a.Notifications, cfg.NotificationWindow)
	a.Reports = services.NewReportService(repo, cfg.ConflictRetries)
	a.Goals = services.NewGoalService(repo, cfg.ConflictRetries)
	a.Budgets = services.NewBudgetService(repo, a.Notifications, cfg.ConflictRetries)
	a.Ledger = services.NewLedger(services.LedgerDeps{
		Transactions: repo,
		Users:        repo,
		References:   repo,
		Converter:    a.Converter,
		Goals:        a.Goals,
		Budgets:      a.Budgets,
		Reports:      a.Reports,
		Publisher:    publisher,
	})
	a.Recurrence = services.NewRecurrenceEngine(services.RecurrenceDeps{
		Transactions: repo,
		Goals:        a.Goals,
		Budgets:      a.Budgets,
		Reports:      a.Reports,
		Notices:      a.Notices,
		Publisher:    publisher,
		BatchSize:    cfg.RecurringBatchSize,
	})
	a.Allocator = services.NewSavingsAllocator(repo, repo, a.Ledger, cfg.SavingsGoalMarker, cfg.AllocationConcurrency)

	if a.Locker == nil {
		a.Locker = scheduler.NewStoreLocker(repo)
	}
	a.Runner, err = scheduler.NewRunner(a.Jobs(),
		scheduler.WithLocation(cfg.Location()),
		scheduler.WithLocker(a.Locker, scheduler.DefaultLockTTL))
	if err != nil {
		_ = a.Close(ctx)
		return nil, fmt.Errorf("failed to build scheduler: %w", err)
	}

	a.Logger.Info("Initialized ledger",
		"db_path", cfg.SQLiteDBPath,
		"amqp_enabled", a.AMQP != nil,
		"redis_enabled", a.Redis != nil)
	return a, nil
}

// rateCache prefers Redis so every process shares fetched rate tables.
func (a *App) rateCache() cache.Cache[currency.RateTable] {
	if a.Redis != nil {
		return cache.NewRedis[currency.RateTable](a.Redis, rateCachePrefix, a.Config.RateCacheTTL)
	}
	lru := cache.NewLRUCache[currency.RateTable](a.Config.RateCacheSize, a.Config.RateCacheTTL)
	a.caches = cache.NewManager()
	a.caches.Register(lru)
	a.caches.StartCleanup(cleanupInterval)
	return lru
}

// Exporter returns the ledger export sink: Google Sheets when configured,
// otherwise an in-memory store.
func (a *App) Exporter(ctx context.Context) (sheets.LedgerExporter, error) {
	if !a.Config.SheetsEnabled() {
		a.Logger.Warn("Google Sheets not configured, exporting to memory")
		return memory.New(), nil
	}
	cli, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   a.Config.GoogleSpreadsheetID,
		SheetName:       a.Config.GoogleSheetName,
		CredentialsJSON: a.Config.GoogleServiceAccountJSON,
		CredentialsFile: a.Config.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	a.Logger.Info("Initialized Google Sheets exporter",
		"spreadsheet_id", a.Config.GoogleSpreadsheetID)
	return cli, nil
}

// Jobs returns the scheduled jobs: recurrence expansion daily and savings
// allocation monthly, both at the configured hour.
func (a *App) Jobs() []scheduler.Job {
	return []scheduler.Job{
		{
			Name:       JobRecurrence,
			Spec:       scheduler.DailySpec(a.Config.RecurringRunHour),
			RunOnStart: true,
			Run: func(ctx context.Context) error {
				_, err := a.Recurrence.RunOnce(ctx)
				return err
			},
		},
		{
			Name: JobAllocation,
			Spec: scheduler.MonthlySpec(a.Config.AllocationDay, a.Config.RecurringRunHour),
			Run: func(ctx context.Context) error {
				_, err := a.Allocator.RunOnce(ctx)
				return err
			},
		},
	}
}

// RunRecurrence expands due recurring transactions now, unless a run is
// already in flight anywhere the lock reaches.
func (a *App) RunRecurrence(ctx context.Context) (services.RunResult, error) {
	var res services.RunResult
	err := a.Runner.Do(ctx, JobRecurrence, func(ctx context.Context) error {
		var err error
		res, err = a.Recurrence.RunOnce(ctx)
		return err
	})
	return res, err
}

// RunAllocation sweeps monthly savings now under the same guard as the
// scheduled run.
func (a *App) RunAllocation(ctx context.Context) (services.AllocationResult, error) {
	var res services.AllocationResult
	err := a.Runner.Do(ctx, JobAllocation, func(ctx context.Context) error {
		var err error
		res, err = a.Allocator.RunOnce(ctx)
		return err
	})
	return res, err
}

// Close flushes pending notifications and releases resources in reverse
// order of acquisition.
func (a *App) Close(ctx context.Context) error {
	if a.Notices != nil {
		if n := a.Notices.Pending(); n > 0 {
			a.Logger.Info("Flushing pending notifications", "count", n)
		}
		a.Notices.Flush(ctx)
	}
	if a.caches != nil {
		a.caches.Stop()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
