package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fintrack/internal/log"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	// Database
	SQLiteDBPath   string        `env:"SQLITE_DB_PATH" envDefault:"./data/fintrack.db"`
	StorageTimeout time.Duration `env:"STORAGE_TIMEOUT" envDefault:"5s"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	// Exchange rates
	ExchangeRateURL     string        `env:"EXCHANGE_RATE_URL" envDefault:"https://open.er-api.com/v6/latest/"`
	ExchangeRateTimeout time.Duration `env:"EXCHANGE_RATE_TIMEOUT" envDefault:"10s"`
	RateCacheTTL        time.Duration `env:"RATE_CACHE_TTL" envDefault:"1h"`
	RateCacheSize       int           `env:"RATE_CACHE_SIZE" envDefault:"64"`

	// Redis (optional): shared rate cache and scheduler lock
	RedisURL string `env:"REDIS_URL"`

	// AMQP (optional): ledger event publishing
	AMQPURL      string `env:"AMQP_URL"`
	AMQPExchange string `env:"AMQP_EXCHANGE" envDefault:"fintrack"`
	AMQPQueue    string `env:"AMQP_QUEUE" envDefault:"ledger_export"`

	// Google Sheets (optional): ledger export
	GoogleSpreadsheetID      string `env:"GOOGLE_SPREADSHEET_ID"`
	GoogleSheetName          string `env:"GOOGLE_SHEET_NAME" envDefault:"Ledger"`
	GoogleServiceAccountJSON string `env:"GOOGLE_SERVICE_ACCOUNT_JSON"`
	GoogleServiceAccountFile string `env:"GOOGLE_SERVICE_ACCOUNT_FILE"`

	// Scheduled jobs
	RecurringBatchSize    int           `env:"RECURRING_BATCH_SIZE" envDefault:"100"`
	RecurringRunHour      int           `env:"RECURRING_RUN_HOUR" envDefault:"0"`
	AllocationDay         int           `env:"ALLOCATION_DAY" envDefault:"1"`
	AllocationConcurrency int           `env:"ALLOCATION_CONCURRENCY" envDefault:"4"`
	NotificationWindow    time.Duration `env:"NOTIFICATION_WINDOW" envDefault:"300ms"`
	ConflictRetries       int           `env:"CONFLICT_RETRIES" envDefault:"3"`
	Timezone              string        `env:"TIMEZONE" envDefault:"UTC"`
	SavingsGoalMarker     string        `env:"SAVINGS_GOAL_MARKER" envDefault:"Automatic savings allocation"`
}

// Load reads an optional .env file and parses the environment.
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Location returns the configured time zone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SheetsEnabled reports whether ledger export to Google Sheets is configured.
func (c *Config) SheetsEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}
	if c.StorageTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid storage timeout %v: must be positive", c.StorageTimeout))
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	if parsedURL, err := url.Parse(c.ExchangeRateURL); err != nil || c.ExchangeRateURL == "" {
		errors = append(errors, fmt.Sprintf("invalid exchange rate URL '%s'", c.ExchangeRateURL))
	} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		errors = append(errors, fmt.Sprintf("invalid exchange rate URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
	}
	if c.ExchangeRateTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid exchange rate timeout %v: must be positive", c.ExchangeRateTimeout))
	}
	if c.RateCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid rate cache TTL %v: must not be negative", c.RateCacheTTL))
	}
	if c.RateCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate cache size %d: must be at least 1", c.RateCacheSize))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.SheetsEnabled() {
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when a spreadsheet ID is set")
		}
		hasFile := c.GoogleServiceAccountFile != ""
		if !hasFile && c.GoogleServiceAccountJSON == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided for sheets export")
		}
		if hasFile {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if c.RecurringBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid recurring batch size %d: must be at least 1", c.RecurringBatchSize))
	} else if c.RecurringBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid recurring batch size %d: must be at most 1000", c.RecurringBatchSize))
	}
	if c.RecurringRunHour < 0 || c.RecurringRunHour > 23 {
		errors = append(errors, fmt.Sprintf("invalid recurring run hour %d: must be between 0 and 23", c.RecurringRunHour))
	}
	if c.AllocationDay < 1 || c.AllocationDay > 28 {
		errors = append(errors, fmt.Sprintf("invalid allocation day %d: must be between 1 and 28", c.AllocationDay))
	}
	if c.AllocationConcurrency < 1 {
		errors = append(errors, fmt.Sprintf("invalid allocation concurrency %d: must be at least 1", c.AllocationConcurrency))
	}
	if c.NotificationWindow < 0 {
		errors = append(errors, fmt.Sprintf("invalid notification window %v: must not be negative", c.NotificationWindow))
	}
	if c.ConflictRetries < 1 || c.ConflictRetries > 10 {
		errors = append(errors, fmt.Sprintf("invalid conflict retries %d: must be between 1 and 10", c.ConflictRetries))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}
	if strings.TrimSpace(c.SavingsGoalMarker) == "" {
		errors = append(errors, "savings goal marker cannot be empty")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}
