package cli

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"fintrack/internal/config"
)

func TestSetupLogger(t *testing.T) {
	tests := []struct {
		name      string
		cfg       *config.Config
		wantDebug bool
	}{
		{name: "nil config", cfg: nil, wantDebug: false},
		{name: "debug level", cfg: &config.Config{LogLevel: "debug", LogFormat: "json"}, wantDebug: true},
		{name: "bad level falls back", cfg: &config.Config{LogLevel: "loud", LogFormat: "text"}, wantDebug: false},
	}

	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := SetupLogger(tt.cfg, "test")
			if logger.Component() != "test" {
				t.Errorf("component = %q, want test", logger.Component())
			}
			got := slog.Default().Enabled(context.Background(), slog.LevelDebug)
			if got != tt.wantDebug {
				t.Errorf("debug enabled = %v, want %v", got, tt.wantDebug)
			}
		})
	}
}

func TestShutdown(t *testing.T) {
	logger := SetupLogger(nil, "test")

	if err := Shutdown(logger, time.Second, func(context.Context) error { return nil }); err != nil {
		t.Errorf("clean shutdown: %v", err)
	}

	boom := errors.New("boom")
	if err := Shutdown(logger, time.Second, func(context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}

	err := Shutdown(logger, 10*time.Millisecond, func(ctx context.Context) error {
		time.Sleep(200 * time.Millisecond)
		return nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}
