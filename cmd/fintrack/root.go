package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"fintrack/internal/app"
	"fintrack/internal/cli"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/scheduler"

	"github.com/spf13/cobra"
)

var (
	flagOwner string
	flagJSON  bool

	application *app.App
	logger      *log.Logger
)

var rootCmd = &cobra.Command{
	Use:                "fintrack",
	Short:              "Personal finance ledger",
	Long:               "Record income and expenses, track goals and budgets, and run the recurring and savings jobs.",
	SilenceUsage:       true,
	SilenceErrors:      true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagOwner, "owner", "u", os.Getenv("FINTRACK_OWNER"), "Owner (user id) the command acts for")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Print results as JSON")
}

// failure marks an error raised by the ledger rather than by argument
// parsing, so it can be classified before being shown.
type failure struct{ err error }

func (f failure) Error() string { return f.err.Error() }
func (f failure) Unwrap() error { return f.err }

func fail(err error) error {
	if err == nil {
		return nil
	}
	return failure{err: err}
}

func execute() int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := rootCmd.ExecuteContext(ctx)
	// PersistentPostRunE is skipped when a command fails.
	if closeErr := closeApp(ctx); err == nil {
		err = closeErr
	}
	if err == nil {
		return 0
	}

	var f failure
	// a job already running elsewhere is the caller's to retry
	if errors.As(err, &f) && !core.IsClientError(err) && !errors.Is(err, scheduler.ErrJobRunning) {
		if logger != nil {
			logger.Error("Command failed", "error", err)
		}
		fmt.Fprintln(os.Stderr, "error: operation failed, see logs for details")
		return 1
	}
	fmt.Fprintln(os.Stderr, "error:", err)
	return 1
}

func setup(cmd *cobra.Command, _ []string) error {
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return err
	}
	logger = cli.SetupLogger(cfg, log.ComponentCLI)

	application, err = app.New(cmd.Context(), cfg, logger)
	if err != nil {
		return fail(err)
	}
	return nil
}

func teardown(cmd *cobra.Command, _ []string) error {
	return closeApp(cmd.Context())
}

func closeApp(ctx context.Context) error {
	if application == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	err := application.Close(ctx)
	application = nil
	return fail(err)
}

func owner() (string, error) {
	if strings.TrimSpace(flagOwner) == "" {
		return "", fmt.Errorf("%w: pass --owner or set FINTRACK_OWNER", core.ErrMissingOwner)
	}
	return flagOwner, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseTime accepts a date (2006-01-02, local midnight in UTC) or RFC3339.
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid time %q, want YYYY-MM-DD or RFC3339", core.ErrValidation, s)
	}
	return t, nil
}

func optionalTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := parseTime(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.DateOnly)
}

// listFlags registers the paging flags shared by every listing.
type listFlags struct {
	start int
	limit int
	order string
	desc  bool
}

func (l *listFlags) register(cmd *cobra.Command, orders string) {
	cmd.Flags().IntVar(&l.start, "start", 0, "Offset of the first result")
	cmd.Flags().IntVar(&l.limit, "limit", core.DefaultListLimit, "Maximum results")
	if orders != "" {
		cmd.Flags().StringVar(&l.order, "order", "", "Sort field ("+orders+")")
		cmd.Flags().BoolVar(&l.desc, "desc", false, "Sort descending")
	}
}

func (l listFlags) options() core.ListOptions {
	return core.ListOptions{Start: l.start, Limit: l.limit, Order: l.order, Desc: l.desc}
}
