package main

import (
	"fmt"

	"fintrack/internal/core"
	"fintrack/internal/worker"

	"github.com/spf13/cobra"
)

var (
	backfillFrom string
	backfillTo   string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		// Opening the repository already applied pending migrations.
		status, err := application.Repo.SchemaStatus()
		if err != nil {
			return fail(err)
		}
		if flagJSON {
			return printJSON(cmd.OutOrStdout(), status)
		}
		if !status.Current() {
			return fmt.Errorf("database %s is at schema %d (dirty=%t), want %d",
				application.Config.SQLiteDBPath, status.Version, status.Dirty, status.Latest)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Database %s is up to date at schema %d\n",
			application.Config.SQLiteDBPath, status.Version)
		return nil
	},
}

var recurringCmd = &cobra.Command{
	Use:   "recurring",
	Short: "Recurring transaction jobs",
}

var savingsCmd = &cobra.Command{
	Use:   "savings",
	Short: "Savings allocation jobs",
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Ledger export",
}

func init() {
	recurringCmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Materialize every due recurring transaction once",
		RunE:  runRecurring,
	})
	savingsCmd.AddCommand(&cobra.Command{
		Use:   "allocate",
		Short: "Allocate each owner's monthly savings contribution once",
		RunE:  runAllocate,
	})

	backfill := &cobra.Command{
		Use:   "backfill",
		Short: "Append every stored transaction of the owner to the export sink",
		RunE:  runBackfill,
	}
	backfill.Flags().StringVar(&backfillFrom, "from", "", "Occurred at or after")
	backfill.Flags().StringVar(&backfillTo, "to", "", "Occurred before")
	exportCmd.AddCommand(backfill)

	rootCmd.AddCommand(migrateCmd, recurringCmd, savingsCmd, exportCmd)
}

func runRecurring(cmd *cobra.Command, _ []string) error {
	res, err := application.RunRecurrence(cmd.Context())
	if err != nil {
		return fail(err)
	}
	if flagJSON {
		return printJSON(cmd.OutOrStdout(), res)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Processed %d sources: %d materialized, %d failed\n",
		res.Sources, res.Materialized, res.Failed)
	return nil
}

func runAllocate(cmd *cobra.Command, _ []string) error {
	res, err := application.RunAllocation(cmd.Context())
	if err != nil {
		return fail(err)
	}
	if flagJSON {
		return printJSON(cmd.OutOrStdout(), res)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Allocated for %d of %d users (%d skipped, %d failed)\n",
		res.Allocated, res.Users, res.Skipped, res.Failed)
	return nil
}

func runBackfill(cmd *cobra.Command, _ []string) error {
	ownerID, err := owner()
	if err != nil {
		return err
	}
	from, err := optionalTime(backfillFrom)
	if err != nil {
		return err
	}
	to, err := optionalTime(backfillTo)
	if err != nil {
		return err
	}

	exporter, err := application.Exporter(cmd.Context())
	if err != nil {
		return fail(err)
	}
	w := worker.NewExportWorker(application.Repo, exporter, application.Config.RecurringBatchSize)
	n, err := w.Backfill(cmd.Context(), ownerID, core.TransactionFilter{From: from, To: to})
	if err != nil {
		return fail(err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d transactions\n", n)
	return nil
}
