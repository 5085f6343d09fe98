package main

import (
	"fmt"
	"text/tabwriter"

	"fintrack/internal/core"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	aggName         string
	aggAmount       string
	aggContribution string
	aggCategory     string
	aggDescription  string
	goalList        listFlags
	budgetList      listFlags
)

var goalCmd = &cobra.Command{
	Use:   "goal",
	Short: "Manage savings goals",
}

var budgetCmd = &cobra.Command{
	Use:   "budget",
	Short: "Manage monthly budgets",
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show the owner's income, expense and savings totals",
	RunE:  runReport,
}

func init() {
	goalCreate := &cobra.Command{Use: "create", Short: "Create a goal", RunE: runGoalCreate}
	goalUpdate := &cobra.Command{Use: "update <id>", Short: "Change a goal", Args: cobra.ExactArgs(1), RunE: runGoalUpdate}
	for _, c := range []*cobra.Command{goalCreate, goalUpdate} {
		c.Flags().StringVar(&aggName, "name", "", "Goal name")
		c.Flags().StringVar(&aggAmount, "amount", "", "Target amount")
		c.Flags().StringVar(&aggContribution, "contribution", "", "Monthly contribution")
		c.Flags().StringVar(&aggDescription, "description", "", "Free text; the savings marker enables monthly allocation")
	}
	_ = goalCreate.MarkFlagRequired("name")
	goalListCmd := &cobra.Command{Use: "list", Short: "List goals", RunE: runGoalList}
	goalList.register(goalListCmd, "createdAt, name, amount")
	goalCmd.AddCommand(
		goalCreate,
		goalUpdate,
		goalListCmd,
		&cobra.Command{Use: "get <id>", Short: "Show a goal", Args: cobra.ExactArgs(1), RunE: runGoalGet},
		&cobra.Command{Use: "delete <id>", Short: "Delete a goal", Args: cobra.ExactArgs(1), RunE: runGoalDelete},
	)

	budgetCreate := &cobra.Command{Use: "create", Short: "Create a budget", RunE: runBudgetCreate}
	budgetUpdate := &cobra.Command{Use: "update <id>", Short: "Change a budget", Args: cobra.ExactArgs(1), RunE: runBudgetUpdate}
	for _, c := range []*cobra.Command{budgetCreate, budgetUpdate} {
		c.Flags().StringVar(&aggName, "name", "", "Budget name")
		c.Flags().StringVar(&aggAmount, "amount", "", "Monthly limit")
		c.Flags().StringVar(&aggCategory, "category", "", "Category id")
		c.Flags().StringVar(&aggDescription, "description", "", "Free text")
	}
	_ = budgetCreate.MarkFlagRequired("name")
	_ = budgetCreate.MarkFlagRequired("amount")
	budgetListCmd := &cobra.Command{Use: "list", Short: "List budgets", RunE: runBudgetList}
	budgetList.register(budgetListCmd, "createdAt, name, amount")
	budgetCmd.AddCommand(
		budgetCreate,
		budgetUpdate,
		budgetListCmd,
		&cobra.Command{Use: "get <id>", Short: "Show a budget", Args: cobra.ExactArgs(1), RunE: runBudgetGet},
		&cobra.Command{Use: "delete <id>", Short: "Delete a budget", Args: cobra.ExactArgs(1), RunE: runBudgetDelete},
	)

	rootCmd.AddCommand(goalCmd, budgetCmd, reportCmd)
}

// amountFlag parses an amount flag, reporting whether it was set.
func amountFlag(flags *pflag.FlagSet, name, value string) (*decimal.Decimal, error) {
	if !flags.Changed(name) {
		return nil, nil
	}
	d, err := core.ParseAmount(value)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func stringFlag(flags *pflag.FlagSet, name, value string) *string {
	if !flags.Changed(name) {
		return nil
	}
	return &value
}

func orZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

func runGoalCreate(cmd *cobra.Command, _ []string) error {
	ownerID, err := owner()
	if err != nil {
		return err
	}
	amount, err := amountFlag(cmd.Flags(), "amount", aggAmount)
	if err != nil {
		return err
	}
	contribution, err := amountFlag(cmd.Flags(), "contribution", aggContribution)
	if err != nil {
		return err
	}
	g, err := application.Goals.Create(cmd.Context(), ownerID, core.Goal{
		Name:                aggName,
		Amount:              orZero(amount),
		MonthlyContribution: orZero(contribution),
		Description:         aggDescription,
	})
	if err != nil {
		return fail(err)
	}
	return printJSON(cmd.OutOrStdout(), g)
}

func runGoalUpdate(cmd *cobra.Command, args []string) error {
	ownerID, err := owner()
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	patch := core.GoalPatch{
		Name:        stringFlag(flags, "name", aggName),
		Description: stringFlag(flags, "description", aggDescription),
	}
	if patch.Amount, err = amountFlag(flags, "amount", aggAmount); err != nil {
		return err
	}
	if patch.MonthlyContribution, err = amountFlag(flags, "contribution", aggContribution); err != nil {
		return err
	}
	g, err := application.Goals.Update(cmd.Context(), ownerID, args[0], patch)
	if err != nil {
		return fail(err)
	}
	return printJSON(cmd.OutOrStdout(), g)
}

func runGoalGet(cmd *cobra.Command, args []string) error {
	ownerID, err := owner()
	if err != nil {
		return err
	}
	g, err := application.Goals.Get(cmd.Context(), ownerID, args[0])
	if err != nil {
		return fail(err)
	}
	return printJSON(cmd.OutOrStdout(), g)
}

func runGoalList(cmd *cobra.Command, _ []string) error {
	ownerID, err := owner()
	if err != nil {
		return err
	}
	goals, err := application.Goals.List(cmd.Context(), ownerID, goalList.options())
	if err != nil {
		return fail(err)
	}
	if flagJSON {
		return printJSON(cmd.OutOrStdout(), goals)
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSAVED\tTARGET\tMONTHLY")
	for _, g := range goals {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", g.ID, g.Name,
			g.CurrentAmount.StringFixed(2), g.Amount.StringFixed(2), g.MonthlyContribution.StringFixed(2))
	}
	return w.Flush()
}

func runGoalDelete(cmd *cobra.Command, args []string) error {
	ownerID, err := owner()
	if err != nil {
		return err
	}
	if err := application.Goals.Delete(cmd.Context(), ownerID, args[0]); err != nil {
		return fail(err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted goal %s\n", args[0])
	return nil
}

func runBudgetCreate(cmd *cobra.Command, _ []string) error {
	ownerID, err := owner()
	if err != nil {
		return err
	}
	amount, err := core.ParseAmount(aggAmount)
	if err != nil {
		return err
	}
	b, err := application.Budgets.Create(cmd.Context(), ownerID, core.Budget{
		Name:        aggName,
		Amount:      amount,
		CategoryID:  aggCategory,
		Description: aggDescription,
	})
	if err != nil {
		return fail(err)
	}
	return printJSON(cmd.OutOrStdout(), b)
}

func runBudgetUpdate(cmd *cobra.Command, args []string) error {
	ownerID, err := owner()
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	patch := core.BudgetPatch{
		Name:        stringFlag(flags, "name", aggName),
		CategoryID:  stringFlag(flags, "category", aggCategory),
		Description: stringFlag(flags, "description", aggDescription),
	}
	if patch.Amount, err = amountFlag(flags, "amount", aggAmount); err != nil {
		return err
	}
	b, err := application.Budgets.Update(cmd.Context(), ownerID, args[0], patch)
	if err != nil {
		return fail(err)
	}
	return printJSON(cmd.OutOrStdout(), b)
}

func runBudgetGet(cmd *cobra.Command, args []string) error {
	ownerID, err := owner()
	if err != nil {
		return err
	}
	b, err := application.Budgets.Get(cmd.Context(), ownerID, args[0])
	if err != nil {
		return fail(err)
	}
	return printJSON(cmd.OutOrStdout(), b)
}

func runBudgetList(cmd *cobra.Command, _ []string) error {
	ownerID, err := owner()
	if err != nil {
		return err
	}
	budgets, err := application.Budgets.List(cmd.Context(), ownerID, budgetList.options())
	if err != nil {
		return fail(err)
	}
	if flagJSON {
		return printJSON(cmd.OutOrStdout(), budgets)
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSPENT\tLIMIT\tALERT")
	for _, b := range budgets {
		alert := ""
		if b.AlertReached() {
			alert = "90%+"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", b.ID, b.Name,
			b.TotalSpent().StringFixed(2), b.Amount.StringFixed(2), alert)
	}
	return w.Flush()
}

func runBudgetDelete(cmd *cobra.Command, args []string) error {
	ownerID, err := owner()
	if err != nil {
		return err
	}
	if err := application.Budgets.Delete(cmd.Context(), ownerID, args[0]); err != nil {
		return fail(err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted budget %s\n", args[0])
	return nil
}

func runReport(cmd *cobra.Command, _ []string) error {
	ownerID, err := owner()
	if err != nil {
		return err
	}
	rep, err := application.Reports.Get(cmd.Context(), ownerID)
	if err != nil {
		return fail(err)
	}
	if flagJSON {
		return printJSON(cmd.OutOrStdout(), rep)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "  Income:   %s\n", rep.TotalIncome.StringFixed(2))
	fmt.Fprintf(out, "  Expenses: %s\n", rep.TotalExpense.StringFixed(2))
	fmt.Fprintf(out, "  Savings:  %s\n", rep.TotalSavings.StringFixed(2))
	return nil
}
