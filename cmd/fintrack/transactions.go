package main

import (
	"fmt"
	"text/tabwriter"

	"fintrack/internal/core"

	"github.com/spf13/cobra"
)

var txCmd = &cobra.Command{
	Use:     "tx",
	Aliases: []string{"transaction"},
	Short:   "Manage ledger transactions",
}

var (
	txKind        string
	txAmount      string
	txCurrency    string
	txCategory    string
	txTag         string
	txBudget      string
	txGoal        string
	txDescription string
	txOccurred    string
	txInterval    string
	txNext        string
	txEnd         string
	txParent      string
	txRecurring   bool
	txFrom        string
	txTo          string
	txList        listFlags
)

var txCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Record an income or expense",
	RunE:  runTxCreate,
}

var txGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one transaction with its references",
	Args:  cobra.ExactArgs(1),
	RunE:  runTxGet,
}

var txListCmd = &cobra.Command{
	Use:   "list",
	Short: "List transactions",
	RunE:  runTxList,
}

var txUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change fields of a transaction",
	Args:  cobra.ExactArgs(1),
	RunE:  runTxUpdate,
}

var txDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a transaction",
	Args:  cobra.ExactArgs(1),
	RunE:  runTxDelete,
}

func init() {
	for _, c := range []*cobra.Command{txCreateCmd, txUpdateCmd} {
		c.Flags().StringVar(&txKind, "kind", "", "income or expense")
		c.Flags().StringVar(&txAmount, "amount", "", "Amount, e.g. 12.50")
		c.Flags().StringVar(&txCategory, "category", "", "Category id")
		c.Flags().StringVar(&txTag, "tag", "", "Tag id")
		c.Flags().StringVar(&txBudget, "budget", "", "Budget id")
		c.Flags().StringVar(&txGoal, "goal", "", "Goal id")
		c.Flags().StringVar(&txDescription, "description", "", "Free text")
		c.Flags().StringVar(&txOccurred, "occurred", "", "When it happened (YYYY-MM-DD or RFC3339)")
		c.Flags().StringVar(&txInterval, "interval", "", "Recurrence: daily, weekly, monthly, yearly or none")
		c.Flags().StringVar(&txNext, "next", "", "Next occurrence of a recurring transaction")
		c.Flags().StringVar(&txEnd, "end", "", "Last date a recurring transaction may occur")
	}
	txCreateCmd.Flags().StringVar(&txCurrency, "currency", "", "Currency code; defaults to the owner's currency")
	_ = txCreateCmd.MarkFlagRequired("kind")
	_ = txCreateCmd.MarkFlagRequired("amount")
	_ = txCreateCmd.MarkFlagRequired("category")

	txListCmd.Flags().StringVar(&txKind, "kind", "", "Only income or expense")
	txListCmd.Flags().StringVar(&txCategory, "category", "", "Only this category")
	txListCmd.Flags().StringVar(&txTag, "tag", "", "Only this tag")
	txListCmd.Flags().StringVar(&txBudget, "budget", "", "Only this budget")
	txListCmd.Flags().StringVar(&txGoal, "goal", "", "Only this goal")
	txListCmd.Flags().StringVar(&txParent, "parent", "", "Only copies of this recurring transaction")
	txListCmd.Flags().BoolVar(&txRecurring, "recurring", false, "Only recurring sources")
	txListCmd.Flags().StringVar(&txFrom, "from", "", "Occurred at or after")
	txListCmd.Flags().StringVar(&txTo, "to", "", "Occurred before")
	txList.register(txListCmd, "occurredAt, createdAt, amount, description, type")

	txCmd.AddCommand(txCreateCmd, txGetCmd, txListCmd, txUpdateCmd, txDeleteCmd)
	rootCmd.AddCommand(txCmd)
}

func recurrenceFromFlags() (core.Recurrence, error) {
	interval, err := core.ParseInterval(txInterval)
	if err != nil {
		return core.Recurrence{}, err
	}
	next, err := optionalTime(txNext)
	if err != nil {
		return core.Recurrence{}, err
	}
	end, err := optionalTime(txEnd)
	if err != nil {
		return core.Recurrence{}, err
	}
	return core.Recurrence{Interval: interval, NextOccurrence: next, EndDate: end}, nil
}

// mergeRecurrence overlays the recurrence flags that were set on the
// transaction's current recurrence.
func mergeRecurrence(cmd *cobra.Command, ownerID, id string) (core.Recurrence, error) {
	current, err := application.Ledger.Get(cmd.Context(), ownerID, id)
	if err != nil {
		return core.Recurrence{}, fail(err)
	}
	rec := current.Recurrence
	flags := cmd.Flags()
	if flags.Changed("interval") {
		if rec.Interval, err = core.ParseInterval(txInterval); err != nil {
			return core.Recurrence{}, err
		}
	}
	if flags.Changed("next") {
		if rec.NextOccurrence, err = optionalTime(txNext); err != nil {
			return core.Recurrence{}, err
		}
	}
	if flags.Changed("end") {
		if rec.EndDate, err = optionalTime(txEnd); err != nil {
			return core.Recurrence{}, err
		}
	}
	return rec, nil
}

func runTxCreate(cmd *cobra.Command, _ []string) error {
	ownerID, err := owner()
	if err != nil {
		return err
	}
	amount, err := core.ParseAmount(txAmount)
	if err != nil {
		return err
	}
	rec, err := recurrenceFromFlags()
	if err != nil {
		return err
	}

	t := core.Transaction{
		Kind:        core.Kind(txKind),
		Amount:      amount,
		Currency:    txCurrency,
		CategoryID:  txCategory,
		TagID:       txTag,
		BudgetID:    txBudget,
		GoalID:      txGoal,
		Description: txDescription,
		Recurrence:  rec,
	}
	if txOccurred != "" {
		if t.OccurredAt, err = parseTime(txOccurred); err != nil {
			return err
		}
	}

	created, err := application.Ledger.Create(cmd.Context(), ownerID, t)
	if err != nil {
		return fail(err)
	}
	if flagJSON {
		return printJSON(cmd.OutOrStdout(), created)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s %s %s (%s)\n", created.Kind, created.Amount.StringFixed(2), created.Currency, created.ID)
	return nil
}

func runTxGet(cmd *cobra.Command, args []string) error {
	ownerID, err := owner()
	if err != nil {
		return err
	}
	view, err := application.Ledger.Get(cmd.Context(), ownerID, args[0])
	if err != nil {
		return fail(err)
	}
	return printJSON(cmd.OutOrStdout(), view)
}

func runTxList(cmd *cobra.Command, _ []string) error {
	ownerID, err := owner()
	if err != nil {
		return err
	}
	from, err := optionalTime(txFrom)
	if err != nil {
		return err
	}
	to, err := optionalTime(txTo)
	if err != nil {
		return err
	}

	views, err := application.Ledger.List(cmd.Context(), ownerID, core.TransactionFilter{
		Kind:          core.Kind(txKind),
		CategoryID:    txCategory,
		TagID:         txTag,
		BudgetID:      txBudget,
		GoalID:        txGoal,
		ParentID:      txParent,
		RecurringOnly: txRecurring,
		From:          from,
		To:            to,
	}, txList.options())
	if err != nil {
		return fail(err)
	}
	if flagJSON {
		return printJSON(cmd.OutOrStdout(), views)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tKIND\tAMOUNT\tCATEGORY\tRECURS\tDESCRIPTION")
	for _, v := range views {
		category := "-"
		if v.Category != nil {
			category = v.Category.Name
		}
		recurs := "-"
		if v.Recurrence.Active() {
			recurs = string(v.Recurrence.Interval) + " next " + formatTime(v.Recurrence.NextOccurrence)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s %s\t%s\t%s\t%s\n",
			v.ID, v.OccurredAt.Format("2006-01-02"), v.Kind,
			v.Amount.StringFixed(2), v.Currency, category, recurs, v.Description)
	}
	return w.Flush()
}

func runTxUpdate(cmd *cobra.Command, args []string) error {
	ownerID, err := owner()
	if err != nil {
		return err
	}

	var patch core.TransactionPatch
	flags := cmd.Flags()
	if flags.Changed("kind") {
		k := core.Kind(txKind)
		patch.Kind = &k
	}
	if flags.Changed("amount") {
		a, err := core.ParseAmount(txAmount)
		if err != nil {
			return err
		}
		patch.Amount = &a
	}
	for name, dst := range map[string]**string{
		"category":    &patch.CategoryID,
		"tag":         &patch.TagID,
		"budget":      &patch.BudgetID,
		"goal":        &patch.GoalID,
		"description": &patch.Description,
	} {
		if flags.Changed(name) {
			v, _ := flags.GetString(name)
			*dst = &v
		}
	}
	if flags.Changed("occurred") {
		t, err := parseTime(txOccurred)
		if err != nil {
			return err
		}
		patch.OccurredAt = &t
	}
	if flags.Changed("interval") || flags.Changed("next") || flags.Changed("end") {
		rec, err := mergeRecurrence(cmd, ownerID, args[0])
		if err != nil {
			return err
		}
		patch.Recurrence = &rec
	}

	updated, err := application.Ledger.Update(cmd.Context(), ownerID, args[0], patch)
	if err != nil {
		return fail(err)
	}
	if flagJSON {
		return printJSON(cmd.OutOrStdout(), updated)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", updated.ID)
	return nil
}

func runTxDelete(cmd *cobra.Command, args []string) error {
	ownerID, err := owner()
	if err != nil {
		return err
	}
	if err := application.Ledger.Delete(cmd.Context(), ownerID, args[0]); err != nil {
		return fail(err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
	return nil
}
