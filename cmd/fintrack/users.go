package main

import (
	"fmt"
	"strings"
	"time"

	"fintrack/internal/core"

	"github.com/spf13/cobra"
)

var (
	userName     string
	userCurrency string
	tagList      listFlags
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage ledger owners",
}

var categoryCmd = &cobra.Command{
	Use:   "category",
	Short: "Manage shared transaction categories",
}

var tagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Manage the owner's tags",
}

func init() {
	createUser := &cobra.Command{
		Use:   "create <id>",
		Short: "Register an owner",
		Args:  cobra.ExactArgs(1),
		RunE:  runUserCreate,
	}
	createUser.Flags().StringVar(&userName, "name", "", "Display name")
	createUser.Flags().StringVar(&userCurrency, "currency", core.DefaultCurrency, "Currency amounts are converted to")
	userCmd.AddCommand(createUser,
		&cobra.Command{Use: "get <id>", Short: "Show an owner", Args: cobra.ExactArgs(1), RunE: runUserGet})

	categoryCmd.AddCommand(
		&cobra.Command{Use: "add <name>", Short: "Add a category", Args: cobra.ExactArgs(1), RunE: runCategoryAdd},
		&cobra.Command{Use: "list", Short: "List categories", RunE: runCategoryList},
	)

	tagListCmd := &cobra.Command{Use: "list", Short: "List tags", RunE: runTagList}
	tagList.register(tagListCmd, "name")
	tagCmd.AddCommand(
		&cobra.Command{Use: "add <name>", Short: "Add a tag", Args: cobra.ExactArgs(1), RunE: runTagAdd},
		tagListCmd,
	)

	rootCmd.AddCommand(userCmd, categoryCmd, tagCmd)
}

func runUserCreate(cmd *cobra.Command, args []string) error {
	currency := core.NormalizeCurrency(userCurrency)
	if err := core.ValidateCurrency(currency); err != nil {
		return err
	}
	name := userName
	if name == "" {
		name = args[0]
	}
	u := core.User{ID: args[0], Name: name, Currency: currency, CreatedAt: time.Now().UTC()}
	if err := application.Repo.CreateUser(cmd.Context(), u); err != nil {
		return fail(err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created user %s (%s)\n", u.ID, u.Currency)
	return nil
}

func runUserGet(cmd *cobra.Command, args []string) error {
	u, err := application.Repo.GetUser(cmd.Context(), args[0])
	if err != nil {
		return fail(err)
	}
	return printJSON(cmd.OutOrStdout(), u)
}

func runCategoryAdd(cmd *cobra.Command, args []string) error {
	c := core.Category{ID: core.NewID(), Name: strings.TrimSpace(args[0])}
	if c.Name == "" {
		return core.ErrMissingName
	}
	if err := application.Repo.CreateCategory(cmd.Context(), c); err != nil {
		return fail(err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", c.ID, c.Name)
	return nil
}

func runCategoryList(cmd *cobra.Command, _ []string) error {
	cats, err := application.Repo.ListCategories(cmd.Context())
	if err != nil {
		return fail(err)
	}
	if flagJSON {
		return printJSON(cmd.OutOrStdout(), cats)
	}
	for _, c := range cats {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", c.ID, c.Name)
	}
	return nil
}

func runTagAdd(cmd *cobra.Command, args []string) error {
	ownerID, err := owner()
	if err != nil {
		return err
	}
	t := core.Tag{ID: core.NewID(), OwnerID: ownerID, Name: strings.TrimSpace(args[0])}
	if t.Name == "" {
		return core.ErrMissingName
	}
	if err := application.Repo.CreateTag(cmd.Context(), t); err != nil {
		return fail(err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", t.ID, t.Name)
	return nil
}

func runTagList(cmd *cobra.Command, _ []string) error {
	ownerID, err := owner()
	if err != nil {
		return err
	}
	tags, err := application.Repo.ListTags(cmd.Context(), ownerID, tagList.options())
	if err != nil {
		return fail(err)
	}
	if flagJSON {
		return printJSON(cmd.OutOrStdout(), tags)
	}
	for _, t := range tags {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", t.ID, t.Name)
	}
	return nil
}
