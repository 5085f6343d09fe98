package main

import (
	"fmt"
	"text/tabwriter"

	"fintrack/internal/core"

	"github.com/spf13/cobra"
)

var (
	inboxUnread bool
	inboxOldest bool
	inboxList   listFlags
)

var notificationsCmd = &cobra.Command{
	Use:     "notifications",
	Aliases: []string{"inbox"},
	Short:   "Read the owner's notifications",
}

func init() {
	listCmd := &cobra.Command{Use: "list", Short: "List notifications, newest first", RunE: runInboxList}
	listCmd.Flags().BoolVar(&inboxUnread, "unread", false, "Only unread notifications")
	listCmd.Flags().BoolVar(&inboxOldest, "oldest", false, "Oldest first")
	inboxList.register(listCmd, "")

	notificationsCmd.AddCommand(
		listCmd,
		&cobra.Command{Use: "read <id>", Short: "Mark a notification read", Args: cobra.ExactArgs(1), RunE: runInboxRead},
		&cobra.Command{Use: "delete <id>", Short: "Delete a notification", Args: cobra.ExactArgs(1), RunE: runInboxDelete},
	)
	rootCmd.AddCommand(notificationsCmd)
}

func runInboxList(cmd *cobra.Command, _ []string) error {
	ownerID, err := owner()
	if err != nil {
		return err
	}
	opts := inboxList.options()
	opts.Order, opts.Desc = "createdAt", !inboxOldest

	items, err := application.Notifications.List(cmd.Context(), ownerID, core.NotificationFilter{UnreadOnly: inboxUnread}, opts)
	if err != nil {
		return fail(err)
	}
	if flagJSON {
		return printJSON(cmd.OutOrStdout(), items)
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tWHEN\tREAD\tMESSAGE")
	for _, n := range items {
		read := ""
		if n.Read {
			read = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", n.ID, n.CreatedAt.Format("2006-01-02 15:04"), read, n.Description)
	}
	return w.Flush()
}

func runInboxRead(cmd *cobra.Command, args []string) error {
	ownerID, err := owner()
	if err != nil {
		return err
	}
	read := true
	if _, err := application.Notifications.Update(cmd.Context(), ownerID, args[0], core.NotificationPatch{Read: &read}); err != nil {
		return fail(err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Marked %s read\n", args[0])
	return nil
}

func runInboxDelete(cmd *cobra.Command, args []string) error {
	ownerID, err := owner()
	if err != nil {
		return err
	}
	if err := application.Notifications.Delete(cmd.Context(), ownerID, args[0]); err != nil {
		return fail(err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted notification %s\n", args[0])
	return nil
}
