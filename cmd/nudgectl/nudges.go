package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sitecrew/nudges/nudge"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List open nudges, most urgent first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		list, err := a.Nudges.ListActive(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			if list == nil {
				list = []*nudge.Nudge{}
			}
			return printJSON(cmd.OutOrStdout(), list)
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tPRIORITY\tTYPE\tTITLE\tCREATED")
		for _, n := range list {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", n.ID, n.Priority, n.Type, n.Title, n.CreatedAt.Format("2006-01-02 15:04"))
		}
		return tw.Flush()
	},
}

var actionCmd = &cobra.Command{
	Use:   "action <id>",
	Short: "Mark a nudge as actioned",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Nudges.MarkActioned(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "nudge %s actioned\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(actionCmd)
}
