package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sitecrew/nudges/rules"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage custom CEL nudge rules",
}

var rulesImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Add or update rules from a YAML file, matched by name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		defs, err := rules.LoadFile(args[0])
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		added, updated, err := a.Rules.Import(ctx, defs)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d rules added, %d updated\n", added, updated)
		return nil
	},
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List custom rules",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		list, err := a.Rules.List(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			if list == nil {
				list = []*rules.Rule{}
			}
			return printJSON(cmd.OutOrStdout(), list)
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tENTITY\tPRIORITY\tTYPE\tACTIVE\tCONDITION")
		for _, r := range list {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%s\n", r.Name, r.Entity, r.Priority, r.Type, r.Active, r.Condition)
		}
		return tw.Flush()
	},
}

func init() {
	rulesCmd.AddCommand(rulesImportCmd)
	rulesCmd.AddCommand(rulesListCmd)
	rootCmd.AddCommand(rulesCmd)
}
