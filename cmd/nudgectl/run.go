package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Evaluate every rule once and store the resulting nudges",
	Long: `Load candidates, projects and clients, run the built-in and custom
rules over them and upsert the results. With --dry-run nothing is written;
the nudges that would be raised are printed instead.`,
	Args: cobra.NoArgs,
	RunE: runNudges,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Bool("dry-run", false, "evaluate without writing nudges")
}

func runNudges(cmd *cobra.Command, _ []string) error {
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.Runner.Execute(ctx, dryRun || a.Config.Runner.DryRun)
	if jsonOutput && report != nil {
		if perr := printJSON(cmd.OutOrStdout(), report); perr != nil {
			return perr
		}
		return err
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, line := range report.Logs {
		fmt.Fprintln(out, line)
	}
	for _, e := range report.Errors {
		fmt.Fprintln(out, "error:", e)
	}
	fmt.Fprintf(out, "generated %d, written %d, took %s\n", report.Generated, report.NewNudgeCount, report.Duration)
	return nil
}
