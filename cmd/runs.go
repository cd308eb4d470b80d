package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/listing-dedupe/internal/model"
	"github.com/sells-group/listing-dedupe/internal/report"
	"github.com/sells-group/listing-dedupe/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect duplicate scan history",
	Long:  "Commands for listing past scans and showing their matches.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmd.PersistentPreRunE(cmd, args); err != nil {
			return err
		}
		return cfg.Validate("runs")
	},
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scan runs, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		owner, _ := cmd.Flags().GetString("owner")
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			OwnerID: owner,
			Status:  model.RunStatus(status),
			Limit:   limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		report.WriteRunsTable(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a run and its matches",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		formatName, _ := cmd.Flags().GetString("format")
		outPath, _ := cmd.Flags().GetString("output")
		format, err := report.ParseFormat(formatName)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}
		matches, err := st.ListMatches(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		out, closeOut, err := openOutput(outPath)
		if err != nil {
			return err
		}
		defer closeOut()
		return report.Write(out, format, report.Report{Run: *run, Matches: matches})
	},
}

func init() {
	runsListCmd.Flags().String("owner", "", "filter by owner ID")
	runsListCmd.Flags().String("status", "", "filter by status (complete, cancelled)")
	runsListCmd.Flags().Int("limit", 20, "maximum number of runs to show")

	runsShowCmd.Flags().StringP("format", "f", "table", "report format: table, json or xlsx")
	runsShowCmd.Flags().StringP("output", "o", "", "report file (default stdout)")

	runsCmd.AddCommand(runsListCmd, runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}
