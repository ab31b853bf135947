package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	runsClient string
	runsLimit  int
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded pipeline runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		runLog, err := initRunLog(ctx)
		if err != nil {
			return err
		}
		defer runLog.Close()

		if err := runLog.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate run ledger")
		}

		runs, err := runLog.ListRuns(ctx, runsClient, runsLimit)
		if err != nil {
			return eris.Wrap(err, "list runs")
		}

		return printJSON(runs)
	},
}

func init() {
	runsCmd.Flags().StringVar(&runsClient, "client", "", "filter by client name")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 50, "max runs to list")
	rootCmd.AddCommand(runsCmd)
}
