package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/briefing-cli/internal/model"
	"github.com/sells-group/briefing-cli/internal/store"
)

var reportsClient string

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "List saved reports for a client, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := model.NormalizeIdentity(reportsClient)
		if err != nil {
			return err
		}

		reports := store.NewFileReportStore(cfg.Store.Dir)
		paths, err := reports.List(cmd.Context(), id)
		if err != nil {
			return eris.Wrap(err, "list reports")
		}

		for _, p := range paths {
			fmt.Println(p)
		}
		return nil
	},
}

func init() {
	reportsCmd.Flags().StringVar(&reportsClient, "client", "", "client name (required)")
	_ = reportsCmd.MarkFlagRequired("client")
	rootCmd.AddCommand(reportsCmd)
}
