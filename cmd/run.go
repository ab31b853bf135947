package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/briefing-cli/internal/pipeline"
)

var (
	runClient         string
	runContext        string
	runRefreshProfile bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Generate a briefing report for a client",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		doc, err := env.Pipeline.Run(ctx, runClient, pipeline.Options{
			Context:        runContext,
			RefreshProfile: runRefreshProfile,
		})
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		zap.L().Info("briefing complete",
			zap.String("client", doc.ClientName),
			zap.String("report", doc.Path),
		)
		fmt.Println(doc.Path)
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runClient, "client", "", "client name (required)")
	runCmd.Flags().StringVar(&runContext, "context", "", "extra context for this run")
	runCmd.Flags().BoolVar(&runRefreshProfile, "refresh-profile", false, "rebuild the profile even if one is stored")
	_ = runCmd.MarkFlagRequired("client")
	rootCmd.AddCommand(runCmd)
}
