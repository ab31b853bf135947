package main

import (
	"errors"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/briefing-cli/internal/model"
	"github.com/sells-group/briefing-cli/internal/pipeline"
)

var (
	researchClient  string
	researchContext string
)

var researchCmd = &cobra.Command{
	Use:   "research",
	Short: "Run fresh research for a client with a stored profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		id, err := model.NormalizeIdentity(researchClient)
		if err != nil {
			return err
		}

		profile, err := env.Stores.Profiles.Load(ctx, id)
		if err != nil {
			return eris.Wrapf(err, "load profile for %s (run 'profile build' first)", id)
		}

		result, err := env.Researcher.Research(ctx, profile, researchContext)
		if err != nil && !errors.Is(err, pipeline.ErrEmptyResult) {
			return eris.Wrap(err, "research")
		}
		if errors.Is(err, pipeline.ErrEmptyResult) {
			zap.L().Warn("research produced no findings", zap.String("client", id.String()))
		}

		if err := env.Stores.Research.Save(ctx, result); err != nil {
			return eris.Wrap(err, "save research")
		}

		return printJSON(result)
	},
}

func init() {
	researchCmd.Flags().StringVar(&researchClient, "client", "", "client name (required)")
	researchCmd.Flags().StringVar(&researchContext, "context", "", "extra context for this research pass")
	_ = researchCmd.MarkFlagRequired("client")
	rootCmd.AddCommand(researchCmd)
}
