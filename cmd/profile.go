package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/briefing-cli/internal/model"
)

var (
	profileClient  string
	profileContext string
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage stored client profiles",
}

var profileBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build (or rebuild) a client profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		id, err := model.NormalizeIdentity(profileClient)
		if err != nil {
			return err
		}

		profile, err := env.Profiler.Build(ctx, id, profileContext)
		if err != nil {
			return eris.Wrap(err, "build profile")
		}
		if err := env.Stores.Profiles.Save(ctx, profile); err != nil {
			return eris.Wrap(err, "save profile")
		}

		return printJSON(profile)
	},
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored profile for a client",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		id, err := model.NormalizeIdentity(profileClient)
		if err != nil {
			return err
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		profile, err := env.Stores.Profiles.Load(ctx, id)
		if err != nil {
			return eris.Wrapf(err, "load profile for %s", id)
		}

		return printJSON(profile)
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	profileCmd.PersistentFlags().StringVar(&profileClient, "client", "", "client name (required)")
	_ = profileCmd.MarkPersistentFlagRequired("client")
	profileBuildCmd.Flags().StringVar(&profileContext, "context", "", "extra context for profile building")
	profileCmd.AddCommand(profileBuildCmd)
	profileCmd.AddCommand(profileShowCmd)
	rootCmd.AddCommand(profileCmd)
}
