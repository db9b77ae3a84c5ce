package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/castellan-sh/castellan/internal/app"
)

var validateCmd = &cobra.Command{
	Use:   "validate <provider-id>",
	Short: "Check a provider's stored credentials",
	Long: `Check a provider's stored credentials against its capability client.

Exits non-zero when the provider is unknown, unconfigured, or the
credentials are rejected.

Examples:
  castellan validate cloud.openai`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		providerID := args[0]

		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := a.Service.ValidateProvider(ctx, providerID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: credentials ok\n", providerID)
			return nil
		})
	},
}

var modelsCmd = &cobra.Command{
	Use:   "models <provider-id>",
	Short: "List the models a configured provider offers",
	Long: `List the models a configured provider offers as JSON.

Examples:
  castellan models cloud.openai
  castellan models cloud.openai | jq -r '.[].id'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		providerID := args[0]

		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			models, err := a.Service.ListProviderModels(ctx, providerID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), models)
		})
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(modelsCmd)
}
