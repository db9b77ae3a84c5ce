package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/castellan-sh/castellan/internal/app"
)

var configDeleteCmd = &cobra.Command{
	Use:   "config:delete <provider-id>",
	Short: "Delete all stored credentials for a provider",
	Long: `Delete all stored credentials for a provider and mark it as
unconfigured. The provider row itself is kept so it reappears in the
store on the next sync pass.

Examples:
  castellan config:delete cloud.openai`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		providerID := args[0]

		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			deleted, err := a.Service.DeleteProviderConfig(ctx, providerID)
			if err != nil {
				return err
			}
			if !deleted {
				fmt.Fprintf(cmd.OutOrStdout(), "no stored configuration for %s\n", providerID)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted configuration for %s\n", providerID)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(configDeleteCmd)
}
