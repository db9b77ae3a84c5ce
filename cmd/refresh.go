package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/castellan-sh/castellan/internal/app"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Rescan the provider roots and print the discovery status",
	Long: `Rescan the provider roots, rebuild the registry, reconcile the store,
and print the resulting discovery status as JSON.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			// withApp already ran a refresh pass; run another so the
			// command reflects the tree as of invocation, not startup.
			if _, err := a.Service.RefreshProviders(ctx); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), a.Service.GetDiscoveryStatus())
		})
	},
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}
