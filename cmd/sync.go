package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/castellan-sh/castellan/internal/app"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Force a registry/store reconciliation pass",
	Long: `Force a reconciliation pass between the in-memory registry and the
credential store, printing the resulting report as JSON.

New providers are inserted, vanished providers are marked unavailable
(credentials are kept), and drifted metadata is refreshed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			report, err := a.Service.ForceDatabaseSync(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		})
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
