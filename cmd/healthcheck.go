package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/castellan-sh/castellan/internal/app"
)

var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Report store reachability and discovery health as JSON",
	Long: `Report store reachability, discovery counts, and configuration state
as JSON. Exits non-zero when the credential store is unreachable.

Examples:
  castellan healthcheck
  castellan healthcheck | jq '.store_reachable'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			report := a.Service.Healthcheck(ctx)
			if err := printJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if !report.StoreReachable {
				return fmt.Errorf("credential store unreachable: %s", report.StoreError)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(healthcheckCmd)
}
