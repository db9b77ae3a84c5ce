package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/castellan-sh/castellan/internal/app"
	"github.com/castellan-sh/castellan/internal/providers/application"
	"github.com/castellan-sh/castellan/internal/providers/registry"
)

// statusReport joins the discovery status with the registry/store diff.
type statusReport struct {
	Discovery registry.DiscoveryStatus    `json:"discovery"`
	Database  *application.DatabaseStatus `json:"database,omitempty"`
	Store     string                      `json:"store_error,omitempty"`
}

var providersStatusCmd = &cobra.Command{
	Use:   "providers:status",
	Short: "Show discovery and store synchronization status as JSON",
	Long: `Show the discovery pass result and the registry/store diff as JSON.

The database section classifies each provider id as synchronized,
registry-only (discovered but never persisted), or database-only
(persisted but no longer discovered). When the store is unreachable the
section is omitted and store_error explains why.

Examples:
  castellan providers:status
  castellan providers:status | jq '.database.in_database_only'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			report := statusReport{Discovery: a.Service.GetDiscoveryStatus()}

			dbStatus, err := a.Service.GetDatabaseStatus()
			if err != nil {
				report.Store = err.Error()
			} else {
				report.Database = dbStatus
			}

			return printJSON(cmd.OutOrStdout(), report)
		})
	},
}

func init() {
	rootCmd.AddCommand(providersStatusCmd)
}
