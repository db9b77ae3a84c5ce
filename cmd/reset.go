package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/castellan-sh/castellan/internal/app"
)

var resetForce bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete every provider row and credential from the store",
	Long: `Delete every provider row and credential from the store. This cannot
be undone; discovered providers are re-inserted (unconfigured) on the
next sync pass.

Requires --force.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !resetForce {
			return fmt.Errorf("reset is destructive, pass --force to confirm")
		}

		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := a.Service.Purge(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "provider store purged")
			return nil
		})
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetForce, "force", false, "Confirm the destructive reset")
	rootCmd.AddCommand(resetCmd)
}
