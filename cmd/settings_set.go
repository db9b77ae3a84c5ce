package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/castellan-sh/castellan/internal/config"
)

var settingsSetCmd = &cobra.Command{
	Use:   "settings:set <key> <value>",
	Short: "Update a key in the config file",
	Long: `Update a single key in the config file, creating it if necessary.
Keys use dot notation; comments in untouched sections are preserved.

Examples:
  castellan settings:set auto_refresh false
  castellan settings:set providers.cloud_dir /srv/providers/cloud
  castellan settings:set tracing.enabled true`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configFilePath()
		if err := config.SetValue(path, args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: set %s\n", path, args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(settingsSetCmd)
}
