package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/castellan-sh/castellan/internal/app"
)

var configSetCmd = &cobra.Command{
	Use:   "config:set <provider-id> <key=value>...",
	Short: "Store credentials for a provider",
	Long: `Store credentials for a provider. Values are encrypted before they
reach the database.

Keys not named on the command line keep their current values. Setting a
key to an empty value removes it.

Examples:
  castellan config:set cloud.openai api_key=sk-...
  castellan config:set cloud.azure api_key=... endpoint=https://example.azure.com
  castellan config:set cloud.openai org_id=`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		providerID := args[0]
		updates := make(map[string]string, len(args)-1)
		for _, pair := range args[1:] {
			key, value, found := strings.Cut(pair, "=")
			if !found || key == "" {
				return fmt.Errorf("expected key=value, got %q", pair)
			}
			updates[key] = value
		}

		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			// The store holds a whole credential set per provider, so
			// merge the updates over the current one.
			current, err := a.Service.GetProviderConfig(ctx, providerID)
			if err != nil {
				return err
			}
			merged := make(map[string]string, len(current)+len(updates))
			for k, v := range current {
				merged[k] = v
			}
			for k, v := range updates {
				merged[k] = v
			}

			if err := a.Service.SaveProviderConfig(ctx, providerID, merged); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "saved %d credential(s) for %s\n",
				len(updates), providerID)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(configSetCmd)
}
