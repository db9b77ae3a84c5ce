package cmd

import (
	"context"
	"sort"

	"github.com/spf13/cobra"

	"github.com/castellan-sh/castellan/internal/app"
)

var configReveal bool

// credentialView lists one stored credential key, masked by default.
type credentialView struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

var configGetCmd = &cobra.Command{
	Use:   "config:get <provider-id>",
	Short: "Show stored credential keys for a provider",
	Long: `Show the stored credential keys for a provider as JSON. Values are
masked unless --reveal is given.

Examples:
  castellan config:get cloud.openai
  castellan config:get cloud.openai --reveal | jq -r '.[].value'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		providerID := args[0]

		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			credentials, err := a.Service.GetProviderConfig(ctx, providerID)
			if err != nil {
				return err
			}

			views := make([]credentialView, 0, len(credentials))
			for key, value := range credentials {
				if !configReveal {
					value = maskValue(value)
				}
				views = append(views, credentialView{Key: key, Value: value})
			}
			sort.Slice(views, func(i, j int) bool { return views[i].Key < views[j].Key })

			return printJSON(cmd.OutOrStdout(), views)
		})
	},
}

// maskValue hides all but the last four characters of a credential.
func maskValue(value string) string {
	const visible = 4
	if len(value) <= visible {
		return "****"
	}
	return "****" + value[len(value)-visible:]
}

func init() {
	configGetCmd.Flags().BoolVar(&configReveal, "reveal", false, "Print decrypted credential values")
	rootCmd.AddCommand(configGetCmd)
}
