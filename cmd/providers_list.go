package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/castellan-sh/castellan/internal/app"
	"github.com/castellan-sh/castellan/internal/providers/domain"
)

var (
	listType       string
	listConfigured bool
)

// providerListing is the list view of one discovered provider, joined
// with its store state when the store is reachable.
type providerListing struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Type         string `json:"provider_type"`
	Version      string `json:"version,omitempty"`
	IsConfigured bool   `json:"is_configured"`
	IsAvailable  bool   `json:"is_available"`
}

var providersListCmd = &cobra.Command{
	Use:   "providers:list",
	Short: "List discovered providers as JSON",
	Long: `List discovered providers and their configuration state as JSON.

Use --type to restrict the listing to cloud or local providers.
Use --configured to show only providers with stored credentials.

Examples:
  # List every discovered provider
  castellan providers:list

  # Cloud providers only
  castellan providers:list --type cloud

  # Providers ready for use
  castellan providers:list --configured

  # Parse specific fields with jq
  castellan providers:list | jq '.[].id'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			var discovered map[string]*domain.Descriptor
			switch listType {
			case "":
				discovered = a.Service.GetAllProviders()
			case "cloud":
				discovered = a.Service.GetCloudProviders()
			case "local":
				discovered = a.Service.GetLocalProviders()
			default:
				return fmt.Errorf("--type must be \"cloud\" or \"local\", got %q", listType)
			}

			listings := make([]providerListing, 0, len(discovered))
			for id, d := range discovered {
				listings = append(listings, providerListing{
					ID:          id,
					Name:        d.Name,
					Type:        string(d.Type),
					Version:     d.Version,
					IsAvailable: true,
				})
			}

			// Store state is best-effort: a degraded store still lists
			// discovered providers, just without configuration flags.
			if a.Service.StoreAvailable() {
				for i := range listings {
					listings[i].IsConfigured = a.Service.CheckProviderConfigured(listings[i].ID)
				}
			}

			if listConfigured {
				filtered := listings[:0]
				for _, l := range listings {
					if l.IsConfigured {
						filtered = append(filtered, l)
					}
				}
				listings = filtered
			}

			sort.Slice(listings, func(i, j int) bool { return listings[i].ID < listings[j].ID })
			return printJSON(cmd.OutOrStdout(), listings)
		})
	},
}

func init() {
	providersListCmd.Flags().StringVarP(&listType, "type", "t", "", "Filter by provider type (cloud or local)")
	providersListCmd.Flags().BoolVar(&listConfigured, "configured", false, "Show only providers with stored credentials")
	rootCmd.AddCommand(providersListCmd)
}
