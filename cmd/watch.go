package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/castellan-sh/castellan/internal/app"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the provider roots and keep the store synchronized",
	Long: `Watch the provider roots and rerun discovery plus store
reconciliation whenever a manifest changes, until interrupted.

Refresh passes are debounced by auto_refresh_debounce milliseconds.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}

		runCfg := cfg
		runCfg.AutoRefresh = true

		a, err := app.New(runCfg)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := a.Start(ctx); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "watching %s and %s\n",
			runCfg.CloudRoot(), runCfg.LocalRoot())
		<-ctx.Done()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
