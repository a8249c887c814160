// Package cli implements the sentinel dashboard command line interface.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"sentinel/internal/client"
	"sentinel/internal/config"
	"sentinel/internal/logger"
)

// env is the state shared by every subcommand, filled in by the root command.
type env struct {
	cfg    *config.DashboardConfig
	api    *client.Client
	logger *logger.Logger
}

// NewRootCmd builds the dashboard command tree. Flags override cfg.
func NewRootCmd(cfg *config.DashboardConfig) *cobra.Command {
	e := &env{cfg: cfg}

	cmd := &cobra.Command{
		Use:   "sentinel-dashboard",
		Short: "Sentinel dashboard",
		Long: `Sentinel dashboard is a command line interface for monitoring the
federated learning surveillance server: live metrics, privacy budget,
anomaly feed, AI status and media upload for analysis.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			e.logger = logger.NewConsoleLogger(cmd.ErrOrStderr())

			api, err := client.New(cfg.ServerURL,
				client.WithToken(cfg.APIToken),
				client.WithTimeout(cfg.RequestTimeout),
			)
			if err != nil {
				return fmt.Errorf("failed to create client: %w", err)
			}
			e.api = api
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "server base URL")
	cmd.PersistentFlags().StringVar(&cfg.APIToken, "token", cfg.APIToken, "API token")

	cmd.AddCommand(
		NewStatusCmd(e),
		NewWatchCmd(e),
		NewUploadCmd(e),
	)
	return cmd
}
