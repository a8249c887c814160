package cli

import (
	"github.com/spf13/cobra"

	"sentinel/internal/dashboard"
)

// NewStatusCmd prints the dashboard once.
func NewStatusCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the dashboard once",
		Long: `Fetch metrics, privacy budget, anomalies and AI status and print them.
Sections that fail to load are reported and shown with fallback values.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			notifier := &consoleNotifier{w: cmd.ErrOrStderr()}
			session := dashboard.NewSession(e.api, e.cfg, notifier, e.logger)

			err := session.Load(cmd.Context())
			renderSession(cmd.OutOrStdout(), session)
			return err
		},
	}
}
