package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"sentinel/internal/dashboard"
)

const clearScreen = "\033[H\033[2J"

// NewWatchCmd keeps the dashboard on screen and redraws it on every push.
func NewWatchCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow the dashboard live",
		Long: `Load the dashboard once, subscribe to the server push channel and redraw
on every metrics update or new anomaly. AI status is refreshed periodically.
Stop with Ctrl-C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			notifier := &consoleNotifier{w: cmd.ErrOrStderr()}
			session := dashboard.NewSession(e.api, e.cfg, notifier, e.logger)

			var mu sync.Mutex
			redraw := func() {
				mu.Lock()
				defer mu.Unlock()
				draw(out, session)
			}
			redraw()

			err := session.Run(cmd.Context(), redraw)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

func draw(w io.Writer, s *dashboard.Session) {
	if !color.NoColor {
		fmt.Fprint(w, clearScreen)
	} else {
		fmt.Fprintln(w)
	}
	renderSession(w, s)
}
