package cmd

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newWatchCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run the rotation loop until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !app.rotator.Start() {
				return errors.New("start rotation loop")
			}

			status := app.rotator.Status()
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "watching pool, checking every %s (ctrl-c to stop)\n",
				status.CheckInterval)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()

			app.rotator.Stop()

			status = app.rotator.Status()
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "stopped after %d rotations\n", status.RotationCount)
			return err
		},
	}
}
