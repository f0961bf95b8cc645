package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/storygrab/igaccounts/internal/domain"
)

func newRotateCmd(app *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "rotate",
		Short: "Switch the pool to the best available account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ok, oldID, newID := app.pool.Rotate(cmd.Context(), force)
			if !ok {
				return domain.ErrNoAccounts
			}

			if oldID == newID {
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "staying on %s\n", newID)
				return err
			}

			_, err := fmt.Fprintf(cmd.OutOrStdout(), "rotated %s -> %s\n", oldID, newID)
			return err
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "rotate even if the current account is still under its limit")

	return cmd
}
