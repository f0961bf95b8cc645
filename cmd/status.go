package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	statusadapter "github.com/storygrab/igaccounts/internal/adapters/render/status"
)

func newStatusCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show pool accounts and rotation state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			current, _ := app.pool.GetCurrent()
			rotation := app.rotator.Status()
			snapshot := statusadapter.Snapshot{
				Accounts:  app.pool.List(),
				CurrentID: current.ID,
				Rotation:  &rotation,
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(snapshot)
			}

			_, err := fmt.Fprintln(cmd.OutOrStdout(),
				statusadapter.Render(snapshot, statusadapter.RenderOptions{Now: app.now()}))
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "emit the snapshot as JSON")

	return cmd
}
