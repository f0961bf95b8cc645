package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "iga",
		Short:         "iga: manage a pool of story-fetching accounts",
		Long:          "iga keeps a pool of accounts for a rate-sensitive upstream, tracks per-account usage and cooldowns, and rotates between accounts before any one of them draws attention.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	app, err := wireApp()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newAccountCmd(app),
		newRotateCmd(app),
		newStatusCmd(app),
		newWatchCmd(app),
	)

	return rootCmd
}
