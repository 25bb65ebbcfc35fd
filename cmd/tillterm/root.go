package main

import "github.com/spf13/cobra"

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "tillterm",
	Short: "Restaurant POS terminal",
	Long: `tillterm is the cashier-facing terminal of the POS system.

It keeps the menu, categories and stock cached locally so the terminal
renders instantly after a restart, gates order taking behind an open
shift, and refreshes its data in the background.`,
	Version: Version,
}

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}
