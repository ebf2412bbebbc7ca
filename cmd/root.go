// Package cmd contains the studio CLI commands.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "studio",
	Short: "Locaith AI Studio backend",
	Long: `Locaith AI Studio generates complete websites from natural language
prompts, persists them as projects, and drives a live voice assistant.

Run "studio serve" to start the HTTP server.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
