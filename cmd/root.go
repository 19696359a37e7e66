// Package cmd wires the command-line interface. All application logic lives
// here so main.go stays a minimal entry point.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "groundchat",
	Short: "GroundChat - a local Gemini chat server with grounded answers",
	Long: `GroundChat runs a local web chat UI backed by the Gemini API.

Sessions, per-session model settings, and local text sources persist
across restarts. Answers can be grounded in Google Search and Google
Maps results, with citations attached to each response.

Running groundchat without a subcommand starts the server.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
