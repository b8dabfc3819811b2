// Package app implements the main application commands.
package app

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "go-lti-tool",
	Short: "GoLTI-Tool is an LTI 1.3 tool provider for publishing course content",
	Long: `GoLTI-Tool is an LTI Advantage tool provider that authenticates
platform-initiated launches, provisions or binds local user accounts from
signed claims and enrols launched users into the courses behind published
resources.`,
	Args: cobra.OnlyValidArgs,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
