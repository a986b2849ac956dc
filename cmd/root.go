package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the joinpass application
var rootCmd = &cobra.Command{
	Use:   "joinpass",
	Short: "Provisions join credentials for Zoom and Google Meet sessions",
	Long: `joinpass hands out short-lived join credentials for video meetings.

For Zoom it signs SDK join tokens for an existing meeting. For Google Meet it
creates a calendar event with a Meet conference on behalf of the caller and
returns the join URL.

It can run as:
  - An HTTP API and MCP (Model Context Protocol) server (serve)
  - A local signing tool for Zoom join tokens (sign, verify)`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "joinpass version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newSignCmd())
	rootCmd.AddCommand(newVerifyCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newGenerateDocsCmd())
}
