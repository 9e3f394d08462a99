// Package cli implements the mockfirebolt command line.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// jsonOutput switches command output to JSON.
	jsonOutput bool

	// Version is injected during build
	Version = "dev"
	// Commit is injected during build
	Commit = "none"
	// BuildDate is injected during build
	BuildDate = "unknown"
)

// rootCmd runs the server when called without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "mockfirebolt",
	Short: "mockfirebolt is a mock Firebolt device for app testing",
	Long: `mockfirebolt accepts Firebolt WebSocket connections on the socket port and
answers JSON-RPC requests from per-user mock state, or relays them to a real
device when --proxy is set.

Configuration can be provided via flags, environment variables, or a YAML
configuration file (--config).`,
	SilenceUsage:  true,
	SilenceErrors: true, // We handle errors in Execute()
	Args:          cobra.NoArgs,
	RunE:          runServeCmd,
}

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output command results in JSON format")
}
