// Package main is the entry point for the insmonitor CLI.
//
// INS Monitor can be run either as a library (SDK) or as a standalone binary
// with a YAML or JSON configuration file. This CLI provides the standalone
// binary approach.
//
// Usage:
//
//	insmonitor serve -c config.yaml    # Start polling and the dashboard
//	insmonitor validate -c config.yaml # Validate configuration
//	insmonitor version                 # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information, set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
// It just displays help - actual functionality is in subcommands.
var rootCmd = &cobra.Command{
	Use:   "insmonitor",
	Short: "A live monitor for INS and GNSS units",
	Long: `INS Monitor polls a fleet of inertial navigation systems at a fixed
cadence and shows their position, attitude and GNSS state on a live map.

Quick start:
  1. Create a config file (insmonitor.yaml)
  2. Run: insmonitor serve -c insmonitor.yaml
  3. Open http://localhost:8080 in your browser

Example config:
  port: 8080
  poll_interval: 1s
  devices:
    - id: ins-1
      name: Survey vessel
      connection_type: rest
      ip_address: 192.168.1.50
    - id: demo
      connection_type: simulated`,
}

// Execute runs the root command.
// This is the main entry point called from main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this insmonitor binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "insmonitor %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
