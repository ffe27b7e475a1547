package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/insmonitor/config"
)

// validateCmd validates a config file without starting the server.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate an INS Monitor configuration file without starting the server.

This command parses the YAML or JSON, expands environment variables, and
validates all fields. It's useful for CI/CD pipelines or pre-deployment checks.

Devices with a connection type that has no built-in adapter are reported as
warnings; they are skipped when polling.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  insmonitor validate -c config.yaml
  insmonitor validate --config /etc/insmonitor/devices.json`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if _, err := config.BuildDevices(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	counts := make(map[string]int)
	for _, d := range cfg.Devices {
		counts[d.Kind().String()]++
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Port:          %d\n", cfg.Port)
	fmt.Fprintf(out, "  Poll interval: %s\n", cfg.PollInterval.Duration())
	fmt.Fprintf(out, "  Devices:       %d (%d rest, %d serial, %d simulated)\n",
		len(cfg.Devices), counts["rest"], counts["serial"], counts["simulated"])

	if unknown := cfg.UnknownKinds(); len(unknown) > 0 {
		fmt.Fprintf(out, "  Warning: no adapter for devices %s; they will be skipped\n",
			strings.Join(unknown, ", "))
	}

	return nil
}
