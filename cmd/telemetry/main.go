package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const (
	version = "0.3.0"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "telemetry",
	Short:         "Software telemetry evaluation service",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	Long: `Evaluates telemetry streams, charts and reports over project sensor data.

Examples:
  telemetry serve --config telemetry.yaml
  telemetry functions
  telemetry reducers
  telemetry eval DevTimeChart bob --project alice/hackystat --start 2024-03-01 --end 2024-03-07`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML configuration file")
	rootCmd.AddCommand(serveCmd, functionsCmd, reducersCmd, evalCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
