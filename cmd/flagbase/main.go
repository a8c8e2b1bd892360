// Package main is the entry point for the flagbase CLI.
//
// Usage:
//
//	flagbase poll -c flagbase.yaml      # Run the poller and log every event
//	flagbase fetch --etag v1            # Issue one conditional fetch
//	flagbase validate -c flagbase.yaml  # Validate configuration
//	flagbase version                    # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/flagbase/flagbase-go/internal/config"
)

// Version information, set at build time via ldflags.
var (
	version = "dev"
	commit  = "none"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "flagbase",
		Short: "Flagbase flag-delivery client",
		Long: `flagbase keeps a local copy of your Flagbase flags in sync with the
flag-delivery service.

Configuration is read from a YAML file (-c) and FLAGBASE_* environment
variables, environment taking precedence:
  FLAGBASE_POLLING_SERVICE_URL, FLAGBASE_POLLING_INTERVAL_MS,
  FLAGBASE_SERVER_KEY, FLAGBASE_REQUEST_TIMEOUT, ...`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file (defaults to environment only)")

	root.AddCommand(
		newPollCmd(),
		newFetchCmd(),
		newValidateCmd(),
		newVersionCmd(),
	)
	return root
}

// loadConfig reads -c if given, otherwise the environment.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return config.FromEnv()
	}
	return config.LoadFile(path)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "flagbase %s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "  commit: %s\n", commit)
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
