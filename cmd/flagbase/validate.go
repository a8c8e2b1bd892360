package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flagbase/flagbase-go/internal/filter"
	"github.com/flagbase/flagbase-go/internal/poller"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		Long: `Validate the configuration without contacting the service.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)`,
		RunE: runValidate,
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	f, err := filter.Compile(cfg.CacheFilter)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Service URL:   %s\n", cfg.PollingServiceURL())
	fmt.Fprintf(out, "  Poll interval: %s\n", poller.EffectiveInterval(cfg.PollingIntervalMs()))
	fmt.Fprintf(out, "  Cache filter:  %s\n", f)
	return nil
}
