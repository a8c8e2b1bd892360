package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flagbase/flagbase-go/internal/domain"
	"github.com/flagbase/flagbase-go/internal/poller"
	"github.com/flagbase/flagbase-go/internal/transport"
)

type fetchOutput struct {
	Status int              `json:"status"`
	ETag   string           `json:"etag,omitempty"`
	Flags  []domain.RawFlag `json:"flags,omitempty"`
}

func newFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Issue one conditional fetch and print the result as JSON",
		Long: `Issue a single GET against the flag-delivery service, exactly as one
poll cycle would, and print the status, validator and flags.

Example:
  flagbase fetch                # unconditional
  flagbase fetch --etag v1      # 304 if nothing changed since v1`,
		RunE: runFetch,
	}
	cmd.Flags().String("etag", poller.InitialETag, "validator to send in the ETag header")
	return cmd
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	etag, _ := cmd.Flags().GetString("etag")

	client := transport.NewHTTPClient(transport.Config{Timeout: cfg.RequestTimeout})
	resp, err := client.Fetch(cmd.Context(), transport.Request{
		URL:       cfg.PollingServiceURL(),
		ServerKey: cfg.ServerKey(),
		ETag:      etag,
	})
	if err != nil {
		return fmt.Errorf("fetch failed: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(fetchOutput{
		Status: resp.StatusCode,
		ETag:   resp.ETag,
		Flags:  resp.Flags,
	})
}
