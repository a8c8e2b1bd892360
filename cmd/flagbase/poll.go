package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/flagbase/flagbase-go"
	"github.com/flagbase/flagbase-go/internal/logger"
)

func newPollCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "poll",
		Short: "Run the poller and log every event",
		Long: `Run the background poller until interrupted (Ctrl+C) or SIGTERM.

Every NETWORK_FETCH_FULL, NETWORK_FETCH_CACHED and NETWORK_FETCH_ERROR
event is logged. The admin server, Redis fan-out, disk snapshot and SQLite
store are enabled by the matching config keys.

Example:
  FLAGBASE_SERVER_KEY=sdk-server_... flagbase poll
  flagbase poll -c /etc/flagbase/flagbase.yaml`,
		RunE: runPoll,
	}
}

func runPoll(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.FaultEvents = true

	log, err := logger.New("flagbase-cli")
	if err != nil {
		return err
	}
	defer log.Sync()

	client, err := flagbase.New(
		flagbase.WithConfig(cfg),
		flagbase.WithLogger(log.Zap()),
	)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	defer client.Close()

	evCh := make(chan flagbase.Event, 16)
	forward := func(ev flagbase.Event) {
		select {
		case evCh <- ev:
		default:
			log.Warn("event dropped, printer is behind", logger.String(logger.FieldEventKind, string(ev.Kind)))
		}
	}
	for _, kind := range []flagbase.EventKind{flagbase.EventFullFetch, flagbase.EventCachedFetch, flagbase.EventFetchError} {
		client.On(kind, forward)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := client.Start(ctx); err != nil {
		return err
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Print events
	g.Go(func() error {
		for {
			select {
			case <-gCtx.Done():
				return nil
			case ev := <-evCh:
				log.Info(ev.Message,
					logger.String(logger.FieldEventKind, string(ev.Kind)),
					logger.Int(logger.FieldFlagCount, len(ev.Context)),
				)
			}
		}
	})

	// Handle graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		log.Info("received shutdown signal")
		return client.Stop()
	})

	return g.Wait()
}
