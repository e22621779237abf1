package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/goonbox/plexcord/internal/config"
	"github.com/goonbox/plexcord/internal/core"
	"github.com/goonbox/plexcord/internal/telemetry"
)

// newSampleCmd returns the "sample" subcommand that posts the built-in sample notification.
func newSampleCmd() *cobra.Command {
	var useTestChannel bool

	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Send the sample notification and exit",
		Long: "Connect to the chat platform, post the built-in sample movie notification\n" +
			"and exit. Useful for checking tokens, channel ids and embed rendering.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			logger := config.SetupLogger(cfg.App.LogLevel, cfg.App.LogFormat)

			messenger, err := initMessenger(cfg, logger)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			tel, err := initTelemetry(ctx, cfg)
			if err != nil {
				return err
			}
			defer shutdownTelemetry(tel, logger)

			if err := sendSample(ctx, cfg, messenger, tel, useTestChannel, logger); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), styleSuccess.Render("✓ Sample notification sent via "+messenger.Name()))
			return nil
		},
	}

	cmd.Flags().BoolVar(&useTestChannel, "test-channel", false, "post to delivery.test_channel_id instead of the main channel")
	return cmd
}

// sendSample runs messenger and the dispatcher just long enough to deliver one sample notification.
func sendSample(
	ctx context.Context,
	cfg *config.Config,
	messenger core.Messenger,
	tel *telemetry.Provider,
	useTestChannel bool,
	logger *slog.Logger,
) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	dispatcher, svc := newPipeline(cfg, messenger, nil, tel, true, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return messenger.Start(gctx) })
	g.Go(func() error { return dispatcher.Run(gctx) })
	g.Go(func() error {
		// Stop the session and dispatcher once the result is in.
		defer cancel()
		return svc.NotifyTest(gctx, useTestChannel)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("send sample notification: %w", err)
	}
	return nil
}
