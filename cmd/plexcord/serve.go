package main

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/goonbox/plexcord/internal/config"
	"github.com/goonbox/plexcord/internal/notification"
)

// newServeCmd returns the "serve" subcommand that runs the webhook bridge.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook server and chat bot",
		Long: "Start the HTTP server that receives Plex webhooks together with the chat session\n" +
			"that delivers notifications. Runs until interrupted.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

// runServe wires all components and runs them until a signal arrives or one of them fails.
func runServe(parent context.Context) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger := config.SetupLogger(cfg.App.LogLevel, cfg.App.LogFormat)

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tel, err := initTelemetry(ctx, cfg)
	if err != nil {
		return err
	}
	defer shutdownTelemetry(tel, logger)

	messenger, err := initMessenger(cfg, logger)
	if err != nil {
		return err
	}

	dispatcher, svc := newPipeline(
		cfg, messenger, initIdentifier(cfg, logger), tel,
		cfg.Delivery.Mode == config.ModeWait, logger,
	)
	handler := notification.NewWebhookHandler(svc, tel, logger)
	srv := notification.NewServer(cfg.Server.Port, handler, logger)

	logger.Info("plexcord starting",
		slog.String("version", version),
		slog.String("backend", messenger.Name()),
		slog.String("mode", cfg.Delivery.Mode),
		slog.Int("port", cfg.Server.Port),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return messenger.Start(gctx) })
	g.Go(func() error { return dispatcher.Run(gctx) })
	g.Go(func() error { return srv.Start(gctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("plexcord stopped", slog.String("error", err.Error()))
		return err
	}
	logger.Info("plexcord stopped")
	return nil
}
