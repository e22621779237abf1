package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/goonbox/plexcord/internal/config"
	"github.com/goonbox/plexcord/internal/core"
	"github.com/goonbox/plexcord/internal/frontend/discord"
	"github.com/goonbox/plexcord/internal/frontend/telegram"
	"github.com/goonbox/plexcord/internal/notification"
	"github.com/goonbox/plexcord/internal/plex"
	"github.com/goonbox/plexcord/internal/telemetry"
)

const telemetryShutdownTimeout = 5 * time.Second

// Lipgloss styles used across commands.
var (
	styleError   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))  // red
	styleSuccess = lipgloss.NewStyle().Foreground(lipgloss.Color("10")) // green
	styleInfo    = lipgloss.NewStyle().Foreground(lipgloss.Color("12")) // blue
	styleDim     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))  // gray

	styleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("5")).
			MarginBottom(1)
)

// loadConfig loads and validates the configuration.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	return cfg, nil
}

// initMessenger creates the chat client for the configured delivery backend.
func initMessenger(cfg *config.Config, logger *slog.Logger) (core.Messenger, error) {
	switch cfg.Delivery.Backend {
	case config.BackendDiscord:
		bot, err := discord.New(cfg.Discord.Token.Unmask(), logger)
		if err != nil {
			return nil, err
		}
		logger.Info("discord messenger initialized")
		return bot, nil
	case config.BackendTelegram:
		bot, err := telegram.New(cfg.Telegram.BotToken.Unmask(), logger)
		if err != nil {
			return nil, err
		}
		logger.Info("telegram messenger initialized")
		return bot, nil
	default:
		return nil, fmt.Errorf("unsupported delivery backend: %s", cfg.Delivery.Backend)
	}
}

// initIdentifier creates a Plex API client if plex.url is configured, or returns nil.
func initIdentifier(cfg *config.Config, logger *slog.Logger) core.ServerIdentifier {
	if cfg.Plex.URL == "" {
		return nil
	}
	client := plex.NewClient(cfg.Plex.URL, cfg.Plex.Token.Unmask(), logger)
	logger.Info("Plex API client initialized", slog.String("url", sanitizeURL(cfg.Plex.URL)))
	return client
}

// displayConfig extracts the embed rendering settings.
func displayConfig(cfg *config.Config) notification.DisplayConfig {
	return notification.DisplayConfig{
		MediaHostName:      cfg.Plex.Hostname,
		AccessToken:        cfg.Plex.Token.Unmask(),
		StaticThumbnailURL: cfg.Plex.ThumbnailURL,
		FooterText:         cfg.Delivery.FooterText,
		StripImageToken:    cfg.Plex.StripImageToken,
	}
}

// sanitizeURL strips credentials, query params, and fragment from a URL for safe logging.
func sanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || u.Scheme == "" {
		return "<redacted>"
	}
	u.User = nil
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

// newPipeline wires the dispatcher and notification service for messenger.
func newPipeline(
	cfg *config.Config,
	messenger core.Messenger,
	identifier core.ServerIdentifier,
	tel *telemetry.Provider,
	wait bool,
	logger *slog.Logger,
) (*notification.Dispatcher, *notification.Service) {
	dispatcher := notification.NewDispatcher(messenger, cfg.Delivery.QueueSize, cfg.Delivery.Timeout, tel, logger)
	svc := notification.NewService(dispatcher, notification.Options{
		Display:       displayConfig(cfg),
		ChannelID:     cfg.Delivery.ChannelID,
		TestChannelID: cfg.Delivery.TestChannelID,
		Wait:          wait,
		Timeout:       cfg.Delivery.Timeout,
		Identifier:    identifier,
	}, tel, logger)
	return dispatcher, svc
}

// initTelemetry creates the OpenTelemetry provider for the process.
func initTelemetry(ctx context.Context, cfg *config.Config) (*telemetry.Provider, error) {
	tel, err := telemetry.New(ctx, telemetry.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	return tel, nil
}

// shutdownTelemetry flushes pending spans with a fresh deadline.
func shutdownTelemetry(tel *telemetry.Provider, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
	defer cancel()
	if err := tel.Shutdown(ctx); err != nil {
		logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
	}
}
