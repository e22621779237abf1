package config

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"
)

type validateCase struct {
	name    string
	modify  func(*Config)
	wantErr string
}

// validConfig returns a minimal Config that passes Validate().
func validConfig() Config {
	return Config{
		Delivery: DeliveryConfig{ChannelID: "1234567890"},
		Discord:  DiscordConfig{Token: "discord-token"},
		Plex: PlexConfig{
			Token:        "plex-token",
			Hostname:     "plex.example.com",
			ThumbnailURL: "https://cdn.example.com/plex.png",
		},
		Server: ServerConfig{Port: 8000},
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []validateCase{
		{"valid_minimal", nil, ""},
		{"missing_channel", func(c *Config) { c.Delivery.ChannelID = "" }, "CHANNEL_ID is required"},
		{"missing_plex_token", func(c *Config) { c.Plex.Token = "" }, "PLEX_TOKEN is required"},
		{"missing_hostname", func(c *Config) { c.Plex.Hostname = "" }, "PLEX_HOSTNAME is required"},
		{"missing_thumbnail", func(c *Config) { c.Plex.ThumbnailURL = "" }, "THUMBNAIL_URL is required"},
		{"bad_thumbnail", func(c *Config) { c.Plex.ThumbnailURL = "not a url" }, "THUMBNAIL_URL must be a valid URL"},
		{"bad_plex_url", func(c *Config) { c.Plex.URL = "::" }, "PLEX_URL must be a valid URL"},
		{"missing_port", func(c *Config) { c.Server.Port = 0 }, "PORT is required"},
		{"port_too_high", func(c *Config) { c.Server.Port = 70000 }, "PORT failed \"max\" validation"},
		{"missing_discord_token", func(c *Config) { c.Discord.Token = "" }, "discord.token is required"},
		{"unknown_backend", func(c *Config) { c.Delivery.Backend = "slack" }, "DELIVERY_BACKEND must be one of"},
		{"unknown_mode", func(c *Config) { c.Delivery.Mode = "later" }, "DELIVERY_MODE must be one of"},
		{"telegram_needs_token", func(c *Config) {
			c.Delivery.Backend = BackendTelegram
		}, "telegram.bot_token is required"},
		{"telegram_valid", func(c *Config) {
			c.Delivery.Backend = BackendTelegram
			c.Discord.Token = ""
			c.Telegram.BotToken = "123:ABC"
		}, ""},
		{"bad_log_level", func(c *Config) { c.App.LogLevel = "trace" }, "LOG_LEVEL must be one of"},
		{"upper_log_level_accepted", func(c *Config) { c.App.LogLevel = "DEBUG" }, ""},
		{"bad_log_format", func(c *Config) { c.App.LogFormat = "xml" }, "LOG_FORMAT must be one of"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			if tt.modify != nil {
				tt.modify(&cfg)
			}
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSetDefaults(t *testing.T) {
	t.Parallel()

	cfg := Config{}
	cfg.setDefaults()

	assert.Equal(t, BackendDiscord, cfg.Delivery.Backend)
	assert.Equal(t, ModeAsync, cfg.Delivery.Mode)
	assert.Equal(t, 10*time.Second, cfg.Delivery.Timeout)
	assert.Equal(t, defaultQueueSize, cfg.Delivery.QueueSize)
	assert.Equal(t, "Plex Library • GoonBox", cfg.Delivery.FooterText)
	assert.Equal(t, "plexcord", cfg.Telemetry.ServiceName)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, "json", cfg.App.LogFormat)

	t.Run("preserves_values", func(t *testing.T) {
		t.Parallel()
		cfg := Config{
			Delivery: DeliveryConfig{Mode: ModeWait, Timeout: 3 * time.Second, FooterText: "custom"},
			App:      AppConfig{LogLevel: "debug"},
		}
		cfg.setDefaults()
		assert.Equal(t, ModeWait, cfg.Delivery.Mode)
		assert.Equal(t, 3*time.Second, cfg.Delivery.Timeout)
		assert.Equal(t, "custom", cfg.Delivery.FooterText)
		assert.Equal(t, "debug", cfg.App.LogLevel)
	})
}

const minimalYAML = `
delivery:
  channel_id: "42"
discord:
  token: yaml-discord
plex:
  token: yaml-plex
  hostname: plex.example.com
  thumbnail_url: https://cdn.example.com/plex.png
server:
  port: 8000
`

func writeTempYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plexcord.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// Tests below mutate the process environment and therefore do not run in parallel.

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range envNames {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
	for _, name := range []string{"DISCORD_TOKEN", "TELEGRAM_BOT_TOKEN", "TEST_CHANNEL_ID", "FOOTER_TEXT", legacyPlexTokenEnv} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
}

func TestLoad_YAML(t *testing.T) {
	clearEnv(t)
	path := writeTempYAML(t, minimalYAML)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "42", cfg.Delivery.ChannelID)
	assert.Equal(t, "yaml-discord", cfg.Discord.Token.Unmask())
	assert.Equal(t, "plex.example.com", cfg.Plex.Hostname)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "info", cfg.App.LogLevel)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	clearEnv(t)
	path := writeTempYAML(t, minimalYAML)
	t.Setenv("CHANNEL_ID", "99")
	t.Setenv("PORT", "9090")
	t.Setenv("DELIVERY_MODE", "wait")
	t.Setenv("DELIVERY_TIMEOUT", "2s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "99", cfg.Delivery.ChannelID)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, ModeWait, cfg.Delivery.Mode)
	assert.Equal(t, 2*time.Second, cfg.Delivery.Timeout)
	assert.Equal(t, "yaml-plex", cfg.Plex.Token.Unmask(), "unset variables keep file values")
}

func TestLoad_EnvOnly(t *testing.T) {
	clearEnv(t)
	t.Setenv("DISCORD_TOKEN", "env-discord")
	t.Setenv("CHANNEL_ID", "7")
	t.Setenv(legacyPlexTokenEnv, "legacy-token")
	t.Setenv("PLEX_HOSTNAME", "plex.local")
	t.Setenv("THUMBNAIL_URL", "https://cdn.example.com/t.png")
	t.Setenv("PORT", "8000")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "legacy-token", cfg.Plex.Token.Unmask())
	assert.Equal(t, "env-discord", cfg.Discord.Token.Unmask())
}

func TestLoad_MissingRequired(t *testing.T) {
	clearEnv(t)
	t.Setenv("DISCORD_TOKEN", "env-discord")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)

	t.Run("invalid_yaml", func(t *testing.T) {
		_, err := Load(writeTempYAML(t, "{{invalid yaml}}"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse")
	})

	t.Run("file_not_found", func(t *testing.T) {
		_, err := Load("/nonexistent/path/config.yaml")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "config file not found")
	})

	t.Run("path_is_directory", func(t *testing.T) {
		_, err := Load(t.TempDir())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "directory")
	})
}

func TestSecretString_Redacted(t *testing.T) {
	t.Parallel()

	s := SecretString("hunter2")

	assert.Equal(t, redactedPlaceholder, s.String())
	assert.Equal(t, redactedPlaceholder, fmt.Sprintf("%v", s))
	assert.Equal(t, "hunter2", s.Unmask())

	data, err := json.Marshal(struct{ Token SecretString }{s})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hunter2")

	out, err := yaml.Marshal(PlexConfig{Token: s})
	require.NoError(t, err)
	assert.NotContains(t, string(out), "hunter2")
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := newLogger(&buf, "warn", "json")
	logger.Info("hidden")
	logger.Warn("shown", slog.String("k", "v"))

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	buf.Reset()
	logger = newLogger(&buf, "debug", "text")
	logger.Debug("plain")
	assert.Contains(t, buf.String(), "msg=plain")
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestLoggerContext(t *testing.T) {
	t.Parallel()

	assert.Equal(t, slog.Default(), LoggerFromContext(context.Background()))

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	ctx := ContextWithLogger(context.Background(), logger)
	assert.Same(t, logger, LoggerFromContext(ctx))
}
