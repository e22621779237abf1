package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.yaml.in/yaml/v3"
)

// Delivery backends.
const (
	BackendDiscord  = "discord"
	BackendTelegram = "telegram"
)

// Delivery modes.
const (
	ModeAsync = "async" // respond immediately, log delivery failures
	ModeWait  = "wait"  // block the webhook response until delivery or timeout
)

const (
	defaultDeliveryTimeout = 10 * time.Second
	defaultQueueSize       = 16
	defaultFooterText      = "Plex Library • GoonBox"
	defaultServiceName     = "plexcord"
)

// legacyPlexTokenEnv is the variable name used by older .env files.
const legacyPlexTokenEnv = "X-PLEX-TOKEN"

// Config represents the main application configuration
type Config struct {
	// Chat delivery
	Delivery DeliveryConfig `yaml:"delivery"`
	Discord  DiscordConfig  `yaml:"discord"`
	Telegram TelegramConfig `yaml:"telegram"`

	// Media server
	Plex PlexConfig `yaml:"plex"`

	// Inbound webhook server
	Server ServerConfig `yaml:"server"`

	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Application settings
	App AppConfig `yaml:"app"`
}

// DeliveryConfig selects where and how notifications are delivered.
type DeliveryConfig struct {
	Backend       string        `yaml:"backend" envconfig:"DELIVERY_BACKEND" validate:"oneof=discord telegram"`
	ChannelID     string        `yaml:"channel_id" envconfig:"CHANNEL_ID" validate:"required"`
	TestChannelID string        `yaml:"test_channel_id,omitempty" envconfig:"TEST_CHANNEL_ID"`
	Mode          string        `yaml:"mode" envconfig:"DELIVERY_MODE" validate:"oneof=async wait"`
	Timeout       time.Duration `yaml:"timeout" envconfig:"DELIVERY_TIMEOUT" validate:"gt=0"`
	QueueSize     int           `yaml:"queue_size" envconfig:"DELIVERY_QUEUE_SIZE" validate:"min=1"`
	FooterText    string        `yaml:"footer_text" envconfig:"FOOTER_TEXT"`
}

// DiscordConfig holds Discord bot configuration
type DiscordConfig struct {
	Token SecretString `yaml:"token" envconfig:"DISCORD_TOKEN"`
}

// TelegramConfig holds Telegram bot configuration
type TelegramConfig struct {
	BotToken SecretString `yaml:"bot_token" envconfig:"TELEGRAM_BOT_TOKEN"`
}

// PlexConfig holds Plex Media Server configuration
type PlexConfig struct {
	Token        SecretString `yaml:"token" envconfig:"PLEX_TOKEN" validate:"required"`
	Hostname     string       `yaml:"hostname" envconfig:"PLEX_HOSTNAME" validate:"required"`
	ThumbnailURL string       `yaml:"thumbnail_url" envconfig:"THUMBNAIL_URL" validate:"required,url"`
	// URL is the API base (e.g. http://localhost:32400), used to look up the server id.
	URL string `yaml:"url,omitempty" envconfig:"PLEX_URL" validate:"omitempty,url"`
	// StripImageToken keeps the Plex token out of image URLs handed to the chat platform.
	StripImageToken bool `yaml:"strip_image_token,omitempty" envconfig:"PLEX_STRIP_IMAGE_TOKEN"`
}

// ServerConfig holds the webhook HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port" envconfig:"PORT" validate:"required,min=1,max=65535"`
}

// TelemetryConfig holds OpenTelemetry settings. Tracing export is off when the endpoint is empty.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint,omitempty" envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName  string `yaml:"service_name,omitempty" envconfig:"OTEL_SERVICE_NAME"`
}

// AppConfig holds application-level settings
type AppConfig struct {
	LogLevel  string `yaml:"log_level" envconfig:"LOG_LEVEL" validate:"oneof=debug info warn warning error"`
	LogFormat string `yaml:"log_format" envconfig:"LOG_FORMAT" validate:"oneof=json text"`
}

// Load builds the configuration from an optional YAML file, a .env file and the environment.
// Environment variables take precedence over the file. An empty path skips the file.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}

	// A missing .env is not an error; existing variables are not overridden.
	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// readFile decodes the YAML file at path into c.
func (c *Config) readFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config file not found: %s", path)
		}
		return fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("config path %s is a directory", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// applyEnv overrides config values with environment variables.
func (c *Config) applyEnv() error {
	if err := envconfig.Process("", c); err != nil {
		return fmt.Errorf("failed to process environment: %w", err)
	}
	if c.Plex.Token == "" {
		if v, ok := os.LookupEnv(legacyPlexTokenEnv); ok {
			c.Plex.Token = SecretString(v)
		}
	}
	return nil
}

// setDefaults fills optional settings that were left empty.
func (c *Config) setDefaults() {
	if c.Delivery.Backend == "" {
		c.Delivery.Backend = BackendDiscord
	}
	if c.Delivery.Mode == "" {
		c.Delivery.Mode = ModeAsync
	}
	if c.Delivery.Timeout == 0 {
		c.Delivery.Timeout = defaultDeliveryTimeout
	}
	if c.Delivery.QueueSize == 0 {
		c.Delivery.QueueSize = defaultQueueSize
	}
	if c.Delivery.FooterText == "" {
		c.Delivery.FooterText = defaultFooterText
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = defaultServiceName
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.LogFormat == "" {
		c.App.LogFormat = "json"
	}
	c.App.LogLevel = strings.ToLower(c.App.LogLevel)
}

// Validate applies defaults and validates the configuration
func (c *Config) Validate() error {
	c.setDefaults()

	if err := validator.New().Struct(c); err != nil {
		return describeValidation(err)
	}

	switch c.Delivery.Backend {
	case BackendDiscord:
		if c.Discord.Token == "" {
			return fmt.Errorf("discord.token is required")
		}
	case BackendTelegram:
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required")
		}
	}

	return nil
}

// envNames maps struct fields to the variables operators actually set.
var envNames = map[string]string{
	"Delivery.Backend":   "DELIVERY_BACKEND",
	"Delivery.ChannelID": "CHANNEL_ID",
	"Delivery.Mode":      "DELIVERY_MODE",
	"Delivery.Timeout":   "DELIVERY_TIMEOUT",
	"Delivery.QueueSize": "DELIVERY_QUEUE_SIZE",
	"Plex.Token":         "PLEX_TOKEN",
	"Plex.Hostname":      "PLEX_HOSTNAME",
	"Plex.ThumbnailURL":  "THUMBNAIL_URL",
	"Plex.URL":           "PLEX_URL",
	"Server.Port":        "PORT",
	"App.LogLevel":       "LOG_LEVEL",
	"App.LogFormat":      "LOG_FORMAT",
}

// describeValidation turns validator errors into messages naming the environment variable.
func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	name := field
	if env, ok := envNames[field]; ok {
		name = env
	}
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", name)
	case "oneof":
		return fmt.Errorf("%s must be one of [%s], got %q", name, fe.Param(), fe.Value())
	case "url":
		return fmt.Errorf("%s must be a valid URL", name)
	default:
		return fmt.Errorf("%s failed %q validation", name, fe.Tag())
	}
}
