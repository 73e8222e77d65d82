// Package config provides configuration management for arenalive using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultServerPort      = 8086
	defaultServerTimeout   = 30 * time.Second
	defaultShutdownTimeout = 10 * time.Second

	defaultMaxRetries = 10
	defaultBaseDelay  = 1 * time.Second
	defaultMaxDelay   = 30 * time.Second

	defaultSurfaceWidth  = 768
	defaultSurfaceHeight = 672

	defaultHTTPTimeout   = 10 * time.Second
	defaultRetryAttempts = 3
	defaultRetryDelay    = 1 * time.Second
)

// Config holds all configuration for the application.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Stream     StreamConfig     `mapstructure:"stream"`
	Settlement SettlementConfig `mapstructure:"settlement"`
	Services   ServicesConfig   `mapstructure:"services"`
	Archive    ArchiveConfig    `mapstructure:"archive"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig holds the local status/metrics HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StreamConfig holds live stream client configuration.
type StreamConfig struct {
	// BaseURL is the websocket base, e.g. "wss://api.example.com/ws".
	BaseURL string `mapstructure:"base_url"`

	// Reconnect backoff policy. Delay for attempt n is
	// min(base_delay * 2^n, max_delay); after max_retries abnormal closes
	// the channel gives up permanently.
	MaxRetries uint32        `mapstructure:"max_retries"`
	BaseDelay  time.Duration `mapstructure:"base_delay"`
	MaxDelay   time.Duration `mapstructure:"max_delay"`

	// Render surface dimensions. Decoded frames are scaled to this size.
	SurfaceWidth  int `mapstructure:"surface_width"`
	SurfaceHeight int `mapstructure:"surface_height"`

	// Decoder selects the decode capability: "auto", "annexb", or "none".
	Decoder string `mapstructure:"decoder"`
}

// SettlementConfig holds the on-chain settlement program configuration.
type SettlementConfig struct {
	// ProgramID is the base58 address of the settlement program.
	ProgramID string `mapstructure:"program_id"`
}

// ServicesConfig holds REST collaborator endpoints.
type ServicesConfig struct {
	// MetadataURL is the match metadata service base URL (health scaling).
	MetadataURL string `mapstructure:"metadata_url"`

	// BookkeepingURL is the stake bookkeeping service base URL. Recording
	// there is fire-and-forget; the on-chain transaction is authoritative.
	BookkeepingURL string `mapstructure:"bookkeeping_url"`

	HTTPTimeout   time.Duration `mapstructure:"http_timeout"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
}

// ArchiveConfig holds the local telemetry archive configuration.
type ArchiveConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// SetDefaults registers default values on the given viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)

	v.SetDefault("stream.base_url", "")
	v.SetDefault("stream.max_retries", defaultMaxRetries)
	v.SetDefault("stream.base_delay", defaultBaseDelay)
	v.SetDefault("stream.max_delay", defaultMaxDelay)
	v.SetDefault("stream.surface_width", defaultSurfaceWidth)
	v.SetDefault("stream.surface_height", defaultSurfaceHeight)
	v.SetDefault("stream.decoder", "auto")

	v.SetDefault("settlement.program_id", "")

	v.SetDefault("services.metadata_url", "")
	v.SetDefault("services.bookkeeping_url", "")
	v.SetDefault("services.http_timeout", defaultHTTPTimeout)
	v.SetDefault("services.retry_attempts", defaultRetryAttempts)
	v.SetDefault("services.retry_delay", defaultRetryDelay)

	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.path", "arenalive.db")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", "")
}

// Load reads configuration from the optional file path, environment
// variables, and defaults, returning a validated Config.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/arenalive")
		v.SetConfigType("yaml")
		v.SetConfigName("arenalive")
	}

	if err := v.ReadInConfig(); err != nil {
		if path != "" {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix("ARENALIVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in range 0-65535, got %d", c.Server.Port)
	}
	if c.Stream.BaseDelay <= 0 {
		return errors.New("stream.base_delay must be positive")
	}
	if c.Stream.MaxDelay < c.Stream.BaseDelay {
		return errors.New("stream.max_delay must be >= stream.base_delay")
	}
	if c.Stream.SurfaceWidth <= 0 || c.Stream.SurfaceHeight <= 0 {
		return errors.New("stream.surface dimensions must be positive")
	}
	switch c.Stream.Decoder {
	case "auto", "annexb", "none":
	default:
		return fmt.Errorf("stream.decoder must be auto, annexb, or none, got %q", c.Stream.Decoder)
	}
	if c.Services.RetryAttempts < 0 {
		return fmt.Errorf("services.retry_attempts must be >= 0, got %d", c.Services.RetryAttempts)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format must be json or text, got %q", c.Logging.Format)
	}
	return nil
}
