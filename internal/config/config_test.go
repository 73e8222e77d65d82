package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8086, cfg.Server.Port)

	assert.Equal(t, uint32(10), cfg.Stream.MaxRetries)
	assert.Equal(t, 1*time.Second, cfg.Stream.BaseDelay)
	assert.Equal(t, 30*time.Second, cfg.Stream.MaxDelay)
	assert.Equal(t, 768, cfg.Stream.SurfaceWidth)
	assert.Equal(t, 672, cfg.Stream.SurfaceHeight)
	assert.Equal(t, "auto", cfg.Stream.Decoder)

	assert.Equal(t, 10*time.Second, cfg.Services.HTTPTimeout)
	assert.False(t, cfg.Archive.Enabled)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "arenalive.yaml")
	content := `
stream:
  base_url: wss://example.com/ws
  max_retries: 5
  base_delay: 500ms
  max_delay: 10s
settlement:
  program_id: FCQgPeDpCL4i4JGNEzRxxoWKXdSDgKdGKGArKX8jtpAQ
logging:
  level: debug
  format: text
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "wss://example.com/ws", cfg.Stream.BaseURL)
	assert.Equal(t, uint32(5), cfg.Stream.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.Stream.BaseDelay)
	assert.Equal(t, 10*time.Second, cfg.Stream.MaxDelay)
	assert.Equal(t, "FCQgPeDpCL4i4JGNEzRxxoWKXdSDgKdGKGArKX8jtpAQ", cfg.Settlement.ProgramID)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Server: ServerConfig{Port: 8086},
			Stream: StreamConfig{
				BaseDelay:     time.Second,
				MaxDelay:      30 * time.Second,
				SurfaceWidth:  768,
				SurfaceHeight: 672,
				Decoder:       "auto",
			},
			Logging: LoggingConfig{Level: "info", Format: "json"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"zero base delay", func(c *Config) { c.Stream.BaseDelay = 0 }, "base_delay"},
		{"max below base", func(c *Config) { c.Stream.MaxDelay = time.Millisecond }, "max_delay"},
		{"zero surface", func(c *Config) { c.Stream.SurfaceWidth = 0 }, "surface"},
		{"bad decoder", func(c *Config) { c.Stream.Decoder = "gpu" }, "decoder"},
		{"negative retries", func(c *Config) { c.Services.RetryAttempts = -1 }, "retry_attempts"},
		{"bad level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
