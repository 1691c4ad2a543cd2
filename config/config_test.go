package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "canvasrelay.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ":3001", cfg.Listen.WSAddr)
	assert.Equal(t, ":3000", cfg.Listen.HTTPAddr)
	assert.Equal(t, OverflowDropOldest, cfg.Relay.OverflowPolicy)
}

func TestLoadWithoutPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Relay, cfg.Relay)
}

func TestLoadOverlaysOnlyDefinedKeys(t *testing.T) {
	path := writeConfig(t, `
[listen]
ws_addr = "127.0.0.1:4001"
reuse_port = true

[relay]
queue_size = 8
overflow_policy = "CLOSE"
write_timeout = "250ms"

[log]
level = "debug"
format = "json"

[http]
enabled = false
cors_origins = [" http://localhost:3000 ", ""]
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:4001", cfg.Listen.WSAddr)
	assert.Equal(t, ":3000", cfg.Listen.HTTPAddr, "undefined keys keep defaults")
	assert.True(t, cfg.Listen.ReusePort)
	assert.Equal(t, 8, cfg.Relay.QueueSize)
	assert.Equal(t, OverflowClose, cfg.Relay.OverflowPolicy)
	assert.Equal(t, 250*time.Millisecond, cfg.Relay.WriteTimeout)
	assert.Equal(t, 5*time.Second, cfg.Relay.HandshakeTimeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.False(t, cfg.HTTP.Enabled)
	assert.True(t, cfg.HTTP.Metrics)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.HTTP.CorsOrigins)
}

func TestLoadRejectsUnknownKey(t *testing.T) {
	path := writeConfig(t, "[relay]\nqueue_sise = 3\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue_sise")
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := writeConfig(t, "[relay]\nhandshake_timeout = \"soon\"\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handshake_timeout")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvWSAddr, ":5001")
	t.Setenv(EnvLogLevel, "warn")
	t.Setenv(EnvQueueSize, "3")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":5001", cfg.Listen.WSAddr)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 3, cfg.Relay.QueueSize)
}

func TestEnvOverrideBadQueueSize(t *testing.T) {
	t.Setenv(EnvQueueSize, "many")
	_, err := Load("")
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty ws addr", func(c *Config) { c.Listen.WSAddr = " " }},
		{"empty http addr", func(c *Config) { c.Listen.HTTPAddr = "" }},
		{"zero queue", func(c *Config) { c.Relay.QueueSize = 0 }},
		{"unknown policy", func(c *Config) { c.Relay.OverflowPolicy = "block" }},
		{"zero handshake timeout", func(c *Config) { c.Relay.HandshakeTimeout = 0 }},
		{"negative write timeout", func(c *Config) { c.Relay.WriteTimeout = -time.Second }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
		{"bad cors origin", func(c *Config) { c.HTTP.CorsOrigins = []string{"localhost:3000"} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := Default()
	cfg.HTTP.Enabled = false
	cfg.Listen.HTTPAddr = ""
	assert.NoError(t, cfg.Validate(), "http addr is optional when http is disabled")
}
