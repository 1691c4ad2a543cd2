// File: config/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Runtime configuration: defaults, TOML file overlay and environment
// overrides.

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	EnvWSAddr    = "CANVASRELAY_WS_ADDR"
	EnvHTTPAddr  = "CANVASRELAY_HTTP_ADDR"
	EnvLogLevel  = "CANVASRELAY_LOG_LEVEL"
	EnvLogFormat = "CANVASRELAY_LOG_FORMAT"
	EnvQueueSize = "CANVASRELAY_QUEUE_SIZE"
)

// OverflowPolicy selects what happens when a peer's outbound queue is full.
type OverflowPolicy string

const (
	// OverflowDropOldest discards the oldest queued frame to make room.
	OverflowDropOldest OverflowPolicy = "drop_oldest"
	// OverflowClose closes the slow connection.
	OverflowClose OverflowPolicy = "close"
)

// Config is the complete runtime configuration.
type Config struct {
	Listen Listen
	Relay  Relay
	Log    Log
	HTTP   HTTP
}

type Listen struct {
	WSAddr    string
	HTTPAddr  string
	ReusePort bool
}

type Relay struct {
	QueueSize        int
	OverflowPolicy   OverflowPolicy
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	ValidatePayloads bool
}

type Log struct {
	Level  string
	Format string // "console" or "json"
}

type HTTP struct {
	Enabled     bool
	Metrics     bool
	CorsOrigins []string
}

// Default returns the built-in configuration. The WebSocket endpoint listens
// on :3001 and the companion page on :3000.
func Default() Config {
	return Config{
		Listen: Listen{
			WSAddr:   ":3001",
			HTTPAddr: ":3000",
		},
		Relay: Relay{
			QueueSize:        64,
			OverflowPolicy:   OverflowDropOldest,
			HandshakeTimeout: 5 * time.Second,
			WriteTimeout:     5 * time.Second,
		},
		Log: Log{
			Level:  "info",
			Format: "console",
		},
		HTTP: HTTP{
			Enabled:     true,
			Metrics:     true,
			CorsOrigins: []string{"*"},
		},
	}
}

type fileConfig struct {
	Listen struct {
		WSAddr    string `toml:"ws_addr"`
		HTTPAddr  string `toml:"http_addr"`
		ReusePort bool   `toml:"reuse_port"`
	} `toml:"listen"`
	Relay struct {
		QueueSize        int    `toml:"queue_size"`
		OverflowPolicy   string `toml:"overflow_policy"`
		HandshakeTimeout string `toml:"handshake_timeout"`
		WriteTimeout     string `toml:"write_timeout"`
		ValidatePayloads bool   `toml:"validate_payloads"`
	} `toml:"relay"`
	Log struct {
		Level  string `toml:"level"`
		Format string `toml:"format"`
	} `toml:"log"`
	HTTP struct {
		Enabled     bool     `toml:"enabled"`
		Metrics     bool     `toml:"metrics"`
		CorsOrigins []string `toml:"cors_origins"`
	} `toml:"http"`
}

// Load builds a Config from defaults, the TOML file at path (skipped when
// path is empty) and environment overrides, then validates it.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := overlayFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg, os.Getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func overlayFile(cfg *Config, path string) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("config: unknown key %q in %s", undecoded[0].String(), path)
	}

	if meta.IsDefined("listen", "ws_addr") {
		cfg.Listen.WSAddr = strings.TrimSpace(raw.Listen.WSAddr)
	}
	if meta.IsDefined("listen", "http_addr") {
		cfg.Listen.HTTPAddr = strings.TrimSpace(raw.Listen.HTTPAddr)
	}
	if meta.IsDefined("listen", "reuse_port") {
		cfg.Listen.ReusePort = raw.Listen.ReusePort
	}

	if meta.IsDefined("relay", "queue_size") {
		cfg.Relay.QueueSize = raw.Relay.QueueSize
	}
	if meta.IsDefined("relay", "overflow_policy") {
		cfg.Relay.OverflowPolicy = OverflowPolicy(strings.ToLower(strings.TrimSpace(raw.Relay.OverflowPolicy)))
	}
	if meta.IsDefined("relay", "handshake_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Relay.HandshakeTimeout))
		if err != nil {
			return fmt.Errorf("config: parse relay.handshake_timeout: %w", err)
		}
		cfg.Relay.HandshakeTimeout = d
	}
	if meta.IsDefined("relay", "write_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Relay.WriteTimeout))
		if err != nil {
			return fmt.Errorf("config: parse relay.write_timeout: %w", err)
		}
		cfg.Relay.WriteTimeout = d
	}
	if meta.IsDefined("relay", "validate_payloads") {
		cfg.Relay.ValidatePayloads = raw.Relay.ValidatePayloads
	}

	if meta.IsDefined("log", "level") {
		cfg.Log.Level = strings.TrimSpace(raw.Log.Level)
	}
	if meta.IsDefined("log", "format") {
		cfg.Log.Format = strings.ToLower(strings.TrimSpace(raw.Log.Format))
	}

	if meta.IsDefined("http", "enabled") {
		cfg.HTTP.Enabled = raw.HTTP.Enabled
	}
	if meta.IsDefined("http", "metrics") {
		cfg.HTTP.Metrics = raw.HTTP.Metrics
	}
	if meta.IsDefined("http", "cors_origins") {
		cfg.HTTP.CorsOrigins = normalizeOrigins(raw.HTTP.CorsOrigins)
	}
	return nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	if v := strings.TrimSpace(getenv(EnvWSAddr)); v != "" {
		cfg.Listen.WSAddr = v
	}
	if v := strings.TrimSpace(getenv(EnvHTTPAddr)); v != "" {
		cfg.Listen.HTTPAddr = v
	}
	if v := strings.TrimSpace(getenv(EnvLogLevel)); v != "" {
		cfg.Log.Level = v
	}
	if v := strings.TrimSpace(getenv(EnvLogFormat)); v != "" {
		cfg.Log.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(getenv(EnvQueueSize)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: parse %s: %w", EnvQueueSize, err)
		}
		cfg.Relay.QueueSize = n
	}
	return nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Listen.WSAddr) == "" {
		return fmt.Errorf("config: listen.ws_addr is required")
	}
	if c.HTTP.Enabled && strings.TrimSpace(c.Listen.HTTPAddr) == "" {
		return fmt.Errorf("config: listen.http_addr is required when http is enabled")
	}
	if c.Relay.QueueSize < 1 {
		return fmt.Errorf("config: relay.queue_size must be positive, got %d", c.Relay.QueueSize)
	}
	switch c.Relay.OverflowPolicy {
	case OverflowDropOldest, OverflowClose:
	default:
		return fmt.Errorf("config: relay.overflow_policy %q is not one of %q, %q",
			c.Relay.OverflowPolicy, OverflowDropOldest, OverflowClose)
	}
	if c.Relay.HandshakeTimeout <= 0 {
		return fmt.Errorf("config: relay.handshake_timeout must be positive")
	}
	if c.Relay.WriteTimeout <= 0 {
		return fmt.Errorf("config: relay.write_timeout must be positive")
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("config: log.format %q is not console or json", c.Log.Format)
	}
	for _, o := range c.HTTP.CorsOrigins {
		if o != "*" && !strings.HasPrefix(o, "http://") && !strings.HasPrefix(o, "https://") {
			return fmt.Errorf("config: http.cors_origins entry %q must be \"*\" or an http(s) origin", o)
		}
	}
	return nil
}

func normalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, o := range in {
		if v := strings.TrimSpace(o); v != "" {
			out = append(out, v)
		}
	}
	return out
}
