// File: internal/logging/logging.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// zerolog construction for the relay binary and its tests.

package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/momentics/canvasrelay/config"
)

const appName = "canvasrelay"

// New builds the process logger from cfg, writing to stdout.
func New(cfg config.Log) zerolog.Logger {
	return NewWithWriter(cfg, os.Stdout)
}

// NewWithWriter builds a logger writing to out. Console format uses
// zerolog.ConsoleWriter with RFC3339 timestamps.
func NewWithWriter(cfg config.Log, out io.Writer) zerolog.Logger {
	if cfg.Format != "json" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	level, ok := ParseLevel(cfg.Level)
	if !ok {
		level = zerolog.InfoLevel
	}
	return zerolog.New(out).Level(level).With().Timestamp().Str("app", appName).Logger()
}

// ParseLevel maps a level name to a zerolog level. The second result is
// false for empty or unknown names.
func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trace", "diagnostics":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "disable", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}
