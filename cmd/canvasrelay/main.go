// File: cmd/canvasrelay/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// canvasrelay serves the WebSocket relay on :3001 and the canvas test page
// on :3000 until SIGINT or SIGTERM.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/momentics/canvasrelay/canvas"
	"github.com/momentics/canvasrelay/config"
	"github.com/momentics/canvasrelay/control"
	"github.com/momentics/canvasrelay/hub"
	"github.com/momentics/canvasrelay/internal/logging"
	"github.com/momentics/canvasrelay/transport"
	"github.com/momentics/canvasrelay/web"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "canvasrelay: %v\n", err)
		os.Exit(1)
	}
}

type flags struct {
	configPath string
	wsAddr     string
	httpAddr   string
	logLevel   string
}

func parseFlags(args []string, stderr io.Writer) (flags, error) {
	var f flags
	fs := flag.NewFlagSet("canvasrelay", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.configPath, "config", "", "path to a TOML config file")
	fs.StringVar(&f.wsAddr, "ws-addr", "", "WebSocket listen address (default :3001)")
	fs.StringVar(&f.httpAddr, "http-addr", "", "HTTP page listen address (default :3000)")
	fs.StringVar(&f.logLevel, "log-level", "", "trace|debug|info|warn|error|disabled")
	if err := fs.Parse(args); err != nil {
		return flags{}, err
	}
	if fs.NArg() > 0 {
		return flags{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return f, nil
}

// loadConfig layers flags over the file and environment.
func loadConfig(f flags) (config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if f.wsAddr != "" {
		cfg.Listen.WSAddr = f.wsAddr
	}
	if f.httpAddr != "" {
		cfg.Listen.HTTPAddr = f.httpAddr
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	return cfg, cfg.Validate()
}

func run(ctx context.Context, args []string, stderr io.Writer) error {
	f, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}
	log := logging.NewWithWriter(cfg.Log, stderr)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := control.NewMetrics(reg)

	probes := control.NewDebugProbes()
	control.RegisterRuntimeProbes(probes)

	opts := []hub.Option{hub.WithLogger(log), hub.WithMetrics(metrics)}
	if cfg.Relay.ValidatePayloads {
		opts = append(opts, hub.WithMessageFilter(canvas.Validate))
	}
	h := hub.New(hub.ConfigFromRelay(cfg.Relay), opts...)
	h.RegisterProbes(probes)

	ln, err := transport.Listen(ctx, transport.ListenerConfig{
		Addr:      cfg.Listen.WSAddr,
		ReusePort: cfg.Listen.ReusePort,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	running := 1
	go func() { errCh <- h.Serve(ctx, ln) }()

	if cfg.HTTP.Enabled {
		srv := web.New(cfg, web.Deps{
			Peers:    h,
			Probes:   probes,
			Metrics:  metrics,
			Gatherer: reg,
			Logger:   log,
		})
		running++
		go func() { errCh <- srv.Run(ctx) }()
	}

	log.Info().
		Str("ws_addr", cfg.Listen.WSAddr).
		Str("http_addr", cfg.Listen.HTTPAddr).
		Bool("http", cfg.HTTP.Enabled).
		Str("overflow_policy", string(cfg.Relay.OverflowPolicy)).
		Msg("canvasrelay started")

	// The first component to stop takes the rest down with it.
	var firstErr error
	for i := 0; i < running; i++ {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
		}
		cancel()
	}
	logShutdown(log, firstErr)
	return firstErr
}

func logShutdown(log zerolog.Logger, err error) {
	if err != nil {
		log.Error().Err(err).Msg("canvasrelay stopped")
		return
	}
	log.Info().Msg("canvasrelay stopped")
}
