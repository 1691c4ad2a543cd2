// File: web/server.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// HTTP companion server: the canvas test page, health, metrics and debug
// state.

package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/momentics/canvasrelay/canvas"
	"github.com/momentics/canvasrelay/config"
	"github.com/momentics/canvasrelay/control"
)

const shutdownTimeout = 5 * time.Second

// Peers reports the number of open relay connections.
type Peers interface {
	Len() int
}

// Deps are the collaborators the server reports on.
type Deps struct {
	Peers    Peers
	Probes   *control.DebugProbes
	Metrics  *control.Metrics
	Gatherer prometheus.Gatherer // nil serves the default registry
	Logger   zerolog.Logger
}

// Server serves the companion HTTP endpoints.
type Server struct {
	addr    string
	wsAddr  string
	router  *gin.Engine
	deps    Deps
	log     zerolog.Logger
	started time.Time
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}

// New builds the router from cfg.
func New(cfg config.Config, deps Deps) *Server {
	s := &Server{
		addr:    cfg.Listen.HTTPAddr,
		wsAddr:  cfg.Listen.WSAddr,
		deps:    deps,
		log:     deps.Logger.With().Str("component", "web").Logger(),
		started: time.Now(),
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(s.log))
	r.Use(RequestMetrics(deps.Metrics))
	if len(cfg.HTTP.CorsOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:    allowedOrigins(cfg.HTTP.CorsOrigins),
			AllowAllOrigins: allowAll(cfg.HTTP.CorsOrigins),
			AllowMethods:    []string{"GET"},
			AllowHeaders:    []string{"Origin", "Content-Type"},
			MaxAge:          12 * time.Hour,
		}))
	}
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})
	s.router = r

	s.registerRoutes(cfg.HTTP.Metrics)
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes(metrics bool) {
	s.router.GET("/", s.page)
	s.router.GET("/healthz", s.health)
	s.router.GET("/debug/state", s.debugState)
	if metrics {
		h := promhttp.Handler()
		if s.deps.Gatherer != nil {
			h = promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})
		}
		s.router.GET("/metrics", gin.WrapH(h))
	}
}

func (s *Server) page(c *gin.Context) {
	body, err := canvas.Page(canvas.WebSocketURL(s.wsAddr, c.Request.Host))
	if err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", body)
}

func (s *Server) health(c *gin.Context) {
	peers := 0
	if s.deps.Peers != nil {
		peers = s.deps.Peers.Len()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"uptime":      time.Since(s.started).String(),
		"connections": peers,
	})
}

func (s *Server) debugState(c *gin.Context) {
	if s.deps.Probes == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	c.JSON(http.StatusOK, s.deps.Probes.DumpState())
}

// Run serves on the configured address until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("web: listen %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", ln.Addr().String()).Msg("http server listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("web: serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("web: shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web: serve: %w", err)
	}
	s.log.Info().Msg("http server stopped")
	return nil
}

func allowAll(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

func allowedOrigins(origins []string) []string {
	if allowAll(origins) {
		return nil
	}
	return origins
}
