// Package server exposes the bridge facades as a JSON-over-HTTP gateway.
//
// Every request may name a provider and a model; omitted fields fall back to
// the facade defaults. Errors are reported as {"error": "..."} with a status
// derived from the bridge sentinel the error wraps (see [statusFor]).
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/aibridge/pkg/bridge"
	"github.com/MrWong99/aibridge/pkg/health"
	"github.com/MrWong99/aibridge/pkg/observe"
)

// Config holds HTTP server configuration.
type Config struct {
	// ListenAddr is the TCP address to listen on. Default: ":8080".
	ListenAddr string

	// CertFile and KeyFile enable TLS when both are set.
	CertFile string
	KeyFile  string

	// MaxBodyBytes caps request bodies. Base64 images count towards it.
	// Default: 32 MiB.
	MaxBodyBytes int64

	ReadHeaderTimeout time.Duration
	IdleTimeout       time.Duration

	// ReadinessCacheTTL is how long a /readyz report is reused. Default: 10s.
	// Negative disables caching.
	ReadinessCacheTTL time.Duration
}

// DefaultConfig returns default HTTP server configuration.
func DefaultConfig() Config {
	return Config{
		ListenAddr:        ":8080",
		MaxBodyBytes:      32 << 20,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadinessCacheTTL: 10 * time.Second,
	}
}

// Option configures a [Server].
type Option func(*Server)

// WithMetrics records HTTP metrics on m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithHealthCheckers adds readiness checkers served under /readyz.
func WithHealthCheckers(checkers ...health.Checker) Option {
	return func(s *Server) { s.checkers = append(s.checkers, checkers...) }
}

// WithMetricsHandler replaces the promhttp handler mounted at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metricsHandler = h }
}

// Server is the HTTP gateway in front of one [bridge.Service].
type Server struct {
	cfg            Config
	svc            *bridge.Service
	metrics        *observe.Metrics
	checkers       []health.Checker
	metricsHandler http.Handler
	handler        http.Handler
	http           *http.Server
}

// New builds the router for svc. Zero fields in cfg take their
// [DefaultConfig] values.
func New(svc *bridge.Service, cfg Config, opts ...Option) *Server {
	def := DefaultConfig()
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = def.ListenAddr
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = def.MaxBodyBytes
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = def.ReadHeaderTimeout
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = def.IdleTimeout
	}
	if cfg.ReadinessCacheTTL == 0 {
		cfg.ReadinessCacheTTL = def.ReadinessCacheTTL
	}

	s := &Server{cfg: cfg, svc: svc}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if s.metricsHandler == nil {
		s.metricsHandler = promhttp.Handler()
	}
	s.handler = s.routes()

	// No WriteTimeout: streamed completions can legitimately run for minutes.
	s.http = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
	return s
}

// Handler returns the gateway's root handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Addr returns the configured listen address.
func (s *Server) Addr() string { return s.cfg.ListenAddr }

// ListenAndServe serves until [Server.Shutdown] is called. A clean shutdown
// returns nil.
func (s *Server) ListenAndServe() error {
	var err error
	if s.cfg.CertFile != "" && s.cfg.KeyFile != "" {
		slog.Info("gateway listening", "addr", s.cfg.ListenAddr, "tls", true)
		err = s.http.ListenAndServeTLS(s.cfg.CertFile, s.cfg.KeyFile)
	} else {
		slog.Info("gateway listening", "addr", s.cfg.ListenAddr, "tls", false)
		err = s.http.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
