// Package app wires all aibridge subsystems into a running gateway.
//
// The App struct owns the full lifecycle: New builds the provider registry,
// the vector store, the bridge service and the HTTP server, Run serves until
// the context is cancelled, and Shutdown releases everything in order.
//
// For testing, inject doubles via functional options (WithProviderRegistry,
// WithVectorStore, etc.). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/aibridge/internal/config"
	"github.com/MrWong99/aibridge/internal/server"
	"github.com/MrWong99/aibridge/pkg/bridge"
	"github.com/MrWong99/aibridge/pkg/health"
	"github.com/MrWong99/aibridge/pkg/observe"
	"github.com/MrWong99/aibridge/pkg/provider"
	"github.com/MrWong99/aibridge/pkg/vectorstore"
	"github.com/MrWong99/aibridge/pkg/vectorstore/memory"
	"github.com/MrWong99/aibridge/pkg/vectorstore/postgres"
)

// shutdownTimeout bounds how long Run waits for in-flight requests once its
// context is cancelled.
const shutdownTimeout = 10 * time.Second

// App owns all subsystem lifetimes of the gateway.
type App struct {
	cfg *config.Config

	// Subsystems, initialised in New, torn down in Shutdown.
	factories *config.Registry
	registry  *provider.Registry
	store     vectorstore.Store
	service   *bridge.Service
	server    *server.Server
	metrics   *observe.Metrics
	scrape    http.Handler

	// Live reload.
	configPath    string
	watchInterval time.Duration
	level         *slog.LevelVar

	// closers are called in reverse order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithFactories uses reg to build adapters instead of the built-in factories.
func WithFactories(reg *config.Registry) Option {
	return func(a *App) { a.factories = reg }
}

// WithProviderRegistry injects a ready provider registry; cfg.Providers is
// then ignored.
func WithProviderRegistry(reg *provider.Registry) Option {
	return func(a *App) { a.registry = reg }
}

// WithVectorStore injects a store instead of creating one from config. The
// caller keeps ownership; Shutdown does not close it.
func WithVectorStore(s vectorstore.Store) Option {
	return func(a *App) { a.store = s }
}

// WithMetrics records facade and HTTP metrics on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithMetricsHandler serves h at /metrics instead of the default Prometheus
// registry, typically [observe.Telemetry.Handler].
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.scrape = h }
}

// WithConfigWatch makes Run poll path and apply changes. Log level changes
// are applied to level; everything else is logged as requiring a restart.
// A zero interval uses the watcher default.
func WithConfigWatch(path string, level *slog.LevelVar, interval time.Duration) Option {
	return func(a *App) {
		a.configPath = path
		a.level = level
		a.watchInterval = interval
	}
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. Adapter construction
// fails fast: a provider with missing credentials aborts New.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	if err := a.initProviders(); err != nil {
		return nil, fmt.Errorf("app: init providers: %w", err)
	}
	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init vector store: %w", err)
	}

	bridgeOpts := append(cfg.BridgeOptions(), bridge.WithMetrics(a.metrics))
	a.service = bridge.NewService(a.registry, a.store, bridgeOpts...)

	srvCfg := server.Config{ListenAddr: cfg.Server.ListenAddr}
	if tls := cfg.Server.TLS; tls != nil {
		srvCfg.CertFile, srvCfg.KeyFile = tls.CertFile, tls.KeyFile
	}
	srvOpts := []server.Option{
		server.WithMetrics(a.metrics),
		server.WithHealthCheckers(a.checkers()...),
	}
	if a.scrape != nil {
		srvOpts = append(srvOpts, server.WithMetricsHandler(a.scrape))
	}
	a.server = server.New(a.service, srvCfg, srvOpts...)

	slog.Info("app initialised",
		"providers", a.registry.Names(),
		"default_provider", cfg.DefaultProvider,
		"vector_store", cfg.VectorStore.Backend,
	)
	return a, nil
}

// initProviders builds the provider registry from cfg.Providers unless one
// was injected.
func (a *App) initProviders() error {
	if a.registry != nil {
		return nil
	}
	if a.factories == nil {
		a.factories = config.NewRegistry()
		RegisterBuiltins(a.factories)
	}
	reg, err := a.factories.BuildAll(a.cfg)
	if err != nil {
		return err
	}
	for _, name := range reg.Names() {
		p, _ := reg.Lookup(name)
		slog.Info("provider created", "name", name, "models", p.Models(), "capabilities", p.Capabilities())
	}
	a.registry = reg
	return nil
}

// initStore opens the configured vector store unless one was injected.
func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}
	dims := a.cfg.EffectiveDimensions()

	switch a.cfg.VectorStore.Backend {
	case config.BackendPostgres:
		store, err := postgres.Open(ctx, a.cfg.VectorStore.PostgresDSN, dims)
		if err != nil {
			return err
		}
		a.store = store
		a.closers = append(a.closers, store.Close)
	default:
		a.store = memory.New(dims)
	}
	return nil
}

// checkers returns the readiness checks for /readyz. The AI check pings the
// default provider, so it is only registered when one is configured.
func (a *App) checkers() []health.Checker {
	var cs []health.Checker
	if a.cfg.DefaultProvider != "" {
		cs = append(cs, bridge.HealthChecker(a.service, a.service.Chat.Select()))
	}
	if c, ok := bridge.StoreChecker(a.store); ok {
		cs = append(cs, c)
	}
	return cs
}

// Service returns the bridge service.
func (a *App) Service() *bridge.Service { return a.service }

// Server returns the HTTP gateway.
func (a *App) Server() *server.Server { return a.server }

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves the gateway and, when configured, watches the config file. It
// blocks until ctx is cancelled or the server fails, then drains in-flight
// requests. After a cancellation Run returns context.Canceled (or the
// underlying cause).
func (a *App) Run(ctx context.Context) error {
	var watcher *config.Watcher
	if a.configPath != "" {
		var wopts []config.WatcherOption
		if a.watchInterval > 0 {
			wopts = append(wopts, config.WithInterval(a.watchInterval))
		}
		w, err := config.NewWatcher(a.configPath, a.onConfigChange, wopts...)
		if err != nil {
			return fmt.Errorf("app: watch config: %w", err)
		}
		watcher = w
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(a.server.ListenAndServe)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("app: shutdown server: %w", err)
		}
		return nil
	})
	if watcher != nil {
		g.Go(func() error { return watcher.Run(gctx) })
	}

	slog.Info("app running", "addr", a.server.Addr(), "watch_config", a.configPath != "")
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// onConfigChange applies the live-reloadable parts of a config change. The
// provider registry and the store are immutable, so everything except the
// log level only takes effect after a restart.
func (a *App) onConfigChange(_, _ *config.Config, d config.ConfigDiff) {
	if d.LogLevelChanged && a.level != nil {
		a.level.Set(d.NewLogLevel.Slog())
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	for _, pc := range d.ProviderChanges {
		slog.Warn("provider change requires restart",
			"provider", pc.Name, "added", pc.Added, "removed", pc.Removed, "modified", pc.Modified)
	}
	if d.DefaultProviderChanged {
		slog.Warn("default provider change requires restart", "default_provider", d.NewDefaultProvider)
	}
	if d.ServicesChanged || d.VectorStoreChanged || d.ListenAddrChanged || d.TelemetryChanged {
		slog.Warn("config change requires restart",
			"services", d.ServicesChanged, "vector_store", d.VectorStoreChanged,
			"listen_addr", d.ListenAddrChanged, "telemetry", d.TelemetryChanged)
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in reverse-init order. It respects the
// context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if err := a.server.Shutdown(ctx); err != nil {
			slog.Warn("server shutdown error", "err", err)
		}

		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
