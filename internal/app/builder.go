package app

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/stacklok/toolhive-autosave/internal/config"
	"github.com/stacklok/toolhive-autosave/internal/coordinator"
	"github.com/stacklok/toolhive-autosave/internal/dispatch"
	"github.com/stacklok/toolhive-autosave/internal/persist"
	"github.com/stacklok/toolhive-autosave/internal/privilege"
	"github.com/stacklok/toolhive-autosave/internal/process"
	"github.com/stacklok/toolhive-autosave/internal/status"
	"github.com/stacklok/toolhive-autosave/internal/telemetry"
)

const (
	defaultReadTimeout  = 10 * time.Second
	defaultWriteTimeout = 15 * time.Second
	defaultIdleTimeout  = 60 * time.Second
)

// AutosaveAppOptions is a function that configures the autosave app builder
type AutosaveAppOptions func(*autosaveAppConfig) error

// autosaveAppConfig collects everything needed to build an AutosaveApp.
// Component overrides are primarily for testing; production builds them from config.
type autosaveAppConfig struct {
	config *config.Config

	persister         persist.Persister
	terminator        process.Terminator
	privileges        privilege.Manager
	statusPersistence status.StatusPersistence
	shutdownHooks     []namedShutdownHook

	// HTTP server options
	address      string
	middlewares  []func(http.Handler) http.Handler
	readTimeout  time.Duration
	writeTimeout time.Duration
	idleTimeout  time.Duration

	telemetry      *telemetry.Telemetry
	handleSignals  bool
	tickerInterval *time.Duration
}

type namedShutdownHook struct {
	name string
	hook process.ShutdownHook
}

func baseConfig(opts ...AutosaveAppOptions) (*autosaveAppConfig, error) {
	cfg := &autosaveAppConfig{
		readTimeout:   defaultReadTimeout,
		writeTimeout:  defaultWriteTimeout,
		idleTimeout:   defaultIdleTimeout,
		handleSignals: true,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.address == "" {
		cfg.address = cfg.config.GetControlAddress()
	}

	return cfg, nil
}

// NewAutosaveApp builds the coordinator, its request sources and the control server
func NewAutosaveApp(
	ctx context.Context,
	opts ...AutosaveAppOptions,
) (*AutosaveApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}

	coord, err := buildCoordinator(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build coordinator: %w", err)
	}

	dispatcherOpts := []dispatch.DispatcherOption{
		dispatch.WithKillTimeout(cfg.config.GetKillTimeout()),
	}
	if cfg.telemetry != nil {
		dispatcherOpts = append(dispatcherOpts, dispatch.WithTracer(cfg.telemetry.Tracer(telemetry.SaveTracerName)))
	}
	dispatcher := dispatch.NewDispatcher(coord, dispatcherOpts...)

	httpServer, err := buildHTTPServer(cfg, dispatcher)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}

	interval := cfg.config.GetInterval()
	if cfg.tickerInterval != nil {
		interval = *cfg.tickerInterval
	}
	sources := []requestSource{
		dispatch.NewTickerSource(dispatcher, interval,
			dispatch.WithRetryInterval(cfg.config.GetRetryInterval())),
	}
	if cfg.handleSignals {
		sources = append(sources, dispatch.NewSignalSource(dispatcher))
	}

	appCtx, cancel := context.WithCancel(ctx)

	return &AutosaveApp{
		config: cfg.config,
		components: &AppComponents{
			Coordinator: coord,
			Dispatcher:  dispatcher,
			Telemetry:   cfg.telemetry,
		},
		httpServer: httpServer,
		sources:    sources,
		ctx:        appCtx,
		cancelFunc: cancel,
	}, nil
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) AutosaveAppOptions {
	return func(cfg *autosaveAppConfig) error {
		cfg.config = c
		return nil
	}
}

// WithAddress overrides the control server address from the configuration
func WithAddress(addr string) AutosaveAppOptions {
	return func(cfg *autosaveAppConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return fmt.Errorf("address is not a valid host:port: %w", err)
		}
		if port == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		if host == "localhost" {
			host = "127.0.0.1"
		}
		if host == "" {
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(net.JoinHostPort(host, port)); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares replaces the default control server middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) AutosaveAppOptions {
	return func(cfg *autosaveAppConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithTelemetry wires tracing and metrics into the coordinator and the control server
func WithTelemetry(t *telemetry.Telemetry) AutosaveAppOptions {
	return func(cfg *autosaveAppConfig) error {
		cfg.telemetry = t
		return nil
	}
}

// WithShutdownHook registers a hook the default terminator runs before exiting
func WithShutdownHook(name string, hook process.ShutdownHook) AutosaveAppOptions {
	return func(cfg *autosaveAppConfig) error {
		cfg.shutdownHooks = append(cfg.shutdownHooks, namedShutdownHook{name: name, hook: hook})
		return nil
	}
}

// WithSignalHandling enables or disables the OS signal request source
func WithSignalHandling(enabled bool) AutosaveAppOptions {
	return func(cfg *autosaveAppConfig) error {
		cfg.handleSignals = enabled
		return nil
	}
}

// WithTickerInterval overrides the configured autosave interval (for testing)
func WithTickerInterval(d time.Duration) AutosaveAppOptions {
	return func(cfg *autosaveAppConfig) error {
		cfg.tickerInterval = &d
		return nil
	}
}

// WithPersister allows injecting a custom persister (for testing)
func WithPersister(p persist.Persister) AutosaveAppOptions {
	return func(cfg *autosaveAppConfig) error {
		cfg.persister = p
		return nil
	}
}

// WithTerminator allows injecting a custom terminator (for testing)
func WithTerminator(t process.Terminator) AutosaveAppOptions {
	return func(cfg *autosaveAppConfig) error {
		cfg.terminator = t
		return nil
	}
}

// WithPrivilegeManager allows injecting a custom privilege manager (for testing)
func WithPrivilegeManager(m privilege.Manager) AutosaveAppOptions {
	return func(cfg *autosaveAppConfig) error {
		cfg.privileges = m
		return nil
	}
}

// WithStatusPersistence allows injecting a custom status persistence (for testing)
func WithStatusPersistence(sp status.StatusPersistence) AutosaveAppOptions {
	return func(cfg *autosaveAppConfig) error {
		cfg.statusPersistence = sp
		return nil
	}
}

// buildPersister creates the persist backend selected by the configuration
func buildPersister(c *config.Config) (persist.Persister, error) {
	switch c.GetPersistType() {
	case config.PersistTypeFile:
		return persist.NewFilePersister(c.Persist.File.Source, c.Persist.File.Destination), nil
	case config.PersistTypeCommand:
		return persist.NewCommandPersister(c.Persist.Command.Args, c.Persist.Command.UnloadedExitCode)
	default:
		return nil, fmt.Errorf("no persist backend configured")
	}
}

// buildPrivilegeManager returns a platform manager when grants are enabled
func buildPrivilegeManager(c *config.Config) privilege.Manager {
	if !c.PrivilegeEnabled() {
		return privilege.Disabled()
	}
	return privilege.NewManager(
		privilege.WithNiceness(c.Privilege.GetNiceness()),
		privilege.WithSignalShield(c.Privilege.ShieldSignals),
	)
}

// buildTerminator creates the process terminator with telemetry and caller hooks
func buildTerminator(b *autosaveAppConfig) process.Terminator {
	var opts []process.Option
	for _, h := range b.shutdownHooks {
		opts = append(opts, process.WithShutdownHook(h.name, h.hook))
	}
	if b.telemetry != nil {
		opts = append(opts, process.WithShutdownHook("telemetry", b.telemetry.Shutdown))
	}
	return process.NewExitTerminator(opts...)
}

// buildCoordinator builds the coordinator and its collaborators
func buildCoordinator(ctx context.Context, b *autosaveAppConfig) (coordinator.Coordinator, error) {
	slog.Info("Initializing save coordinator", "instance", b.config.GetName())

	if b.persister == nil {
		p, err := buildPersister(b.config)
		if err != nil {
			return nil, fmt.Errorf("failed to create persister: %w", err)
		}
		b.persister = p
	}

	if b.privileges == nil {
		b.privileges = buildPrivilegeManager(b.config)
	}

	if b.terminator == nil {
		b.terminator = buildTerminator(b)
	}

	if b.statusPersistence == nil {
		b.statusPersistence = status.NewFileStatusPersistence(b.config.GetStatusDir())
	}

	coordOpts := []coordinator.Option{
		coordinator.WithName(b.config.GetName()),
		coordinator.WithPassTimeout(b.config.GetPassTimeout()),
		coordinator.WithStatusPersistence(b.statusPersistence),
	}

	initial, err := b.statusPersistence.LoadStatus(ctx, b.config.GetName())
	if err != nil {
		slog.Warn("Failed to load previous save status, starting fresh",
			"instance", b.config.GetName(), "error", err)
	} else {
		coordOpts = append(coordOpts, coordinator.WithInitialStatus(initial))
	}

	if b.telemetry != nil {
		coordOpts = append(coordOpts, coordinator.WithTracer(b.telemetry.Tracer(telemetry.SaveTracerName)))

		saveMetrics, err := telemetry.NewSaveMetrics(b.telemetry.MeterProvider())
		if err != nil {
			return nil, fmt.Errorf("failed to create save metrics: %w", err)
		}
		if saveMetrics != nil {
			coordOpts = append(coordOpts, coordinator.WithSaveMetrics(saveMetrics))
			slog.Info("Save metrics enabled")
		}
	}

	coord := coordinator.New(b.persister, b.terminator, b.privileges, coordOpts...)
	slog.Info("Save coordinator initialized successfully")

	return coord, nil
}

// buildHTTPServer builds the control server with router and middleware
func buildHTTPServer(b *autosaveAppConfig, d *dispatch.Dispatcher) (*http.Server, error) {
	slog.Info("Initializing control server")

	// No request timeout middleware: an unprivileged kill holds its request
	// until the outstanding save finishes.
	if b.middlewares == nil {
		b.middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.Recoverer,
			dispatch.LoggingMiddleware,
		}
	}

	var metricsHandler http.Handler
	if b.telemetry != nil {
		metricsMiddleware, err := telemetry.MetricsMiddleware(b.telemetry.MeterProvider())
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics middleware: %w", err)
		}

		prepend := []func(http.Handler) http.Handler{
			telemetry.TracingMiddleware(b.telemetry.TracerProvider()),
		}
		if metricsMiddleware != nil {
			prepend = append(prepend, metricsMiddleware)
			slog.Info("HTTP metrics middleware enabled")
		}
		b.middlewares = append(prepend, b.middlewares...)

		metricsHandler = b.telemetry.MetricsHandler()
	}

	router := dispatch.NewServer(d,
		dispatch.WithMiddlewares(b.middlewares...),
		dispatch.WithMetricsHandler(metricsHandler),
	)

	server := &http.Server{
		Addr:         b.address,
		Handler:      router,
		ReadTimeout:  b.readTimeout,
		WriteTimeout: b.writeTimeout,
		IdleTimeout:  b.idleTimeout,
	}

	slog.Info("Control server configured", "address", b.address)
	return server, nil
}
