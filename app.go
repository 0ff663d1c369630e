package retain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/vango-dev/retain/internal/config"
	rerrors "github.com/vango-dev/retain/internal/errors"
	"github.com/vango-dev/retain/pkg/host"
	"github.com/vango-dev/retain/pkg/loader"
	"github.com/vango-dev/retain/pkg/metrics"
	"github.com/vango-dev/retain/pkg/middleware"
	"github.com/vango-dev/retain/pkg/mirror"
	"github.com/vango-dev/retain/pkg/render"
	"github.com/vango-dev/retain/pkg/state"
	"github.com/vango-dev/retain/pkg/vdom"
)

// shutdownTimeout bounds the graceful shutdown of the mirror server.
const shutdownTimeout = 5 * time.Second

// =============================================================================
// Configuration
// =============================================================================

// Config is the contents of a retain.json or retain.yaml file.
type Config = config.Config

// DefaultConfig returns a Config with every default applied.
func DefaultConfig() *Config { return config.New() }

// LoadConfig reads retain.json, retain.yaml or retain.yml from dir.
func LoadConfig(dir string) (*Config, error) { return config.Load(dir) }

// =============================================================================
// App Type
// =============================================================================

// App wires a memory surface, a loader, a render driver, a state store and a
// mirror server from one configuration.
//
//	cfg, _ := retain.LoadConfig(".")
//	app, err := retain.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer app.Close()
//	app.ListenAndServe(ctx)
type App struct {
	cfg    *Config
	logger *slog.Logger

	httpClient *http.Client
	s3Client   loader.ObjectGetter

	registry  *prometheus.Registry
	metrics   *metrics.Collector
	scheduler *state.FrameScheduler
	persister *state.BoltPersister
	store     *state.Store
	loader    *loader.Loader
	surface   *host.Memory
	root      host.Node
	driver    *render.Driver
	mirror    *mirror.Server

	unmount func()
}

// Option configures an App.
type Option func(*App)

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithHTTPClient sets the client used by http(s) component sources.
func WithHTTPClient(c *http.Client) Option {
	return func(a *App) {
		a.httpClient = c
	}
}

// WithS3Client sets the client used by s3:// component sources. Without it
// an anonymous client for Loader.Region is created on first use.
func WithS3Client(c loader.ObjectGetter) Option {
	return func(a *App) {
		a.s3Client = c
	}
}

// NewLogger builds the logger described by cfg, writing to w.
func NewLogger(w io.Writer, cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel()}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// New creates an App from cfg. A nil cfg uses DefaultConfig().
func New(cfg *Config, opts ...Option) (*App, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{cfg: cfg}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = NewLogger(os.Stderr, cfg)
	}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = metrics.New(
		metrics.WithNamespace(cfg.Metrics.Namespace),
		metrics.WithRegistry(a.registry),
	)

	a.loader = loader.New(
		loader.WithLogger(a.component("loader")),
		loader.WithMetrics(a.metrics),
		loader.WithTimeout(cfg.LoaderTimeout()),
	)
	if err := a.registerComponents(); err != nil {
		a.loader.Close()
		return nil, err
	}

	// The mirror receives ops through OnOp; a long-lived surface keeps no log.
	a.surface = host.NewMemory(host.WithOpLog(0))
	root, err := a.surface.CreateElement("main", "")
	if err != nil {
		a.loader.Close()
		return nil, err
	}
	a.root = root

	a.driver = render.New(a.surface,
		render.WithLoader(a.loader),
		render.WithLogger(a.component("render")),
		render.WithMetrics(a.metrics),
		render.WithProgressive(cfg.Render.Progressive),
	)

	storeOpts := []state.Option{
		state.WithLogger(a.component("state")),
		state.WithMetrics(a.metrics),
	}
	if path := cfg.StatePath(); path != "" {
		p, err := state.OpenBolt(path)
		if err != nil {
			a.driver.Close()
			a.loader.Close()
			return nil, rerrors.New("S002").WithDetailf("open %s: %v", path, err).Wrap(err)
		}
		a.persister = p
		storeOpts = append(storeOpts, state.WithPersistence(p, cfg.State.Name))
	}
	a.scheduler = state.NewFrameScheduler(cfg.TickInterval())
	a.store = state.NewStore(state.Record(cfg.Props), a.scheduler, storeOpts...)

	mirrorLogger := a.component("mirror")
	mirrorOpts := []mirror.Option{
		mirror.WithLogger(mirrorLogger),
		mirror.WithMetrics(a.metrics),
		mirror.WithEventMiddleware(
			middleware.Recover(mirrorLogger),
			middleware.Metrics(a.metrics),
			middleware.OpenTelemetry(),
		),
	}
	if cfg.Metrics.Enabled {
		mirrorOpts = append(mirrorOpts, mirror.WithGatherer(a.registry))
	}
	if len(cfg.Mirror.Origins) > 0 {
		mirrorOpts = append(mirrorOpts, mirror.WithCheckOrigin(allowOrigins(cfg.Mirror.Origins)))
	}
	a.mirror = mirror.New(a.surface, a.root, mirrorOpts...)

	return a, nil
}

func (a *App) component(name string) *slog.Logger {
	return a.logger.With("component", name)
}

func allowOrigins(origins []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range origins {
			if strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

// =============================================================================
// Component Registration
// =============================================================================

// registerComponents registers every template in the components directory,
// then the explicit sources, which win on name clashes.
func (a *App) registerComponents() error {
	dir := a.cfg.ComponentsPath()
	if _, err := a.loader.RegisterDir(dir); err != nil {
		return rerrors.New("C002").WithDetailf("read components dir %s: %v", dir, err).Wrap(err)
	}

	for _, name := range a.cfg.ComponentNames() {
		loc, err := a.locatorFor(a.cfg.Loader.Components[name])
		if err != nil {
			return rerrors.New("C002").WithDetailf("loader.components.%s: %v", name, err).Wrap(err)
		}
		a.loader.Register(name, loc)
	}
	return nil
}

// locatorFor maps a configured source to a Locator.
func (a *App) locatorFor(source string) (loader.Locator, error) {
	switch {
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return loader.HTTP(a.httpClient, source), nil
	case strings.HasPrefix(source, "s3://"):
		bucket, key, ok := strings.Cut(strings.TrimPrefix(source, "s3://"), "/")
		if !ok || bucket == "" || key == "" {
			return nil, errors.New("s3 source must be s3://bucket/key")
		}
		return loader.S3(a.objectGetter(), bucket, key), nil
	default:
		return loader.File(a.cfg.SourcePath(source)), nil
	}
}

func (a *App) objectGetter() loader.ObjectGetter {
	if a.s3Client == nil {
		a.s3Client = s3.New(s3.Options{
			Region:      a.cfg.Loader.Region,
			Credentials: aws.AnonymousCredentials{},
		})
	}
	return a.s3Client
}

// =============================================================================
// Lifecycle
// =============================================================================

// Start mounts the configured root component into the mirrored root. The
// store's record is passed to it as props, and every store notification
// renders it again.
func (a *App) Start(ctx context.Context) error {
	name := a.cfg.Root
	if name == "" {
		return rerrors.New("C002").WithDetail("no root component configured")
	}
	if !a.loader.IsRegistered(name) {
		return rerrors.New("L001").WithDetailf("root component %q", name)
	}
	if a.unmount != nil {
		a.unmount()
	}
	a.unmount = a.driver.Mount(ctx, a.root, func(r state.Record) *vdom.VNode {
		return vdom.Named(name, vdom.PropsOf(r))
	}, a.store)
	return nil
}

// ListenAndServe starts the root component and serves the mirror on
// Mirror.Addr until ctx is cancelled.
func (a *App) ListenAndServe(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              a.cfg.Mirror.Addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("mirror listening", "addr", srv.Addr, "root", a.cfg.Root)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		// Hijacked WebSocket connections are not tracked by Shutdown.
		a.mirror.Close()
		return srv.Shutdown(shutdownCtx)
	}
}

// Close stops re-rendering, flushes pending state, disconnects viewers and
// releases the state database.
func (a *App) Close() error {
	if a.unmount != nil {
		a.unmount()
	}
	a.store.Flush()
	a.store.Teardown()
	a.scheduler.Stop()
	a.driver.Close()
	a.mirror.Close()
	a.loader.Close()
	if a.persister != nil {
		return a.persister.Close()
	}
	return nil
}

// =============================================================================
// Accessors
// =============================================================================

// Handler returns the mirror routes.
func (a *App) Handler() http.Handler { return a.mirror.Handler() }

// Config returns the configuration the App was built from.
func (a *App) Config() *Config { return a.cfg }

// Logger returns the root logger.
func (a *App) Logger() *slog.Logger { return a.logger }

// Loader returns the component loader.
func (a *App) Loader() *loader.Loader { return a.loader }

// Driver returns the render driver.
func (a *App) Driver() *render.Driver { return a.driver }

// Store returns the root state store.
func (a *App) Store() *state.Store { return a.store }

// Surface returns the memory surface.
func (a *App) Surface() *host.Memory { return a.surface }

// Root returns the mirrored root node.
func (a *App) Root() host.Node { return a.root }

// Registry returns the Prometheus registry holding the App's metrics.
func (a *App) Registry() *prometheus.Registry { return a.registry }
