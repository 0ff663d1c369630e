package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	rerrors "github.com/vango-dev/retain/internal/errors"
	"github.com/vango-dev/retain/pkg/metrics"
	"github.com/vango-dev/retain/pkg/vdom"
)

// TracerName is the OpenTelemetry tracer used when none is configured.
const TracerName = "retain"

var (
	// ErrNotRegistered is returned when resolving a name with no locator.
	ErrNotRegistered = errors.New("loader: component not registered")

	// ErrLoadFailed is returned when a locator could not fetch a component.
	ErrLoadFailed = errors.New("loader: component load failed")

	// ErrBadExport is returned when a fetched component has no usable
	// renderer.
	ErrBadExport = errors.New("loader: component has no renderer")
)

// entry is one registered name. A new Register replaces the entry, so a
// fetch that finishes after re-registration never lands in the cache.
type entry struct {
	locator Locator
	future  *Future[vdom.Renderer]
}

// Loader resolves component names to renderers. It is safe for concurrent
// use.
type Loader struct {
	logger  *slog.Logger
	metrics *metrics.Collector
	tracer  trace.Tracer
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	entries map[string]*entry
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithMetrics records fetches on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(l *Loader) {
		l.metrics = c
	}
}

// WithTracer sets the tracer for fetch spans.
func WithTracer(t trace.Tracer) Option {
	return func(l *Loader) {
		if t != nil {
			l.tracer = t
		}
	}
}

// WithTimeout bounds each fetch. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(l *Loader) {
		l.timeout = d
	}
}

// New creates an empty Loader.
func New(opts ...Option) *Loader {
	ctx, cancel := context.WithCancel(context.Background())
	l := &Loader{
		logger:  slog.Default().With("component", "loader"),
		tracer:  otel.Tracer(TracerName),
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Register declares that name resolves through loc. Registering a name again
// replaces its locator and evicts any cached renderer.
func (l *Loader) Register(name string, loc Locator) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[name] = &entry{locator: loc}
}

// RegisterDir registers a File locator for every template in dir, named
// after the file without its extension, and returns the names in sorted
// order. A missing dir registers nothing.
func (l *Loader) RegisterDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !IsTemplateFile(e.Name()) {
			continue
		}
		name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		l.Register(name, File(filepath.Join(dir, e.Name())))
		names = append(names, name)
	}
	return names, nil
}

// IsRegistered reports whether name has a locator.
func (l *Loader) IsRegistered(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.entries[name]
	return ok
}

// Names returns the registered names in sorted order.
func (l *Loader) Names() []string {
	l.mu.Lock()
	names := make([]string, 0, len(l.entries))
	for name := range l.entries {
		names = append(names, name)
	}
	l.mu.Unlock()
	sort.Strings(names)
	return names
}

// Resolve returns the Future renderer of name, starting a fetch if none is
// cached or in flight. Calls for the same name share one fetch.
func (l *Loader) Resolve(name string) *Future[vdom.Renderer] {
	l.mu.Lock()
	e, ok := l.entries[name]
	if !ok {
		l.mu.Unlock()
		err := rerrors.New("L001").WithDetailf("component %q", name).Wrap(ErrNotRegistered)
		err.Log(l.logger)
		return Failed[vdom.Renderer](err)
	}
	if e.future != nil {
		f := e.future
		l.mu.Unlock()
		return f
	}
	f := newFuture[vdom.Renderer]()
	e.future = f
	l.mu.Unlock()

	go l.fetch(name, e, f)
	return f
}

// Load resolves name and waits for the outcome.
func (l *Loader) Load(ctx context.Context, name string) (vdom.Renderer, error) {
	return l.Resolve(name).Wait(ctx)
}

// IsResolved reports whether name has a cached renderer.
func (l *Loader) IsResolved(name string) bool {
	_, ok := l.Renderer(name)
	return ok
}

// Renderer returns the cached renderer of name without fetching.
func (l *Loader) Renderer(name string) (vdom.Renderer, bool) {
	l.mu.Lock()
	e, ok := l.entries[name]
	var f *Future[vdom.Renderer]
	if ok {
		f = e.future
	}
	l.mu.Unlock()

	if f == nil || !f.Settled() {
		return nil, false
	}
	r, err := f.Wait(context.Background())
	return r, err == nil
}

// Preload resolves every name concurrently and waits for all of them.
// The returned error joins every failure.
func (l *Loader) Preload(ctx context.Context, names ...string) error {
	futures := make([]*Future[vdom.Renderer], len(names))
	for i, name := range names {
		futures[i] = l.Resolve(name)
	}
	var errs []error
	for _, f := range futures {
		if _, err := f.Wait(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Evict drops the cached renderer of name. The next Resolve fetches again.
func (l *Loader) Evict(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[name]; ok {
		l.entries[name] = &entry{locator: e.locator}
	}
}

// EvictAll drops every cached renderer.
func (l *Loader) EvictAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for name, e := range l.entries {
		l.entries[name] = &entry{locator: e.locator}
	}
}

// Close cancels the context of in-flight and later fetches.
func (l *Loader) Close() {
	l.cancel()
}

func (l *Loader) fetch(name string, e *entry, f *Future[vdom.Renderer]) {
	ctx := l.ctx
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}
	ctx, span := l.tracer.Start(ctx, "retain.loader.fetch",
		trace.WithAttributes(attribute.String("retain.component", name)),
	)
	defer span.End()

	start := time.Now()
	render, err := l.locate(ctx, name, e.locator)
	l.metrics.RecordFetch(err, time.Since(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		l.mu.Lock()
		if e.future == f {
			e.future = nil
		}
		l.mu.Unlock()

		if coded, ok := err.(*rerrors.Error); ok {
			coded.Log(l.logger)
		}
		f.settle(nil, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	l.logger.Debug("component resolved", "name", name, "duration", time.Since(start))
	f.settle(render, nil)
}

// locate runs loc and classifies its failure.
func (l *Loader) locate(ctx context.Context, name string, loc Locator) (render vdom.Renderer, err error) {
	defer func() {
		if r := recover(); r != nil {
			render = nil
			err = rerrors.New("L002").WithDetailf("component %q: locator panicked: %v", name, r).Wrap(ErrLoadFailed)
		}
	}()

	if loc == nil {
		return nil, rerrors.New("L002").WithDetailf("component %q has a nil locator", name).Wrap(ErrLoadFailed)
	}
	render, err = loc.Locate(ctx, name)
	switch {
	case err != nil && errors.Is(err, ErrBadExport):
		return nil, rerrors.New("L003").WithDetailf("component %q: %v", name, err).Wrap(err)
	case err != nil:
		return nil, rerrors.New("L002").WithDetailf("component %q: %v", name, err).Wrap(fmt.Errorf("%w: %w", ErrLoadFailed, err))
	case render == nil:
		return nil, rerrors.New("L003").WithDetailf("component %q", name).Wrap(ErrBadExport)
	}
	return render, nil
}
