package render

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/retain/internal/errors"
	"github.com/vango-dev/retain/pkg/host"
	"github.com/vango-dev/retain/pkg/loader"
	"github.com/vango-dev/retain/pkg/metrics"
	"github.com/vango-dev/retain/pkg/reconcile"
	"github.com/vango-dev/retain/pkg/vdom"
)

// TracerName is the OpenTelemetry tracer used when none is configured.
const TracerName = "retain"

// Resolver resolves component names. *loader.Loader implements it.
type Resolver interface {
	Resolve(name string) *loader.Future[vdom.Renderer]
}

// Commit describes a finished pass.
type Commit struct {
	Root  host.Node
	Mode  Mode
	Stats reconcile.Stats
}

// Driver renders trees into mount roots of one surface.
type Driver struct {
	surface     host.Surface
	resolver    Resolver
	logger      *slog.Logger
	metrics     *metrics.Collector
	tracer      trace.Tracer
	progressive bool
	onCommit    func(Commit)

	mu     sync.Mutex
	mounts map[host.ID]*mount
	closed bool
}

// Option configures a Driver.
type Option func(*Driver)

// WithLoader sets the resolver for named components.
func WithLoader(r Resolver) Option {
	return func(d *Driver) {
		d.resolver = r
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithMetrics records passes on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(d *Driver) {
		d.metrics = c
	}
}

// WithTracer sets the tracer for render spans.
func WithTracer(t trace.Tracer) Option {
	return func(d *Driver) {
		if t != nil {
			d.tracer = t
		}
	}
}

// WithProgressive renders unresolved components as placeholders instead of
// waiting for them.
func WithProgressive(enabled bool) Option {
	return func(d *Driver) {
		d.progressive = enabled
	}
}

// WithCommitHook calls fn after every pass that touched the surface.
// fn runs on the rendering goroutine and must not block.
func WithCommitHook(fn func(Commit)) Option {
	return func(d *Driver) {
		d.onCommit = fn
	}
}

// New creates a Driver for surface.
func New(surface host.Surface, opts ...Option) *Driver {
	d := &Driver{
		surface: surface,
		logger:  slog.Default().With("component", "render"),
		tracer:  otel.Tracer(TracerName),
		mounts:  make(map[host.ID]*mount),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Surface returns the surface the driver renders into.
func (d *Driver) Surface() host.Surface {
	return d.surface
}

// mount is the driver's record of one mount root.
type mount struct {
	root    host.Node
	patcher *reconcile.Patcher

	state  atomic.Int32
	dirty  atomic.Bool
	inPass atomic.Bool
	stop   func()

	// reqMu guards the request queue. Only one goroutine runs passes for
	// a root at a time; requests arriving meanwhile replace queued ones.
	reqMu   sync.Mutex
	running bool
	queued  *request
	last    *request

	committed atomic.Pointer[vdom.VNode]

	failMu   sync.Mutex
	failed   map[string]error
	watching map[string]bool
}

type request struct {
	ctx   context.Context
	tree  *vdom.VNode
	user  bool // resets remembered resolution failures
	clear bool // empties the root instead of rendering
}

func (m *mount) setState(s State) {
	m.state.Store(int32(s))
}

func (d *Driver) mountFor(root host.Node) *mount {
	d.mu.Lock()
	defer d.mu.Unlock()
	if m, ok := d.mounts[root.ID()]; ok {
		return m
	}
	m := &mount{
		root:     root,
		patcher:  reconcile.New(d.surface, reconcile.WithLogger(d.logger)),
		failed:   make(map[string]error),
		watching: make(map[string]bool),
	}
	m.stop = func() {}
	if obs, ok := d.surface.(host.Observer); ok {
		m.stop = obs.Observe(root, func(rec host.Record) {
			d.observe(m, rec)
		})
	}
	d.mounts[root.ID()] = m
	return m
}

func (d *Driver) lookup(root host.Node) *mount {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mounts[root.ID()]
}

// observe handles a mutation record from the surface. Records produced by
// the driver's own pass are ignored.
func (d *Driver) observe(m *mount, rec host.Record) {
	if m.inPass.Load() {
		return
	}
	if m.dirty.Swap(true) {
		return
	}
	m.setState(StateUnmounted)
	d.metrics.RecordExternalMutation()
	errors.New("H001").
		WithDetailf("%s mutation below root %d; next render repaints", rec.Kind, m.root.ID()).
		Log(d.logger)
}

// Render renders tree into root. The first pass for a root, and any pass
// after an external mutation or a failed resolution, repaints the root from
// scratch; later passes apply the difference to the committed tree.
//
// Passes for one root never interleave. A Render arriving while a pass for
// the same root is running queues its tree, replacing any tree queued
// before it, and returns; the running goroutine renders it next.
func (d *Driver) Render(ctx context.Context, root host.Node, tree *vdom.VNode) {
	if root == nil {
		errors.New("R004").WithDetail("Render called with a nil root").Log(d.logger)
		return
	}
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return
	}
	d.enqueue(d.mountFor(root), &request{ctx: ctx, tree: tree, user: true})
}

func (d *Driver) enqueue(m *mount, req *request) {
	m.reqMu.Lock()
	m.queued = req
	if m.running {
		m.reqMu.Unlock()
		return
	}
	m.running = true
	for m.queued != nil {
		next := m.queued
		m.queued = nil
		m.last = next
		m.reqMu.Unlock()

		d.pass(m, next)

		m.reqMu.Lock()
	}
	m.running = false
	m.reqMu.Unlock()
}

// rerender repeats the last request for m without resetting failures.
func (d *Driver) rerender(m *mount) {
	d.mu.Lock()
	live := !d.closed && d.mounts[m.root.ID()] == m
	d.mu.Unlock()
	if !live {
		return
	}
	m.reqMu.Lock()
	last := m.last
	m.reqMu.Unlock()
	if last == nil {
		return
	}
	d.enqueue(m, &request{ctx: context.WithoutCancel(last.ctx), tree: last.tree})
}

// State returns the lifecycle state of root.
func (d *Driver) State(root host.Node) State {
	if root == nil {
		return StateUnmounted
	}
	m := d.lookup(root)
	if m == nil {
		return StateUnmounted
	}
	return State(m.state.Load())
}

// Unmount clears root and forgets it. A pass already running for root
// finishes first. Rendering into root again starts with a first paint.
func (d *Driver) Unmount(root host.Node) {
	if root == nil {
		return
	}
	d.mu.Lock()
	m := d.mounts[root.ID()]
	delete(d.mounts, root.ID())
	d.mu.Unlock()
	if m == nil {
		return
	}
	m.stop()
	d.enqueue(m, &request{ctx: context.Background(), clear: true})
}

// Close stops observing every root. Later calls to Render are ignored.
// The surface is left as it is.
func (d *Driver) Close() {
	d.mu.Lock()
	mounts := d.mounts
	d.mounts = make(map[host.ID]*mount)
	d.closed = true
	d.mu.Unlock()

	for _, m := range mounts {
		m.stop()
	}
}
