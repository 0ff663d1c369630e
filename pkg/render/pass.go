package render

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	rerrors "github.com/vango-dev/retain/internal/errors"
	"github.com/vango-dev/retain/pkg/loader"
	"github.com/vango-dev/retain/pkg/protocol"
	"github.com/vango-dev/retain/pkg/reconcile"
	"github.com/vango-dev/retain/pkg/vdom"
)

// pass runs one render pass for m. Only the goroutine holding m.running
// calls it.
func (d *Driver) pass(m *mount, req *request) {
	if req.clear {
		m.inPass.Store(true)
		m.patcher.Clear(m.root)
		m.patcher.Reset()
		m.inPass.Store(false)
		m.committed.Store(nil)
		m.setState(StateUnmounted)
		m.patcher.TakeStats()
		return
	}

	ctx := req.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	ctx, span := d.tracer.Start(ctx, "retain.render",
		trace.WithAttributes(attribute.Int64("retain.root", int64(m.root.ID()))),
	)
	defer span.End()

	if req.user {
		m.failMu.Lock()
		clear(m.failed)
		m.failMu.Unlock()
	}
	d.prefetch(m, req.tree)

	tree, err := m.patcher.ExpandWith(req.tree, d.resolve(ctx, m))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			rerrors.New("R006").WithDetail("resolution abandoned; root left unchanged").Wrap(err).Log(d.logger)
			return
		}
		rerr := rerrors.FromError(err, "R005")
		rerr.Log(d.logger)
		d.commit(ctx, m, span, start, ModeError, m.patcher.Expand(vdom.ErrorNode(rerr.Error())))
		return
	}

	mode := ModeUpdate
	if m.committed.Load() == nil || m.dirty.Load() {
		mode = ModeFirstPaint
	}
	d.commit(ctx, m, span, start, mode, tree)
}

// commit applies tree to the root of m.
func (d *Driver) commit(ctx context.Context, m *mount, span trace.Span, start time.Time, mode Mode, tree *vdom.VNode) {
	m.inPass.Store(true)
	switch mode {
	case ModeUpdate:
		m.patcher.Reconcile(m.root, tree, m.committed.Load(), 0)
	default:
		m.setState(StateFirstPaint)
		m.dirty.Store(false)
		m.patcher.Mount(m.root, tree)
	}
	m.inPass.Store(false)

	if mode == ModeError {
		m.committed.Store(nil)
		m.setState(StateUnmounted)
	} else {
		m.committed.Store(tree)
		m.setState(StateCommitted)
	}

	stats := m.patcher.TakeStats()
	elapsed := time.Since(start)
	span.SetAttributes(
		attribute.String("retain.mode", string(mode)),
		attribute.Int("retain.ops", stats.Total()),
	)
	if mode != ModeError {
		span.SetStatus(codes.Ok, "")
	}
	d.record(mode, stats, elapsed)
	d.logger.DebugContext(ctx, "render committed",
		"root", m.root.ID(),
		"mode", string(mode),
		"ops", stats.Total(),
		"duration", elapsed,
	)
	if d.onCommit != nil {
		d.onCommit(Commit{Root: m.root, Mode: mode, Stats: stats})
	}
}

func (d *Driver) record(mode Mode, stats reconcile.Stats, elapsed time.Duration) {
	if d.metrics == nil {
		return
	}
	d.metrics.RecordRender(string(mode), elapsed)
	d.metrics.RecordMutations("creates", stats.Creates)
	d.metrics.RecordMutations("texts", stats.Texts)
	d.metrics.RecordMutations("attributes", stats.Attributes)
	d.metrics.RecordMutations("styles", stats.Styles)
	d.metrics.RecordMutations("listeners", stats.Listeners)
	d.metrics.RecordMutations("inserts", stats.Inserts)
	d.metrics.RecordMutations("removes", stats.Removes)
	d.metrics.RecordMutations("replaces", stats.Replaces)
}

// prefetch starts resolving every named component visible in tree so that
// fetches run concurrently rather than one by one during expansion. Names
// whose resolution failed for this root are skipped.
func (d *Driver) prefetch(m *mount, tree *vdom.VNode) {
	if d.resolver == nil {
		return
	}
	seen := make(map[string]bool)
	m.failMu.Lock()
	for name := range m.failed {
		seen[name] = true
	}
	m.failMu.Unlock()
	var walk func(v *vdom.VNode)
	walk = func(v *vdom.VNode) {
		if v == nil {
			return
		}
		if v.IsUnresolved() && !seen[v.Name] {
			seen[v.Name] = true
			d.resolver.Resolve(v.Name)
		}
		for _, c := range v.Children {
			walk(c)
		}
	}
	walk(tree)
}

// resolve returns the expansion hook for one pass.
func (d *Driver) resolve(ctx context.Context, m *mount) reconcile.Resolver {
	return func(v *vdom.VNode) (*vdom.VNode, error) {
		if d.resolver == nil {
			return nil, rerrors.New("R005").WithDetailf("component %q: no loader configured", v.Name)
		}
		if d.progressive {
			m.failMu.Lock()
			err, failed := m.failed[v.Name]
			m.failMu.Unlock()
			if failed {
				return vdom.ErrorNode(rerrors.FromError(err, "R005").Error()), nil
			}
		}

		f := d.resolver.Resolve(v.Name)
		if d.progressive && !f.Settled() {
			d.watch(m, v.Name, f)
			return d.placeholder(v), nil
		}
		render, err := f.Wait(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			if d.progressive {
				return vdom.ErrorNode(rerrors.FromError(err, "R005").Error()), nil
			}
			return nil, rerrors.New("R005").WithDetailf("component %q: %v", v.Name, err).Wrap(err)
		}
		return v.Resolve(render), nil
	}
}

// watch re-renders m once f settles. A failure is remembered so that the
// re-render shows an error instead of starting another fetch.
func (d *Driver) watch(m *mount, name string, f *loader.Future[vdom.Renderer]) {
	m.failMu.Lock()
	if m.watching[name] {
		m.failMu.Unlock()
		return
	}
	m.watching[name] = true
	m.failMu.Unlock()

	go func() {
		<-f.Done()
		_, err := f.Wait(context.Background())

		m.failMu.Lock()
		delete(m.watching, name)
		if err != nil {
			m.failed[name] = err
		}
		m.failMu.Unlock()

		d.rerender(m)
	}()
}

// placeholder stands in for v while it resolves. Props and children travel
// in serialized form; handlers are kept aside and bound on the loading
// indicator. A payload that cannot be encoded is left empty and diagnosed.
func (d *Driver) placeholder(v *vdom.VNode) *vdom.VNode {
	data := &vdom.PlaceholderData{Name: v.Name}
	if b, err := protocol.EncodeProps(v.Props); err != nil {
		rerrors.New("P001").WithDetailf("placeholder for %q: props not encodable: %v", v.Name, err).Wrap(err).Log(d.logger)
	} else {
		data.Props = b
	}
	if b, err := protocol.EncodeChildren(v.Children); err != nil {
		rerrors.New("P001").WithDetailf("placeholder for %q: children not encodable: %v", v.Name, err).Wrap(err).Log(d.logger)
	} else {
		data.Children = b
	}
	v.Props.Each(func(name string, pv vdom.PropValue) {
		if pv.Kind != vdom.PropEvent {
			return
		}
		if data.Handlers == nil {
			data.Handlers = make(map[string]vdom.Handler)
		}
		data.Handlers[vdom.EventName(name)] = pv.Event
	})
	return vdom.NewPlaceholder(v.Key, data)
}
