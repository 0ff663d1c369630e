package reconcile

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/vango-dev/retain/internal/errors"
	"github.com/vango-dev/retain/pkg/host"
	"github.com/vango-dev/retain/pkg/vdom"
)

// Patcher applies virtual trees to a host surface.
type Patcher struct {
	surface host.Surface
	logger  *slog.Logger

	mu       sync.Mutex
	bindings map[host.ID]map[string]*binding

	stats Stats
}

// binding is the side record of one bound event on one host node.
type binding struct {
	handle  host.ListenerHandle
	handler vdom.Handler
}

// Option configures a Patcher.
type Option func(*Patcher)

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Patcher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a Patcher for surface.
func New(surface host.Surface, opts ...Option) *Patcher {
	p := &Patcher{
		surface:  surface,
		logger:   slog.Default().With("component", "reconcile"),
		bindings: make(map[host.ID]map[string]*binding),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Surface returns the host surface the Patcher writes to.
func (p *Patcher) Surface() host.Surface {
	return p.surface
}

// SyncProps brings the props of a live host node from prev to next.
//
// Events are bound through the side table; style sub-properties are diffed
// individually; className and class both write the class attribute; equal
// scalars are skipped; attributes present in prev but absent from next are
// removed. A ref receives the node on every sync.
func (p *Patcher) SyncProps(node host.Node, next, prev vdom.Props) {
	if node == nil {
		return
	}

	events := make(map[string]vdom.Handler)
	written := make(map[string]bool)
	var ref vdom.RefFunc

	next.Each(func(name string, v vdom.PropValue) {
		switch v.Kind {
		case vdom.PropEvent:
			if v.Event != nil {
				events[vdom.EventName(name)] = v.Event
			}
		case vdom.PropRef:
			ref = v.Ref
		case vdom.PropStyle:
			old, _ := prev.Get(name)
			if old.Kind == vdom.PropScalar {
				p.removeAttribute(node, attributeName(name))
			}
			p.syncStyle(node, v.Style, old.Style)
		case vdom.PropScalar:
			if isReserved(name) {
				return
			}
			attr := attributeName(name)
			written[attr] = true
			if old, ok := prev.Get(name); ok && old.Kind == vdom.PropScalar && vdom.ValuesEqual(old.Scalar, v.Scalar) {
				return
			}
			p.setScalar(node, attr, v.Scalar)
		}
	})

	prev.Each(func(name string, v vdom.PropValue) {
		if next.Has(name) {
			return
		}
		switch v.Kind {
		case vdom.PropStyle:
			p.syncStyle(node, nil, v.Style)
		case vdom.PropScalar:
			if isReserved(name) {
				return
			}
			if attr := attributeName(name); !written[attr] {
				p.removeAttribute(node, attr)
			}
		}
	})

	p.syncEvents(node, events)

	if ref != nil {
		ref(node)
	}
}

func (p *Patcher) setScalar(node host.Node, attr string, v any) {
	switch val := v.(type) {
	case nil:
		p.removeAttribute(node, attr)
	case bool:
		if val {
			p.stats.Attributes++
			p.surface.SetAttribute(node, attr, "")
		} else {
			p.removeAttribute(node, attr)
		}
	default:
		p.stats.Attributes++
		p.surface.SetAttribute(node, attr, vdom.ScalarValue(v).String())
	}
}

func (p *Patcher) removeAttribute(node host.Node, attr string) {
	p.stats.Attributes++
	p.surface.RemoveAttribute(node, attr)
}

func (p *Patcher) syncStyle(node host.Node, next, prev vdom.Style) {
	for _, k := range next.Keys() {
		if old, ok := prev[k]; ok && old == next[k] {
			continue
		}
		p.stats.Styles++
		p.surface.SetStyleProperty(node, k, next[k])
	}
	for _, k := range prev.Keys() {
		if _, ok := next[k]; !ok {
			p.stats.Styles++
			p.surface.SetStyleProperty(node, k, "")
		}
	}
}

// syncEvents makes the side table for node hold exactly the given handlers.
// Events already bound only have their handler swapped.
func (p *Patcher) syncEvents(node host.Node, handlers map[string]vdom.Handler) {
	id := node.ID()

	p.mu.Lock()
	bound := p.bindings[id]
	stale := make(map[string]host.ListenerHandle)
	for event, b := range bound {
		if _, ok := handlers[event]; !ok {
			stale[event] = b.handle
			delete(bound, event)
		}
	}
	var fresh []string
	for event, h := range handlers {
		if b, ok := bound[event]; ok {
			b.handler = h
			continue
		}
		if bound == nil {
			bound = make(map[string]*binding)
			p.bindings[id] = bound
		}
		bound[event] = &binding{handler: h}
		fresh = append(fresh, event)
	}
	if len(bound) == 0 {
		delete(p.bindings, id)
	}
	p.mu.Unlock()

	for _, event := range sortedKeys(stale) {
		p.stats.Listeners++
		p.surface.RemoveEventListener(node, event, stale[event])
	}
	sort.Strings(fresh)
	for _, event := range fresh {
		p.stats.Listeners++
		handle := p.surface.AddEventListener(node, event, p.trampoline(id, event))

		p.mu.Lock()
		if b := p.bindings[id][event]; b != nil {
			b.handle = handle
		}
		p.mu.Unlock()
	}
}

// trampoline returns the host listener for (id, event). It looks the
// current handler up on every dispatch.
func (p *Patcher) trampoline(id host.ID, event string) host.Listener {
	return func(e host.Event) {
		p.mu.Lock()
		var h vdom.Handler
		if b := p.bindings[id][event]; b != nil {
			h = b.handler
		}
		p.mu.Unlock()
		if h != nil {
			h(e)
		}
	}
}

// BoundEvents returns the events bound on node, sorted.
func (p *Patcher) BoundEvents(node host.Node) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var events []string
	for event := range p.bindings[node.ID()] {
		events = append(events, event)
	}
	sort.Strings(events)
	return events
}

// Bindings returns the number of host nodes with a side record.
func (p *Patcher) Bindings() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.bindings)
}

// release drops the side records of node and its host descendants. The
// host listeners die with the detached nodes.
func (p *Patcher) release(node host.Node) {
	if node == nil {
		return
	}
	var ids []host.ID
	var walk func(n host.Node)
	walk = func(n host.Node) {
		ids = append(ids, n.ID())
		count := p.surface.ChildCount(n)
		for i := 0; i < count; i++ {
			if c := p.surface.ChildAt(n, i); c != nil {
				walk(c)
			}
		}
	}
	walk(node)

	p.mu.Lock()
	for _, id := range ids {
		delete(p.bindings, id)
	}
	p.mu.Unlock()
}

// Reset drops every side record, e.g. after the host subtree was rebuilt.
func (p *Patcher) Reset() {
	p.mu.Lock()
	p.bindings = make(map[host.ID]map[string]*binding)
	p.mu.Unlock()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// attributeName maps a prop name to the host attribute it writes.
func attributeName(prop string) string {
	if prop == "className" {
		return "class"
	}
	return prop
}

// isReserved reports whether a scalar prop is consumed by the engine
// instead of written as an attribute.
func isReserved(name string) bool {
	return name == "key" || name == "xmlns"
}

func (p *Patcher) diagnose(err *errors.Error) {
	err.Log(p.logger)
}
