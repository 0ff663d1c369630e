package render

import (
	"context"
	"sync"

	"github.com/vango-dev/retain/internal/errors"
	"github.com/vango-dev/retain/pkg/host"
	"github.com/vango-dev/retain/pkg/state"
	"github.com/vango-dev/retain/pkg/vdom"
)

// View renders a state snapshot.
type View func(state.Record) *vdom.VNode

// Mount renders view(store.Get()) into root now and again after every store
// notification. The returned function stops the re-rendering; it leaves the
// root as it is and may be called more than once.
func (d *Driver) Mount(ctx context.Context, root host.Node, view View, store *state.Store) (unmount func()) {
	if root == nil {
		errors.New("R004").WithDetail("Mount called with a nil root").Log(d.logger)
		return func() {}
	}
	if view == nil || store == nil {
		errors.New("R004").WithDetail("Mount called without a view or store").Log(d.logger)
		return func() {}
	}

	unsubscribe := store.Subscribe(func(r state.Record) {
		d.Render(ctx, root, view(r))
	})
	d.Render(ctx, root, view(store.Get()))

	var once sync.Once
	return func() {
		once.Do(unsubscribe)
	}
}

// Inject renders the component registered as name into root.
func (d *Driver) Inject(ctx context.Context, root host.Node, name string, props vdom.Props, children ...*vdom.VNode) {
	d.Render(ctx, root, vdom.Named(name, props, children))
}

// Committed returns the expanded tree last committed to root, or nil.
func (d *Driver) Committed(root host.Node) *vdom.VNode {
	if root == nil {
		return nil
	}
	m := d.lookup(root)
	if m == nil {
		return nil
	}
	return m.committed.Load()
}
