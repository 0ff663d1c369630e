package reconcile

import (
	"fmt"

	"github.com/vango-dev/retain/internal/errors"
	"github.com/vango-dev/retain/pkg/host"
	"github.com/vango-dev/retain/pkg/vdom"
)

// Materialize builds a detached host subtree for v. A failure while
// building a node degrades that node to an empty text node.
func (p *Patcher) Materialize(v *vdom.VNode) (n host.Node) {
	defer func() {
		if r := recover(); r != nil {
			p.diagnose(errors.New("R002").WithDetailf("%v", r))
			n = p.createText("")
		}
	}()

	switch v.Kind {
	case vdom.KindText:
		return p.createText(v.Text)

	case vdom.KindComponent, vdom.KindPlaceholder:
		return p.Materialize(p.view(v))

	case vdom.KindElement:
		el, err := p.surface.CreateElement(v.Tag, v.Props.String("xmlns"))
		if err != nil {
			p.diagnose(errors.New("R002").WithDetailf("create <%s>", v.Tag).Wrap(err))
			return p.createText("")
		}
		p.stats.Creates++
		p.SyncProps(el, v.Props, vdom.Props{})
		for i, child := range v.Children {
			var post vdom.PostCommit
			if child.Hook != nil {
				post = child.Hook(nil, nil)
			}
			c := p.Materialize(child)
			p.insert(el, c, i)
			if post != nil {
				post(c)
			}
		}
		return el

	default:
		panic(fmt.Sprintf("unknown node kind %s", v.Kind))
	}
}

func (p *Patcher) createText(value string) host.Node {
	p.stats.Creates++
	return p.surface.CreateText(value)
}

func (p *Patcher) insert(parent, child host.Node, index int) {
	if count := p.surface.ChildCount(parent); index > count {
		index = count
	}
	p.stats.Inserts++
	if err := p.surface.InsertChild(parent, child, index); err != nil {
		p.diagnose(errors.New("R002").WithDetail("insert child").Wrap(err))
	}
}

// Reconcile brings the host child of parent at index from prev to next and
// returns the host node now at that position (nil after a removal).
//
// A hook on next is called before the position is touched and its
// post-commit callback after.
func (p *Patcher) Reconcile(parent host.Node, next, prev *vdom.VNode, index int) host.Node {
	var current host.Node
	if prev != nil {
		current = p.surface.ChildAt(parent, index)
	}
	var post vdom.PostCommit
	if next != nil && next.Hook != nil {
		post = next.Hook(prev, current)
	}
	n := p.reconcile(parent, next, prev, current, index)
	if post != nil && n != nil {
		post(n)
	}
	return n
}

func (p *Patcher) reconcile(parent host.Node, next, prev *vdom.VNode, current host.Node, index int) host.Node {
	switch {
	case next == nil:
		if current == nil {
			return nil
		}
		p.release(current)
		p.stats.Removes++
		if err := p.surface.RemoveChildAt(parent, index); err != nil {
			p.diagnose(errors.New("R002").WithDetail("remove child").Wrap(err))
		}
		return nil

	case prev == nil || current == nil:
		n := p.Materialize(next)
		p.insert(parent, n, index)
		return n

	case vdom.Changed(next, prev):
		if next.IsPrimitive() && prev.IsPrimitive() {
			p.stats.Texts++
			p.surface.SetText(current, next.Text)
			return current
		}
		n := p.Materialize(next)
		p.release(current)
		p.stats.Replaces++
		if err := p.surface.ReplaceChildAt(parent, index, n); err != nil {
			p.diagnose(errors.New("R002").WithDetail("replace child").Wrap(err))
		}
		return n

	case next.IsPrimitive():
		return current

	case next.IsTransparent():
		return p.Reconcile(parent, p.view(next), p.view(prev), index)
	}

	p.SyncProps(current, next.Props, prev.Props)
	p.reconcileChildren(current, next.Children, prev.Children)
	return current
}

// reconcileChildren compares children by index. Surplus old children are
// removed from the tail so the indices of earlier positions stay valid.
func (p *Patcher) reconcileChildren(parent host.Node, next, prev []*vdom.VNode) {
	common := min(len(next), len(prev))
	for i := 0; i < common; i++ {
		p.Reconcile(parent, next[i], prev[i], i)
	}
	for i := common; i < len(next); i++ {
		p.Reconcile(parent, next[i], nil, i)
	}
	for i := len(prev) - 1; i >= common; i-- {
		p.Reconcile(parent, nil, prev[i], i)
	}
}

// Mount replaces every host child of root with a fresh subtree for tree.
func (p *Patcher) Mount(root host.Node, tree *vdom.VNode) host.Node {
	p.Clear(root)
	p.Reset()
	if tree == nil {
		return nil
	}
	return p.Reconcile(root, tree, nil, 0)
}

// Clear removes every host child of root and drops their side records.
func (p *Patcher) Clear(root host.Node) {
	for i := p.surface.ChildCount(root) - 1; i >= 0; i-- {
		p.release(p.surface.ChildAt(root, i))
		p.stats.Removes++
		if err := p.surface.RemoveChildAt(root, i); err != nil {
			p.diagnose(errors.New("R002").WithDetail("clear root").Wrap(err))
			return
		}
	}
}
