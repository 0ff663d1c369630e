package reconcile

import (
	"github.com/vango-dev/retain/internal/errors"
	"github.com/vango-dev/retain/pkg/vdom"
)

// MaxComponentDepth bounds how deeply components may render components.
const MaxComponentDepth = 256

// Expand returns a copy of tree in which every component and placeholder
// carries its rendered Output. Renderers run exactly once per expansion; a
// renderer that fails is replaced by an inline error node and its siblings
// render normally. A renderer returning nil renders an empty text node.
//
// Reconcile compares a component against the committed output of the
// previous pass, so trees passed to Reconcile should be expanded first when
// renderers read mutable state.
func (p *Patcher) Expand(tree *vdom.VNode) *vdom.VNode {
	out, _ := p.ExpandWith(tree, nil)
	return out
}

// Resolver supplies a stand-in for a named component that has no renderer
// yet: the same node bound to a renderer, or a placeholder. An error aborts
// the expansion.
type Resolver func(v *vdom.VNode) (*vdom.VNode, error)

// ExpandWith is Expand with unresolved named components passed through
// resolve first, including those that only appear in a renderer's output.
// A nil resolve leaves them unresolved, so they render as error nodes.
func (p *Patcher) ExpandWith(tree *vdom.VNode, resolve Resolver) (*vdom.VNode, error) {
	e := expander{p: p, resolve: resolve}
	out := e.expand(tree, 0)
	return out, e.err
}

type expander struct {
	p       *Patcher
	resolve Resolver
	err     error
}

func (e *expander) expand(v *vdom.VNode, depth int) *vdom.VNode {
	if v == nil || e.err != nil {
		return v
	}
	if v.IsUnresolved() && e.resolve != nil {
		sub, err := e.resolve(v)
		if err != nil {
			e.err = err
			return v
		}
		if sub != nil {
			v = sub
		}
	}
	p := e.p
	switch v.Kind {
	case vdom.KindText:
		return v

	case vdom.KindElement:
		if len(v.Children) == 0 {
			return v
		}
		cp := *v
		cp.Children = make([]*vdom.VNode, len(v.Children))
		for i, c := range v.Children {
			cp.Children[i] = e.expand(c, depth)
		}
		return &cp

	case vdom.KindPlaceholder:
		if v.Output != nil {
			return v
		}
		cp := *v
		cp.Output = e.expand(v.LoadingView(), depth)
		return &cp

	case vdom.KindComponent:
		if v.Output != nil {
			return v
		}
		cp := *v
		if depth >= MaxComponentDepth {
			err := errors.New("R003").WithDetailf("component %q nests deeper than %d", v.ComponentName(), MaxComponentDepth)
			p.diagnose(err)
			cp.Output = vdom.ErrorNode(err.Error())
			return &cp
		}
		out, err := vdom.Evaluate(v)
		if err != nil {
			p.diagnose(errors.FromError(err, "R003"))
			out = vdom.ErrorNode(err.Error())
		}
		if out == nil {
			out = vdom.Text("")
		}
		cp.Output = e.expand(out, depth+1)
		return &cp
	}
	return v
}

// view returns the node occupying the host position of a transparent node.
func (p *Patcher) view(v *vdom.VNode) *vdom.VNode {
	if v.Output == nil {
		v = p.Expand(v)
	}
	return v.Output
}
