package hooks

import (
	"github.com/vango-dev/retain/pkg/host"
	"github.com/vango-dev/retain/pkg/vdom"
)

// Chain composes hooks into one. Pre-commit captures run in order, and so
// do the post-commit callbacks.
func Chain(hooks ...vdom.RenderHook) vdom.RenderHook {
	return func(prev *vdom.VNode, current host.Node) vdom.PostCommit {
		var posts []vdom.PostCommit
		for _, h := range hooks {
			if h == nil {
				continue
			}
			if post := h(prev, current); post != nil {
				posts = append(posts, post)
			}
		}
		if len(posts) == 0 {
			return nil
		}
		return func(n host.Node) {
			for _, post := range posts {
				post(n)
			}
		}
	}
}

// PreserveFocus keeps focus and the text selection on a position whose host
// node is replaced while focused.
func PreserveFocus(fm host.FocusManager) vdom.RenderHook {
	return func(_ *vdom.VNode, current host.Node) vdom.PostCommit {
		if current == nil || fm.ActiveElement() != current {
			return nil
		}
		start, end, hasSel := fm.Selection(current)
		return func(n host.Node) {
			if n == current {
				return
			}
			fm.Focus(n)
			if hasSel {
				fm.SetSelection(n, start, end)
			}
		}
	}
}

// PreserveScroll keeps the scroll offset of a position whose host node is
// replaced.
func PreserveScroll(sc host.Scroller) vdom.RenderHook {
	return func(_ *vdom.VNode, current host.Node) vdom.PostCommit {
		if current == nil {
			return nil
		}
		x, y := sc.ScrollOffset(current)
		if x == 0 && y == 0 {
			return nil
		}
		return func(n host.Node) {
			if n != current {
				sc.SetScrollOffset(n, x, y)
			}
		}
	}
}
