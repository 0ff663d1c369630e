package vtest

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/vango-dev/retain/pkg/host"
	"github.com/vango-dev/retain/pkg/loader"
	"github.com/vango-dev/retain/pkg/reconcile"
	"github.com/vango-dev/retain/pkg/render"
	"github.com/vango-dev/retain/pkg/vdom"
)

// CommitTimeout bounds how long a Harness waits for a pass to finish.
var CommitTimeout = 2 * time.Second

// Harness renders into a memory surface through a render driver.
type Harness struct {
	t       testing.TB
	Mem     *host.Memory
	Root    host.Node
	Loader  *loader.Loader
	Driver  *render.Driver
	commits chan render.Commit
}

// New creates a Harness whose driver and loader are released when t ends.
// opts are applied to the driver after the loader and commit hook.
func New(t testing.TB, opts ...render.Option) *Harness {
	t.Helper()
	mem := host.NewMemory()
	root, err := mem.CreateElement("main", "")
	if err != nil {
		t.Fatalf("create root: %v", err)
	}
	h := &Harness{
		t:       t,
		Mem:     mem,
		Root:    root,
		Loader:  loader.New(),
		commits: make(chan render.Commit, 64),
	}
	opts = append([]render.Option{
		render.WithLoader(h.Loader),
		render.WithCommitHook(func(c render.Commit) { h.commits <- c }),
	}, opts...)
	h.Driver = render.New(mem, opts...)
	t.Cleanup(func() {
		h.Driver.Close()
		h.Loader.Close()
	})
	return h
}

// Register binds name to an in-process renderer.
func (h *Harness) Register(name string, r vdom.Renderer) {
	h.Loader.Register(name, loader.Func(r))
}

// Render renders tree into the root and waits for the commit.
func (h *Harness) Render(tree *vdom.VNode) render.Commit {
	h.t.Helper()
	h.Driver.Render(context.Background(), h.Root, tree)
	return h.NextCommit()
}

// NextCommit waits for the next pass to finish, failing the test after
// CommitTimeout.
func (h *Harness) NextCommit() render.Commit {
	h.t.Helper()
	select {
	case c := <-h.commits:
		return c
	case <-time.After(CommitTimeout):
		h.t.Fatalf("no commit within %s", CommitTimeout)
		return render.Commit{}
	}
}

// HTML returns the committed markup below the root.
func (h *Harness) HTML() string {
	return h.Mem.HTML(h.Root)
}

// Find returns the first element with tag below the root in document
// order, or nil.
func (h *Harness) Find(tag string) host.Node {
	return find(h.Mem, h.Root, tag)
}

func find(mem *host.Memory, n host.Node, tag string) host.Node {
	for _, c := range mem.Children(n) {
		if !mem.IsText(c) && mem.Tag(c) == tag {
			return c
		}
		if found := find(mem, c, tag); found != nil {
			return found
		}
	}
	return nil
}

// Dispatch fires event at n and fails the test when no listener ran.
func (h *Harness) Dispatch(n host.Node, event string, detail map[string]any) {
	h.t.Helper()
	if n == nil {
		h.t.Fatalf("dispatch %s: nil node", event)
	}
	if h.Mem.Dispatch(n, event, detail) == 0 {
		h.t.Errorf("dispatch %s: no listener on <%s>", event, h.Mem.Tag(n))
	}
}

// Click dispatches a click at n.
func (h *Harness) Click(n host.Node) {
	h.t.Helper()
	h.Dispatch(n, "click", nil)
}

// ExpectContains asserts that the committed HTML contains expected.
func (h *Harness) ExpectContains(expected string) {
	h.t.Helper()
	if html := h.HTML(); !strings.Contains(html, expected) {
		h.t.Errorf("expected committed output to contain %q, got:\n%s", expected, truncate(html, 500))
	}
}

// ExpectNotContains asserts that the committed HTML does not contain
// unexpected.
func (h *Harness) ExpectNotContains(unexpected string) {
	h.t.Helper()
	if html := h.HTML(); strings.Contains(html, unexpected) {
		h.t.Errorf("expected committed output to NOT contain %q, got:\n%s", unexpected, truncate(html, 500))
	}
}

// RenderToString mounts node into a fresh memory surface and returns its
// markup. Named components are expanded only when already bound to a
// renderer; unresolved ones render as error nodes.
//
// Example:
//
//	html := vtest.RenderToString(Card("Hello"))
//	if !strings.Contains(html, "Hello") {
//	    t.Error("missing title")
//	}
func RenderToString(node *vdom.VNode) string {
	mem := host.NewMemory()
	root, err := mem.CreateElement("main", "")
	if err != nil {
		return ""
	}
	p := reconcile.New(mem)
	p.Mount(root, p.Expand(node))
	return mem.HTML(root)
}

// ExpectContains asserts that rendered output contains expected substring.
//
// Example:
//
//	vtest.ExpectContains(t, Card("Hello"), "<h2>Hello</h2>")
func ExpectContains(t testing.TB, node *vdom.VNode, expected string) {
	t.Helper()
	html := RenderToString(node)
	if !strings.Contains(html, expected) {
		t.Errorf("expected rendered output to contain %q, got:\n%s", expected, truncate(html, 500))
	}
}

// ExpectNotContains asserts that rendered output does not contain substring.
func ExpectNotContains(t testing.TB, node *vdom.VNode, unexpected string) {
	t.Helper()
	html := RenderToString(node)
	if strings.Contains(html, unexpected) {
		t.Errorf("expected rendered output to NOT contain %q, got:\n%s", unexpected, truncate(html, 500))
	}
}

// ExpectElement asserts that rendered output contains a specific tag.
func ExpectElement(t testing.TB, node *vdom.VNode, tag string) {
	t.Helper()
	html := RenderToString(node)
	if !strings.Contains(html, "<"+tag) {
		t.Errorf("expected rendered output to contain <%s> element, got:\n%s", tag, truncate(html, 500))
	}
}

// ExpectAttribute asserts that rendered output contains an attribute value.
//
// Example:
//
//	vtest.ExpectAttribute(t, Card("Hello"), "class", "card")
func ExpectAttribute(t testing.TB, node *vdom.VNode, attr, value string) {
	t.Helper()
	html := RenderToString(node)
	needle := attr + `="` + value + `"`
	if !strings.Contains(html, needle) {
		t.Errorf("expected attribute %s=%q not found, got:\n%s", attr, value, truncate(html, 500))
	}
}

// truncate truncates a string to max length with ellipsis.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
