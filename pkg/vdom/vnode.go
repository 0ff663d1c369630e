package vdom

import (
	"fmt"
	"log/slog"
	"reflect"
	"sort"

	"github.com/vango-dev/retain/internal/errors"
	"github.com/vango-dev/retain/pkg/host"
)

// VKind is the node type discriminator.
type VKind uint8

const (
	KindElement     VKind = iota // <div>, <button>, etc.
	KindText                     // Text or number leaf
	KindComponent                // Deferred subtree
	KindPlaceholder              // Named component awaiting resolution
)

// String returns the string representation of the VKind.
func (k VKind) String() string {
	switch k {
	case KindElement:
		return "Element"
	case KindText:
		return "Text"
	case KindComponent:
		return "Component"
	case KindPlaceholder:
		return "Placeholder"
	default:
		return "Unknown"
	}
}

// Renderer produces the subtree of a component from its props and children.
type Renderer func(props Props, children []*VNode) *VNode

// PostCommit runs after the host mutation for a position completed.
type PostCommit func(node host.Node)

// RenderHook runs before a position is reconciled. prev is the node
// previously committed there and current the host node presently at that
// position; both are nil on insert. The returned callback, if any, runs
// after the position has been committed.
type RenderHook func(prev *VNode, current host.Node) PostCommit

// PlaceholderData is the payload of a KindPlaceholder node. Props and
// Children hold the serialized declarative payload; Handlers, keyed by event
// name, carries the event handlers that cannot be serialized.
type PlaceholderData struct {
	Name     string
	Props    []byte
	Children []byte
	Handlers map[string]Handler
}

// VNode is the virtual tree node.
type VNode struct {
	Kind     VKind      // Node type
	Tag      string     // Element tag name (e.g., "div")
	Props    Props      // Attributes, style, handlers and ref
	Children []*VNode   // Child nodes, never nil entries
	Key      string     // Identity hint, copied from the "key" prop
	Text     string     // For KindText
	Numeric  bool       // KindText holding a number
	Render   Renderer   // For KindComponent
	Name     string     // Symbolic component name
	Hook     RenderHook // Optional pre/post commit hook

	Placeholder *PlaceholderData

	// Output is the expanded subtree of a component or placeholder. It is
	// set on expanded copies only; the node occupies the host position of
	// its output.
	Output *VNode
}

// HasKey reports whether the node carries an explicit key prop.
func (v *VNode) HasKey() bool {
	return v != nil && v.Props.Has("key")
}

// IsTransparent reports whether the node has no host node of its own and
// renders through its output.
func (v *VNode) IsTransparent() bool {
	return v != nil && (v.Kind == KindComponent || v.Kind == KindPlaceholder)
}

// IsPrimitive reports whether the node is a text or number leaf.
func (v *VNode) IsPrimitive() bool {
	return v != nil && v.Kind == KindText
}

// IsUnresolved reports whether the node references a named component with no
// renderer attached yet.
func (v *VNode) IsUnresolved() bool {
	return v != nil && v.Kind == KindComponent && v.Render == nil && v.Name != ""
}

// Resolve returns a copy of a named component node bound to render.
func (v *VNode) Resolve(render Renderer) *VNode {
	cp := *v
	cp.Render = render
	return &cp
}

// NewPlaceholder creates a placeholder for the named component. key, if
// non-empty, keeps the identity of the component it stands in for.
func NewPlaceholder(key string, data *PlaceholderData) *VNode {
	node := &VNode{
		Kind:        KindPlaceholder,
		Name:        data.Name,
		Children:    make([]*VNode, 0),
		Placeholder: data,
	}
	if key != "" {
		setAttr(node, Key(key))
	}
	return node
}

// LoadingView returns the loading indicator shown for a placeholder, with
// the placeholder's handlers bound on it.
func (v *VNode) LoadingView() *VNode {
	if v == nil || v.Placeholder == nil {
		return LoadingNode("")
	}
	view := LoadingNode(v.Placeholder.Name)
	events := make([]string, 0, len(v.Placeholder.Handlers))
	for event := range v.Placeholder.Handlers {
		events = append(events, event)
	}
	sort.Strings(events)
	for _, event := range events {
		setAttr(view, On(event, v.Placeholder.Handlers[event]))
	}
	return view
}

// ComponentName returns a name suitable for diagnostics.
func (v *VNode) ComponentName() string {
	if v == nil {
		return ""
	}
	if v.Name != "" {
		return v.Name
	}
	if v.Render != nil {
		return fmt.Sprintf("func@%x", reflect.ValueOf(v.Render).Pointer())
	}
	return "anonymous"
}

// Evaluate runs a component's renderer. A panic inside the renderer or a
// missing renderer is reported as an error; a nil result renders nothing.
func Evaluate(v *VNode) (out *VNode, err error) {
	if v == nil || v.Kind != KindComponent {
		return v, nil
	}
	if v.Render == nil {
		if v.Name != "" {
			return nil, errors.New("R005").WithDetailf("component %q is not resolved", v.Name)
		}
		return nil, errors.New("R003").WithDetail("component has no renderer")
	}
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = errors.New("R003").WithDetailf("component %q panicked: %v", v.ComponentName(), r)
		}
	}()
	return v.Render(v.Props, v.Children), nil
}

// ErrorNode renders a visible inline error message.
func ErrorNode(message string) *VNode {
	return El("div",
		Class("retain-error"),
		Role("alert"),
		Text(message),
	)
}

// LoadingNode renders the visible loading indicator for an unresolved
// component.
func LoadingNode(name string) *VNode {
	return El("span",
		Class("retain-loading"),
		Data("component", name),
		Textf("Loading %s…", name),
	)
}

// diagnostic logs a construction-time problem.
func diagnostic(err *errors.Error) {
	err.Log(slog.Default().With("component", "vdom"))
}
