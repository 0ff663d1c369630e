package vdom

import (
	"fmt"
	"strconv"

	"github.com/vango-dev/retain/internal/errors"
)

// DefaultTag replaces a missing or empty tag.
const DefaultTag = "div"

// SVGNamespace is the namespace hint for SVG elements.
const SVGNamespace = "http://www.w3.org/2000/svg"

// Attr is a single named prop.
type Attr struct {
	Key   string
	Value PropValue
}

// IsEmpty returns true if this is an empty/nil attribute.
func (a Attr) IsEmpty() bool {
	return a.Key == ""
}

// El creates an element node. Arguments can be: nil, Attr, []Attr, Props,
// *VNode, []*VNode, string, a number, or a RenderHook.
func El(tag string, args ...any) *VNode {
	if tag == "" {
		diagnostic(errors.New("R001").WithDetailf("empty tag replaced with %q", DefaultTag))
		tag = DefaultTag
	}
	node := &VNode{
		Kind:     KindElement,
		Tag:      tag,
		Children: make([]*VNode, 0),
	}
	applyArgs(node, args)
	return node
}

// Element creates an element node from explicit props and children.
func Element(tag string, props Props, children ...any) *VNode {
	return El(tag, append([]any{props}, children...)...)
}

// Comp creates a component node that renders through render.
func Comp(render Renderer, args ...any) *VNode {
	node := &VNode{
		Kind:     KindComponent,
		Render:   render,
		Children: make([]*VNode, 0),
	}
	applyArgs(node, args)
	return node
}

// Named creates a reference to a component resolved by name at render time.
func Named(name string, args ...any) *VNode {
	node := &VNode{
		Kind:     KindComponent,
		Name:     name,
		Children: make([]*VNode, 0),
	}
	applyArgs(node, args)
	return node
}

func applyArgs(node *VNode, args []any) {
	for _, arg := range args {
		switch v := arg.(type) {
		case nil:
			// Ignore nil (allows conditional attributes and children)
			continue

		case Attr:
			setAttr(node, v)

		case []Attr:
			for _, a := range v {
				setAttr(node, a)
			}

		case Props:
			v.Each(func(name string, pv PropValue) {
				setAttr(node, Attr{Key: name, Value: pv})
			})

		case *VNode:
			if v != nil {
				node.Children = append(node.Children, v)
			}

		case []*VNode:
			for _, child := range v {
				if child != nil {
					node.Children = append(node.Children, child)
				}
			}

		case string:
			node.Children = append(node.Children, Text(v))

		case int, int64, float64:
			node.Children = append(node.Children, Number(v))

		case RenderHook:
			node.Hook = v
		}
	}
}

func setAttr(node *VNode, a Attr) {
	if a.IsEmpty() {
		return
	}
	if a.Key == "key" {
		node.Key = a.Value.String()
	}
	node.Props.set(a.Key, a.Value)
}

// Text creates a text node.
func Text(content string) *VNode {
	return &VNode{
		Kind:     KindText,
		Text:     content,
		Children: make([]*VNode, 0),
	}
}

// Textf creates a formatted text node.
func Textf(format string, args ...any) *VNode {
	return Text(fmt.Sprintf(format, args...))
}

// Number creates a numeric text node. Unsupported types render as their
// fmt representation.
func Number(n any) *VNode {
	var s string
	switch v := n.(type) {
	case int:
		s = strconv.Itoa(v)
	case int64:
		s = strconv.FormatInt(v, 10)
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	default:
		s = fmt.Sprint(v)
	}
	node := Text(s)
	node.Numeric = true
	return node
}

// If returns the node if condition is true, nil otherwise.
func If(condition bool, node *VNode) *VNode {
	if condition {
		return node
	}
	return nil
}

// When is like If but with lazy evaluation.
func When(condition bool, fn func() *VNode) *VNode {
	if condition {
		return fn()
	}
	return nil
}

// Map renders each item; nil results are dropped by the element factories.
func Map[T any](items []T, fn func(int, T) *VNode) []*VNode {
	out := make([]*VNode, 0, len(items))
	for i, item := range items {
		out = append(out, fn(i, item))
	}
	return out
}

// Container elements

func Div(args ...any) *VNode     { return El("div", args...) }
func Span(args ...any) *VNode    { return El("span", args...) }
func P(args ...any) *VNode       { return El("p", args...) }
func Section(args ...any) *VNode { return El("section", args...) }
func Main(args ...any) *VNode    { return El("main", args...) }
func Header(args ...any) *VNode  { return El("header", args...) }
func Footer(args ...any) *VNode  { return El("footer", args...) }
func Nav(args ...any) *VNode     { return El("nav", args...) }
func H1(args ...any) *VNode      { return El("h1", args...) }
func H2(args ...any) *VNode      { return El("h2", args...) }
func H3(args ...any) *VNode      { return El("h3", args...) }

// Lists

func Ul(args ...any) *VNode { return El("ul", args...) }
func Ol(args ...any) *VNode { return El("ol", args...) }
func Li(args ...any) *VNode { return El("li", args...) }

// Forms and interactive elements

func A(args ...any) *VNode        { return El("a", args...) }
func Button(args ...any) *VNode   { return El("button", args...) }
func Form(args ...any) *VNode     { return El("form", args...) }
func Input(args ...any) *VNode    { return El("input", args...) }
func Textarea(args ...any) *VNode { return El("textarea", args...) }
func Label(args ...any) *VNode    { return El("label", args...) }
func Select(args ...any) *VNode   { return El("select", args...) }
func Option(args ...any) *VNode   { return El("option", args...) }
func Img(args ...any) *VNode      { return El("img", args...) }
func Br(args ...any) *VNode       { return El("br", args...) }

// SVG elements carry the SVG namespace hint.

func Svg(args ...any) *VNode    { return El("svg", append([]any{XMLNS(SVGNamespace)}, args...)...) }
func Path(args ...any) *VNode   { return El("path", append([]any{XMLNS(SVGNamespace)}, args...)...) }
func Circle(args ...any) *VNode { return El("circle", append([]any{XMLNS(SVGNamespace)}, args...)...) }
func G(args ...any) *VNode      { return El("g", append([]any{XMLNS(SVGNamespace)}, args...)...) }
