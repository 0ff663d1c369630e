// Package vdom provides the virtual tree that retain reconciles.
//
// A VNode describes one position of the desired UI: an element, a text (or
// number) leaf, a component whose renderer is evaluated lazily, or a
// placeholder standing in for a named component that has not been resolved
// yet. Trees are immutable once built; every render produces a fresh tree.
//
// # Core Types
//
// VNode is the node. Props is an ordered map of PropValue, a discriminated
// value that is either a scalar attribute, a style map, an event handler or a
// ref callback. Attr is a single named prop used by the element helpers.
//
// # Element API
//
// Elements are created using variadic factory functions. nil arguments are
// dropped, so conditional children and attributes compose naturally:
//
//	Div(Class("card"), ID("main"),
//	    H1(Text("Title")),
//	    If(loading, Span(Text("…"))),
//	    Button(OnClick(save), Text("Save")),
//	)
//
// # Equality
//
// Changed reports whether two nodes at the same position must be replaced
// rather than updated in place. Keys win over everything else; event
// handlers and refs never count as a change.
package vdom
