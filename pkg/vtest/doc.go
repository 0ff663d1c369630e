// Package vtest provides testing helpers for retain views.
//
// A Harness renders trees through a real render driver into an in-memory
// surface and waits for each commit, so tests can assert on the committed
// HTML and fire events at live nodes.
//
// # Quick Start
//
//	func TestCounter(t *testing.T) {
//	    h := vtest.New(t)
//	    h.Register("Counter", Counter)
//	    h.Render(vdom.Named("Counter", vdom.PropsOf(map[string]any{"label": "clicks"})))
//	    h.Click(h.Find("button"))
//	    h.ExpectContains("clicks: 1")
//	}
//
// # Render Assertions
//
// For trees without named components, the package-level helpers mount
// synchronously and assert on the resulting HTML:
//
//	vtest.ExpectContains(t, Card("Hello"), "<h2>Hello</h2>")
//	vtest.ExpectAttribute(t, Card("Hello"), "class", "card")
package vtest
