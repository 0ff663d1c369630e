package vdom

import "strings"

// attr creates a scalar Attr with the given key and value.
func attr(key string, value any) Attr {
	return Attr{Key: key, Value: ScalarValue(value)}
}

// Reserved props

// Key sets the identity hint used by the reconciler.
func Key(key string) Attr { return attr("key", key) }

// Ref registers a callback that receives the live host node on every sync.
func Ref(fn RefFunc) Attr { return Attr{Key: "ref", Value: RefValue(fn)} }

// XMLNS sets the namespace hint used when creating the host element.
func XMLNS(ns string) Attr { return attr("xmlns", ns) }

// StyleAttr sets the style prop as a per sub-property diffable map.
func StyleAttr(s Style) Attr { return Attr{Key: "style", Value: StyleValue(s)} }

// Prop sets an arbitrary prop, classifying value like PropsOf does.
func Prop(name string, value any) Attr { return Attr{Key: name, Value: classify(name, value)} }

// Identity attributes

// ID sets the id attribute.
func ID(id string) Attr { return attr("id", id) }

// Class sets the class attribute, joining multiple classes with spaces.
func Class(classes ...string) Attr { return attr("class", strings.Join(classes, " ")) }

// ClassName sets the class through the className prop.
func ClassName(name string) Attr { return attr("className", name) }

// Data creates a data-* attribute.
// Example: Data("id", "123") → data-id="123"
func Data(key, value string) Attr { return attr("data-"+key, value) }

// Accessibility attributes

// Role sets the role attribute.
func Role(role string) Attr { return attr("role", role) }

// AriaLabel sets the aria-label attribute.
func AriaLabel(label string) Attr { return attr("aria-label", label) }

// AriaHidden sets the aria-hidden attribute.
func AriaHidden(hidden bool) Attr { return attr("aria-hidden", hidden) }

// Link and media attributes

func Href(url string) Attr    { return attr("href", url) }
func Src(url string) Attr     { return attr("src", url) }
func Alt(text string) Attr    { return attr("alt", text) }
func TitleAttr(t string) Attr { return attr("title", t) }

// Form attributes

func Type(t string) Attr            { return attr("type", t) }
func Name(n string) Attr            { return attr("name", n) }
func Value(v string) Attr           { return attr("value", v) }
func PlaceholderAttr(p string) Attr { return attr("placeholder", p) }
func For(id string) Attr            { return attr("for", id) }
func Disabled(b bool) Attr          { return attr("disabled", b) }
func Checked(b bool) Attr           { return attr("checked", b) }
func Readonly(b bool) Attr          { return attr("readonly", b) }
func TabIndex(i int) Attr           { return attr("tabindex", i) }

// SVG attributes

func ViewBox(v string) Attr { return attr("viewBox", v) }
func D(path string) Attr    { return attr("d", path) }
func Fill(c string) Attr    { return attr("fill", c) }
