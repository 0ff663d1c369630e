package vdom

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/vango-dev/retain/pkg/host"
)

// PropKind discriminates PropValue.
type PropKind uint8

const (
	PropScalar PropKind = iota + 1 // string, bool, integer or float attribute
	PropStyle                      // per sub-property diffable style
	PropEvent                      // event handler, bound as a listener
	PropRef                        // callback receiving the live host node
)

// String returns the string representation of the PropKind.
func (k PropKind) String() string {
	switch k {
	case PropScalar:
		return "Scalar"
	case PropStyle:
		return "Style"
	case PropEvent:
		return "Event"
	case PropRef:
		return "Ref"
	default:
		return "Unknown"
	}
}

// Handler handles a host event.
type Handler func(host.Event)

// RefFunc receives the live host node on every prop sync.
type RefFunc func(host.Node)

// Style maps style sub-properties (e.g. "font-size") to values.
type Style map[string]string

// PropValue is a single prop value.
type PropValue struct {
	Kind   PropKind
	Scalar any
	Style  Style
	Event  Handler
	Ref    RefFunc
}

// ScalarValue wraps a scalar attribute value.
func ScalarValue(v any) PropValue { return PropValue{Kind: PropScalar, Scalar: v} }

// StyleValue wraps a style map.
func StyleValue(s Style) PropValue { return PropValue{Kind: PropStyle, Style: s} }

// EventValue wraps an event handler.
func EventValue(h Handler) PropValue { return PropValue{Kind: PropEvent, Event: h} }

// RefValue wraps a ref callback.
func RefValue(r RefFunc) PropValue { return PropValue{Kind: PropRef, Ref: r} }

// String converts a scalar to its attribute text.
func (v PropValue) String() string {
	switch v.Kind {
	case PropScalar:
		return scalarString(v.Scalar)
	case PropStyle:
		keys := v.Style.Keys()
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + v.Style[k]
		}
		return strings.Join(parts, "; ")
	default:
		return ""
	}
}

// Keys returns the style sub-property names in sorted order.
func (s Style) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Props is an ordered map of prop values. The zero value is an empty Props.
// Props are built during node construction and read-only afterwards.
type Props struct {
	names  []string
	values map[string]PropValue
}

// Len returns the number of props.
func (p Props) Len() int { return len(p.names) }

// Names returns the prop names in insertion order.
func (p Props) Names() []string {
	return append([]string(nil), p.names...)
}

// Get returns the value of a prop.
func (p Props) Get(name string) (PropValue, bool) {
	v, ok := p.values[name]
	return v, ok
}

// Has reports whether a prop is present.
func (p Props) Has(name string) bool {
	_, ok := p.values[name]
	return ok
}

// Each calls fn for every prop in insertion order.
func (p Props) Each(fn func(name string, v PropValue)) {
	for _, name := range p.names {
		fn(name, p.values[name])
	}
}

// Scalar returns a scalar prop's raw value.
func (p Props) Scalar(name string) (any, bool) {
	v, ok := p.values[name]
	if !ok || v.Kind != PropScalar {
		return nil, false
	}
	return v.Scalar, true
}

// String returns a scalar prop as text, or "" when absent.
func (p Props) String(name string) string {
	v, ok := p.values[name]
	if !ok {
		return ""
	}
	return v.String()
}

// set adds or replaces a prop, keeping the original position on replace.
func (p *Props) set(name string, v PropValue) {
	if p.values == nil {
		p.values = make(map[string]PropValue)
	}
	if _, exists := p.values[name]; !exists {
		p.names = append(p.names, name)
	}
	p.values[name] = v
}

// With returns a copy of p with name set to v.
func (p Props) With(name string, v PropValue) Props {
	cp := p.clone()
	cp.set(name, v)
	return cp
}

// Without returns a copy of p without name.
func (p Props) Without(name string) Props {
	if !p.Has(name) {
		return p
	}
	var cp Props
	p.Each(func(n string, v PropValue) {
		if n != name {
			cp.set(n, v)
		}
	})
	return cp
}

func (p Props) clone() Props {
	var cp Props
	p.Each(cp.set)
	return cp
}

// NewProps builds Props from attrs in order. Later attrs with the same key
// replace earlier ones.
func NewProps(attrs ...Attr) Props {
	var p Props
	for _, a := range attrs {
		if !a.IsEmpty() {
			p.set(a.Key, a.Value)
		}
	}
	return p
}

// PropsOf builds Props from a loosely typed map, classifying each value by
// its dynamic type: functions become handlers or refs, a Style or
// map[string]string under "style" becomes a style map, everything else is a
// scalar. Keys are inserted in sorted order.
func PropsOf(m map[string]any) Props {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var p Props
	for _, k := range keys {
		p.set(k, classify(k, m[k]))
	}
	return p
}

func classify(name string, v any) PropValue {
	switch val := v.(type) {
	case PropValue:
		return val
	case Handler:
		return EventValue(val)
	case func(host.Event):
		return EventValue(val)
	case func():
		return EventValue(func(host.Event) { val() })
	case RefFunc:
		return RefValue(val)
	case func(host.Node):
		return RefValue(val)
	case Style:
		return StyleValue(val)
	case map[string]string:
		if name == "style" {
			return StyleValue(Style(val))
		}
	}
	return ScalarValue(v)
}

// IsEventName reports whether name follows the "on" prefix convention.
// Case-insensitive: onclick, onClick and ONCLICK all qualify.
func IsEventName(name string) bool {
	return len(name) > 2 && strings.EqualFold(name[:2], "on")
}

// EventName maps a handler prop name to the host event name ("onClick" →
// "click").
func EventName(prop string) string {
	if !IsEventName(prop) {
		return strings.ToLower(prop)
	}
	return strings.ToLower(prop[2:])
}

// ValuesEqual compares two scalar values with strict equality: values of
// different dynamic types are never equal.
func ValuesEqual(a, b any) bool {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case int:
		bv, ok := b.(int)
		return ok && av == bv
	case int64:
		bv, ok := b.(int64)
		return ok && av == bv
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case nil:
		return b == nil
	}
	return reflect.DeepEqual(a, b)
}

// StylesEqual compares two style maps per sub-property.
func StylesEqual(a, b Style) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		if bv, ok := b[k]; !ok || av != bv {
			return false
		}
	}
	return true
}

// scalarString converts a scalar to attribute text.
func scalarString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		if val {
			return "true"
		}
		return "false"
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}
