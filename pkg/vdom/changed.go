package vdom

import (
	"bytes"
	"reflect"
)

// Changed reports whether b cannot be updated in place into a (or vice
// versa) and the position must be replaced. The checks run in order and
// short-circuit:
//
//  1. both carry a key and the keys differ
//  2. exactly one side is absent
//  3. the kinds differ
//  4. both are primitives: their values differ
//  5. either side lacks a tag
//  6. the tags differ
//  7. the number of props differs
//  8. a non-event prop differs (styles are compared per sub-property)
//
// Event handlers and refs never count as a change; they are re-synced on
// every pass.
func Changed(a, b *VNode) bool {
	if a.HasKey() && b.HasKey() && a.Key != b.Key {
		return true
	}
	if (a == nil) != (b == nil) {
		return true
	}
	if a == nil {
		return false
	}
	if a.Kind != b.Kind {
		return true
	}
	if a.Kind == KindText {
		return a.Numeric != b.Numeric || a.Text != b.Text
	}

	ta, oka := tagOf(a)
	tb, okb := tagOf(b)
	if !oka || !okb {
		return true
	}
	if ta != tb {
		return true
	}

	if a.Props.Len() != b.Props.Len() {
		return true
	}
	for _, name := range a.Props.names {
		av := a.Props.values[name]
		if av.Kind == PropEvent || av.Kind == PropRef {
			continue
		}
		bv, ok := b.Props.Get(name)
		if !ok || bv.Kind != av.Kind {
			return true
		}
		if av.Kind == PropStyle {
			if !StylesEqual(av.Style, bv.Style) {
				return true
			}
			continue
		}
		if !ValuesEqual(av.Scalar, bv.Scalar) {
			return true
		}
	}

	if a.Kind == KindPlaceholder {
		pa, pb := a.Placeholder, b.Placeholder
		if pa == nil || pb == nil {
			return pa != pb
		}
		return !bytes.Equal(pa.Props, pb.Props) || !bytes.Equal(pa.Children, pb.Children)
	}
	return false
}

// tagKey identifies what a node renders as: a host tag, a renderer or a
// component name.
type tagKey struct {
	tag  string
	fn   uintptr
	name string
}

func tagOf(v *VNode) (tagKey, bool) {
	switch v.Kind {
	case KindElement:
		return tagKey{tag: v.Tag}, v.Tag != ""
	case KindComponent:
		if v.Render != nil {
			return tagKey{fn: reflect.ValueOf(v.Render).Pointer(), name: v.Name}, true
		}
		return tagKey{name: v.Name}, v.Name != ""
	case KindPlaceholder:
		if v.Placeholder == nil || v.Placeholder.Name == "" {
			return tagKey{}, false
		}
		return tagKey{name: "placeholder:" + v.Placeholder.Name}, true
	}
	return tagKey{}, false
}
