package vdom

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/vango-dev/retain/pkg/host"
)

func TestPropKindString(t *testing.T) {
	tests := []struct {
		kind PropKind
		want string
	}{
		{PropScalar, "Scalar"},
		{PropStyle, "Style"},
		{PropEvent, "Event"},
		{PropRef, "Ref"},
		{PropKind(0), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("PropKind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestPropsOrderAndReplace(t *testing.T) {
	p := NewProps(ID("a"), Class("x"), ID("b"))
	if diff := cmp.Diff([]string{"id", "class"}, p.Names()); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
	if p.String("id") != "b" {
		t.Errorf("id = %q, want b", p.String("id"))
	}

	with := p.With("title", ScalarValue("t"))
	if p.Has("title") || !with.Has("title") {
		t.Error("With must copy")
	}
	without := with.Without("id")
	if without.Has("id") || !with.Has("id") {
		t.Error("Without must copy")
	}
	if diff := cmp.Diff([]string{"class", "title"}, without.Names()); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
}

func TestPropsOfClassifies(t *testing.T) {
	p := PropsOf(map[string]any{
		"id":      "x",
		"count":   3,
		"onclick": func(host.Event) {},
		"onload":  func() {},
		"ref":     func(host.Node) {},
		"style":   map[string]string{"color": "red"},
		"data":    map[string]string{"a": "b"},
	})

	want := map[string]PropKind{
		"id":      PropScalar,
		"count":   PropScalar,
		"onclick": PropEvent,
		"onload":  PropEvent,
		"ref":     PropRef,
		"style":   PropStyle,
		"data":    PropScalar,
	}
	for name, kind := range want {
		v, ok := p.Get(name)
		if !ok || v.Kind != kind {
			t.Errorf("%s: kind = %v, want %v", name, v.Kind, kind)
		}
	}
	if diff := cmp.Diff([]string{"count", "data", "id", "onclick", "onload", "ref", "style"}, p.Names()); diff != "" {
		t.Errorf("PropsOf should insert in sorted order (-want +got):\n%s", diff)
	}
	if s, ok := p.Scalar("count"); !ok || s != 3 {
		t.Errorf("Scalar(count) = %v, %v", s, ok)
	}
	if _, ok := p.Scalar("style"); ok {
		t.Error("Scalar should reject non-scalar props")
	}
}

func TestPropValueString(t *testing.T) {
	tests := []struct {
		name string
		v    PropValue
		want string
	}{
		{"string", ScalarValue("a"), "a"},
		{"true", ScalarValue(true), "true"},
		{"int", ScalarValue(42), "42"},
		{"int64", ScalarValue(int64(-7)), "-7"},
		{"float", ScalarValue(1.5), "1.5"},
		{"nil", ScalarValue(nil), ""},
		{"other", ScalarValue(uint8(9)), "9"},
		{"style", StyleValue(Style{"b": "2", "a": "1"}), "a: 1; b: 2"},
		{"event", EventValue(func(host.Event) {}), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEventName(t *testing.T) {
	tests := map[string]string{
		"onclick": "click",
		"onClick": "click",
		"ONINPUT": "input",
		"keydown": "keydown",
		"on":      "on",
	}
	for in, want := range tests {
		if got := EventName(in); got != want {
			t.Errorf("EventName(%q) = %q, want %q", in, got, want)
		}
	}
	if IsEventName("on") || !IsEventName("onx") {
		t.Error("IsEventName mismatch")
	}
}

func TestValuesEqualIsStrict(t *testing.T) {
	tests := []struct {
		a, b any
		want bool
	}{
		{"1", "1", true},
		{"1", 1, false},
		{1, 1, true},
		{1, int64(1), false},
		{1.0, 1.0, true},
		{true, true, true},
		{true, "true", false},
		{nil, nil, true},
		{nil, "", false},
		{[]string{"a"}, []string{"a"}, true},
	}
	for _, tt := range tests {
		if got := ValuesEqual(tt.a, tt.b); got != tt.want {
			t.Errorf("ValuesEqual(%#v, %#v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
