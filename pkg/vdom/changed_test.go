package vdom

import (
	"testing"

	"github.com/vango-dev/retain/pkg/host"
)

func TestChanged(t *testing.T) {
	render := func(Props, []*VNode) *VNode { return Div() }
	other := func(Props, []*VNode) *VNode { return Span() }
	noop := func(host.Event) {}

	tests := []struct {
		name string
		a, b *VNode
		want bool
	}{
		{"both nil", nil, nil, false},
		{"nil vs node", nil, Div(), true},
		{"node vs nil", Div(), nil, true},
		{"same text", Text("a"), Text("a"), false},
		{"different text", Text("a"), Text("b"), true},
		{"number vs string", Number(1), Text("1"), true},
		{"same number", Number(2), Number(2), false},
		{"text vs element", Text("a"), Span(), true},
		{"same tag", Div(), Div(), false},
		{"different tag", Div(), Span(), true},
		{"same attrs", Div(ID("x")), Div(ID("x")), false},
		{"attr value", Div(ID("x")), Div(ID("y")), true},
		{"attr count", Div(ID("x")), Div(ID("x"), Class("c")), true},
		{"attr name", Div(ID("x")), Div(TitleAttr("x")), true},
		{"strict types", Div(Prop("n", 1)), Div(Prop("n", "1")), true},
		{"same key", Li(Key("a")), Li(Key("a")), false},
		{"different keys", Li(Key("a")), Li(Key("b")), true},
		{"key vs no key count", Li(Key("a")), Li(), true},
		{"handlers ignored", Button(OnClick(noop)), Button(OnClick(func(host.Event) {})), false},
		{"ref ignored", Div(Ref(func(host.Node) {})), Div(Ref(nil)), false},
		{"same style", Div(StyleAttr(Style{"color": "red"})), Div(StyleAttr(Style{"color": "red"})), false},
		{"style value", Div(StyleAttr(Style{"color": "red"})), Div(StyleAttr(Style{"color": "blue"})), true},
		{"style key", Div(StyleAttr(Style{"color": "red"})), Div(StyleAttr(Style{"margin": "red"})), true},
		{"style vs scalar", Div(StyleAttr(Style{})), Div(Prop("style", "")), true},
		{"same renderer", Comp(render), Comp(render), false},
		{"different renderer", Comp(render), Comp(other), true},
		{"component props", Comp(render, ID("a")), Comp(render, ID("b")), true},
		{"component vs element", Comp(render), Div(), true},
		{"same name", Named("Chart"), Named("Chart"), false},
		{"different name", Named("Chart"), Named("Table"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Changed(tt.a, tt.b); got != tt.want {
				t.Errorf("Changed() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChangedKeyPrecedence(t *testing.T) {
	// Differing keys win even when everything else matches.
	a := Li(Key("1"), "row")
	b := Li(Key("2"), "row")
	if !Changed(a, b) {
		t.Error("differing keys must report a change")
	}
	if !Changed(Text("x"), nil) {
		t.Error("nil asymmetry must report a change")
	}
}

func TestChangedIgnoresChildren(t *testing.T) {
	if Changed(Ul(Li("a")), Ul(Li("b"), Li("c"))) {
		t.Error("Changed only compares the node itself")
	}
}

func TestChangedSymmetric(t *testing.T) {
	pairs := [][2]*VNode{
		{Div(ID("a")), Div(ID("a"), Class("b"))},
		{Text("1"), Number(1)},
		{Div(StyleAttr(Style{"a": "1"})), Div(StyleAttr(Style{"a": "1", "b": "2"}))},
	}
	for i, p := range pairs {
		if Changed(p[0], p[1]) != Changed(p[1], p[0]) {
			t.Errorf("pair %d: Changed is not symmetric", i)
		}
	}
}

func TestChangedPlaceholders(t *testing.T) {
	mk := func(name, props string) *VNode {
		return &VNode{
			Kind:        KindPlaceholder,
			Placeholder: &PlaceholderData{Name: name, Props: []byte(props)},
		}
	}
	if Changed(mk("Chart", "a"), mk("Chart", "a")) {
		t.Error("identical placeholders should not change")
	}
	if !Changed(mk("Chart", "a"), mk("Chart", "b")) {
		t.Error("payload change should be detected")
	}
	if !Changed(mk("Chart", "a"), mk("Table", "a")) {
		t.Error("name change should be detected")
	}
}
