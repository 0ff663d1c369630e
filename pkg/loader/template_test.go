package loader

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/go-cmp/cmp"

	"github.com/vango-dev/retain/pkg/host"
	"github.com/vango-dev/retain/pkg/protocol"
	"github.com/vango-dev/retain/pkg/vdom"
)

const cardYAML = `
tag: div
key: card
props:
  class: card {{variant}}
  style:
    color: "{{color}}"
  data-count: 3
children:
  - tag: h2
    children: ["{{ title }}"]
  - tag: slot
  - 42
  - component: Badge
    props:
      label: "{{title}}"
`

// html renders a tree on a memory surface.
func html(t *testing.T, tree *vdom.VNode) string {
	t.Helper()
	mem := host.NewMemory()
	root, err := mem.CreateElement("root", "")
	if err != nil {
		t.Fatal(err)
	}
	var build func(parent host.Node, v *vdom.VNode)
	build = func(parent host.Node, v *vdom.VNode) {
		if v.Kind == vdom.KindText {
			mem.InsertChild(parent, mem.CreateText(v.Text), mem.ChildCount(parent))
			return
		}
		tag := v.Tag
		if v.Kind == vdom.KindComponent {
			tag = "c-" + strings.ToLower(v.Name)
		}
		el, _ := mem.CreateElement(tag, "")
		v.Props.Each(func(name string, pv vdom.PropValue) {
			if name != "key" {
				mem.SetAttribute(el, name, pv.String())
			}
		})
		mem.InsertChild(parent, el, mem.ChildCount(parent))
		for _, c := range v.Children {
			build(el, c)
		}
	}
	build(root, tree)
	return mem.HTML(root)
}

func TestParseYAML(t *testing.T) {
	tree, err := ParseYAML([]byte(cardYAML))
	if err != nil {
		t.Fatalf("ParseYAML: %v", err)
	}
	if tree.Tag != "div" || tree.Key != "card" {
		t.Errorf("root = <%s key=%q>", tree.Tag, tree.Key)
	}
	if diff := cmp.Diff([]string{"key", "class", "style", "data-count"}, tree.Props.Names()); diff != "" {
		t.Errorf("prop order (-want +got):\n%s", diff)
	}
	if v, _ := tree.Props.Scalar("data-count"); v != 3 {
		t.Errorf("data-count = %#v, want int 3", v)
	}
	if len(tree.Children) != 4 {
		t.Fatalf("children = %d, want 4", len(tree.Children))
	}
	if n := tree.Children[2]; !n.Numeric || n.Text != "42" {
		t.Errorf("numeric child = %+v", n)
	}
	if c := tree.Children[3]; c.Kind != vdom.KindComponent || c.Name != "Badge" {
		t.Errorf("component child = %v %q", c.Kind, c.Name)
	}
}

func TestParseYAMLErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"sequence root", "- a\n- b\n"},
		{"no tag", "props: {a: b}\n"},
		{"event prop", "tag: button\nprops: {onClick: save}\n"},
		{"ref prop", "tag: input\nprops: {ref: x}\n"},
		{"nested prop", "tag: div\nprops: {data: [1, 2]}\n"},
		{"props not mapping", "tag: div\nprops: [a]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseYAML([]byte(tt.src)); !errors.Is(err, ErrTemplateSyntax) {
				t.Errorf("err = %v, want ErrTemplateSyntax", err)
			}
		})
	}
}

func TestTemplateInstantiation(t *testing.T) {
	tree, err := ParseYAML([]byte(cardYAML))
	if err != nil {
		t.Fatal(err)
	}
	render := Template(tree)

	props := vdom.PropsOf(map[string]any{"title": "Hello", "variant": "wide", "color": "red"})
	out := render(props, []*vdom.VNode{vdom.P("body"), vdom.Span("more")})

	want := `<div class="card wide" data-count="3" style="color: red">` +
		`<h2>Hello</h2><p>body</p><span>more</span>42<c-badge label="Hello"></c-badge></div>`
	if got := html(t, out); got != want {
		t.Errorf("html =\n%s\nwant\n%s", got, want)
	}
	if out.Key != "card" {
		t.Errorf("Key = %q, want card", out.Key)
	}

	// The template tree itself is untouched.
	if got := tree.Children[0].Children[0].Text; got != "{{ title }}" {
		t.Errorf("template mutated: %q", got)
	}

	// Missing props substitute as empty.
	out = render(vdom.Props{}, nil)
	if got := out.Props.String("class"); got != "card " {
		t.Errorf("class with missing prop = %q", got)
	}
}

func TestSubstitute(t *testing.T) {
	props := vdom.PropsOf(map[string]any{"a": "x", "n": 2})
	tests := []struct{ in, want string }{
		{"plain", "plain"},
		{"{{a}}", "x"},
		{"{{ a }}-{{n}}", "x-2"},
		{"{{missing}}!", "!"},
		{"open {{a", "open {{a"},
		{"{{a}} and {{", "x and {{"},
	}
	for _, tt := range tests {
		if got := substitute(tt.in, props); got != tt.want {
			t.Errorf("substitute(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRootSlot(t *testing.T) {
	render := Template(vdom.El(SlotTag))
	out := render(vdom.Props{}, []*vdom.VNode{vdom.Text("a"), vdom.Text("b")})
	if out.Tag != vdom.DefaultTag || len(out.Children) != 2 {
		t.Errorf("root slot = <%s> with %d children", out.Tag, len(out.Children))
	}
}

func TestFileLocator(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "card.yaml")
	if err := os.WriteFile(yamlPath, []byte("tag: p\nchildren: ['{{msg}}']\n"), 0644); err != nil {
		t.Fatal(err)
	}
	bin, err := protocol.EncodeTemplate(vdom.Span(vdom.Class("b"), "{{msg}}"))
	if err != nil {
		t.Fatal(err)
	}
	binPath := filepath.Join(dir, "badge.rtpl")
	if err := os.WriteFile(binPath, bin, 0644); err != nil {
		t.Fatal(err)
	}

	l := New()
	l.Register("Card", File(yamlPath))
	l.Register("Badge", File(binPath))
	l.Register("Gone", File(filepath.Join(dir, "missing.yaml")))

	props := vdom.PropsOf(map[string]any{"msg": "hi"})
	for name, want := range map[string]string{
		"Card":  "<p>hi</p>",
		"Badge": `<span class="b">hi</span>`,
	} {
		r, err := l.Load(waitCtx(t), name)
		if err != nil {
			t.Fatalf("Load(%s): %v", name, err)
		}
		if got := html(t, r(props, nil)); got != want {
			t.Errorf("%s = %s, want %s", name, got, want)
		}
	}

	_, err = l.Load(waitCtx(t), "Gone")
	if !errors.Is(err, ErrLoadFailed) || !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file err = %v", err)
	}
}

func TestRegisterDir(t *testing.T) {
	dir := t.TempDir()
	for name, content := range map[string]string{
		"card.yaml":  "tag: p\nchildren: ['{{msg}}']\n",
		"list.yml":   "tag: ul\n",
		"notes.txt":  "ignored",
		"Badge.RTPL": "not read until resolved",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "nested.yaml"), 0755); err != nil {
		t.Fatal(err)
	}

	l := New()
	names, err := l.RegisterDir(dir)
	if err != nil {
		t.Fatalf("RegisterDir: %v", err)
	}
	if diff := cmp.Diff([]string{"Badge", "card", "list"}, names); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
	r, err := l.Load(waitCtx(t), "card")
	if err != nil {
		t.Fatal(err)
	}
	if got := html(t, r(vdom.PropsOf(map[string]any{"msg": "hi"}), nil)); got != "<p>hi</p>" {
		t.Errorf("card = %s", got)
	}

	names, err = New().RegisterDir(filepath.Join(dir, "absent"))
	if err != nil || names != nil {
		t.Errorf("RegisterDir(missing) = %v, %v; want nil, nil", names, err)
	}
}

func TestHTTPLocator(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		switch r.URL.Path {
		case "/card.yaml":
			io.WriteString(w, "tag: section\nchildren: ['{{title}}']\n")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	l := New()
	l.Register("Card", HTTP(srv.Client(), srv.URL+"/card.yaml"))
	l.Register("Lost", HTTP(nil, srv.URL+"/lost.yaml"))

	r, err := l.Load(waitCtx(t), "Card")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	out := r(vdom.PropsOf(map[string]any{"title": "T"}), nil)
	if got := html(t, out); got != "<section>T</section>" {
		t.Errorf("html = %s", got)
	}
	if _, err := l.Load(waitCtx(t), "Card"); err != nil || hits != 1 {
		t.Errorf("second Load hit the server: hits=%d err=%v", hits, err)
	}

	_, err = l.Load(waitCtx(t), "Lost")
	if !errors.Is(err, ErrLoadFailed) || !strings.Contains(err.Error(), "404") {
		t.Errorf("404 err = %v", err)
	}
}

type fakeS3 struct {
	objects map[string][]byte
	got     []string
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	key := *in.Bucket + "/" + *in.Key
	f.got = append(f.got, key)
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestS3Locator(t *testing.T) {
	bin, err := protocol.EncodeTemplate(vdom.Div(vdom.Class("s3"), vdom.El(SlotTag)))
	if err != nil {
		t.Fatal(err)
	}
	client := &fakeS3{objects: map[string][]byte{"components/panel.rtpl": bin}}

	l := New()
	l.Register("Panel", S3(client, "components", "panel.rtpl"))
	l.Register("Nope", S3(client, "components", "nope.rtpl"))

	r, err := l.Load(waitCtx(t), "Panel")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	out := r(vdom.Props{}, []*vdom.VNode{vdom.Text("child")})
	if got := html(t, out); got != `<div class="s3">child</div>` {
		t.Errorf("html = %s", got)
	}

	if _, err := l.Load(waitCtx(t), "Nope"); !errors.Is(err, ErrLoadFailed) {
		t.Errorf("missing object err = %v", err)
	}
	if diff := cmp.Diff([]string{"components/panel.rtpl", "components/nope.rtpl"}, client.got); diff != "" {
		t.Errorf("requests (-want +got):\n%s", diff)
	}
}
