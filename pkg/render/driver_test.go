package render

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/vango-dev/retain/pkg/host"
	"github.com/vango-dev/retain/pkg/loader"
	"github.com/vango-dev/retain/pkg/metrics"
	"github.com/vango-dev/retain/pkg/state"
	"github.com/vango-dev/retain/pkg/vdom"
)

type fixture struct {
	mem     *host.Memory
	root    host.Node
	driver  *Driver
	commits chan Commit
	log     *syncBuffer
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	mem := host.NewMemory()
	root, err := mem.CreateElement("main", "")
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{
		mem:     mem,
		root:    root,
		commits: make(chan Commit, 64),
		log:     &syncBuffer{},
	}
	logger := slog.New(slog.NewTextHandler(f.log, &slog.HandlerOptions{Level: slog.LevelDebug}))
	opts = append([]Option{
		WithLogger(logger),
		WithCommitHook(func(c Commit) { f.commits <- c }),
	}, opts...)
	f.driver = New(mem, opts...)
	t.Cleanup(f.driver.Close)
	return f
}

func (f *fixture) html() string {
	return f.mem.HTML(f.root)
}

// nextCommit waits for a pass to finish.
func (f *fixture) nextCommit(t *testing.T) Commit {
	t.Helper()
	select {
	case c := <-f.commits:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("no commit within 2s")
		return Commit{}
	}
}

func (f *fixture) render(t *testing.T, tree *vdom.VNode) Commit {
	t.Helper()
	f.driver.Render(context.Background(), f.root, tree)
	return f.nextCommit(t)
}

func TestFirstPaintThenUpdate(t *testing.T) {
	f := newFixture(t)
	if got := f.driver.State(f.root); got != StateUnmounted {
		t.Fatalf("initial State = %v", got)
	}

	c := f.render(t, vdom.Div(vdom.ID("a"), "one"))
	if c.Mode != ModeFirstPaint {
		t.Errorf("first Mode = %v, want first_paint", c.Mode)
	}
	if got := f.driver.State(f.root); got != StateCommitted {
		t.Errorf("State = %v, want committed", got)
	}
	div := f.mem.ChildAt(f.root, 0)

	c = f.render(t, vdom.Div(vdom.ID("a"), "two"))
	if c.Mode != ModeUpdate {
		t.Errorf("second Mode = %v, want update", c.Mode)
	}
	if c.Stats.Total() != 1 || c.Stats.Texts != 1 {
		t.Errorf("update stats = %+v, want one text write", c.Stats)
	}
	if f.mem.ChildAt(f.root, 0) != div {
		t.Error("update replaced the root element")
	}
	if got := f.html(); got != `<div id="a">two</div>` {
		t.Errorf("html = %s", got)
	}
	if f.driver.Committed(f.root) == nil {
		t.Error("Committed() = nil after a pass")
	}
}

func TestNilRoot(t *testing.T) {
	f := newFixture(t)
	f.driver.Render(context.Background(), nil, vdom.Div())
	if !strings.Contains(f.log.String(), "code=R004") {
		t.Errorf("missing R004 diagnostic; log:\n%s", f.log.String())
	}
	if f.driver.State(nil) != StateUnmounted {
		t.Error("State(nil) != unmounted")
	}
}

func TestExternalMutationForcesFirstPaint(t *testing.T) {
	f := newFixture(t)
	f.render(t, vdom.Ul(vdom.Li("a"), vdom.Li("b")))

	ul := f.mem.ChildAt(f.root, 0)
	stray := f.mem.CreateText("stray")
	if err := f.mem.InsertChild(ul, stray, 0); err != nil {
		t.Fatal(err)
	}
	if got := f.driver.State(f.root); got != StateUnmounted {
		t.Errorf("State after foreign write = %v, want unmounted", got)
	}
	if got := strings.Count(f.log.String(), "code=H001"); got != 1 {
		t.Errorf("H001 diagnostics = %d, want 1", got)
	}
	f.mem.SetAttribute(ul, "x", "y")
	if got := strings.Count(f.log.String(), "code=H001"); got != 1 {
		t.Errorf("repeat foreign write logged again: %d", got)
	}

	c := f.render(t, vdom.Ul(vdom.Li("a"), vdom.Li("c")))
	if c.Mode != ModeFirstPaint {
		t.Errorf("Mode = %v, want first_paint", c.Mode)
	}
	if got := f.html(); got != "<ul><li>a</li><li>c</li></ul>" {
		t.Errorf("html = %s", got)
	}

	c = f.render(t, vdom.Ul(vdom.Li("a"), vdom.Li("d")))
	if c.Mode != ModeUpdate {
		t.Errorf("Mode after repaint = %v, want update", c.Mode)
	}
}

func TestOwnWritesAreNotExternal(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		f.render(t, vdom.Div(vdom.Data("i", string(rune('a'+i))), vdom.Span("x")))
	}
	if strings.Contains(f.log.String(), "code=H001") {
		t.Errorf("driver flagged its own writes:\n%s", f.log.String())
	}
}

func TestNamedComponentResolved(t *testing.T) {
	l := loader.New()
	l.Register("Greeting", loader.Func(func(p vdom.Props, _ []*vdom.VNode) *vdom.VNode {
		return vdom.P("Hello, ", p.String("who"))
	}))
	f := newFixture(t, WithLoader(l))

	f.render(t, vdom.Div(vdom.Named("Greeting", vdom.Prop("who", "Ada"))))
	if got := f.html(); got != "<div><p>Hello, Ada</p></div>" {
		t.Errorf("html = %s", got)
	}
}

func TestNestedNamedComponent(t *testing.T) {
	l := loader.New()
	l.Register("Outer", loader.Func(func(vdom.Props, []*vdom.VNode) *vdom.VNode {
		return vdom.Section(vdom.Named("Inner"))
	}))
	l.Register("Inner", loader.Func(func(vdom.Props, []*vdom.VNode) *vdom.VNode {
		return vdom.Span("inner")
	}))
	f := newFixture(t, WithLoader(l))

	f.render(t, vdom.Named("Outer"))
	if got := f.html(); got != "<section><span>inner</span></section>" {
		t.Errorf("html = %s", got)
	}
}

func TestResolutionFailureReplacesSurface(t *testing.T) {
	l := loader.New()
	f := newFixture(t, WithLoader(l))
	f.render(t, vdom.Div("before"))

	c := f.render(t, vdom.Div(vdom.Span("kept?"), vdom.Named("Missing")))
	if c.Mode != ModeError {
		t.Errorf("Mode = %v, want error", c.Mode)
	}
	html := f.html()
	if !strings.Contains(html, `class="retain-error"`) || strings.Contains(html, "kept?") {
		t.Errorf("html = %s, want only the error message", html)
	}
	if f.driver.State(f.root) != StateUnmounted {
		t.Errorf("State = %v, want unmounted", f.driver.State(f.root))
	}
	if f.driver.Committed(f.root) != nil {
		t.Error("committed tree survived a failed resolution")
	}

	l.Register("Missing", loader.Func(func(vdom.Props, []*vdom.VNode) *vdom.VNode { return vdom.Text("found") }))
	c = f.render(t, vdom.Div(vdom.Named("Missing")))
	if c.Mode != ModeFirstPaint {
		t.Errorf("Mode = %v, want first_paint", c.Mode)
	}
	if got := f.html(); got != "<div>found</div>" {
		t.Errorf("html = %s", got)
	}
}

func TestNoLoaderConfigured(t *testing.T) {
	f := newFixture(t)
	c := f.render(t, vdom.Named("Card"))
	if c.Mode != ModeError || !strings.Contains(f.html(), "no loader configured") {
		t.Errorf("mode=%v html=%s", c.Mode, f.html())
	}
}

func TestRendererPanicIsContained(t *testing.T) {
	f := newFixture(t)
	boom := vdom.Comp(func(vdom.Props, []*vdom.VNode) *vdom.VNode { panic("boom") })
	f.render(t, vdom.Div(vdom.Span("left"), boom, vdom.Span("right")))

	html := f.html()
	for _, want := range []string{"<span>left</span>", "retain-error", "<span>right</span>"} {
		if !strings.Contains(html, want) {
			t.Errorf("html %s lacks %s", html, want)
		}
	}
	if !strings.Contains(f.log.String(), "code=R003") {
		t.Error("missing R003 diagnostic")
	}
}

func TestCancelledResolutionLeavesRoot(t *testing.T) {
	l := loader.New()
	l.Register("Slow", loader.LocatorFunc(func(ctx context.Context, _ string) (vdom.Renderer, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}))
	defer l.Close()
	f := newFixture(t, WithLoader(l))
	f.render(t, vdom.Div("stable"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	f.driver.Render(ctx, f.root, vdom.Named("Slow"))

	if got := f.html(); got != "<div>stable</div>" {
		t.Errorf("html = %s", got)
	}
	if !strings.Contains(f.log.String(), "code=R006") {
		t.Errorf("missing R006 diagnostic:\n%s", f.log.String())
	}
	if f.driver.State(f.root) != StateCommitted {
		t.Errorf("State = %v", f.driver.State(f.root))
	}
}

func TestProgressivePlaceholder(t *testing.T) {
	l := loader.New()
	gate := make(chan struct{})
	l.Register("Chart", loader.LocatorFunc(func(context.Context, string) (vdom.Renderer, error) {
		<-gate
		return func(p vdom.Props, _ []*vdom.VNode) *vdom.VNode {
			return vdom.El("figure", p.String("title"))
		}, nil
	}))
	f := newFixture(t, WithLoader(l), WithProgressive(true))

	var clicks atomic.Int32
	tree := vdom.Div(
		vdom.H1("dash"),
		vdom.Named("Chart", vdom.Prop("title", "sales"), vdom.OnClick(func(host.Event) { clicks.Add(1) })),
	)
	f.render(t, tree)

	want := `<div><h1>dash</h1><span class="retain-loading" data-component="Chart">Loading Chart…</span></div>`
	if got := f.html(); got != want {
		t.Fatalf("placeholder html =\n%s\nwant\n%s", got, want)
	}
	loading := f.mem.ChildAt(f.mem.ChildAt(f.root, 0), 1)
	if n := f.mem.Dispatch(loading, "click", nil); n != 1 || clicks.Load() != 1 {
		t.Errorf("placeholder click: listeners=%d clicks=%d", n, clicks.Load())
	}

	close(gate)
	c := f.nextCommit(t)
	if c.Mode != ModeUpdate {
		t.Errorf("settle Mode = %v, want update", c.Mode)
	}
	if got := f.html(); got != "<div><h1>dash</h1><figure>sales</figure></div>" {
		t.Errorf("resolved html = %s", got)
	}
}

func TestPlaceholderPayloadFailureIsDiagnosed(t *testing.T) {
	l := loader.New()
	gate := make(chan struct{})
	l.Register("Chart", loader.LocatorFunc(func(context.Context, string) (vdom.Renderer, error) {
		<-gate
		return nil, errors.New("never")
	}))
	f := newFixture(t, WithLoader(l), WithProgressive(true))
	t.Cleanup(func() { close(gate) })

	type point struct{ X, Y int }
	f.render(t, vdom.Div(vdom.Named("Chart", vdom.Prop("origin", point{1, 2}))))

	if !strings.Contains(f.html(), `data-component="Chart"`) {
		t.Errorf("placeholder not committed: %s", f.html())
	}
	log := f.log.String()
	if !strings.Contains(log, "code=P001") || !strings.Contains(log, "props not encodable") {
		t.Errorf("missing P001 diagnostic; log:\n%s", log)
	}
}

func TestProgressiveFailureShowsError(t *testing.T) {
	l := loader.New()
	var calls atomic.Int32
	gate := make(chan struct{})
	l.Register("Broken", loader.LocatorFunc(func(context.Context, string) (vdom.Renderer, error) {
		calls.Add(1)
		<-gate
		return nil, errors.New("cdn down")
	}))
	f := newFixture(t, WithLoader(l), WithProgressive(true))

	f.render(t, vdom.Div(vdom.Named("Broken", vdom.OnClick(func(host.Event) {}))))
	if !strings.Contains(f.html(), "retain-loading") {
		t.Fatalf("html = %s, want a placeholder", f.html())
	}

	close(gate)
	f.nextCommit(t)
	html := f.html()
	if !strings.Contains(html, "retain-error") || !strings.Contains(html, "cdn down") {
		t.Errorf("html = %s, want an inline error", html)
	}
	errNode := f.mem.ChildAt(f.mem.ChildAt(f.root, 0), 0)
	if f.mem.ListenerCount(errNode, "click") != 0 {
		t.Error("failed placeholder kept its handlers")
	}

	select {
	case c := <-f.commits:
		t.Errorf("unexpected extra pass %+v", c)
	case <-time.After(30 * time.Millisecond):
	}
	if calls.Load() != 1 {
		t.Errorf("locator calls = %d, want 1", calls.Load())
	}
}

func TestMountFollowsStore(t *testing.T) {
	f := newFixture(t)
	sched := &state.ManualScheduler{}
	store := state.NewStore(state.Record{"n": 0}, sched)

	view := func(r state.Record) *vdom.VNode {
		return vdom.Div(vdom.Span("count: "), vdom.Number(state.ValueOr(r, "n", 0)))
	}
	unmount := f.driver.Mount(context.Background(), f.root, view, store)
	f.nextCommit(t)
	if got := f.html(); got != "<div><span>count: </span>0</div>" {
		t.Errorf("html = %s", got)
	}

	store.SetBatched(state.Record{"n": 1})
	store.SetBatched(state.Record{"n": 2})
	sched.Tick()
	c := f.nextCommit(t)
	if c.Mode != ModeUpdate {
		t.Errorf("Mode = %v", c.Mode)
	}
	if got := f.html(); got != "<div><span>count: </span>2</div>" {
		t.Errorf("html = %s", got)
	}
	select {
	case extra := <-f.commits:
		t.Errorf("batched updates rendered twice: %+v", extra)
	default:
	}

	unmount()
	unmount()
	store.SetImmediate(state.Record{"n": 3})
	select {
	case extra := <-f.commits:
		t.Errorf("render after unmount: %+v", extra)
	default:
	}
}

func TestInject(t *testing.T) {
	l := loader.New()
	l.Register("Badge", loader.Func(func(p vdom.Props, children []*vdom.VNode) *vdom.VNode {
		return vdom.Span(vdom.Class(p.String("tone")), children)
	}))
	f := newFixture(t, WithLoader(l))

	f.driver.Inject(context.Background(), f.root, "Badge", vdom.NewProps(vdom.Prop("tone", "ok")), vdom.Text("new"))
	f.nextCommit(t)
	if got := f.html(); got != `<span class="ok">new</span>` {
		t.Errorf("html = %s", got)
	}
}

func TestRenderFromRefIsQueued(t *testing.T) {
	f := newFixture(t)
	var once sync.Once
	tree := vdom.Div(vdom.Ref(func(host.Node) {
		once.Do(func() {
			f.driver.Render(context.Background(), f.root, vdom.Div("second"))
		})
	}), "first")

	f.driver.Render(context.Background(), f.root, tree)
	first, second := f.nextCommit(t), f.nextCommit(t)
	if first.Mode != ModeFirstPaint || second.Mode != ModeUpdate {
		t.Errorf("modes = %v, %v", first.Mode, second.Mode)
	}
	if got := f.html(); got != "<div>second</div>" {
		t.Errorf("html = %s", got)
	}
}

func TestUnmount(t *testing.T) {
	f := newFixture(t)
	f.render(t, vdom.Div("x"))
	f.driver.Unmount(f.root)
	if f.mem.ChildCount(f.root) != 0 {
		t.Errorf("root keeps %d children", f.mem.ChildCount(f.root))
	}
	if f.driver.State(f.root) != StateUnmounted {
		t.Error("State after Unmount")
	}
	c := f.render(t, vdom.Div("y"))
	if c.Mode != ModeFirstPaint {
		t.Errorf("Mode after Unmount = %v", c.Mode)
	}
}

func TestConcurrentRendersDoNotInterleave(t *testing.T) {
	f := newFixture(t)
	f.render(t, vdom.Ul())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			items := make([]*vdom.VNode, n)
			for j := range items {
				items[j] = vdom.Li(vdom.Number(j))
			}
			f.driver.Render(context.Background(), f.root, vdom.Ul(items))
		}(i)
	}
	wg.Wait()

	// The committed tree and the surface agree.
	committed := f.driver.Committed(f.root)
	if got, want := f.mem.ChildCount(f.mem.ChildAt(f.root, 0)), len(committed.Children); got != want {
		t.Errorf("surface has %d items, committed tree %d", got, want)
	}
}

func TestMetricsRecorded(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.New(metrics.WithRegistry(reg))
	f := newFixture(t, WithMetrics(c))

	f.render(t, vdom.Div("a"))
	f.render(t, vdom.Div("b"))

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	got := map[string]float64{}
	for _, fam := range families {
		if fam.GetName() != "retain_renders_total" {
			continue
		}
		for _, m := range fam.GetMetric() {
			got[labelValue(m, "mode")] = m.GetCounter().GetValue()
		}
	}
	if diff := cmp.Diff(map[string]float64{"first_paint": 1, "update": 1}, got); diff != "" {
		t.Errorf("renders_total (-want +got):\n%s", diff)
	}
}

func labelValue(m *dto.Metric, name string) string {
	for _, l := range m.GetLabel() {
		if l.GetName() == name {
			return l.GetValue()
		}
	}
	return ""
}

func TestStateString(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{StateUnmounted, "unmounted"},
		{StateFirstPaint, "first_paint"},
		{StateCommitted, "committed"},
		{State(9), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}
