package mirror

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vango-dev/retain/pkg/host"
	"github.com/vango-dev/retain/pkg/metrics"
	"github.com/vango-dev/retain/pkg/middleware"
	"github.com/vango-dev/retain/pkg/protocol"
)

type fixture struct {
	mem  *host.Memory
	root host.Node
	srv  *Server
	http *httptest.Server
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	mem := host.NewMemory()
	root, err := mem.CreateElement("main", "")
	if err != nil {
		t.Fatal(err)
	}
	srv := New(mem, root, opts...)
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Close()
		hs.Close()
	})
	return &fixture{mem: mem, root: root, srv: srv, http: hs}
}

func (f *fixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) *protocol.Frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if kind != websocket.BinaryMessage {
		t.Fatalf("message kind = %d, want binary", kind)
	}
	frame, err := protocol.DecodeFrame(data)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	return frame
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met within 2s")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSnapshotThenOps(t *testing.T) {
	f := newFixture(t)
	p, _ := f.mem.CreateElement("p", "")
	f.mem.InsertChild(f.root, p, 0)

	conn := f.dial(t)
	frame := readFrame(t, conn)
	if frame.Type != protocol.FrameSnapshot {
		t.Fatalf("first frame = %v, want Snapshot", frame.Type)
	}
	snap, err := protocol.DecodeSnapshot(frame.Payload)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Root != f.root.ID() || snap.HTML != "<p></p>" {
		t.Errorf("snapshot = %+v", snap)
	}
	waitFor(t, func() bool { return f.srv.ClientCount() == 1 })

	f.mem.SetAttribute(p, "class", "lead")
	frame = readFrame(t, conn)
	if frame.Type != protocol.FrameOps {
		t.Fatalf("frame = %v, want Ops", frame.Type)
	}
	ops, err := protocol.DecodeOps(frame.Payload)
	if err != nil {
		t.Fatal(err)
	}
	want := host.Op{Kind: host.OpSetAttr, Node: p.ID(), Name: "class", Value: "lead"}
	if len(ops) != 1 || ops[0].Kind != want.Kind || ops[0].Node != want.Node || ops[0].Name != want.Name || ops[0].Value != want.Value {
		t.Errorf("ops = %+v, want [%+v]", ops, want)
	}
}

func TestEventDispatch(t *testing.T) {
	f := newFixture(t)
	btn, _ := f.mem.CreateElement("button", "")
	f.mem.InsertChild(f.root, btn, 0)

	var got atomic.Value
	f.mem.AddEventListener(btn, "click", func(e host.Event) {
		got.Store(e.Detail["x"])
	})

	conn := f.dial(t)
	readFrame(t, conn)

	payload, err := protocol.EncodeEvent(protocol.EventMessage{
		Target: btn.ID(),
		Type:   "click",
		Detail: map[string]any{"x": 12},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, protocol.NewFrame(protocol.FrameEvent, payload).Encode()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return got.Load() != nil })
	if got.Load() != 12 {
		t.Errorf("detail x = %v, want 12", got.Load())
	}
}

func TestEventMiddleware(t *testing.T) {
	seen := make(chan string, 4)
	record := func(next middleware.Handler) middleware.Handler {
		return func(ctx context.Context, msg protocol.EventMessage) error {
			seen <- msg.Type
			return next(ctx, msg)
		}
	}
	f := newFixture(t, WithEventMiddleware(middleware.Recover(nil), record))
	btn, _ := f.mem.CreateElement("button", "")
	f.mem.InsertChild(f.root, btn, 0)
	f.mem.AddEventListener(btn, "click", func(host.Event) { panic("handler bug") })

	conn := f.dial(t)
	readFrame(t, conn)

	payload, _ := protocol.EncodeEvent(protocol.EventMessage{Target: btn.ID(), Type: "click"})
	if err := conn.WriteMessage(websocket.BinaryMessage, protocol.NewFrame(protocol.FrameEvent, payload).Encode()); err != nil {
		t.Fatal(err)
	}
	frame := readFrame(t, conn)
	if frame.Type != protocol.FrameError || !strings.Contains(string(frame.Payload), "H002") {
		t.Fatalf("frame = %v %q, want H002 error", frame.Type, frame.Payload)
	}
	if got := <-seen; got != "click" {
		t.Errorf("middleware saw %q, want click", got)
	}

	// The connection survives the panic.
	f.mem.SetAttribute(btn, "disabled", "")
	if frame := readFrame(t, conn); frame.Type != protocol.FrameOps {
		t.Errorf("frame after panic = %v, want Ops", frame.Type)
	}
}

func TestBadFramesReportErrors(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	readFrame(t, conn)

	unknownTarget, _ := protocol.EncodeEvent(protocol.EventMessage{Target: 999, Type: "click"})
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"garbage", []byte{0xFF}, "decode frame"},
		{"wrong type", protocol.NewFrame(protocol.FrameOps, nil).Encode(), "unexpected Ops frame"},
		{"unknown node", protocol.NewFrame(protocol.FrameEvent, unknownTarget).Encode(), "unknown node 999"},
		{"bad event", protocol.NewFrame(protocol.FrameEvent, []byte{0x01}).Encode(), "P001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := conn.WriteMessage(websocket.BinaryMessage, tt.data); err != nil {
				t.Fatal(err)
			}
			frame := readFrame(t, conn)
			if frame.Type != protocol.FrameError {
				t.Fatalf("frame = %v, want Error", frame.Type)
			}
			if msg := string(frame.Payload); !strings.Contains(msg, tt.want) {
				t.Errorf("error = %q, want it to contain %q", msg, tt.want)
			}
		})
	}
}

func TestHTTPRoutes(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.New(metrics.WithRegistry(reg))
	f := newFixture(t, WithMetrics(c), WithGatherer(reg))

	span, _ := f.mem.CreateElement("span", "")
	f.mem.InsertChild(f.root, span, 0)
	f.mem.InsertChild(span, f.mem.CreateText("hi"), 0)

	get := func(path string) (int, string) {
		resp, err := http.Get(f.http.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, string(body)
	}

	if code, body := get("/snapshot"); code != http.StatusOK || body != "<span>hi</span>" {
		t.Errorf("/snapshot = %d %q", code, body)
	}
	if code, body := get("/healthz"); code != http.StatusOK || body != "ok" {
		t.Errorf("/healthz = %d %q", code, body)
	}

	f.dial(t)
	waitFor(t, func() bool { return f.srv.ClientCount() == 1 })
	code, body := get("/metrics")
	if code != http.StatusOK || !strings.Contains(body, "retain_mirror_clients 1") {
		t.Errorf("/metrics = %d, body lacks retain_mirror_clients 1:\n%s", code, body)
	}
}

func TestCloseDisconnectsViewers(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	readFrame(t, conn)
	waitFor(t, func() bool { return f.srv.ClientCount() == 1 })

	f.srv.Close()
	if f.srv.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d after Close", f.srv.ClientCount())
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("connection still open after Close")
	}

	// Ops after Close are not forwarded and do not panic.
	f.mem.SetAttribute(f.root, "x", "y")
}

func TestSnapshotSkipsOpsInFlight(t *testing.T) {
	mem := host.NewMemory()
	root, _ := mem.CreateElement("main", "")
	p, _ := mem.CreateElement("p", "")
	mem.InsertChild(root, p, 0)

	// Registered before the server, so it runs ahead of forward for each op.
	var armed atomic.Bool
	entered := make(chan struct{})
	release := make(chan struct{})
	mem.OnOp(func(host.Op) {
		if armed.CompareAndSwap(true, false) {
			close(entered)
			<-release
		}
	})

	srv := New(mem, root)
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Close()
		hs.Close()
	})
	f := &fixture{mem: mem, root: root, srv: srv, http: hs}

	armed.Store(true)
	applied := make(chan struct{})
	go func() {
		defer close(applied)
		mem.SetAttribute(p, "class", "lead")
	}()
	<-entered

	// The attribute is applied but not yet forwarded.
	conn := f.dial(t)
	snap, err := protocol.DecodeSnapshot(readFrame(t, conn).Payload)
	if err != nil {
		t.Fatal(err)
	}
	if snap.HTML != `<p class="lead"></p>` {
		t.Errorf("snapshot HTML = %q", snap.HTML)
	}
	waitFor(t, func() bool { return srv.ClientCount() == 1 })
	close(release)
	<-applied

	mem.SetAttribute(p, "title", "next")
	frame := readFrame(t, conn)
	if frame.Type != protocol.FrameOps {
		t.Fatalf("frame = %v, want Ops", frame.Type)
	}
	ops, err := protocol.DecodeOps(frame.Payload)
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 1 || ops[0].Name != "title" {
		t.Fatalf("first ops frame = %+v, want only the title op", ops)
	}
	if ops[0].Seq != snap.Seq+1 {
		t.Errorf("op Seq = %d, want %d", ops[0].Seq, snap.Seq+1)
	}
}
