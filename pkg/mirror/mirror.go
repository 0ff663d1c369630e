// Package mirror streams a memory surface to remote viewers over WebSocket.
//
// A viewer connecting to /ws first receives a snapshot frame holding the
// HTML of the mirrored root, then one ops frame per host mutation. Viewers
// send event frames to dispatch events on live nodes, which runs the bound
// handlers exactly as a local Dispatch would.
//
//	srv := mirror.New(mem, root)
//	http.ListenAndServe(":7070", srv.Handler())
package mirror

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/retain/internal/errors"
	"github.com/vango-dev/retain/pkg/host"
	"github.com/vango-dev/retain/pkg/metrics"
	"github.com/vango-dev/retain/pkg/middleware"
	"github.com/vango-dev/retain/pkg/protocol"
)

const (
	// sendBuffer is the number of frames queued per viewer before it is
	// dropped as too slow.
	sendBuffer = 256

	writeWait = 5 * time.Second
)

// Server mirrors one root of a memory surface.
type Server struct {
	mem      *host.Memory
	root     host.Node
	logger   *slog.Logger
	metrics  *metrics.Collector
	gatherer prometheus.Gatherer
	upgrader websocket.Upgrader
	mws      []middleware.Middleware
	dispatch middleware.Handler

	mu      sync.RWMutex
	clients map[*client]bool
	closed  bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once

	// after is the Seq of the client's snapshot. Earlier ops are in it.
	after uint64
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records viewer counts on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Server) {
		s.metrics = c
	}
}

// WithGatherer serves g on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithCheckOrigin sets the WebSocket origin policy. The default accepts
// every origin.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(s *Server) {
		s.upgrader.CheckOrigin = fn
	}
}

// WithEventMiddleware wraps the dispatch of viewer events. The first
// middleware is the outermost.
func WithEventMiddleware(mws ...middleware.Middleware) Option {
	return func(s *Server) {
		s.mws = append(s.mws, mws...)
	}
}

// New creates a Server mirroring root and starts forwarding ops.
func New(mem *host.Memory, root host.Node, opts ...Option) *Server {
	s := &Server{
		mem:     mem,
		root:    root,
		logger:  slog.Default().With("component", "mirror"),
		clients: make(map[*client]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.dispatch = middleware.Chain(s.mws...)(s.dispatchEvent)
	mem.OnOp(s.forward)
	return s
}

// Handler returns the HTTP routes of the mirror.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Get("/ws", s.HandleWebSocket)
	r.Get("/snapshot", s.handleSnapshot)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(s.mem.HTML(s.root)))
}

// HandleWebSocket upgrades the request and serves one viewer until it
// disconnects.
func (s *Server) HandleWebSocket(w http.ResponseWriter, req *http.Request) {
	conn, err := s.upgrader.Upgrade(w, req, nil)
	if err != nil {
		s.logger.Debug("upgrade failed", "error", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	// Ops applied before the snapshot may still be in flight to forward;
	// the client skips them by Seq.
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	html, seq := s.mem.Snapshot(s.root)
	c.after = seq
	snapshot := protocol.EncodeSnapshot(protocol.Snapshot{
		Root: s.root.ID(),
		Seq:  seq,
		HTML: html,
	})
	c.send <- protocol.NewFrame(protocol.FrameSnapshot, snapshot).Encode()
	s.clients[c] = true
	s.mu.Unlock()
	s.metrics.MirrorConnected()

	go s.writeLoop(c)
	s.readLoop(req.Context(), c)
	s.drop(c)
}

func (s *Server) writeLoop(c *client) {
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
			s.drop(c)
			c.conn.Close()
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.conn.Close()
}

func (s *Server) readLoop(ctx context.Context, c *client) {
	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		if err := s.handleFrame(ctx, data); err != nil {
			coded := errors.FromError(err, "P001")
			coded.Log(s.logger)
			s.sendTo(c, protocol.NewFrame(protocol.FrameError, []byte(coded.Error())).Encode())
		}
	}
}

// handleFrame dispatches an event frame from a viewer.
func (s *Server) handleFrame(ctx context.Context, data []byte) error {
	frame, err := protocol.DecodeFrame(data)
	if err != nil {
		return errors.New("P001").WithDetail("decode frame").Wrap(err)
	}
	if frame.Type != protocol.FrameEvent {
		return errors.New("P001").WithDetailf("unexpected %s frame from viewer", frame.Type)
	}
	msg, err := protocol.DecodeEvent(frame.Payload)
	if err != nil {
		return err
	}
	return s.dispatch(ctx, msg)
}

// dispatchEvent runs the listeners bound for msg on its target.
func (s *Server) dispatchEvent(_ context.Context, msg protocol.EventMessage) error {
	node := s.mem.Lookup(msg.Target)
	if node == nil {
		return errors.New("P001").WithDetailf("event %q for unknown node %d", msg.Type, msg.Target)
	}
	s.mem.Dispatch(node, msg.Type, msg.Detail)
	return nil
}

// forward sends one op to every viewer whose snapshot does not already
// contain it.
func (s *Server) forward(op host.Op) {
	data := protocol.NewFrame(protocol.FrameOps, protocol.EncodeOps([]host.Op{op})).Encode()

	s.mu.RLock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		if op.Seq > c.after {
			clients = append(clients, c)
		}
	}
	s.mu.RUnlock()

	for _, c := range clients {
		s.sendTo(c, data)
	}
}

// sendTo queues data for c, dropping c when its queue is full.
func (s *Server) sendTo(c *client, data []byte) {
	s.mu.RLock()
	live := s.clients[c]
	if live {
		select {
		case c.send <- data:
		default:
			live = false
		}
	}
	s.mu.RUnlock()
	if !live {
		s.logger.Warn("dropping slow viewer", "remote", c.conn.RemoteAddr().String())
		s.drop(c)
	}
}

func (s *Server) drop(c *client) {
	c.once.Do(func() {
		s.mu.Lock()
		delete(s.clients, c)
		close(c.send)
		s.mu.Unlock()
		s.metrics.MirrorDisconnected()
	})
}

// ClientCount returns the number of connected viewers.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Close disconnects every viewer. Ops are no longer forwarded.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		s.drop(c)
	}
}
