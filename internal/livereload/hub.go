// Package livereload notifies connected browsers over a WebSocket after
// every watch-mode build pass.
package livereload

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/tagc/internal/build"
	"github.com/conneroisu/tagc/internal/logging"
)

// Path is where the hub accepts WebSocket connections.
const Path = "/ws"

// Message types.
const (
	MessageRebuild = "rebuild"
	MessageError   = "error"
)

const (
	writeTimeout = 10 * time.Second
	sendBuffer   = 16
)

// Message is the JSON document broadcast to clients.
type Message struct {
	Type      string    `json:"type"`
	Files     []string  `json:"files,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// PassMessage describes the outcome of a build pass.
func PassMessage(rep *build.Report, err error) Message {
	msg := Message{Type: MessageRebuild, Timestamp: time.Now()}
	if rep != nil {
		msg.Files = rep.Outputs()
	}
	if err != nil {
		msg.Type = MessageError
		msg.Error = err.Error()
	}
	return msg
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks connected clients and fans messages out to them. Membership
// changes and broadcasts are serialized through a single goroutine.
type Hub struct {
	clients map[*client]struct{}
	mu      sync.RWMutex

	register   chan *client
	unregister chan *client
	broadcast  chan []byte

	origins []string
	logger  logging.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the hub's logger.
func WithLogger(l logging.Logger) Option {
	return func(h *Hub) { h.logger = l }
}

// DefaultOriginPatterns admits pages served from the local machine.
var DefaultOriginPatterns = []string{"localhost:*", "127.0.0.1:*"}

// WithOriginPatterns sets the browser origins allowed to connect. An empty
// list keeps DefaultOriginPatterns.
func WithOriginPatterns(patterns ...string) Option {
	return func(h *Hub) {
		if len(patterns) > 0 {
			h.origins = append([]string(nil), patterns...)
		}
	}
}

// NewHub creates a hub and starts its event loop.
func NewHub(opts ...Option) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		clients:    make(map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 64),
		origins:    DefaultOriginPatterns,
		logger:     logging.NewNopLogger(),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.WithComponent("livereload")

	go h.run()
	return h
}

// Handler returns an http.Handler serving the hub at Path.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(Path, h)
	return mux
}

// ServeHTTP upgrades the request and keeps the connection until the client
// goes away or the hub is closed.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.ctx.Err() != nil {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  h.origins,
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		h.logger.Warn(r.Context(), err, "websocket upgrade failed", "remote", r.RemoteAddr)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	select {
	case h.register <- c:
	case <-h.ctx.Done():
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}

	h.serveClient(c)
}

// serveClient writes queued messages until the connection or hub ends.
// Incoming messages are discarded.
func (h *Hub) serveClient(c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
	}()

	ctx := c.conn.CloseRead(h.ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Write(wctx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				h.logger.Debug(ctx, "websocket write failed", "error", err.Error())
				return
			}
		}
	}
}

func (h *Hub) run() {
	defer close(h.done)
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info(h.ctx, "client connected", "clients", n)

		case c := <-h.unregister:
			h.drop(c, websocket.StatusNormalClosure, "")

		case msg := <-h.broadcast:
			h.mu.RLock()
			var slow []*client
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					slow = append(slow, c)
				}
			}
			h.mu.RUnlock()
			for _, c := range slow {
				h.drop(c, websocket.StatusPolicyViolation, "client too slow")
			}

		case <-h.ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				_ = c.conn.Close(websocket.StatusGoingAway, "server shutting down")
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) drop(c *client, code websocket.StatusCode, reason string) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	if !ok {
		return
	}

	_ = c.conn.Close(code, reason)
	h.logger.Info(h.ctx, "client disconnected", "clients", n)
}

// Broadcast queues msg for every connected client. It never blocks; the
// message is dropped when the hub is closed or its queue is full.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error(h.ctx, err, "cannot encode broadcast message")
		return
	}

	select {
	case <-h.ctx.Done():
		return
	default:
	}

	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn(h.ctx, nil, "broadcast queue full, dropping message", "type", msg.Type)
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and stops the hub. It is safe to call more
// than once.
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		h.cancel()
		<-h.done
	})
}

// ListenAndServe serves the hub on addr until ctx is done, then shuts the
// server down and closes the hub.
func (h *Hub) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		h.Close()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			h.logger.Warn(sctx, err, "live reload server shutdown failed")
		}
	}()

	h.logger.Info(ctx, "live reload listening", "addr", addr, "path", Path)
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		<-stopped
		return nil
	}
	return err
}
