package frontend

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"udp-relay/internal/metrics"
)

const (
	clientQueue = 64
	writeWait   = 5 * time.Second
)

// Message is the JSON frame exchanged over /ws
type Message struct {
	Type     string    `json:"type"`               // "snapshot", "log" or "error" from the server
	Action   string    `json:"action,omitempty"`   // "trigger" from the browser
	Lines    []string  `json:"lines,omitempty"`
	Snapshot *Snapshot `json:"snapshot,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// HTTPServer exposes the front end over HTTP: a WebSocket log stream with
// trigger input, health and status endpoints and Prometheus metrics.
type HTTPServer struct {
	fe       *Frontend
	logger   *slog.Logger
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader
	server   *http.Server
	listener net.Listener

	startTime time.Time

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

// NewHTTPServer creates the server; call Start to listen on addr
func NewHTTPServer(addr string, fe *Frontend, m *metrics.Metrics, logger *slog.Logger) *HTTPServer {
	if logger == nil {
		logger = slog.Default()
	}

	h := &HTTPServer{
		fe:      fe,
		logger:  logger,
		metrics: m,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // local tool, any origin
			},
		},
		startTime: time.Now(),
		clients:   make(map[*wsClient]struct{}),
	}

	h.server = &http.Server{
		Addr:        addr,
		Handler:     h.Handler(),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
	return h
}

// Handler returns the route table
func (h *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/status", h.handleStatus)
	mux.HandleFunc("/ws", h.handleWebSocket)
	if h.metrics != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(h.metrics.Registry, promhttp.HandlerOpts{}))
	}
	return mux
}

// Start listens and serves in the background
func (h *HTTPServer) Start() error {
	ln, err := net.Listen("tcp", h.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", h.server.Addr, err)
	}
	h.listener = ln

	h.logger.Info("HTTP front end started", slog.String("address", ln.Addr().String()))

	go func() {
		if err := h.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server failed", slog.String("error", err.Error()))
		}
	}()
	return nil
}

// Addr returns the listening address once started
func (h *HTTPServer) Addr() string {
	if h.listener == nil {
		return h.server.Addr
	}
	return h.listener.Addr().String()
}

// Stop shuts the server down and closes open WebSocket connections, which
// Shutdown does not track.
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP front end...")
	err := h.server.Shutdown(ctx)

	h.mu.Lock()
	for c := range h.clients {
		c.conn.Close()
	}
	h.mu.Unlock()

	return err
}

func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"uptime": time.Since(h.startTime).Round(time.Second).String(),
	})
}

func (h *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.fe.Snapshot())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// wsClient is one browser connection. All writes go through send so the
// connection has a single writer.
type wsClient struct {
	conn   *websocket.Conn
	send   chan Message
	mu     sync.Mutex
	closed bool
}

func (c *wsClient) WriteLines(lines []string) {
	c.enqueue(Message{Type: "log", Lines: lines})
}

func (c *wsClient) enqueue(m Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- m:
	default:
		// slow browser; drop the frame rather than stall the tick loop
	}
}

func (c *wsClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (h *HTTPServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	client := &wsClient{conn: conn, send: make(chan Message, clientQueue)}
	h.logger.Info("WebSocket client connected", slog.String("remote_addr", r.RemoteAddr))

	snap := h.fe.Snapshot()
	client.enqueue(Message{Type: "snapshot", Snapshot: &snap})
	h.fe.AddSink(client)

	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	go h.writePump(client)

	defer func() {
		h.fe.RemoveSink(client)
		client.close()
		h.mu.Lock()
		delete(h.clients, client)
		h.mu.Unlock()
		h.logger.Info("WebSocket client disconnected", slog.String("remote_addr", r.RemoteAddr))
	}()

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("WebSocket read error", slog.String("error", err.Error()))
			}
			return
		}

		switch msg.Action {
		case "trigger":
			h.fe.RequestTrigger()
		case "snapshot":
			snap := h.fe.Snapshot()
			client.enqueue(Message{Type: "snapshot", Snapshot: &snap})
		default:
			client.enqueue(Message{Type: "error", Error: fmt.Sprintf("unknown action %q", msg.Action)})
		}
	}
}

func (h *HTTPServer) writePump(c *wsClient) {
	defer c.conn.Close()

	for m := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(m); err != nil {
			h.logger.Warn("WebSocket write error", slog.String("error", err.Error()))
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
