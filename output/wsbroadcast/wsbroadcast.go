// Package wsbroadcast streams decoded frames to WebSocket clients so a
// browser dashboard can watch the radar live.
package wsbroadcast

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/llhlol/IWR1443-data-collection/config"
	"github.com/llhlol/IWR1443-data-collection/errors"
)

// clientQueueDepth bounds per-client backlog. Records for a client whose
// queue is full are dropped rather than waited on; the client stays
// connected.
const clientQueueDepth = 32

// writeTimeout caps a single WebSocket write.
const writeTimeout = 5 * time.Second

// Output fans each JSON record out to every connected client.
type Output struct {
	addr   string
	path   string
	logger *slog.Logger

	upgrader websocket.Upgrader
	server   *http.Server

	mu      sync.Mutex
	clients map[*client]struct{}

	broadcast     atomic.Int64
	dropped       atomic.Int64
	clientsServed atomic.Int64
	running       atomic.Bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewOutput creates a WebSocket sink from configuration.
func NewOutput(cfg config.WebSocketOutputConfig, logger *slog.Logger) *Output {
	if logger == nil {
		logger = slog.Default().With("component", "ws-output")
	}
	path := cfg.Path
	if path == "" {
		path = "/frames"
	}

	return &Output{
		addr:   cfg.Addr,
		path:   path,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The dashboard is served from anywhere on the lab network.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Start begins accepting WebSocket clients.
func (o *Output) Start() error {
	if o.running.Load() {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Output", "Start", "state check")
	}

	mux := http.NewServeMux()
	mux.HandleFunc(o.path, o.handleClient)

	o.server = &http.Server{
		Addr:              o.addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	o.running.Store(true)
	go func() {
		if err := o.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			o.logger.Error("websocket server stopped", "addr", o.addr, "error", err)
		}
	}()

	o.logger.Info("websocket output started", "addr", o.addr, "path", o.path)
	return nil
}

// Write broadcasts one record. Slow clients lose frames, never order.
func (o *Output) Write(record []byte) {
	if !o.running.Load() {
		return
	}

	payload := append([]byte(nil), record...)

	// Sends are non-blocking, so holding the lock here is cheap and keeps
	// the enqueue ordered against client close.
	o.mu.Lock()
	for c := range o.clients {
		select {
		case c.send <- payload:
		default:
			o.dropped.Add(1)
		}
	}
	o.mu.Unlock()
	o.broadcast.Add(1)
}

// Stop disconnects every client and shuts the server down.
func (o *Output) Stop(timeout time.Duration) error {
	if !o.running.Load() {
		return nil
	}
	o.running.Store(false)

	o.mu.Lock()
	for c := range o.clients {
		close(c.send)
	}
	o.clients = make(map[*client]struct{})
	o.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := o.server.Shutdown(ctx); err != nil {
		return errors.WrapTransient(err, "Output", "Stop", "server shutdown")
	}

	o.logger.Info("websocket output stopped",
		"broadcast", o.broadcast.Load(),
		"dropped", o.dropped.Load(),
		"clients_served", o.clientsServed.Load())
	return nil
}

// handleClient upgrades one HTTP request and pumps records until the
// client disconnects or the sink stops.
func (o *Output) handleClient(w http.ResponseWriter, r *http.Request) {
	conn, err := o.upgrader.Upgrade(w, r, nil)
	if err != nil {
		o.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, clientQueueDepth),
	}

	o.mu.Lock()
	o.clients[c] = struct{}{}
	o.mu.Unlock()
	o.clientsServed.Add(1)
	o.logger.Info("websocket client connected", "remote", r.RemoteAddr)

	// Discard inbound messages; the stream is one-way.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				o.detach(c)
				return
			}
		}
	}()

	for record := range c.send {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, record); err != nil {
			o.detach(c)
			return
		}
	}

	// Sink stopped: say goodbye cleanly.
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "collector stopping"))
	_ = conn.Close()
}

// detach removes a client after a read or write failure.
func (o *Output) detach(c *client) {
	o.mu.Lock()
	if _, ok := o.clients[c]; ok {
		delete(o.clients, c)
		close(c.send)
	}
	o.mu.Unlock()
	_ = c.conn.Close()
}
