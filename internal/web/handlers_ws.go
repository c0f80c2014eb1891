package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"sndctl/internal/events"
)

// WSHub fans bus events out to connected WebSocket clients. Events are
// queued on a buffered channel and serialized once per broadcast; a
// client that cannot keep up with the fan-out is dropped.
type WSHub struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
	closed  bool

	events chan events.Event
	done   chan struct{}

	logger   *slog.Logger
	stopOnce sync.Once
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewWSHub creates a hub. Run must be started before Broadcast delivers
// anything.
func NewWSHub(logger *slog.Logger) *WSHub {
	return &WSHub{
		clients: make(map[*wsClient]struct{}),
		events:  make(chan events.Event, 256),
		done:    make(chan struct{}),
		logger:  logger,
	}
}

// Run drains the event queue until Stop is called.
func (h *WSHub) Run() {
	for {
		select {
		case <-h.done:
			h.closeAll()
			return
		case event := <-h.events:
			h.fanOut(event)
		}
	}
}

// Stop shuts the hub down and disconnects all clients. Safe to call
// multiple times.
func (h *WSHub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
	})
}

// Broadcast queues an event for delivery to all connected clients.
// Never blocks; the event is dropped if the queue is full.
func (h *WSHub) Broadcast(event events.Event) {
	select {
	case h.events <- event:
	default:
		h.logger.Warn("ws event queue full, dropping", "type", event.Type)
	}
}

// add registers a client. Returns false once the hub has shut down.
func (h *WSHub) add(client *wsClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[client] = struct{}{}
	h.logger.Debug("ws client connected", "total", len(h.clients))
	return true
}

// remove unregisters a client and closes its send channel. Idempotent.
func (h *WSHub) remove(client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)
	h.logger.Debug("ws client disconnected", "total", len(h.clients))
}

func (h *WSHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

func (h *WSHub) fanOut(event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("ws event marshal", "type", event.Type, "err", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			delete(h.clients, client)
			close(client.send)
			h.logger.Warn("ws client evicted, send buffer full")
		}
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	opts := &websocket.AcceptOptions{}
	if len(s.allowedOrigins) > 0 {
		opts.OriginPatterns = s.allowedOrigins
	}
	// Without configured origins, nhooyr falls back to same-origin checks.

	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		s.logger.Error("ws accept", "err", err)
		return
	}

	conn.SetReadLimit(4096)

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, 64),
	}
	if !s.wsHub.add(client) {
		conn.Close(websocket.StatusGoingAway, "server shutdown")
		return
	}

	go s.wsWriteLoop(client)
	s.wsReadLoop(client)
	s.wsHub.remove(client)
}

// wsWriteLoop pushes queued frames to the peer until the hub closes the
// send channel or a write fails.
func (s *Server) wsWriteLoop(client *wsClient) {
	for msg := range client.send {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := client.conn.Write(ctx, websocket.MessageText, msg)
		cancel()
		if err != nil {
			return
		}
	}
	client.conn.Close(websocket.StatusNormalClosure, "")
}

// wsReadLoop consumes and discards inbound frames. The stream is
// one-way; reading is still required so close frames are processed.
func (s *Server) wsReadLoop(client *wsClient) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		select {
		case <-s.wsHub.done:
			client.conn.Close(websocket.StatusGoingAway, "server shutdown")
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		if _, _, err := client.conn.Read(ctx); err != nil {
			return
		}
	}
}
