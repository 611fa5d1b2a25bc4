// Package websocket streams committed settlement events to websocket clients.
package websocket

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mselser95/exchange-settlement/internal/events"
)

// Config holds hub configuration.
type Config struct {
	PingInterval time.Duration // Interval between PING frames (default: 10s)
	PongTimeout  time.Duration // Read deadline extended by every PONG (default: 15s)
	WriteTimeout time.Duration // Deadline for a single write (default: 5s)
	BufferSize   int           // Events queued per client before dropping (default: 256)
	Logger       *zap.Logger
}

// Hub fans committed events out to every connected client. It is an
// events.Sink.
type Hub struct {
	upgrader websocket.Upgrader
	cfg      Config
	logger   *zap.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	conn    *websocket.Conn
	send    chan []byte
	started time.Time
	once    sync.Once
}

// NewHub creates an event hub.
func NewHub(cfg Config) *Hub {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 10 * time.Second
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = 15 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the request and streams events until the client leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket-upgrade-failed", zap.Error(err))
		return
	}

	c := &client{
		conn:    conn,
		send:    make(chan []byte, h.cfg.BufferSize),
		started: time.Now(),
	}
	if !h.register(c) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(h.cfg.WriteTimeout))
		_ = conn.Close()
		return
	}

	h.logger.Info("websocket-client-connected", zap.String("remote-addr", r.RemoteAddr))

	go h.writeLoop(c)
	h.readLoop(c)
}

// Publish queues events for every client. A client whose queue is full
// misses the event.
func (h *Hub) Publish(_ context.Context, evs []events.Event) error {
	if len(evs) == 0 {
		return nil
	}

	messages := make([][]byte, len(evs))
	for i := range evs {
		data, err := json.Marshal(evs[i])
		if err != nil {
			return fmt.Errorf("marshal event %s: %w", evs[i].ID, err)
		}
		messages[i] = data
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		for i, msg := range messages {
			select {
			case c.send <- msg:
				MessagesSentTotal.WithLabelValues(string(evs[i].Type)).Inc()
			default:
				MessagesDroppedTotal.WithLabelValues("buffer-full").Inc()
				h.logger.Warn("websocket-client-lagging",
					zap.String("event-id", evs[i].ID),
					zap.String("remote-addr", c.conn.RemoteAddr().String()))
			}
		}
	}

	return nil
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() error {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
		delete(h.clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.disconnect(c)
	}

	h.logger.Info("websocket-hub-closed", zap.Int("clients", len(clients)))
	return nil
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	ActiveConnections.Inc()
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()

	if ok {
		h.disconnect(c)
	}
}

// disconnect must only be called once the client has left the map.
func (h *Hub) disconnect(c *client) {
	c.once.Do(func() {
		close(c.send)
		ActiveConnections.Dec()
		ConnectionDuration.Observe(time.Since(c.started).Seconds())
	})
}

// readLoop discards client messages and keeps the read deadline fresh.
func (h *Hub) readLoop(c *client) {
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket-read-error", zap.Error(err))
			}
			return
		}
	}
}

// writeLoop writes queued events and periodic PING frames.
func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.logger.Warn("websocket-write-error", zap.Error(err))
				return
			}
		case <-ticker.C:
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.cfg.WriteTimeout))
			if err != nil {
				h.logger.Warn("websocket-ping-failed", zap.Error(err))
				return
			}
		}
	}
}

var _ events.Sink = (*Hub)(nil)
