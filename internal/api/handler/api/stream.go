// internal/api/handler/api/stream.go
package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/newthinker/marketbias/internal/metrics"
	"github.com/newthinker/marketbias/internal/store"
	"go.uber.org/zap"
)

const (
	streamWriteTimeout = 10 * time.Second
	streamPongWait     = 60 * time.Second
	streamPingInterval = 30 * time.Second
	streamReadLimit    = 1024
)

// Subscriber is the push side of store.Store.
type Subscriber interface {
	Snapshots() []store.Snapshot
	Subscribe() (<-chan []store.Snapshot, func())
}

// StreamMessage is one frame pushed to stream clients.
type StreamMessage struct {
	Type      string           `json:"type"`
	Snapshots []store.Snapshot `json:"snapshots"`
	Timestamp time.Time        `json:"timestamp"`
}

// StreamHandler pushes every refreshed snapshot set over a websocket.
type StreamHandler struct {
	store    Subscriber
	metrics  *metrics.Registry
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients int
	quit    chan struct{}
	closed  bool
}

// NewStreamHandler creates a stream handler. reg may be nil.
func NewStreamHandler(s Subscriber, reg *metrics.Registry, logger *zap.Logger) *StreamHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamHandler{
		store:   s,
		metrics: reg,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Clients authenticate with the API key, not by origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		quit: make(chan struct{}),
	}
}

// Stream upgrades the connection, sends the current snapshots, then every update.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	updates, cancel := h.store.Subscribe()
	defer cancel()

	h.track(1)
	defer h.track(-1)

	if err := h.send(conn, "snapshot", h.store.Snapshots()); err != nil {
		return
	}

	done := make(chan struct{})
	go h.readLoop(conn, done)

	ticker := time.NewTicker(streamPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-h.quit:
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(streamWriteTimeout))
			return
		case set, ok := <-updates:
			if !ok {
				return
			}
			if err := h.send(conn, "update", set); err != nil {
				h.logger.Debug("stream write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteTimeout)); err != nil {
				return
			}
		}
	}
}

// Close disconnects every client.
func (h *StreamHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.closed {
		h.closed = true
		close(h.quit)
	}
}

// Clients returns the number of connected clients.
func (h *StreamHandler) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.clients
}

func (h *StreamHandler) send(conn *websocket.Conn, kind string, snaps []store.Snapshot) error {
	conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	return conn.WriteJSON(StreamMessage{Type: kind, Snapshots: snaps, Timestamp: time.Now().UTC()})
}

// readLoop drains client frames so pongs and close frames are processed.
func (h *StreamHandler) readLoop(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(streamReadLimit)
	conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *StreamHandler) track(delta int) {
	h.mu.Lock()
	h.clients += delta
	n := h.clients
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.SetStreamClients(n)
	}
}
