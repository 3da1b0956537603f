package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/phrazzld/autobuild/internal/domain"
	"github.com/phrazzld/autobuild/internal/events"
	"github.com/phrazzld/autobuild/internal/platform/logger"
)

// Stream message types
const (
	MessageSnapshot = "snapshot"
	MessageNotice   = "notice"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBufferSize = 32
)

// StreamMessage is a single frame sent to stream clients.
type StreamMessage struct {
	Type   string         `json:"type"`
	Tasks  []TaskResponse `json:"tasks,omitempty"`
	Notice *events.Notice `json:"notice,omitempty"`
}

type streamClient struct {
	id   uuid.UUID
	conn *websocket.Conn
	send chan []byte
}

// Hub fans collection snapshots and notices out to websocket clients. It is
// both a bus subscriber (Observe) and an events.Notifier. A client that
// cannot keep up is disconnected rather than slowing the publisher down.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[uuid.UUID]*streamClient
	latest  []byte
	closed  bool
}

// NewHub creates an empty Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger: logger.With(slog.String("component", "stream_hub")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		clients: make(map[uuid.UUID]*streamClient),
	}
}

// Observe is an events.Subscriber broadcasting each snapshot. The latest
// snapshot is kept and sent to clients as they connect.
func (h *Hub) Observe(_ context.Context, tasks []domain.Task) error {
	payload, err := json.Marshal(StreamMessage{Type: MessageSnapshot, Tasks: tasksToResponse(tasks)})
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.latest = payload
	h.mu.Unlock()

	h.broadcast(payload)
	return nil
}

// Notify implements events.Notifier.
func (h *Hub) Notify(_ context.Context, notice events.Notice) error {
	payload, err := json.Marshal(StreamMessage{Type: MessageNotice, Notice: &notice})
	if err != nil {
		return err
	}
	h.broadcast(payload)
	return nil
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request to a websocket and streams to it until
// the client disconnects or the hub is closed.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an error response.
		log.Debug("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	client := &streamClient{
		id:   uuid.New(),
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	h.clients[client.id] = client
	if h.latest != nil {
		client.send <- h.latest
	}
	h.mu.Unlock()

	log.Debug("stream client connected", slog.String("client_id", client.id.String()))

	go h.writePump(client)
	h.readPump(client)

	log.Debug("stream client disconnected", slog.String("client_id", client.id.String()))
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for id, client := range h.clients {
		delete(h.clients, id)
		close(client.send)
	}
}

func (h *Hub) broadcast(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, client := range h.clients {
		select {
		case client.send <- payload:
		default:
			h.logger.Warn("dropping slow stream client", slog.String("client_id", id.String()))
			delete(h.clients, id)
			close(client.send)
		}
	}
}

func (h *Hub) remove(client *streamClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.id]; ok {
		delete(h.clients, client.id)
		close(client.send)
	}
}

// readPump discards client frames; it exists to process control frames
// and notice when the peer goes away.
func (h *Hub) readPump(client *streamClient) {
	defer func() {
		h.remove(client)
		_ = client.conn.Close()
	}()

	client.conn.SetReadLimit(maxMessageSize)
	_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(client *streamClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = client.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = client.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
