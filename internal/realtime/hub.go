// Package realtime fans lifecycle events out to every connected observer.
// Delivery is fire-and-forget: there is no acknowledgement, no replay, and
// observers that are offline at publish time must catch up via the listing
// API.
package realtime

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event names on the realtime channel.
const (
	EventNewRequest   = "new-request"
	EventStatusUpdate = "status-update"
)

// Message is a named event pushed to observers.
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// StatusUpdateData is the status-update payload.
type StatusUpdateData struct {
	RequestID string    `json:"requestId"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Client is one connected observer. Messages arrive on Receive; the
// transport layer drains it and pushes frames down the socket.
type Client struct {
	send chan Message
}

// Receive returns the client's message stream. The channel is closed when
// the hub drops the client.
func (c *Client) Receive() <-chan Message {
	return c.send
}

// Hub tracks connected observers and broadcasts to all of them. Publishing
// never blocks: a client whose buffer is full is assumed dead and dropped.
type Hub struct {
	mu         sync.Mutex
	clients    map[*Client]struct{}
	sendBuffer int
	logger     *zap.Logger
}

// NewHub creates a hub with the given per-client send buffer.
func NewHub(sendBuffer int, logger *zap.Logger) *Hub {
	if sendBuffer <= 0 {
		sendBuffer = 16
	}
	return &Hub{
		clients:    make(map[*Client]struct{}),
		sendBuffer: sendBuffer,
		logger:     logger,
	}
}

// Register adds a new observer.
func (h *Hub) Register() *Client {
	c := &Client{send: make(chan Message, h.sendBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("observer connected", zap.Int("observers", count))
	return c
}

// Unregister removes an observer and closes its stream.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	count := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("observer disconnected", zap.Int("observers", count))
}

// Broadcast publishes the message to every connected observer without
// blocking the caller. All observers receive all events; there is no
// per-observer filtering.
func (h *Hub) Broadcast(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			delete(h.clients, c)
			close(c.send)
			h.logger.Warn("dropping slow observer", zap.String("event", msg.Event))
		}
	}
}

// Observers reports the number of connected clients.
func (h *Hub) Observers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// BroadcastStatusUpdate emits a status-update event.
func (h *Hub) BroadcastStatusUpdate(requestID, status string, timestamp time.Time) {
	h.Broadcast(Message{
		Event: EventStatusUpdate,
		Data: StatusUpdateData{
			RequestID: requestID,
			Status:    status,
			Timestamp: timestamp,
		},
	})
}

// BroadcastNewRequest emits a new-request event carrying the full payload.
func (h *Hub) BroadcastNewRequest(payload any) {
	h.Broadcast(Message{Event: EventNewRequest, Data: payload})
}
