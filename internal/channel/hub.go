package channel

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/btouchard/taskcast/internal/registry"
)

// Event names emitted by the channel itself. Lifecycle events
// (progress, success, error, terminate) are named by the publisher.
const (
	EventActivate = "activate"
	EventError    = "error"
)

// ErrUnknownConnection is returned when joining a connection the hub does not hold.
var ErrUnknownConnection = errors.New("unknown connection")

// Message is the wire frame sent to subscribers.
type Message struct {
	Event   string           `json:"event"`
	Payload registry.Payload `json:"payload"`
}

// Hub holds live connections and the rooms they are joined to.
// It implements registry.Rooms.
type Hub struct {
	mu         sync.RWMutex
	clients    map[string]*Client
	rooms      map[string]map[string]*Client
	sendBuffer int
	logger     *slog.Logger
}

// NewHub creates a Hub whose clients buffer up to sendBuffer outbound frames.
func NewHub(sendBuffer int, logger *slog.Logger) *Hub {
	if sendBuffer <= 0 {
		sendBuffer = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[string]*Client),
		sendBuffer: sendBuffer,
		logger:     logger.With("component", "channel_hub"),
	}
}

// Register adds a connected client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
}

// Unregister removes a client from the hub and every room, then closes its queue.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	c, ok := h.clients[connID]
	if ok {
		delete(h.clients, connID)
		for room, members := range h.rooms {
			delete(members, connID)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	h.mu.Unlock()

	if ok {
		c.close()
	}
}

// Join enrolls connID in room. The client receives an activate frame for the
// room before any event published to it afterwards.
func (h *Hub) Join(room, connID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[connID]
	if !ok {
		return fmt.Errorf("join room %q: %w", room, ErrUnknownConnection)
	}
	if !c.enqueue(Message{Event: EventActivate, Payload: registry.Payload{TaskID: room}}) {
		return fmt.Errorf("join room %q: %w", room, ErrUnknownConnection)
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[string]*Client)
	}
	h.rooms[room][connID] = c
	return nil
}

// Leave removes connID from room.
func (h *Hub) Leave(room, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// Publish queues an event for every member of room. Clients whose queue is
// full are disconnected rather than allowed to stall the publisher.
func (h *Hub) Publish(room, event string, payload registry.Payload) {
	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[room]))
	for _, c := range h.rooms[room] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	msg := Message{Event: event, Payload: payload}
	for _, c := range members {
		if !c.enqueue(msg) {
			h.logger.Warn("subscriber too slow, disconnecting",
				"task_id", room,
				"conn_id", c.id,
				"event", event)
			h.Unregister(c.id)
		}
	}
}

// CloseRoom forgets room. Connections stay open.
func (h *Hub) CloseRoom(room string) {
	h.mu.Lock()
	delete(h.rooms, room)
	h.mu.Unlock()
}

// RoomSize returns the number of connections joined to room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// ClientCount returns the number of live connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll disconnects every client. Used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	h.mu.RUnlock()

	for _, id := range ids {
		h.Unregister(id)
	}
}
