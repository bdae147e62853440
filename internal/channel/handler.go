package channel

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/btouchard/taskcast/internal/registry"
)

// Membership admits tasks and tracks which connections follow them.
// Defined consumer-side per Go convention.
type Membership interface {
	AdmitNew(namespace string) (string, error)
	Join(namespace, taskID, connID string) error
	Leave(taskID, connID string)
	Discard(taskID string)
}

// Handler upgrades subscriber connections for one channel namespace.
type Handler struct {
	hub       *Hub
	members   Membership
	namespace string
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHandler creates the WebSocket endpoint for a namespace.
// checkOrigin may be nil to accept every origin.
// Tasks admitted here can only be joined through the same namespace.
func NewHandler(hub *Hub, members Membership, namespace string, checkOrigin func(*http.Request) bool) *Handler {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Handler{
		hub:       hub,
		members:   members,
		namespace: namespace,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		logger: hub.logger,
	}
}

// ServeHTTP handles one subscriber for its whole lifetime.
//
// With a task_id query parameter the connection joins that task, or receives
// an error frame and is closed when the task is unknown. Without one, a new
// task is admitted and its id announced in the activate frame.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	client := newClient(uuid.NewString(), conn, h.hub.sendBuffer)
	h.hub.Register(client)
	go client.writePump()

	taskID := r.URL.Query().Get("task_id")
	admitted := taskID == ""
	if admitted {
		taskID, err = h.members.AdmitNew(h.namespace)
		if err != nil {
			h.reject(client, taskID, err.Error())
			return
		}
	}

	if err := h.members.Join(h.namespace, taskID, client.id); err != nil {
		if admitted {
			h.members.Discard(taskID)
		}
		msg := err.Error()
		if errors.Is(err, registry.ErrNotFound) {
			msg = registry.NotFoundMessage
		}
		h.logger.Info("subscriber rejected",
			"task_id", taskID,
			"namespace", h.namespace,
			"conn_id", client.id,
			"error", err)
		h.reject(client, taskID, msg)
		return
	}

	h.logger.Debug("subscriber joined", "task_id", taskID, "conn_id", client.id)

	client.readPump()

	h.members.Leave(taskID, client.id)
	h.hub.Unregister(client.id)
	h.logger.Debug("subscriber left", "task_id", taskID, "conn_id", client.id)
}

// reject sends a single error frame, then closes the connection.
func (h *Handler) reject(c *Client, taskID, msg string) {
	c.enqueue(Message{Event: EventError, Payload: registry.Payload{TaskID: taskID, Data: msg}})
	h.hub.Unregister(c.id)
}
