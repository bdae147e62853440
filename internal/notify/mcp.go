package notify

import (
	"log/slog"
	"sync"
	"time"
)

// MCPSender abstracts the mcp-go server notification methods.
// Defined consumer-side per Go convention.
type MCPSender interface {
	SendNotificationToAllClients(method string, params map[string]any)
}

// MCPNotifier pushes task lifecycle updates to connected MCP clients.
type MCPNotifier struct {
	sender   MCPSender
	debounce time.Duration

	mu       sync.Mutex
	lastSent map[string]time.Time // taskID → last progress notification time
}

// NewMCPNotifier creates an MCPNotifier with the given debounce interval
// for progress events. Every other event is sent immediately.
func NewMCPNotifier(sender MCPSender, debounce time.Duration) *MCPNotifier {
	if debounce <= 0 {
		debounce = 3 * time.Second
	}
	return &MCPNotifier{
		sender:   sender,
		debounce: debounce,
		lastSent: make(map[string]time.Time),
	}
}

// Notify sends an MCP notification for the given event.
func (n *MCPNotifier) Notify(event Event) {
	switch event.Type {
	case TypeProgress:
		n.sendProgress(event)
	case TypeDispatched:
		n.sendMessage(event, "info")
	case TypeCompleted:
		n.clearDebounce(event.TaskID)
		level := "info"
		if event.Name != "success" {
			level = "warning"
		}
		n.sendMessage(event, level)
	case TypeRejected, TypeOrphaned:
		n.clearDebounce(event.TaskID)
		n.sendMessage(event, "error")
	default:
		slog.Debug("mcp notifier: event not forwarded", "type", event.Type)
	}
}

func (n *MCPNotifier) sendProgress(event Event) {
	n.mu.Lock()
	last, ok := n.lastSent[event.TaskID]
	if ok && time.Since(last) < n.debounce {
		n.mu.Unlock()
		return
	}
	n.lastSent[event.TaskID] = time.Now()
	n.mu.Unlock()

	n.sender.SendNotificationToAllClients("notifications/progress", map[string]any{
		"progressToken": event.TaskID,
		"progress":      -1, // indeterminate
		"total":         1,
		"message":       event.Task + " in progress",
	})
}

func (n *MCPNotifier) sendMessage(event Event, level string) {
	n.sender.SendNotificationToAllClients("notifications/message", map[string]any{
		"level":  level,
		"logger": "taskcast",
		"data": map[string]any{
			"type":    event.Type,
			"task_id": event.TaskID,
			"task":    event.Task,
			"event":   event.Name,
		},
	})
}

func (n *MCPNotifier) clearDebounce(taskID string) {
	n.mu.Lock()
	delete(n.lastSent, taskID)
	n.mu.Unlock()
}
