package notify

import (
	"log/slog"

	"github.com/btouchard/taskcast/internal/store"
)

// EventRecorder persists lifecycle events.
// Defined consumer-side per Go convention.
type EventRecorder interface {
	AddEvent(e *store.TaskEvent) error
}

// AuditNotifier writes every lifecycle event to the audit trail.
// Only the event name is stored, never the task payload.
type AuditNotifier struct {
	recorder EventRecorder
}

// NewAuditNotifier creates an AuditNotifier backed by recorder.
func NewAuditNotifier(recorder EventRecorder) *AuditNotifier {
	return &AuditNotifier{recorder: recorder}
}

// Notify records the event. Failures are logged and otherwise ignored.
func (a *AuditNotifier) Notify(event Event) {
	err := a.recorder.AddEvent(&store.TaskEvent{
		TaskID:    event.TaskID,
		Task:      event.Task,
		EventType: event.Type,
		Name:      event.Name,
		CreatedAt: event.At,
	})
	if err != nil {
		slog.Warn("failed to record task event",
			"task_id", event.TaskID,
			"type", event.Type,
			"error", err)
	}
}
