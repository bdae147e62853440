package handlers

import (
	"github.com/btouchard/taskcast/internal/store"
	"github.com/btouchard/taskcast/internal/task"
)

// TaskReader lists admitted tasks.
// Defined consumer-side per Go convention.
type TaskReader interface {
	List() []task.Snapshot
	Get(taskID string) (task.Snapshot, error)
}

// TaskTerminator asks a dispatched task to stop.
type TaskTerminator interface {
	TerminateTask(taskID string) (task.Body, error)
}

// TypeLister returns the registered task types.
type TypeLister interface {
	Registrations() []*task.Registration
}

// HistoryReader reads the lifecycle audit trail.
type HistoryReader interface {
	GetEvents(taskID string, limit int) ([]store.TaskEvent, error)
	ListRecent(f store.EventFilter) ([]store.TaskEvent, error)
}
