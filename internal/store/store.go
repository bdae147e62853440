package store

import (
	"time"
)

// Store is the persistence interface for the lifecycle audit trail.
// Defined at the consumer side per Go conventions.
type Store interface {
	AddEvent(e *TaskEvent) error
	GetEvents(taskID string, limit int) ([]TaskEvent, error)
	ListRecent(f EventFilter) ([]TaskEvent, error)

	// Maintenance
	Cleanup(olderThan time.Time) (int64, error)
	Close() error
}

// TaskEvent is one lifecycle transition of a task. Payloads are never stored.
type TaskEvent struct {
	ID        int64
	TaskID    string
	Task      string // registration name
	EventType string // task.admitted, task.dispatched, task.completed, ...
	Name      string // channel event name, empty when none was published
	CreatedAt time.Time
}

// EventFilter specifies criteria for listing events across tasks.
type EventFilter struct {
	Task      string
	EventType string
	Since     time.Time
	Limit     int
}
