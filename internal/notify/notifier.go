package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Lifecycle event types forwarded to observers.
const (
	TypeAdmitted   = "task.admitted"
	TypeDispatched = "task.dispatched"
	TypeRejected   = "task.rejected"
	TypeProgress   = "task.progress"
	TypeCompleted  = "task.completed" // terminal; Event.Name carries the channel event
	TypeOrphaned   = "task.orphaned"
)

// Event represents a task lifecycle notification.
type Event struct {
	Type   string
	TaskID string
	Task   string // registration name, empty for channel admissions
	Name   string // channel event name (progress, success, error, terminate, ...)
	At     time.Time
}

// Notifier observes task lifecycle events.
type Notifier interface {
	Notify(event Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Event)

// Notify calls f(event).
func (f NotifierFunc) Notify(event Event) { f(event) }

// Hub dispatches events to multiple notifiers from a single goroutine so
// every notifier sees events in publication order. Notify never blocks the
// caller; events are dropped with a warning when the queue is full.
type Hub struct {
	notifiers []Notifier
	queue     chan Event

	once sync.Once
	done chan struct{}
}

// NewHub creates a Hub with the given notifiers. Run must be called to deliver.
func NewHub(size int, notifiers ...Notifier) *Hub {
	if size <= 0 {
		size = 256
	}
	return &Hub{
		notifiers: notifiers,
		queue:     make(chan Event, size),
		done:      make(chan struct{}),
	}
}

// Add registers another notifier. It must be called before Run.
func (h *Hub) Add(n Notifier) {
	h.notifiers = append(h.notifiers, n)
}

// Notify queues an event for all registered notifiers.
func (h *Hub) Notify(event Event) {
	if h == nil || len(h.notifiers) == 0 {
		return
	}
	if event.At.IsZero() {
		event.At = time.Now()
	}
	select {
	case h.queue <- event:
	default:
		slog.Warn("notify queue full, dropping event",
			"type", event.Type,
			"task_id", event.TaskID)
	}
}

// Run delivers queued events until ctx is done, then flushes what is left.
func (h *Hub) Run(ctx context.Context) {
	defer h.once.Do(func() { close(h.done) })
	for {
		select {
		case ev := <-h.queue:
			h.deliver(ev)
		case <-ctx.Done():
			for {
				select {
				case ev := <-h.queue:
					h.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func (h *Hub) deliver(ev Event) {
	for _, n := range h.notifiers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("notifier panicked",
						"type", ev.Type,
						"task_id", ev.TaskID,
						"panic", r)
				}
			}()
			n.Notify(ev)
		}()
	}
}
