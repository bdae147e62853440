package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned when a task id is not (or no longer) admitted.
	ErrNotFound = errors.New("task not found")
	// ErrAlreadyAdmitted signals a duplicate Admit, which is a caller bug.
	ErrAlreadyAdmitted = errors.New("task already admitted")
	// ErrAlreadyDispatched is returned by Claim when a worker was already started.
	ErrAlreadyDispatched = errors.New("task already dispatched")
)

// NotFoundMessage is the data returned to clients for an unknown task id.
const NotFoundMessage = "task not found or already completed"

// Rooms is the room-style publish side of the subscription channel.
// Defined consumer-side per Go convention.
type Rooms interface {
	Join(room, connID string) error
	Leave(room, connID string)
	Publish(room, event string, payload Payload)
	CloseRoom(room string)
}

// Payload is the body of every event published for a task.
type Payload struct {
	TaskID string `json:"task_id"`
	Data   any    `json:"data,omitempty"`
}

type entry struct {
	namespace   string
	subscribers map[string]struct{}
	dispatched  bool
	admittedAt  time.Time
}

// Registry maps admitted task ids to the set of connections subscribed to them.
// An entry exists from Admit until the first successful Retire. Each entry
// belongs to the channel namespace it was admitted in; joins and claims from
// another namespace see it as unknown.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	rooms   Rooms
}

// New creates an empty Registry publishing through rooms.
func New(rooms Rooms) *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		rooms:   rooms,
	}
}

// Admit creates an empty subscriber set for id in namespace.
func (r *Registry) Admit(id, namespace string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[id]; ok {
		return fmt.Errorf("admit %q: %w", id, ErrAlreadyAdmitted)
	}
	r.entries[id] = &entry{
		namespace:   namespace,
		subscribers: make(map[string]struct{}),
		admittedAt:  time.Now(),
	}
	return nil
}

// lookup returns the entry for id when it belongs to namespace. Callers hold mu.
func (r *Registry) lookup(id, namespace string) (*entry, bool) {
	e, ok := r.entries[id]
	if !ok || e.namespace != namespace {
		return nil, false
	}
	return e, true
}

// Join subscribes connID to id and enrolls it in the task's room.
func (r *Registry) Join(id, namespace, connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.lookup(id, namespace)
	if !ok {
		return fmt.Errorf("join %q in %s: %w", id, namespace, ErrNotFound)
	}
	if err := r.rooms.Join(id, connID); err != nil {
		return fmt.Errorf("join %q: %w", id, err)
	}
	e.subscribers[connID] = struct{}{}
	return nil
}

// Leave unsubscribes connID from id. It is a no-op when either is unknown.
// A task that was never dispatched is dropped once its last subscriber leaves.
func (r *Registry) Leave(id, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return
	}
	if _, member := e.subscribers[connID]; !member {
		return
	}
	delete(e.subscribers, connID)
	r.rooms.Leave(id, connID)

	if !e.dispatched && len(e.subscribers) == 0 {
		delete(r.entries, id)
		r.rooms.CloseRoom(id)
		slog.Debug("dropped undispatched task after last subscriber left", "task_id", id)
	}
}

// Discard drops id if it was never dispatched and nobody is subscribed.
// It reports whether the entry was removed.
func (r *Registry) Discard(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok || e.dispatched || len(e.subscribers) > 0 {
		return false
	}
	delete(r.entries, id)
	r.rooms.CloseRoom(id)
	return true
}

// Claim marks id as dispatched so it cannot be started twice.
func (r *Registry) Claim(id, namespace string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.lookup(id, namespace)
	if !ok {
		return fmt.Errorf("claim %q in %s: %w", id, namespace, ErrNotFound)
	}
	if e.dispatched {
		return fmt.Errorf("claim %q: %w", id, ErrAlreadyDispatched)
	}
	e.dispatched = true
	return nil
}

// Publish sends a non-terminal event to every subscriber of id.
// It reports false when id is no longer admitted. Publishing happens under
// the registry lock so nothing can be delivered after the terminal event.
func (r *Registry) Publish(id, event string, data any) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[id]; !ok {
		return false
	}
	r.rooms.Publish(id, event, Payload{TaskID: id, Data: data})
	return true
}

// Retire removes id and publishes the final event. Only the caller that
// observes the entry performs the publish; every later call returns false.
func (r *Registry) Retire(id, event string, data any) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[id]; !ok {
		return false
	}
	delete(r.entries, id)
	r.rooms.Publish(id, event, Payload{TaskID: id, Data: data})
	r.rooms.CloseRoom(id)
	return true
}

// Has reports whether id is currently admitted.
func (r *Registry) Has(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[id]
	return ok
}

// Subscribers returns the connection ids joined to id, sorted.
func (r *Registry) Subscribers(id string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(e.subscribers))
	for c := range e.subscribers {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of admitted tasks.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// EntrySnapshot is a read-only copy of one registry entry.
type EntrySnapshot struct {
	TaskID      string
	Namespace   string
	Subscribers int
	Dispatched  bool
	AdmittedAt  time.Time
}

// Age returns how long the task has been admitted.
func (s EntrySnapshot) Age() time.Duration {
	return time.Since(s.AdmittedAt)
}

// Snapshot returns every admitted task, oldest first.
func (r *Registry) Snapshot() []EntrySnapshot {
	r.mu.Lock()
	out := make([]EntrySnapshot, 0, len(r.entries))
	for id, e := range r.entries {
		out = append(out, EntrySnapshot{
			TaskID:      id,
			Namespace:   e.namespace,
			Subscribers: len(e.subscribers),
			Dispatched:  e.dispatched,
			AdmittedAt:  e.admittedAt,
		})
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].AdmittedAt.Equal(out[j].AdmittedAt) {
			return out[i].TaskID < out[j].TaskID
		}
		return out[i].AdmittedAt.Before(out[j].AdmittedAt)
	})
	return out
}
