package task

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/btouchard/taskcast/internal/notify"
	"github.com/btouchard/taskcast/internal/registry"
	"github.com/btouchard/taskcast/internal/request"
)

type published struct {
	room    string
	event   string
	payload registry.Payload
}

// recordingRooms is a registry.Rooms that records every published event.
type recordingRooms struct {
	mu     sync.Mutex
	events []published
}

func (r *recordingRooms) Join(string, string) error { return nil }

func (r *recordingRooms) Leave(string, string) {}

func (r *recordingRooms) CloseRoom(string) {}

func (r *recordingRooms) Publish(room, event string, payload registry.Payload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, published{room: room, event: event, payload: payload})
}

func (r *recordingRooms) forRoom(room string) []published {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []published
	for _, e := range r.events {
		if e.room == room {
			out = append(out, e)
		}
	}
	return out
}

// recordingNotifier collects lifecycle events synchronously.
type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *recordingNotifier) Notify(e notify.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func (n *recordingNotifier) types(taskID string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, e := range n.events {
		if e.TaskID == taskID {
			out = append(out, e.Type)
		}
	}
	return out
}

type fixture struct {
	manager  *Manager
	registry *registry.Registry
	rooms    *recordingRooms
	events   *recordingNotifier
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	rooms := &recordingRooms{}
	reg := registry.New(rooms)
	events := &recordingNotifier{}
	opts.Notifier = events
	m := NewManager(reg, opts)
	return &fixture{manager: m, registry: reg, rooms: rooms, events: events}
}

func (f *fixture) register(t *testing.T, r *Registration) *Registration {
	t.Helper()
	require.NoError(t, f.manager.Register(r))
	return r
}

// waitRetired blocks until taskID has left the registry.
func (f *fixture) waitRetired(t *testing.T, taskID string) {
	t.Helper()
	require.Eventually(t, func() bool { return !f.registry.Has(taskID) },
		5*time.Second, 5*time.Millisecond)
}

func reqWithID(id string) *request.Request {
	return &request.Request{JSON: map[string]any{"task_id": id}}
}

func emptyReq() *request.Request {
	return &request.Request{JSON: map[string]any{}}
}
