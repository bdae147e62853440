package notify

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentNotification struct {
	method string
	params map[string]any
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (f *fakeSender) SendNotificationToAllClients(method string, params map[string]any) {
	f.mu.Lock()
	f.sent = append(f.sent, sentNotification{method: method, params: params})
	f.mu.Unlock()
}

func (f *fakeSender) all() []sentNotification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentNotification(nil), f.sent...)
}

func TestMCPNotifier_Progress_IsDebounced(t *testing.T) {
	t.Parallel()
	sender := &fakeSender{}
	n := NewMCPNotifier(sender, time.Hour)

	n.Notify(Event{Type: TypeProgress, TaskID: "t1", Task: "countdown"})
	n.Notify(Event{Type: TypeProgress, TaskID: "t1", Task: "countdown"})
	n.Notify(Event{Type: TypeProgress, TaskID: "t2", Task: "countdown"})

	sent := sender.all()
	require.Len(t, sent, 2)
	assert.Equal(t, "notifications/progress", sent[0].method)
	assert.Equal(t, "t1", sent[0].params["progressToken"])
	assert.Equal(t, "t2", sent[1].params["progressToken"])
}

func TestMCPNotifier_Completed_ClearsDebounce(t *testing.T) {
	t.Parallel()
	sender := &fakeSender{}
	n := NewMCPNotifier(sender, time.Hour)

	n.Notify(Event{Type: TypeProgress, TaskID: "t1"})
	n.Notify(Event{Type: TypeCompleted, TaskID: "t1", Name: "success"})
	n.Notify(Event{Type: TypeProgress, TaskID: "t1"})

	assert.Len(t, sender.all(), 3)
}

func TestMCPNotifier_MessageLevels(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		event Event
		level string
	}{
		{"dispatched", Event{Type: TypeDispatched, TaskID: "t1"}, "info"},
		{"success", Event{Type: TypeCompleted, TaskID: "t1", Name: "success"}, "info"},
		{"error", Event{Type: TypeCompleted, TaskID: "t1", Name: "error"}, "warning"},
		{"rejected", Event{Type: TypeRejected, TaskID: "t1"}, "error"},
		{"orphaned", Event{Type: TypeOrphaned, TaskID: "t1"}, "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			sender := &fakeSender{}
			NewMCPNotifier(sender, 0).Notify(tt.event)

			sent := sender.all()
			require.Len(t, sent, 1)
			assert.Equal(t, "notifications/message", sent[0].method)
			assert.Equal(t, tt.level, sent[0].params["level"])
			data, ok := sent[0].params["data"].(map[string]any)
			require.True(t, ok)
			assert.Equal(t, tt.event.Type, data["type"])
			assert.Equal(t, "t1", data["task_id"])
		})
	}
}

func TestMCPNotifier_Admitted_IsNotForwarded(t *testing.T) {
	t.Parallel()
	sender := &fakeSender{}
	NewMCPNotifier(sender, 0).Notify(Event{Type: TypeAdmitted, TaskID: "t1"})
	assert.Empty(t, sender.all())
}
