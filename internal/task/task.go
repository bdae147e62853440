package task

import (
	"fmt"
	"sync"
	"time"
)

// Event names published on the subscription channel.
const (
	EventProgress  = "progress"
	EventSuccess   = "success"
	EventError     = "error"
	EventTerminate = "terminate"
)

// Task is the coordinator's record of one dispatched task.
type Task struct {
	mu sync.RWMutex

	ID   string
	Name string // registration name

	running      bool
	exited       bool // the task function returned or panicked
	panicked     bool
	DispatchedAt time.Time
	StartedAt    time.Time

	lock   sync.Mutex // LockTask scope
	reaper *time.Timer
}

func newTask(id, name string) *Task {
	return &Task{
		ID:           id,
		Name:         name,
		DispatchedAt: time.Now(),
	}
}

func (t *Task) setRunning(running bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = running
	if running {
		t.StartedAt = time.Now()
	}
}

// setExited records that the task function is no longer executing.
func (t *Task) setExited(panicked bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.exited = true
	t.panicked = panicked
	t.running = false
}

// armReaper starts the orphan timer unless one is already pending.
func (t *Task) armReaper(d time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.reaper == nil {
		t.reaper = time.AfterFunc(d, fn)
	}
}

// stopReaper cancels the orphan timer, if any.
func (t *Task) stopReaper() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.reaper != nil {
		t.reaper.Stop()
		t.reaper = nil
	}
}

// Snapshot is a read-only view of an admitted task.
type Snapshot struct {
	ID           string
	Name         string // empty until dispatched
	Namespace    string
	Subscribers  int
	Dispatched   bool
	Running      bool
	Orphaned     bool // the task function exited without a terminal event
	Panicked     bool // set with Orphaned when the exit was a panic
	AdmittedAt   time.Time
	DispatchedAt time.Time
	StartedAt    time.Time
}

// Age returns how long the task has been admitted.
func (s Snapshot) Age() time.Duration {
	return time.Since(s.AdmittedAt)
}

// FormatAge returns a human-readable age.
func (s Snapshot) FormatAge() string {
	d := s.Age()
	if d < time.Second {
		return "< 1s"
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}

// State returns a one-word summary for listings.
func (s Snapshot) State() string {
	switch {
	case s.Orphaned:
		return "orphaned"
	case s.Running:
		return "running"
	case s.Dispatched:
		return "dispatched"
	default:
		return "admitted"
	}
}
