package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/btouchard/taskcast/internal/notify"
	"github.com/btouchard/taskcast/internal/registry"
	"github.com/btouchard/taskcast/internal/request"
)

var (
	// ErrPreprocessRejected is returned by Dispatch when the preprocessor rejected the task.
	ErrPreprocessRejected = errors.New("task rejected by preprocessor")
	// ErrWorkerPoolFull is returned by Dispatch when max_workers workers are already running.
	ErrWorkerPoolFull = errors.New("worker pool full")
	// ErrShuttingDown is returned by Dispatch once Shutdown has been called.
	ErrShuttingDown = errors.New("task manager shutting down")
	// ErrTerminateFailed is returned by Terminate when the terminator reported failure.
	ErrTerminateFailed = errors.New("termination failed")
	// ErrNoTerminator is returned when the task type has no terminate function.
	ErrNoTerminator = errors.New("task type has no terminator")
	// ErrNotDispatched is returned by TerminateTask for a task that was admitted but never dispatched.
	ErrNotDispatched = errors.New("task not dispatched")
	// ErrUnknownRegistration is returned when a task type name is not registered.
	ErrUnknownRegistration = errors.New("unknown task type")
)

// Messages carried in the data field of synthesized responses and events.
const (
	AlreadyDispatchedMessage = "task already dispatched"
	PoolFullMessage          = "too many running tasks"
	ShuttingDownMessage      = "server shutting down"
	OrphanedMessage          = "task function exited without a result"
)

// EventNotifier receives lifecycle events.
// Defined consumer-side per Go convention.
type EventNotifier interface {
	Notify(event notify.Event)
}

// Options configures a Manager.
type Options struct {
	MaxWorkers int // 0 = unbounded
	// OrphanTimeout retires a task whose function exited (returned or
	// panicked) without a terminal event, once this long has passed since
	// the exit. Running workers are never timed out. 0 keeps orphans.
	OrphanTimeout time.Duration
	Notifier      EventNotifier
}

// Manager dispatches tasks to workers and wires their lifecycle callbacks
// to the registry. It also implements channel.Membership.
type Manager struct {
	registry      *registry.Registry
	notifier      EventNotifier
	orphanTimeout time.Duration

	mu            sync.Mutex
	registrations map[string]*Registration
	tasks         map[string]*Task
	closing       bool

	group *errgroup.Group
}

// NewManager creates a Manager publishing through reg.
func NewManager(reg *registry.Registry, opts Options) *Manager {
	g := &errgroup.Group{}
	if opts.MaxWorkers > 0 {
		g.SetLimit(opts.MaxWorkers)
	}
	return &Manager{
		registry:      reg,
		notifier:      opts.Notifier,
		orphanTimeout: opts.OrphanTimeout,
		registrations: make(map[string]*Registration),
		tasks:         make(map[string]*Task),
		group:         g,
	}
}

// Register validates r, fills its defaults and makes it available by name.
func (m *Manager) Register(r *Registration) error {
	if r == nil {
		return fmt.Errorf("%w: nil registration", ErrInvalidRegistration)
	}
	if err := r.normalize(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.registrations[r.Name]; ok {
		return fmt.Errorf("%w: %q registered twice", ErrInvalidRegistration, r.Name)
	}
	m.registrations[r.Name] = r

	slog.Info("task type registered",
		"task", r.Name,
		"route", r.Route,
		"namespace", r.Namespace,
		"lock", string(r.Lock),
		"preprocessor", r.Preprocessor != nil,
		"terminator", r.Terminator != nil)
	return nil
}

// Registration returns the registration with the given name.
func (m *Manager) Registration(name string) (*Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.registrations[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRegistration, name)
	}
	return r, nil
}

// Registrations returns every registration sorted by name.
func (m *Manager) Registrations() []*Registration {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Registration, 0, len(m.registrations))
	for _, r := range m.registrations {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// AdmitNew admits a fresh task id with no subscribers in the channel namespace.
func (m *Manager) AdmitNew(namespace string) (string, error) {
	id := uuid.NewString()
	if err := m.registry.Admit(id, namespace); err != nil {
		return "", err
	}
	m.emit(notify.TypeAdmitted, id, "", "")
	slog.Debug("task admitted", "task_id", id, "namespace", namespace)
	return id, nil
}

// Join subscribes a channel connection to taskID within namespace.
func (m *Manager) Join(namespace, taskID, connID string) error {
	return m.registry.Join(taskID, namespace, connID)
}

// Discard drops a task admitted at connect whose first subscriber never joined.
func (m *Manager) Discard(taskID string) {
	if m.registry.Discard(taskID) {
		slog.Debug("discarded unjoined task", "task_id", taskID)
	}
}

// Leave unsubscribes a channel connection from taskID.
func (m *Manager) Leave(taskID, connID string) {
	m.registry.Leave(taskID, connID)
}

// Dispatch starts the task named by req's task_id, or a new one when req
// carries none. It returns as soon as the worker is launched or the
// preprocessor rejected the task; it never waits for the worker.
func (m *Manager) Dispatch(r *Registration, req *request.Request) (Body, error) {
	id := req.TaskID()
	if id == "" {
		var err error
		if id, err = m.AdmitNew(r.Namespace); err != nil {
			return Body{}, fmt.Errorf("dispatch: %w", err)
		}
	}

	if err := m.registry.Claim(id, r.Namespace); err != nil {
		body := Body{TaskID: id, Data: registry.NotFoundMessage}
		if errors.Is(err, registry.ErrAlreadyDispatched) {
			body.Data = AlreadyDispatchedMessage
		}
		return body, fmt.Errorf("dispatch: %w", err)
	}

	t := newTask(id, r.Name)
	m.mu.Lock()
	m.tasks[id] = t
	m.mu.Unlock()

	m.emit(notify.TypeDispatched, id, r.Name, "")
	slog.Info("task dispatched", "task_id", id, "task", r.Name)

	var data any = req
	if r.Preprocessor != nil {
		var rejected bool
		data, rejected = m.preprocess(r, t, req)
		if rejected {
			m.retire(t, EventError, data, notify.TypeRejected)
			slog.Info("task rejected by preprocessor", "task_id", id, "task", r.Name)
			return Body{TaskID: id, Data: data}, fmt.Errorf("dispatch %q: %w", id, ErrPreprocessRejected)
		}
	}

	if err := m.spawn(r, t, data); err != nil {
		msg := PoolFullMessage
		if errors.Is(err, ErrShuttingDown) {
			msg = ShuttingDownMessage
		}
		m.retire(t, EventError, msg, notify.TypeCompleted)
		slog.Warn("task not started", "task_id", id, "task", r.Name, "error", err)
		return Body{TaskID: id, Data: msg}, fmt.Errorf("dispatch %q: %w", id, err)
	}

	return Body{TaskID: id}, nil
}

// preprocess runs the gate. A panicking preprocessor retires the task
// before the panic continues up the stack.
func (m *Manager) preprocess(r *Registration, t *Task, req *request.Request) (any, bool) {
	defer func() {
		if p := recover(); p != nil {
			m.retire(t, EventError, nil, notify.TypeRejected)
			slog.Error("preprocessor panicked", "task_id", t.ID, "task", r.Name, "panic", p)
			panic(p)
		}
	}()
	return runGate(r.Preprocessor, t.ID, req)
}

func (m *Manager) spawn(r *Registration, t *Task, data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closing {
		return ErrShuttingDown
	}

	ok := m.group.TryGo(func() error {
		m.run(r, t, data)
		return nil
	})
	if !ok {
		return ErrWorkerPoolFull
	}
	return nil
}

func (m *Manager) run(r *Registration, t *Task, data any) {
	defer func() {
		p := recover()
		if p != nil {
			slog.Error("task panicked",
				"task_id", t.ID,
				"task", t.Name,
				"panic", p)
		}
		m.settle(t, p != nil)
	}()

	unlock := r.acquire(t)
	defer unlock()

	t.setRunning(true)
	r.Func.invoke(t.ID, data, m.callbacks(r, t))
}

// settle runs after the task function has exited. A task still admitted at
// that point has no worker left to report its end: it is marked orphaned and,
// with an orphan timeout, retired later unless a callback retained by the
// function retires it first.
func (m *Manager) settle(t *Task, panicked bool) {
	t.setExited(panicked)
	if !m.registry.Has(t.ID) {
		return
	}

	m.emit(notify.TypeOrphaned, t.ID, t.Name, "")
	slog.Warn("task function exited without a terminal event",
		"task_id", t.ID,
		"task", t.Name,
		"panicked", panicked)

	if m.orphanTimeout > 0 {
		t.armReaper(m.orphanTimeout, func() { m.expire(t) })
		if !m.registry.Has(t.ID) {
			t.stopReaper()
		}
	}
}

func (m *Manager) callbacks(r *Registration, t *Task) callbacks {
	return callbacks{
		progress: func(data any) {
			if m.registry.Publish(t.ID, EventProgress, data) {
				m.emit(notify.TypeProgress, t.ID, t.Name, EventProgress)
			}
		},
		success:   m.terminal(t, EventSuccess),
		fail:      m.terminal(t, EventError),
		terminate: m.terminal(t, r.TerminateEvent),
	}
}

func (m *Manager) terminal(t *Task, event string) Callback {
	return func(data any) {
		m.retire(t, event, data, notify.TypeCompleted)
	}
}

// retire publishes the final event for t. Only the first call for a task has
// any effect.
func (m *Manager) retire(t *Task, event string, data any, eventType string) bool {
	if !m.registry.Retire(t.ID, event, data) {
		return false
	}
	t.stopReaper()

	m.mu.Lock()
	delete(m.tasks, t.ID)
	m.mu.Unlock()

	m.emit(eventType, t.ID, t.Name, event)
	slog.Info("task retired", "task_id", t.ID, "task", t.Name, "event", event)
	return true
}

func (m *Manager) expire(t *Task) {
	if m.retire(t, EventError, OrphanedMessage, notify.TypeOrphaned) {
		slog.Warn("orphaned task retired", "task_id", t.ID, "task", t.Name, "timeout", m.orphanTimeout)
	}
}

// Terminate invokes r's terminator for the task_id carried by req.
// The task is not retired here; the terminator is expected to make the
// worker call its terminate callback.
func (m *Manager) Terminate(r *Registration, req *request.Request) (Body, error) {
	return m.terminate(r, req.TaskID())
}

// TerminateTask terminates a dispatched task through its own registration.
func (m *Manager) TerminateTask(taskID string) (Body, error) {
	m.mu.Lock()
	t := m.tasks[taskID]
	var r *Registration
	if t != nil {
		r = m.registrations[t.Name]
	}
	m.mu.Unlock()

	if t == nil {
		if m.registry.Has(taskID) {
			return Body{TaskID: taskID}, fmt.Errorf("terminate %q: %w", taskID, ErrNotDispatched)
		}
		return Body{TaskID: taskID, Data: registry.NotFoundMessage},
			fmt.Errorf("terminate %q: %w", taskID, registry.ErrNotFound)
	}
	if r == nil {
		return Body{TaskID: taskID}, fmt.Errorf("terminate %q: %w: %q", taskID, ErrUnknownRegistration, t.Name)
	}
	return m.terminate(r, taskID)
}

func (m *Manager) terminate(r *Registration, taskID string) (Body, error) {
	if taskID == "" || !m.registry.Has(taskID) {
		return Body{TaskID: taskID, Data: registry.NotFoundMessage},
			fmt.Errorf("terminate %q: %w", taskID, registry.ErrNotFound)
	}
	if r.Terminator == nil {
		return Body{TaskID: taskID}, fmt.Errorf("terminate %q: %w", taskID, ErrNoTerminator)
	}

	out := r.Terminator(taskID)
	body := Body{TaskID: taskID, Data: out.data}

	slog.Info("termination requested", "task_id", taskID, "task", r.Name, "ok", out.ok)
	if !out.ok {
		return body, fmt.Errorf("terminate %q: %w", taskID, ErrTerminateFailed)
	}
	return body, nil
}

// Get returns the snapshot of one admitted task.
func (m *Manager) Get(taskID string) (Snapshot, error) {
	for _, s := range m.List() {
		if s.ID == taskID {
			return s, nil
		}
	}
	return Snapshot{}, fmt.Errorf("get %q: %w", taskID, registry.ErrNotFound)
}

// List returns every admitted task, oldest first.
func (m *Manager) List() []Snapshot {
	entries := m.registry.Snapshot()

	m.mu.Lock()
	tasks := make(map[string]*Task, len(m.tasks))
	for id, t := range m.tasks {
		tasks[id] = t
	}
	m.mu.Unlock()

	out := make([]Snapshot, 0, len(entries))
	for _, e := range entries {
		s := Snapshot{
			ID:          e.TaskID,
			Namespace:   e.Namespace,
			Subscribers: e.Subscribers,
			Dispatched:  e.Dispatched,
			AdmittedAt:  e.AdmittedAt,
		}
		if t, ok := tasks[e.TaskID]; ok {
			t.mu.RLock()
			s.Name = t.Name
			s.Running = t.running
			s.Orphaned = t.exited
			s.Panicked = t.panicked
			s.DispatchedAt = t.DispatchedAt
			s.StartedAt = t.StartedAt
			t.mu.RUnlock()
		}
		out = append(out, s)
	}
	return out
}

// Len returns the number of admitted tasks.
func (m *Manager) Len() int {
	return m.registry.Len()
}

// Shutdown stops accepting dispatches and waits for running workers until
// ctx is done. Workers are never interrupted.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closing = true
	for _, t := range m.tasks {
		t.stopReaper()
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = m.group.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for workers: %w", ctx.Err())
	}
}

func (m *Manager) emit(eventType, taskID, name, event string) {
	if m.notifier == nil {
		return
	}
	m.notifier.Notify(notify.Event{
		Type:   eventType,
		TaskID: taskID,
		Task:   name,
		Name:   event,
	})
}
