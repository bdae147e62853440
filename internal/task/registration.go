package task

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
)

// LockScope selects how worker executions are serialized.
type LockScope string

const (
	LockNone   LockScope = "none"
	LockTask   LockScope = "task"   // one mutex per dispatch
	LockShared LockScope = "shared" // one mutex per registration
)

// Default routes and event names.
const (
	DefaultRoute          = "/dispose"
	DefaultTerminateRoute = "/terminate"
	DefaultNamespace      = "/status"
	DefaultTerminateEvent = EventTerminate
)

// ErrInvalidRegistration is returned by Register for incomplete registrations.
var ErrInvalidRegistration = errors.New("invalid task registration")

// Registration binds a task function to its dispatch and terminate routes.
type Registration struct {
	Name string

	Route            string   // dispatch route, default /dispose
	Methods          []string // default POST
	TerminateRoute   string   // default /terminate
	TerminateMethods []string // default POST
	Namespace        string   // subscription channel path, default /status

	Lock           LockScope // default task
	TerminateEvent string    // default "terminate"

	Func         Func
	Preprocessor Preprocessor  // optional
	Terminator   TerminateFunc // optional; without it no terminate route is mounted

	shared sync.Mutex
}

// normalize fills defaults and validates the registration.
func (r *Registration) normalize() error {
	if r.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRegistration)
	}
	if isNilFunc(r.Func) {
		return fmt.Errorf("%w: %q has no task function", ErrInvalidRegistration, r.Name)
	}
	if r.Route == "" {
		r.Route = DefaultRoute
	}
	if len(r.Methods) == 0 {
		r.Methods = []string{http.MethodPost}
	}
	if r.TerminateRoute == "" {
		r.TerminateRoute = DefaultTerminateRoute
	}
	if len(r.TerminateMethods) == 0 {
		r.TerminateMethods = []string{http.MethodPost}
	}
	if r.Namespace == "" {
		r.Namespace = DefaultNamespace
	}
	if r.TerminateEvent == "" {
		r.TerminateEvent = DefaultTerminateEvent
	}
	switch r.Lock {
	case "":
		r.Lock = LockTask
	case LockNone, LockTask, LockShared:
	default:
		return fmt.Errorf("%w: %q has unknown lock scope %q", ErrInvalidRegistration, r.Name, r.Lock)
	}
	return nil
}

// acquire takes the lock selected by the registration's scope for t.
func (r *Registration) acquire(t *Task) func() {
	switch r.Lock {
	case LockTask:
		t.lock.Lock()
		return t.lock.Unlock
	case LockShared:
		r.shared.Lock()
		return r.shared.Unlock
	default:
		return func() {}
	}
}
