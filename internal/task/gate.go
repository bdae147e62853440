package task

import (
	"errors"
	"sync"

	"github.com/btouchard/taskcast/internal/request"
)

var (
	// ErrDoubleCallback is the panic value when approve or reject is called twice.
	ErrDoubleCallback = errors.New("preprocessor decided more than once")
	// ErrGateClosed is the panic value when approve or reject is called after
	// the preprocessor has returned.
	ErrGateClosed = errors.New("preprocessor callback used after return")
)

// Preprocessor runs synchronously before a worker is started. It may call
// approve or reject at most once, before returning. Returning without a
// decision approves the task with the original request.
type Preprocessor func(taskID string, req *request.Request, approve, reject Callback)

// gate holds the decision of one preprocessor invocation.
type gate struct {
	mu       sync.Mutex
	decided  bool
	accepted bool
	closed   bool
	payload  any
}

func (g *gate) decide(accepted bool) Callback {
	return func(data any) {
		g.mu.Lock()
		defer g.mu.Unlock()

		if g.closed {
			panic(ErrGateClosed)
		}
		if g.decided {
			panic(ErrDoubleCallback)
		}
		g.decided = true
		g.accepted = accepted
		g.payload = data
	}
}

// runGate calls pre and returns the data for the worker, or the rejection
// payload with rejected set.
func runGate(pre Preprocessor, taskID string, req *request.Request) (data any, rejected bool) {
	g := &gate{}
	pre(taskID, req, g.decide(true), g.decide(false))

	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true

	switch {
	case !g.decided:
		return req, false
	case !g.accepted:
		return g.payload, true
	case g.payload == nil:
		return req, false
	default:
		return g.payload, false
	}
}
