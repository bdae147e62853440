package task

// Callback receives the data a task function reports at a lifecycle step.
// A nil data publishes the bare {task_id} payload.
type Callback func(data any)

// callbacks is the fixed set of lifecycle hooks handed to a task function.
type callbacks struct {
	progress  Callback
	success   Callback
	fail      Callback
	terminate Callback
}

// Func is a task function of one of the fixed arities Fn0 … Fn6.
// Each variant receives a prefix of
// (taskID, data, onProgress, onSuccess, onError, onTerminate).
type Func interface {
	invoke(taskID string, data any, cb callbacks)
}

type (
	Fn0 func()
	Fn1 func(taskID string)
	Fn2 func(taskID string, data any)
	Fn3 func(taskID string, data any, onProgress Callback)
	Fn4 func(taskID string, data any, onProgress, onSuccess Callback)
	Fn5 func(taskID string, data any, onProgress, onSuccess, onError Callback)
	Fn6 func(taskID string, data any, onProgress, onSuccess, onError, onTerminate Callback)
)

func (f Fn0) invoke(string, any, callbacks) { f() }

func (f Fn1) invoke(id string, _ any, _ callbacks) { f(id) }

func (f Fn2) invoke(id string, data any, _ callbacks) { f(id, data) }

func (f Fn3) invoke(id string, data any, cb callbacks) {
	f(id, data, cb.progress)
}

func (f Fn4) invoke(id string, data any, cb callbacks) {
	f(id, data, cb.progress, cb.success)
}

func (f Fn5) invoke(id string, data any, cb callbacks) {
	f(id, data, cb.progress, cb.success, cb.fail)
}

func (f Fn6) invoke(id string, data any, cb callbacks) {
	f(id, data, cb.progress, cb.success, cb.fail, cb.terminate)
}

// isNilFunc reports whether fn is nil or wraps a nil function value.
func isNilFunc(fn Func) bool {
	switch f := fn.(type) {
	case nil:
		return true
	case Fn0:
		return f == nil
	case Fn1:
		return f == nil
	case Fn2:
		return f == nil
	case Fn3:
		return f == nil
	case Fn4:
		return f == nil
	case Fn5:
		return f == nil
	case Fn6:
		return f == nil
	}
	return false
}
