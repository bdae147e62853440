package task

// Body is the JSON body of dispatch and terminate responses.
type Body struct {
	TaskID string `json:"task_id"`
	Data   any    `json:"data,omitempty"`
}

// Outcome is what a TerminateFunc reports back to the terminate endpoint.
type Outcome struct {
	ok   bool
	data any
}

// Done reports a termination request that was handled.
func Done() Outcome {
	return Outcome{ok: true}
}

// Result reports whether the termination request succeeded.
func Result(ok bool) Outcome {
	return Outcome{ok: ok}
}

// ResultWithData reports success or failure along with data for the caller.
func ResultWithData(ok bool, data any) Outcome {
	return Outcome{ok: ok, data: data}
}

// OK reports whether the outcome is a success.
func (o Outcome) OK() bool { return o.ok }

// Data returns the data attached to the outcome, if any.
func (o Outcome) Data() any { return o.data }

// TerminateFunc asks a running task to stop. It is expected to make the
// worker call its terminate callback eventually; it must not block on that.
type TerminateFunc func(taskID string) Outcome
