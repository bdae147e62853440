package main

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/btouchard/taskcast/internal/config"
	"github.com/btouchard/taskcast/internal/request"
	"github.com/btouchard/taskcast/internal/task"
)

const maxCountdown = 300

// countdown is a long-running demo task: it reports one progress event per
// tick and can be stopped early through the terminate route.
type countdown struct {
	tick time.Duration

	mu    sync.Mutex
	stops map[string]chan struct{}
}

func newCountdown(tick time.Duration) *countdown {
	return &countdown{tick: tick, stops: make(map[string]chan struct{})}
}

// preprocess approves with the parsed number of seconds.
func (c *countdown) preprocess(taskID string, req *request.Request, approve, reject task.Callback) {
	raw := ""
	switch v := req.JSON["seconds"].(type) {
	case float64:
		raw = strconv.Itoa(int(v))
	case string:
		raw = v
	}
	if raw == "" {
		raw = req.Form.Get("seconds")
	}
	if raw == "" {
		raw = req.Args.Get("seconds")
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > maxCountdown {
		reject(fmt.Sprintf("seconds must be an integer between 1 and %d", maxCountdown))
		return
	}
	approve(n)
}

func (c *countdown) run(taskID string, data any, onProgress, onSuccess, onError, onTerminate task.Callback) {
	n, ok := data.(int)
	if !ok {
		onError("invalid countdown")
		return
	}

	stop := make(chan struct{})
	c.mu.Lock()
	c.stops[taskID] = stop
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.stops, taskID)
		c.mu.Unlock()
	}()

	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	for remaining := n; remaining > 0; {
		select {
		case <-stop:
			onTerminate(map[string]any{"remaining": remaining})
			return
		case <-ticker.C:
			remaining--
			onProgress(map[string]any{"remaining": remaining, "total": n})
		}
	}
	onSuccess(map[string]any{"total": n})
}

// terminate signals the running countdown. It refuses tasks that have not started.
func (c *countdown) terminate(taskID string) task.Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	stop, ok := c.stops[taskID]
	if !ok {
		return task.ResultWithData(false, "countdown is not running")
	}
	delete(c.stops, taskID)
	close(stop)
	return task.Done()
}

// echo reports the request payload straight back as its success event.
func echo(taskID string, data any, _, onSuccess task.Callback) {
	req, ok := data.(*request.Request)
	if !ok {
		onSuccess(data)
		return
	}
	if len(req.JSON) > 0 {
		onSuccess(req.JSON)
		return
	}
	out := make(map[string]string)
	for k := range req.Form {
		out[k] = req.Form.Get(k)
	}
	for k := range req.Args {
		if k == "task_id" {
			continue
		}
		out[k] = req.Args.Get(k)
	}
	onSuccess(out)
}

// demoRegistrations builds the bundled task types from the configured defaults.
func demoRegistrations(cfg config.TasksConfig, tick time.Duration) []*task.Registration {
	cd := newCountdown(tick)
	return []*task.Registration{
		{
			Name:             "countdown",
			Route:            cfg.Route,
			Methods:          cfg.Methods,
			TerminateRoute:   cfg.TerminateRoute,
			TerminateMethods: cfg.TerminateMethods,
			Namespace:        cfg.Namespace,
			Lock:             task.LockScope(cfg.LockScope),
			TerminateEvent:   cfg.TerminateEvent,
			Func:             task.Fn6(cd.run),
			Preprocessor:     cd.preprocess,
			Terminator:       cd.terminate,
		},
		{
			Name:      "echo",
			Route:     "/echo",
			Methods:   cfg.Methods,
			Namespace: cfg.Namespace,
			Lock:      task.LockScope(cfg.LockScope),
			Func:      task.Fn4(echo),
		},
	}
}
