package api

import (
	"log/slog"
	"net/http"

	"github.com/btouchard/taskcast/internal/request"
	"github.com/btouchard/taskcast/internal/task"
)

// Coordinator is the task manager surface used by the HTTP handlers.
// Defined consumer-side per Go convention.
type Coordinator interface {
	Dispatch(r *task.Registration, req *request.Request) (task.Body, error)
	Terminate(r *task.Registration, req *request.Request) (task.Body, error)
	Len() int
}

type handlers struct {
	tasks Coordinator
}

// dispatch starts a task of type reg and answers without waiting for it.
func (h *handlers) dispatch(reg *task.Registration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := h.tasks.Dispatch(reg, request.FromHTTP(r))
		status := StatusCode(err)
		if err != nil {
			slog.Debug("dispatch refused",
				"task", reg.Name,
				"task_id", body.TaskID,
				"status", status,
				"error", err)
		}
		writeJSON(w, status, body)
	}
}

// terminate forwards a termination request to reg's terminator.
func (h *handlers) terminate(reg *task.Registration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := h.tasks.Terminate(reg, request.FromHTTP(r))
		status := StatusCode(err)
		if err != nil {
			slog.Debug("terminate refused",
				"task", reg.Name,
				"task_id", body.TaskID,
				"status", status,
				"error", err)
		}
		writeJSON(w, status, body)
	}
}

type healthResponse struct {
	Status string `json:"status"`
	Tasks  int    `json:"tasks"`
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Tasks: h.tasks.Len()})
}
