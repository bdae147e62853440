package api

import (
	"errors"
	"net/http"

	"github.com/btouchard/taskcast/internal/registry"
	"github.com/btouchard/taskcast/internal/task"
)

// StatusCode maps coordinator errors to HTTP status codes.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK

	case errors.Is(err, registry.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, registry.ErrAlreadyDispatched):
		return http.StatusConflict

	case errors.Is(err, task.ErrWorkerPoolFull),
		errors.Is(err, task.ErrShuttingDown):
		return http.StatusServiceUnavailable

	case errors.Is(err, task.ErrNoTerminator):
		return http.StatusNotImplemented

	// Preprocessor rejections and failed terminations carry the caller's
	// payload with a plain 500.
	default:
		return http.StatusInternalServerError
	}
}
