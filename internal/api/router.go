package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/btouchard/taskcast/internal/api/middleware"
	"github.com/btouchard/taskcast/internal/channel"
	"github.com/btouchard/taskcast/internal/config"
	"github.com/btouchard/taskcast/internal/task"
)

// Deps holds what the router mounts.
type Deps struct {
	Tasks         Coordinator
	Members       channel.Membership
	Hub           *channel.Hub
	Registrations []*task.Registration
	RateLimit     config.RateLimitConfig
	Origins       []string // allowed WebSocket origins, empty = any

	MCP      http.Handler // optional
	MCPRoute string
}

// NewRouter builds the HTTP surface: one dispatch and terminate route per
// registration, one WebSocket endpoint per channel namespace, /health and
// the optional MCP endpoint.
func NewRouter(deps Deps) (http.Handler, error) {
	h := &handlers{tasks: deps.Tasks}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.SecurityHeaders)

	r.Get("/health", h.health)

	seen := make(map[string]string)
	claim := func(method, path, owner string) error {
		key := method + " " + path
		if prev, ok := seen[key]; ok {
			return fmt.Errorf("route %s registered by both %s and %s", key, prev, owner)
		}
		seen[key] = owner
		return nil
	}

	origin := checkOrigin(deps.Origins)
	namespaces := make(map[string]bool)
	for _, reg := range deps.Registrations {
		if namespaces[reg.Namespace] {
			continue
		}
		namespaces[reg.Namespace] = true
		if err := claim(http.MethodGet, reg.Namespace, "channel namespace"); err != nil {
			return nil, err
		}
		r.Get(reg.Namespace, channel.NewHandler(deps.Hub, deps.Members, reg.Namespace, origin).ServeHTTP)
	}

	var mountErr error
	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(deps.RateLimit))

		for _, reg := range deps.Registrations {
			for _, m := range reg.Methods {
				if err := claim(m, reg.Route, reg.Name); err != nil {
					mountErr = err
					return
				}
				r.MethodFunc(m, reg.Route, h.dispatch(reg))
			}
			if reg.Terminator == nil {
				continue
			}
			for _, m := range reg.TerminateMethods {
				if err := claim(m, reg.TerminateRoute, reg.Name+" terminator"); err != nil {
					mountErr = err
					return
				}
				r.MethodFunc(m, reg.TerminateRoute, h.terminate(reg))
			}
		}

		if deps.MCP != nil {
			r.Handle(deps.MCPRoute, deps.MCP)
		}
	})
	if mountErr != nil {
		return nil, mountErr
	}

	return r, nil
}

// checkOrigin returns nil (accept all) when origins is empty.
func checkOrigin(origins []string) func(*http.Request) bool {
	if len(origins) == 0 {
		return nil
	}
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[strings.TrimSuffix(o, "/")] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed[origin]
	}
}
