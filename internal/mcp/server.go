package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/taskcast/internal/mcp/handlers"
	"github.com/btouchard/taskcast/internal/task"
)

// Deps holds shared dependencies injected into MCP handlers.
type Deps struct {
	Tasks   *task.Manager
	History handlers.HistoryReader // nil when the audit database is disabled
	Version string
}

// NewServer creates and configures the MCP server with all tools registered.
func NewServer(deps *Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"Taskcast",
		deps.Version,
		server.WithToolCapabilities(true),
		server.WithLogging(),
	)

	registerTools(s, deps)

	return s
}
