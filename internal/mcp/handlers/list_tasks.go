package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/taskcast/internal/task"
)

// ListTasks returns a handler that lists admitted tasks with optional filters.
func ListTasks(tr TaskReader) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()

		state, _ := args["state"].(string)
		name, _ := args["task"].(string)
		limit := 20
		if l, ok := args["limit"].(float64); ok && l > 0 {
			limit = int(l)
		}

		var tasks []task.Snapshot
		for _, s := range tr.List() {
			if state != "" && state != "all" && s.State() != state {
				continue
			}
			if name != "" && s.Name != name {
				continue
			}
			tasks = append(tasks, s)
		}

		if len(tasks) == 0 {
			return mcp.NewToolResultText("No tasks found matching the given filters."), nil
		}

		total := len(tasks)
		if len(tasks) > limit {
			tasks = tasks[len(tasks)-limit:]
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "📋 Tasks (%d found", total)
		if total > len(tasks) {
			fmt.Fprintf(&sb, ", showing newest %d", len(tasks))
		}
		sb.WriteString(")\n\n")

		for _, s := range tasks {
			fmt.Fprintf(&sb, "%s **%s** — %s\n", stateIcon(s.State()), s.ID, s.State())
			if s.Name != "" {
				fmt.Fprintf(&sb, "  Type: %s\n", s.Name)
			}
			fmt.Fprintf(&sb, "  Subscribers: %d | Age: %s\n", s.Subscribers, s.FormatAge())
			sb.WriteString("\n")
		}

		return mcp.NewToolResultText(sb.String()), nil
	}
}

func stateIcon(state string) string {
	switch state {
	case "admitted":
		return "⏳"
	case "dispatched":
		return "📥"
	case "running":
		return "🔄"
	case "orphaned":
		return "⚠️"
	default:
		return "❓"
	}
}
