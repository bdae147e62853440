package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// CheckTask returns a handler that reports one task's current state.
func CheckTask(tr TaskReader) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()

		taskID, _ := args["task_id"].(string)
		if taskID == "" {
			return mcp.NewToolResultError("task_id is required"), nil
		}

		s, err := tr.Get(taskID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Task not found or already completed: %s", taskID)), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "%s Task %s — %s\n\n", stateIcon(s.State()), s.ID, s.State())
		if s.Name != "" {
			fmt.Fprintf(&sb, "Type: %s\n", s.Name)
		}
		if s.Namespace != "" {
			fmt.Fprintf(&sb, "Channel: %s\n", s.Namespace)
		}
		fmt.Fprintf(&sb, "Subscribers: %d\n", s.Subscribers)
		fmt.Fprintf(&sb, "Admitted: %s (%s ago)\n", s.AdmittedAt.Format("15:04:05"), s.FormatAge())
		if !s.DispatchedAt.IsZero() {
			fmt.Fprintf(&sb, "Dispatched: %s\n", s.DispatchedAt.Format("15:04:05"))
		}
		switch {
		case s.Orphaned && s.Panicked:
			sb.WriteString("\nThe task function panicked without reporting a result.\n")
		case s.Orphaned:
			sb.WriteString("\nThe task function returned without reporting a result.\n")
		}

		return mcp.NewToolResultText(sb.String()), nil
	}
}
