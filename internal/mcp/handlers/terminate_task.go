package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/taskcast/internal/registry"
	"github.com/btouchard/taskcast/internal/task"
)

// TerminateTask returns a handler that asks a dispatched task to stop.
func TerminateTask(tt TaskTerminator) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()

		taskID, _ := args["task_id"].(string)
		if taskID == "" {
			return mcp.NewToolResultError("task_id is required"), nil
		}

		body, err := tt.TerminateTask(taskID)
		switch {
		case err == nil:
		case errors.Is(err, registry.ErrNotFound):
			return mcp.NewToolResultError(fmt.Sprintf("Task not found or already completed: %s", taskID)), nil
		case errors.Is(err, task.ErrNotDispatched):
			return mcp.NewToolResultError(fmt.Sprintf("Task %s has not been dispatched yet", taskID)), nil
		case errors.Is(err, task.ErrNoTerminator):
			return mcp.NewToolResultError(fmt.Sprintf("Task %s cannot be terminated: its type has no terminator", taskID)), nil
		default:
			msg := fmt.Sprintf("Termination of %s refused", taskID)
			if body.Data != nil {
				msg += fmt.Sprintf(": %v", body.Data)
			}
			return mcp.NewToolResultError(msg), nil
		}

		msg := fmt.Sprintf("🛑 Termination requested for %s", taskID)
		if body.Data != nil {
			msg += fmt.Sprintf(" (%v)", body.Data)
		}
		return mcp.NewToolResultText(msg), nil
	}
}
