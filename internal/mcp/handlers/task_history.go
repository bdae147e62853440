package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/taskcast/internal/store"
)

// TaskHistory returns a handler that reads the lifecycle audit trail,
// either for one task or across recent tasks.
func TaskHistory(hr HistoryReader) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()

		limit := 50
		if l, ok := args["limit"].(float64); ok && l > 0 {
			limit = int(l)
		}

		var (
			events []store.TaskEvent
			err    error
		)
		if taskID, _ := args["task_id"].(string); taskID != "" {
			events, err = hr.GetEvents(taskID, limit)
		} else {
			f := store.EventFilter{Limit: limit}
			f.Task, _ = args["task"].(string)
			f.EventType, _ = args["event_type"].(string)
			if since, ok := args["since"].(string); ok && since != "" {
				t, perr := time.Parse(time.RFC3339, since)
				if perr != nil {
					return mcp.NewToolResultError("since must be an RFC 3339 timestamp"), nil
				}
				f.Since = t
			}
			events, err = hr.ListRecent(f)
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to read history: %s", err)), nil
		}

		if len(events) == 0 {
			return mcp.NewToolResultText("No history found."), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "📜 History (%d events)\n\n", len(events))
		for _, e := range events {
			fmt.Fprintf(&sb, "%s  %s  %s", e.CreatedAt.Local().Format("2006-01-02 15:04:05"), e.TaskID, e.EventType)
			if e.Name != "" {
				fmt.Fprintf(&sb, " [%s]", e.Name)
			}
			if e.Task != "" {
				fmt.Fprintf(&sb, " (%s)", e.Task)
			}
			sb.WriteString("\n")
		}

		return mcp.NewToolResultText(sb.String()), nil
	}
}
