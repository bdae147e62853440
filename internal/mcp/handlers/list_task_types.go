package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// ListTaskTypes returns a handler describing every registered task type.
func ListTaskTypes(tl TypeLister) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		regs := tl.Registrations()
		if len(regs) == 0 {
			return mcp.NewToolResultText("No task types registered."), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "🧩 Task types (%d)\n\n", len(regs))
		for _, r := range regs {
			fmt.Fprintf(&sb, "**%s**\n", r.Name)
			fmt.Fprintf(&sb, "  Dispatch: %s %s\n", strings.Join(r.Methods, ","), r.Route)
			if r.Terminator != nil {
				fmt.Fprintf(&sb, "  Terminate: %s %s (event %q)\n", strings.Join(r.TerminateMethods, ","), r.TerminateRoute, r.TerminateEvent)
			}
			fmt.Fprintf(&sb, "  Channel: %s | Lock: %s | Preprocessor: %t\n", r.Namespace, r.Lock, r.Preprocessor != nil)
			sb.WriteString("\n")
		}

		return mcp.NewToolResultText(sb.String()), nil
	}
}
