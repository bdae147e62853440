package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/taskcast/internal/mcp/handlers"
)

func registerTools(s *server.MCPServer, deps *Deps) {
	// list_tasks: tasks currently held by the registry
	s.AddTool(
		mcp.NewTool("list_tasks",
			mcp.WithDescription("List admitted tasks with their state and subscriber count."),
			mcp.WithString("state",
				mcp.Description("Filter by state"),
				mcp.Enum("all", "admitted", "dispatched", "running", "orphaned"),
			),
			mcp.WithString("task",
				mcp.Description("Filter by task type name"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of tasks to return (default: 20)"),
			),
		),
		handlers.ListTasks(deps.Tasks),
	)

	// check_task: one task's state
	s.AddTool(
		mcp.NewTool("check_task",
			mcp.WithDescription("Check the current state of an admitted task."),
			mcp.WithString("task_id",
				mcp.Required(),
				mcp.Description("The task ID issued at channel connect"),
			),
		),
		handlers.CheckTask(deps.Tasks),
	)

	// terminate_task: run the type's terminator
	s.AddTool(
		mcp.NewTool("terminate_task",
			mcp.WithDescription("Ask a dispatched task to stop. The task's type must define a terminator."),
			mcp.WithString("task_id",
				mcp.Required(),
				mcp.Description("The task ID to terminate"),
			),
		),
		handlers.TerminateTask(deps.Tasks),
	)

	// list_task_types: registered dispatch routes
	s.AddTool(
		mcp.NewTool("list_task_types",
			mcp.WithDescription("List registered task types with their routes, channel namespace and lock scope."),
		),
		handlers.ListTaskTypes(deps.Tasks),
	)

	if deps.History == nil {
		return
	}

	// task_history: lifecycle audit trail
	s.AddTool(
		mcp.NewTool("task_history",
			mcp.WithDescription("Read the lifecycle audit trail, for one task or across recent tasks."),
			mcp.WithString("task_id",
				mcp.Description("Specific task ID. If omitted, shows recent activity."),
			),
			mcp.WithString("task",
				mcp.Description("Filter recent activity by task type name"),
			),
			mcp.WithString("event_type",
				mcp.Description("Filter recent activity by event type (e.g. task.completed)"),
			),
			mcp.WithString("since",
				mcp.Description("RFC 3339 datetime — only events after this time"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of events to return (default: 50)"),
			),
		),
		handlers.TaskHistory(deps.History),
	)
}
