package tasktools

import (
	"encoding/json"

	"github.com/rhuss/todoflow/pkg/tools"
)

func schema(required []string, props map[string]any) json.RawMessage {
	all := map[string]any{"user_id": map[string]any{"type": "string", "description": "The ID of the current user"}}
	for k, v := range props {
		all[k] = v
	}
	data, _ := json.Marshal(map[string]any{
		"type":       "object",
		"properties": all,
		"required":   append([]string{"user_id"}, required...),
	})
	return data
}

func str(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

var taskID = str("The task's UUID, taken from list_tasks")

var descriptors = []tools.Descriptor{
	{
		Name: ListTasks,
		Description: "REQUIRED: List all tasks for the current user. Use 'search' parameter to find tasks by name " +
			"(e.g., search='buy milk' to find tasks containing 'buy milk'). Use this BEFORE update/delete operations " +
			"to get the task_id. Returns a list of task objects with id, title, description, and completed status.",
		Parameters: schema(nil, map[string]any{
			"filter_status": map[string]any{"type": "string", "enum": []string{"completed", "pending"}, "description": "Only return completed or pending tasks"},
			"sort_by":       map[string]any{"type": "string", "enum": []string{"created_at", "title", "updated_at"}, "description": "Sort order, newest first for dates"},
			"search":        str("Case-insensitive text to match in title or description"),
		}),
	},
	{
		Name: CreateTask,
		Description: "REQUIRED: Create a new task with the given title and optional description. Call this when user " +
			"says 'add task', 'create task', 'remind me to', etc. Returns the created task object.",
		Parameters: schema([]string{"title"}, map[string]any{
			"title":       str("Task title, 1 to 255 characters"),
			"description": str("Optional details"),
		}),
	},
	{
		Name: UpdateTask,
		Description: "REQUIRED: Update an existing task by task_id. You can update title, description, or completed " +
			"status. Call list_tasks with search parameter FIRST to find the task_id if user refers to task by name. " +
			"Returns the updated task object.",
		Parameters: schema([]string{"task_id"}, map[string]any{
			"task_id":     taskID,
			"title":       str("New title"),
			"description": str("New description"),
			"completed":   map[string]any{"type": "boolean", "description": "New completion status"},
		}),
	},
	{
		Name: DeleteTask,
		Description: "REQUIRED: Delete a task by task_id. Call list_tasks with search parameter FIRST to find the " +
			"task_id if user refers to task by name. Returns success confirmation.",
		Parameters: schema([]string{"task_id"}, map[string]any{"task_id": taskID}),
	},
	{
		Name: GetTaskDetails,
		Description: "Fetch complete details for a specific task by task_id. Use this when you need full " +
			"information about one specific task.",
		Parameters: schema([]string{"task_id"}, map[string]any{"task_id": taskID}),
	},
	{
		Name: ToggleTask,
		Description: "REQUIRED: Toggle a task between completed and pending status. Call list_tasks with search " +
			"parameter FIRST to find the task_id if user refers to task by name. Use this for 'mark as done' or " +
			"'mark as pending' requests.",
		Parameters: schema([]string{"task_id"}, map[string]any{"task_id": taskID}),
	},
	{
		Name:        CheckAPIQuota,
		Description: "Check the AI agent's current API quota and system health.",
		Parameters:  schema(nil, nil),
	},
}
