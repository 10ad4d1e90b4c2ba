// Package tasktools implements the task-management tools the assistant
// calls: list, create, update, delete, get, toggle and a quota probe.
// Every tool takes the caller's user_id and is scoped to it.
//
// The same Toolset is exposed in-process (as a registry.FunctionProvider)
// and over MCP (NewMCPServer).
package tasktools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rhuss/todoflow/pkg/tasks"
	"github.com/rhuss/todoflow/pkg/tools"
	"github.com/rhuss/todoflow/pkg/tools/registry"
)

// Tool names.
const (
	ListTasks      = "list_tasks"
	CreateTask     = "create_task"
	UpdateTask     = "update_task"
	DeleteTask     = "delete_task"
	GetTaskDetails = "get_task_details"
	ToggleTask     = "toggle_task"
	CheckAPIQuota  = "check_api_quota"
)

// Toolset serves the task tools over a tasks.Store.
type Toolset struct {
	store tasks.Store
	model string
}

// Ensure Toolset plugs into the in-process registry.
var _ registry.FunctionProvider = (*Toolset)(nil)

// New creates a Toolset. model is reported by check_api_quota.
func New(store tasks.Store, model string) *Toolset {
	return &Toolset{store: store, model: model}
}

// Name implements registry.FunctionProvider.
func (ts *Toolset) Name() string { return "tasks" }

// Tools returns the descriptors of all seven tools.
func (ts *Toolset) Tools() []tools.Descriptor {
	return descriptors
}

// Close implements registry.FunctionProvider.
func (ts *Toolset) Close() error { return nil }

// Call dispatches a tool by name. Store failures that the model should
// see (missing task, bad title, missing argument) come back as
// *tools.DomainError.
func (ts *Toolset) Call(ctx context.Context, name string, args map[string]any) (any, error) {
	userID, _ := args["user_id"].(string)
	if userID == "" {
		return nil, tools.NewDomainError("user_id is required")
	}

	var (
		result any
		err    error
	)
	switch name {
	case ListTasks:
		result, err = ts.listTasks(ctx, userID, args)
	case CreateTask:
		result, err = ts.createTask(ctx, userID, args)
	case UpdateTask:
		result, err = ts.updateTask(ctx, userID, args)
	case DeleteTask:
		result, err = ts.deleteTask(ctx, userID, args)
	case GetTaskDetails:
		result, err = ts.withTask(ctx, userID, args, ts.store.GetTask)
	case ToggleTask:
		result, err = ts.withTask(ctx, userID, args, ts.store.ToggleTask)
	case CheckAPIQuota:
		result = ts.checkQuota()
	default:
		return nil, fmt.Errorf("%w: %s", tools.ErrToolNotFound, name)
	}
	if err != nil {
		return nil, domainize(err)
	}
	return result, nil
}

// domainize maps the task store's sentinels to model-facing errors.
func domainize(err error) error {
	switch {
	case errors.Is(err, tasks.ErrNotFound), errors.Is(err, tasks.ErrInvalidTitle):
		return &tools.DomainError{Message: err.Error()}
	}
	return err
}

func (ts *Toolset) listTasks(ctx context.Context, userID string, args map[string]any) (any, error) {
	opts := tasks.ListOptions{
		Status: tasks.ParseStatus(stringArg(args, "filter_status")),
		SortBy: stringArg(args, "sort_by"),
		Search: stringArg(args, "search"),
	}
	list, err := ts.store.ListTasks(ctx, userID, opts)
	if err != nil {
		return nil, err
	}
	return map[string]any{"tasks": list}, nil
}

func (ts *Toolset) createTask(ctx context.Context, userID string, args map[string]any) (any, error) {
	title := stringArg(args, "title")
	if title == "" {
		return nil, tools.NewDomainError("title is required")
	}
	task, err := ts.store.CreateTask(ctx, userID, title, optionalString(args, "description"))
	if err != nil {
		return nil, err
	}
	return map[string]any{"task": task}, nil
}

func (ts *Toolset) updateTask(ctx context.Context, userID string, args map[string]any) (any, error) {
	patch := tasks.Patch{
		Title:       optionalString(args, "title"),
		Description: optionalString(args, "description"),
		Completed:   optionalBool(args, "completed"),
	}
	task, err := ts.store.UpdateTask(ctx, userID, stringArg(args, "task_id"), patch)
	if err != nil {
		return nil, err
	}
	return map[string]any{"task": task}, nil
}

func (ts *Toolset) deleteTask(ctx context.Context, userID string, args map[string]any) (any, error) {
	if err := ts.store.DeleteTask(ctx, userID, stringArg(args, "task_id")); err != nil {
		return nil, err
	}
	return map[string]any{"message": "Task deleted successfully"}, nil
}

func (ts *Toolset) withTask(ctx context.Context, userID string, args map[string]any,
	op func(ctx context.Context, userID, id string) (*tasks.Task, error),
) (any, error) {
	task, err := op(ctx, userID, stringArg(args, "task_id"))
	if err != nil {
		return nil, err
	}
	return map[string]any{"task": task}, nil
}

func (ts *Toolset) checkQuota() map[string]any {
	return map[string]any{
		"status":               "Healthy",
		"current_model":        ts.model,
		"quota_estimate":       "Good (using high-quota flash model)",
		"remaining_calls_hint": "Ample for standard task management. If errors occur, wait 60 seconds.",
	}
}

// stringArg returns args[key] as a string. Numbers are formatted; other
// types yield "".
func stringArg(args map[string]any, key string) string {
	switch v := args[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	}
	return ""
}

// optionalString is nil when key is absent or null.
func optionalString(args map[string]any, key string) *string {
	if v, ok := args[key]; !ok || v == nil {
		return nil
	}
	s := stringArg(args, key)
	return &s
}

// optionalBool accepts JSON booleans and the strings "true"/"false",
// which some models emit.
func optionalBool(args map[string]any, key string) *bool {
	switch v := args[key].(type) {
	case bool:
		return &v
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return &b
		}
	}
	return nil
}
