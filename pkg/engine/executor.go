package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/rhuss/todoflow/pkg/api"
	"github.com/rhuss/todoflow/pkg/debug"
	"github.com/rhuss/todoflow/pkg/observability"
	"github.com/rhuss/todoflow/pkg/provider"
	"github.com/rhuss/todoflow/pkg/tools"
)

// executeCalls runs the resolved calls in order. The context gains one
// assistant message listing every call, followed by one tool message
// per call in the same order.
func (e *Engine) executeCalls(ctx context.Context, sess *session, text string, calls []resolvedCall, em *emitter) {
	toolCalls := make([]provider.ProviderToolCall, 0, len(calls))
	for _, c := range calls {
		args := c.RawArguments
		if !json.Valid([]byte(args)) {
			args = "{}"
		}
		toolCalls = append(toolCalls, provider.ProviderToolCall{
			ID:   c.ID,
			Type: "function",
			Function: provider.ProviderFunctionCall{
				Name:      c.Name,
				Arguments: args,
			},
		})
	}
	sess.messages = append(sess.messages, provider.ProviderMessage{
		Role:      provider.RoleAssistant,
		Content:   text,
		ToolCalls: toolCalls,
	})

	for _, c := range calls {
		out := e.executeCall(ctx, sess.userID, c, em)
		sess.messages = append(sess.messages, provider.ProviderMessage{
			Role:       provider.RoleTool,
			Content:    out,
			ToolCallID: c.ID,
			Name:       c.Name,
		})
	}
}

// executeCall invokes one tool on behalf of userID and returns the text
// fed back to the model. Tool failures become {"error": ...} results.
func (e *Engine) executeCall(ctx context.Context, userID string, c resolvedCall, em *emitter) string {
	c.Arguments[identityParam] = userID

	em.emit(ctx, api.ToolCallEvent(api.ToolCallExecuting, c.Name))
	debug.Log("tools", "calling tool", "tool", c.Name, "call_id", c.ID)

	result, err := e.registry.CallTool(ctx, c.Name, c.Arguments)
	status := "success"
	if err != nil {
		if tools.IsDomainError(err) {
			status = "tool_error"
			debug.Log("tools", "tool returned an error", "tool", c.Name, "error", err)
		} else {
			status = "error"
			slog.Warn("tool call failed", "tool", c.Name, "call_id", c.ID, "error", err)
		}
		result = map[string]string{"error": err.Error()}
	}
	observability.ToolExecutionsTotal.WithLabelValues(c.Name, status).Inc()

	return serializeResult(result)
}

// serializeResult renders a tool result as text. Strings pass through
// unchanged; everything else is encoded as JSON.
func serializeResult(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
