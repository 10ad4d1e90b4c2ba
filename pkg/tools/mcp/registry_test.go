package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rhuss/todoflow/pkg/tools"
)

// connectTestServer starts an in-memory MCP server exposing the given
// tools and returns a connected Client.
func connectTestServer(t *testing.T, name string, serverTools map[string]mcp.ToolHandler) *Client {
	t.Helper()

	server := mcp.NewServer(&mcp.Implementation{Name: name, Version: "1.0.0"}, nil)
	for toolName, handler := range serverTools {
		server.AddTool(&mcp.Tool{
			Name:        toolName,
			Description: "Test tool: " + toolName,
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"user_id": map[string]any{"type": "string"}},
			},
		}, handler)
	}

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() {
		_ = server.Run(ctx, serverTransport)
	}()

	client := NewClient(ServerConfig{Name: name})
	if err := client.ConnectWithTransport(ctx, clientTransport); err != nil {
		t.Fatalf("ConnectWithTransport failed: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

func TestRegistry_ListTools(t *testing.T) {
	client := connectTestServer(t, "tasks", map[string]mcp.ToolHandler{
		"list_tasks": func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return textResult(`{"tasks":[]}`), nil
		},
		"create_task": func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return textResult(`{"task":{}}`), nil
		},
	})

	reg := NewRegistry(client)
	descs, err := reg.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools failed: %v", err)
	}
	if len(descs) != 2 {
		t.Fatalf("got %d tools, want 2", len(descs))
	}

	for _, d := range descs {
		var schema map[string]any
		if err := json.Unmarshal(d.Parameters, &schema); err != nil {
			t.Fatalf("tool %q has invalid schema: %v", d.Name, err)
		}
		if schema["type"] != "object" {
			t.Errorf("tool %q schema type = %v, want object", d.Name, schema["type"])
		}
	}
}

func TestRegistry_CallTool(t *testing.T) {
	client := connectTestServer(t, "tasks", map[string]mcp.ToolHandler{
		"echo_user": func(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args map[string]any
			if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
				return nil, err
			}
			return textResult("user=" + args["user_id"].(string)), nil
		},
	})

	reg := NewRegistry(client)
	got, err := reg.CallTool(context.Background(), "echo_user", map[string]any{"user_id": "alice"})
	if err != nil {
		t.Fatalf("CallTool failed: %v", err)
	}
	if got != "user=alice" {
		t.Errorf("got %v, want user=alice", got)
	}
}

func TestRegistry_ToolError(t *testing.T) {
	client := connectTestServer(t, "tasks", map[string]mcp.ToolHandler{
		"delete_task": func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			r := textResult("Task not found or unauthorized")
			r.IsError = true
			return r, nil
		},
	})

	reg := NewRegistry(client)
	_, err := reg.CallTool(context.Background(), "delete_task", map[string]any{})
	var de *tools.DomainError
	if !errors.As(err, &de) {
		t.Fatalf("got %v, want DomainError", err)
	}
	if de.Message != "Task not found or unauthorized" {
		t.Errorf("got message %q", de.Message)
	}
}

func TestRegistry_UnknownTool(t *testing.T) {
	client := connectTestServer(t, "tasks", map[string]mcp.ToolHandler{
		"list_tasks": func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return textResult("{}"), nil
		},
	})

	reg := NewRegistry(client)
	_, err := reg.CallTool(context.Background(), "drop_database", nil)
	if !errors.Is(err, tools.ErrToolNotFound) {
		t.Errorf("got %v, want ErrToolNotFound", err)
	}
}

func TestRegistry_MultiServer(t *testing.T) {
	first := connectTestServer(t, "first", map[string]mcp.ToolHandler{
		"shared": func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return textResult("first"), nil
		},
	})
	second := connectTestServer(t, "second", map[string]mcp.ToolHandler{
		"shared": func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return textResult("second"), nil
		},
		"only_second": func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return textResult("second only"), nil
		},
	})

	reg := NewRegistry(first, second)
	descs, err := reg.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools failed: %v", err)
	}
	if len(descs) != 2 {
		t.Errorf("got %d tools, want 2", len(descs))
	}

	got, _ := reg.CallTool(context.Background(), "shared", nil)
	if got != "first" {
		t.Errorf("shared routed to %v, want first", got)
	}
	got, _ = reg.CallTool(context.Background(), "only_second", nil)
	if got != "second only" {
		t.Errorf("only_second = %v, want second only", got)
	}
}

func TestRegistry_NotConnected(t *testing.T) {
	reg := NewRegistry(NewClient(ServerConfig{Name: "offline"}))
	if _, err := reg.ListTools(context.Background()); err == nil {
		t.Error("expected discovery error when no server is connected")
	}
}

func TestCreateTransport(t *testing.T) {
	tests := []struct {
		transport string
		wantErr   bool
	}{
		{transport: ""},
		{transport: "streamable-http"},
		{transport: "sse"},
		{transport: "websocket", wantErr: true},
	}
	for _, tt := range tests {
		c := NewClient(ServerConfig{Name: "x", URL: "http://localhost:8081/mcp", Transport: tt.transport})
		_, err := c.createTransport()
		if (err != nil) != tt.wantErr {
			t.Errorf("transport %q: got err %v, wantErr %v", tt.transport, err, tt.wantErr)
		}
	}
}
