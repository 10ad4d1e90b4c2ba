package tasktools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rhuss/todoflow/pkg/tools"
)

// NewMCPServer exposes the toolset as an MCP server. Results are JSON
// text content; domain errors are tool results with IsError set.
func NewMCPServer(ts *Toolset) *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{Name: "todoflow-tasks", Version: "v1.0.0"},
		nil,
	)
	for _, d := range ts.Tools() {
		var inputSchema map[string]any
		if err := json.Unmarshal(d.Parameters, &inputSchema); err != nil {
			panic(fmt.Sprintf("tasktools: invalid schema for %s: %v", d.Name, err))
		}
		server.AddTool(&mcp.Tool{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: inputSchema,
		}, ts.mcpHandler(d.Name))
	}
	return server
}

func (ts *Toolset) mcpHandler(name string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := map[string]any{}
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
				return errorResult("invalid arguments: " + err.Error()), nil
			}
		}

		result, err := ts.Call(ctx, name, args)
		if err != nil {
			if tools.IsDomainError(err) {
				return errorResult(err.Error()), nil
			}
			return nil, err
		}

		data, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("encoding %s result: %w", name, err)
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
		IsError: true,
	}
}
