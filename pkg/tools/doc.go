// Package tools defines the tool registry contract the engine calls into.
// A Registry lists tool descriptors for the model and dispatches calls by
// name. Implementations live in subpackages: registry (in-process Go
// functions) and mcp (tools served by a remote MCP server).
//
// Tools signal expected failures (missing task, bad title) with a
// DomainError. The engine turns those, and ErrToolNotFound, into
// {"error": "..."} results the model can read.
package tools
