// Package mcp provides a tools.Registry backed by one or more MCP
// (Model Context Protocol) servers. Tools are discovered lazily on the
// first ListTools or CallTool and calls are routed to the server that
// advertised them.
//
// The package wraps the official MCP Go SDK
// (github.com/modelcontextprotocol/go-sdk). Servers are reached over
// streamable HTTP or SSE; tests connect through in-memory transports.
package mcp
