// Package api defines the wire-level types shared by the TodoFlow engine,
// its providers and the HTTP transport.
//
// Core types:
//   - [ChatEvent]: one typed progress event on a chat stream (text, tool_call, done)
//   - [APIError]: structured error with type, code, param, and message
//
// The package has no external dependencies beyond ID generation and
// performs no I/O.
package api
