// Package transport defines the contract between client-facing adapters
// and the chat engine, plus the middleware that wraps it.
//
// A ChatRunner handles one user message and reports its progress as a
// sequence of api.ChatEvent values on an EventWriter. The sequence always
// ends with exactly one done event; failures are reported in-band as text
// events rather than as returned errors, so adapters never need a
// separate error path once streaming has started.
//
// # Middleware
//
// Middleware wraps a ChatRunner with cross-cutting concerns. The built-in
// set provides panic recovery, request ID assignment (X-Request-ID) and
// structured logging via log/slog.
//
// The HTTP binding lives in transport/http.
package transport
