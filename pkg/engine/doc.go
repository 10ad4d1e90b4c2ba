// Package engine runs one chat turn of the TodoFlow assistant.
//
// For each user message the engine assembles a context from the stored
// history, streams a model response, rebuilds the tool calls the model
// sends in fragments, executes them against a tools.Registry and feeds
// the results back, repeating until the model answers in plain text or
// the iteration bound is reached. Progress is reported as api.ChatEvent
// values; the final assistant text is persisted to the history store.
//
// Quota exhaustion on the configured model switches the rest of the turn
// to the first fallback model that accepts the request.
package engine
