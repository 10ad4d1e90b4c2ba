// Package provider defines the protocol-agnostic interface for streaming
// chat-completion backends. Each adapter (openaicompat, openai) handles
// its own backend protocol internally and yields raw Fragments, keeping
// wire details invisible to the engine.
package provider
