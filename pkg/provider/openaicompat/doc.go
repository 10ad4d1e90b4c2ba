// Package openaicompat implements provider.Provider for any OpenAI-compatible
// Chat Completions backend (OpenAI, Gemini's OpenAI endpoint, DashScope,
// vLLM, LiteLLM). It handles request serialization, SSE chunk parsing and
// error mapping. Tool-call deltas are passed through as raw fragments;
// reassembly is the engine's job.
package openaicompat
