package openaicompat

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"

	"github.com/rhuss/todoflow/pkg/api"
	"github.com/rhuss/todoflow/pkg/debug"
	"github.com/rhuss/todoflow/pkg/provider"
)

// maxLineSize bounds a single SSE line. Tool call arguments for large
// task lists can exceed bufio's 64 KiB default.
const maxLineSize = 1 << 20

// ParseSSEStream reads Chat Completions SSE chunks from the given reader,
// translates each chunk to a provider.Fragment, and sends it on ch.
// The channel is NOT closed by this function; the caller is responsible
// for closing it.
//
// SSE format expected:
//
//	data: {"id":"...","choices":[...]}\n
//	\n
//	data: [DONE]\n
//	\n
//
// Malformed chunks are logged and skipped. Context cancellation stops
// reading immediately.
func ParseSSEStream(ctx context.Context, body io.Reader, ch chan<- provider.Fragment) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		line := scanner.Text()

		// Lines that don't start with "data:" are ignored (empty lines,
		// comments starting with ":", event names).
		payload, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		payload = strings.TrimSpace(payload)

		if payload == "[DONE]" {
			return
		}

		var chunk ChatCompletionChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			slog.Warn("skipping malformed SSE chunk",
				"error", err.Error(),
				"data", debug.Truncate(payload, 200),
			)
			continue
		}

		frag, ok := TranslateChunk(&chunk)
		if !ok {
			continue
		}

		select {
		case ch <- frag:
		case <-ctx.Done():
			return
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return
		}
		select {
		case ch <- provider.Fragment{Err: api.NewServerError("SSE stream read error: " + err.Error())}:
		case <-ctx.Done():
		}
	}
}

// TranslateChunk converts a single ChatCompletionChunk into a Fragment.
// Only choices[0] is considered. It returns false when the chunk carries
// nothing the engine needs (role-only, usage-only, or finish-only chunks).
func TranslateChunk(chunk *ChatCompletionChunk) (provider.Fragment, bool) {
	if len(chunk.Choices) == 0 {
		return provider.Fragment{}, false
	}

	delta := chunk.Choices[0].Delta
	frag := provider.Fragment{Model: chunk.Model}

	if delta.Content != nil {
		frag.Content = *delta.Content
	}

	for _, raw := range delta.ToolCalls {
		var tc ChatChunkToolCall
		if err := json.Unmarshal(raw, &tc); err != nil {
			frag.ToolCalls = append(frag.ToolCalls, provider.ToolCallFragment{Err: err})
			continue
		}
		frag.ToolCalls = append(frag.ToolCalls, provider.ToolCallFragment{
			Index:     tc.Index,
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	if frag.Content == "" && len(frag.ToolCalls) == 0 {
		return provider.Fragment{}, false
	}
	return frag, true
}
