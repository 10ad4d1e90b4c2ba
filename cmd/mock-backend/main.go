// Command mock-backend runs a deterministic Chat Completions server for
// exercising the agent loop without a real model. Streaming responses
// split tool calls across several chunks the way hosted backends do.
//
// Behaviour by last message:
//
//	tool result             - a short text reply quoting the result
//	"add ..." / "create ..." - a create_task call with the rest as title
//	"show" / "list"          - a list_tasks call
//	"delete X" / "done X"    - a list_tasks call searching for X
//	anything else            - a fixed greeting
//
// Configuration:
//
//	MOCK_PORT         - listen port (default: 9090)
//	MOCK_QUOTA_MODELS - comma-separated models that answer 429
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
)

func main() {
	port := os.Getenv("MOCK_PORT")
	if port == "" {
		port = "9090"
	}

	srv := &http.Server{Addr: ":" + port, Handler: newMux(splitList(os.Getenv("MOCK_QUOTA_MODELS")))}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock backend starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mock backend failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock backend shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

func newMux(quotaModels []string) *http.ServeMux {
	exhausted := make(map[string]bool, len(quotaModels))
	for _, m := range quotaModels {
		exhausted[m] = true
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		handleChatCompletions(w, r, exhausted)
	})
	mux.HandleFunc("GET /v1/models", handleModels)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok\n"))
	})
	return mux
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Tools    []any         `json:"tools,omitempty"`
	Stream   bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// text returns the message content as plain text. The SDK may send
// content as an array of text parts.
func (m chatMessage) text() string {
	switch v := m.Content.(type) {
	case string:
		return v
	case []any:
		var b strings.Builder
		for _, part := range v {
			if p, ok := part.(map[string]any); ok {
				if t, ok := p["text"].(string); ok {
					b.WriteString(t)
				}
			}
		}
		return b.String()
	}
	return ""
}

// plannedCall is a tool call the mock decided to make.
type plannedCall struct {
	name string
	args string
}

func handleChatCompletions(w http.ResponseWriter, r *http.Request, exhausted map[string]bool) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body")
		return
	}
	if exhausted[req.Model] {
		writeError(w, http.StatusTooManyRequests, "rate_limit_error", fmt.Sprintf("quota exceeded for model %s", req.Model))
		return
	}
	if !req.Stream {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "mock backend only supports stream=true")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	model := req.Model
	if model == "" {
		model = "mock-model"
	}

	emit := func(delta map[string]any, finish any) {
		chunk := map[string]any{
			"id":      "chatcmpl-mock-stream",
			"object":  "chat.completion.chunk",
			"model":   model,
			"choices": []any{map[string]any{"index": 0, "delta": delta, "finish_reason": finish}},
		}
		data, _ := json.Marshal(chunk)
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	emit(map[string]any{"role": "assistant"}, nil)

	if call, ok := planCall(&req); ok && len(req.Tools) > 0 {
		for _, d := range fragmentCall(call) {
			emit(d, nil)
		}
		emit(map[string]any{}, "tool_calls")
	} else {
		for _, token := range tokenize(replyText(&req)) {
			emit(map[string]any{"content": token}, nil)
		}
		emit(map[string]any{}, "stop")
	}

	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// planCall picks a tool call for the last user turn. A trailing tool
// result means the calls are done and the mock answers in text.
func planCall(req *chatRequest) (plannedCall, bool) {
	if n := len(req.Messages); n > 0 && req.Messages[n-1].Role == "tool" {
		return plannedCall{}, false
	}
	text := strings.TrimSpace(lastUserMessage(req))
	lower := strings.ToLower(text)

	switch {
	case hasVerb(lower, "add", "create"):
		title := strings.TrimSpace(text[strings.IndexByte(text, ' ')+1:])
		title = strings.TrimPrefix(strings.TrimPrefix(title, "task "), "a task ")
		return plannedCall{name: "create_task", args: mustJSON(map[string]any{"title": title})}, true
	case hasVerb(lower, "delete", "remove", "done", "complete"):
		search := strings.TrimSpace(text[strings.IndexByte(text, ' ')+1:])
		return plannedCall{name: "list_tasks", args: mustJSON(map[string]any{"search": search})}, true
	case strings.Contains(lower, "show") || strings.Contains(lower, "list"):
		return plannedCall{name: "list_tasks", args: "{}"}, true
	}
	return plannedCall{}, false
}

func hasVerb(lower string, verbs ...string) bool {
	for _, v := range verbs {
		if strings.HasPrefix(lower, v+" ") {
			return true
		}
	}
	return false
}

// fragmentCall splits one call into the deltas a hosted backend sends:
// the id with the first half of the name, the rest of the name, then the
// arguments in two pieces.
func fragmentCall(call plannedCall) []map[string]any {
	half := len(call.name) / 2
	argHalf := len(call.args) / 2
	delta := func(fields map[string]any) map[string]any {
		fields["index"] = 0
		return map[string]any{"tool_calls": []any{fields}}
	}
	return []map[string]any{
		delta(map[string]any{"id": "call_mock_1", "type": "function", "function": map[string]any{"name": call.name[:half]}}),
		delta(map[string]any{"function": map[string]any{"name": call.name[half:]}}),
		delta(map[string]any{"function": map[string]any{"arguments": call.args[:argHalf]}}),
		delta(map[string]any{"function": map[string]any{"arguments": call.args[argHalf:]}}),
	}
}

func replyText(req *chatRequest) string {
	if n := len(req.Messages); n > 0 && req.Messages[n-1].Role == "tool" {
		result := req.Messages[n-1].text()
		if len(result) > 200 {
			result = result[:200] + "..."
		}
		return "Done! Result: " + result
	}
	return "Hello! I can add, list, update and delete your tasks."
}

// tokenize splits text into word-sized content deltas.
func tokenize(text string) []string {
	var tokens []string
	for i, word := range strings.Split(text, " ") {
		if i > 0 {
			word = " " + word
		}
		tokens = append(tokens, word)
	}
	return tokens
}

func lastUserMessage(req *chatRequest) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			return req.Messages[i].text()
		}
	}
	return ""
}

func handleModels(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"object": "list",
		"data": []map[string]any{
			{"id": "mock-model", "object": "model", "owned_by": "todoflow-mock"},
			{"id": "gemini-flash-latest", "object": "model", "owned_by": "todoflow-mock"},
		},
	})
}

func writeError(w http.ResponseWriter, status int, typ, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": msg, "type": typ}})
}

func mustJSON(v any) string {
	data, _ := json.Marshal(v)
	return string(data)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
