package integration

import (
	"context"
	"net/http"
	"testing"

	"github.com/rhuss/todoflow/pkg/api"
	"github.com/rhuss/todoflow/pkg/tasks"
	"github.com/rhuss/todoflow/pkg/tools/tasktools"
)

func TestChatStreamCreatesTask(t *testing.T) {
	resp := do(t, newRequest(t, http.MethodPost, "/api/chat/stream?message=add+Buy+milk", "alice-key", ""))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	events := readSSE(t, resp)

	var sawPreparing, sawExecuting bool
	var text string
	for i, ev := range events {
		switch {
		case ev.Type == api.EventToolCall && ev.Status == api.ToolCallPreparing:
			sawPreparing = true
		case ev.Type == api.EventToolCall && ev.Status == api.ToolCallExecuting:
			sawExecuting = true
			if ev.Tool != tasktools.CreateTask {
				t.Errorf("executing tool = %q, want %q", ev.Tool, tasktools.CreateTask)
			}
		case ev.Type == api.EventText:
			text += ev.Content
		case ev.IsTerminal() && i != len(events)-1:
			t.Errorf("done event at position %d of %d", i, len(events))
		}
	}
	if !sawPreparing || !sawExecuting {
		t.Errorf("preparing=%v executing=%v, want both", sawPreparing, sawExecuting)
	}
	if text != "Added it." {
		t.Errorf("streamed text = %q, want %q", text, "Added it.")
	}
	if n := len(events); n == 0 || !events[n-1].IsTerminal() {
		t.Fatal("stream did not end with [DONE]")
	}

	got, err := testEnv.Store.ListTasks(context.Background(), "alice", tasks.ListOptions{})
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(got) != 1 || got[0].Title != "Buy milk" {
		t.Fatalf("tasks = %+v, want one titled Buy milk", got)
	}
}

func TestChatHistory(t *testing.T) {
	readSSE(t, do(t, newRequest(t, http.MethodPost, "/api/chat/stream", "bob-key", `{"message":"add Walk the dog"}`)))

	resp := do(t, newRequest(t, http.MethodGet, "/api/chat/history", "bob-key", ""))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var msgs []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	decodeJSON(t, resp, &msgs)
	if len(msgs) != 2 {
		t.Fatalf("history = %+v, want user and assistant turns", msgs)
	}
	if msgs[0].Role != "user" || msgs[0].Content != "add Walk the dog" {
		t.Errorf("first turn = %+v, want the user message", msgs[0])
	}
	if msgs[1].Role != "assistant" || msgs[1].Content != "Added it." {
		t.Errorf("second turn = %+v, want the assistant reply", msgs[1])
	}

	resp = do(t, newRequest(t, http.MethodDelete, "/api/chat/history", "bob-key", ""))
	var cleared struct {
		Deleted int `json:"deleted"`
	}
	decodeJSON(t, resp, &cleared)
	if cleared.Deleted != 2 {
		t.Errorf("deleted = %d, want 2", cleared.Deleted)
	}
}

func TestLegacyChat(t *testing.T) {
	resp := do(t, newRequest(t, http.MethodPost, "/api/chat", "alice-key", `{"message":"hello"}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var msg struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	decodeJSON(t, resp, &msg)
	if msg.Role != "assistant" || msg.Content != "Hello there" {
		t.Errorf("reply = %+v, want assistant Hello there", msg)
	}
}

func TestAuthRequired(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"no key", ""},
		{"unknown key", "mallory-key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, newRequest(t, http.MethodPost, "/api/chat/stream?message=hi", tt.key, ""))
			if resp.StatusCode != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", resp.StatusCode)
			}
		})
	}
}

func TestHealthAndModels(t *testing.T) {
	if resp := do(t, newRequest(t, http.MethodGet, "/healthz", "", "")); resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", resp.StatusCode)
	}

	resp := do(t, newRequest(t, http.MethodGet, "/api/models", "alice-key", ""))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("models status = %d, want 200", resp.StatusCode)
	}
	var body struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	decodeJSON(t, resp, &body)
	if len(body.Data) != 1 || body.Data[0].ID != "mock-model" {
		t.Errorf("models = %+v, want mock-model", body.Data)
	}
}
