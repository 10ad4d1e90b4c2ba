// Package integration runs end-to-end chat tests against a real todoflow
// HTTP server backed by a scripted Chat Completions backend, both started
// in-process with net/http/httptest.
package integration

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/rhuss/todoflow/pkg/api"
	"github.com/rhuss/todoflow/pkg/auth"
	"github.com/rhuss/todoflow/pkg/auth/apikey"
	"github.com/rhuss/todoflow/pkg/engine"
	"github.com/rhuss/todoflow/pkg/provider/openaicompat"
	"github.com/rhuss/todoflow/pkg/storage/memory"
	"github.com/rhuss/todoflow/pkg/tools/registry"
	"github.com/rhuss/todoflow/pkg/tools/tasktools"
	transporthttp "github.com/rhuss/todoflow/pkg/transport/http"
)

// exhaustedModel always answers 429, so every turn falls back.
const exhaustedModel = "exhausted-model"

var testEnv *TestEnvironment

// TestEnvironment holds the todoflow server and the mock backend.
type TestEnvironment struct {
	Server      *httptest.Server
	MockBackend *httptest.Server
	Store       *memory.Store
}

func TestMain(m *testing.M) {
	testEnv = setupTestEnvironment()
	code := m.Run()
	testEnv.Teardown()
	os.Exit(code)
}

func setupTestEnvironment() *TestEnvironment {
	mockBackend := httptest.NewServer(http.HandlerFunc(handleMockCompletions))

	prov := openaicompat.NewClient(mockBackend.URL, "", 0)
	store := memory.New(0)

	reg := registry.New()
	reg.Register(tasktools.New(store, exhaustedModel))

	eng, err := engine.New(prov, reg, store, engine.Config{
		Model:          exhaustedModel,
		FallbackModels: []string{"mock-model"},
		MaxIterations:  5,
	})
	if err != nil {
		panic(fmt.Sprintf("creating engine: %v", err))
	}

	chain := &auth.AuthChain{
		Authenticators: []auth.Authenticator{apikey.New([]apikey.RawKeyEntry{
			{Key: "alice-key", Identity: auth.Identity{Subject: "alice"}},
			{Key: "bob-key", Identity: auth.Identity{Subject: "bob"}},
		})},
		DefaultDecision: auth.No,
	}

	adapter := transporthttp.NewAdapter(eng, store, transporthttp.DefaultConfig(), []transporthttp.AdapterOption{
		transporthttp.WithAuth(auth.Middleware(chain, nil, auth.DefaultBypassEndpoints)),
		transporthttp.WithModelLister(prov),
		transporthttp.WithHealthCheck(store.HealthCheck),
	})

	return &TestEnvironment{
		Server:      httptest.NewServer(adapter.Handler()),
		MockBackend: mockBackend,
		Store:       store,
	}
}

// Teardown stops both servers.
func (env *TestEnvironment) Teardown() {
	if env.Server != nil {
		env.Server.Close()
	}
	if env.MockBackend != nil {
		env.MockBackend.Close()
	}
}

// --- scripted backend ---

type mockRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content any    `json:"content"`
	} `json:"messages"`
}

// handleMockCompletions answers "add <title>" with a create_task call split
// over four chunks, a tool result with a short confirmation and anything
// else with a greeting.
func handleMockCompletions(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/models":
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"object":"list","data":[{"id":"mock-model","object":"model"}]}`)
		return
	case r.Method != http.MethodPost || r.URL.Path != "/chat/completions":
		http.NotFound(w, r)
		return
	}

	var req mockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Model == exhaustedModel {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"quota exceeded","type":"rate_limit_error"}}`)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	flusher := w.(http.Flusher)
	emit := func(delta string) {
		fmt.Fprintf(w, "data: {\"id\":\"chatcmpl-1\",\"model\":%q,\"choices\":[{\"index\":0,\"delta\":%s}]}\n\n", req.Model, delta)
		flusher.Flush()
	}

	last := req.Messages[len(req.Messages)-1]
	text, _ := last.Content.(string)
	switch {
	case last.Role == "tool":
		emit(`{"content":"Added "}`)
		emit(`{"content":"it."}`)
	case strings.HasPrefix(text, "add "):
		args, _ := json.Marshal(map[string]string{"title": strings.TrimPrefix(text, "add ")})
		half := len(args) / 2
		emit(`{"tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"crea"}}]}`)
		emit(`{"tool_calls":[{"index":0,"function":{"name":"te_task"}}]}`)
		emit(fmt.Sprintf(`{"tool_calls":[{"index":0,"function":{"arguments":%q}}]}`, args[:half]))
		emit(fmt.Sprintf(`{"tool_calls":[{"index":0,"function":{"arguments":%q}}]}`, args[half:]))
	default:
		emit(`{"content":"Hello there"}`)
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// --- HTTP helpers ---

func newRequest(t *testing.T, method, path, key, body string) *http.Request {
	t.Helper()
	var req *http.Request
	var err error
	if body == "" {
		req, err = http.NewRequest(method, testEnv.Server.URL+path, nil)
	} else {
		req, err = http.NewRequest(method, testEnv.Server.URL+path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	if key != "" {
		req.Header.Set(apikey.HeaderName, key)
	}
	return req
}

func do(t *testing.T, req *http.Request) *http.Response {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// readSSE collects the decoded events of a chat stream. The [DONE]
// sentinel is returned as a done event.
func readSSE(t *testing.T, resp *http.Response) []api.ChatEvent {
	t.Helper()
	var events []api.ChatEvent
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		if data == "[DONE]" {
			events = append(events, api.DoneEvent())
			continue
		}
		var ev api.ChatEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			t.Fatalf("decoding event %q: %v", data, err)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("reading stream: %v", err)
	}
	return events
}

func decodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}
