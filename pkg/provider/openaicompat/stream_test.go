package openaicompat

import (
	"context"
	"strings"
	"testing"

	"github.com/rhuss/todoflow/pkg/provider"
)

// collectFragments runs ParseSSEStream and returns all fragments.
func collectFragments(t *testing.T, sseData string) []provider.Fragment {
	t.Helper()
	ch := make(chan provider.Fragment, 64)
	ctx := context.Background()

	go func() {
		defer close(ch)
		ParseSSEStream(ctx, strings.NewReader(sseData), ch)
	}()

	var frags []provider.Fragment
	for f := range ch {
		frags = append(frags, f)
	}
	return frags
}

func TestParseSSEStream_TextDeltas(t *testing.T) {
	sseData := `data: {"id":"c1","object":"chat.completion.chunk","model":"gpt-4o","choices":[{"index":0,"delta":{"role":"assistant"},"finish_reason":null}]}

data: {"id":"c1","object":"chat.completion.chunk","model":"gpt-4o","choices":[{"index":0,"delta":{"content":"Hello"},"finish_reason":null}]}

data: {"id":"c1","object":"chat.completion.chunk","model":"gpt-4o","choices":[{"index":0,"delta":{"content":" world"},"finish_reason":null}]}

data: {"id":"c1","object":"chat.completion.chunk","model":"gpt-4o","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}

data: [DONE]
`
	frags := collectFragments(t, sseData)

	// Role-only and finish-only chunks carry nothing and are dropped.
	if len(frags) != 2 {
		t.Fatalf("got %d fragments, want 2: %+v", len(frags), frags)
	}
	if frags[0].Content != "Hello" || frags[1].Content != " world" {
		t.Errorf("got %q %q, want %q %q", frags[0].Content, frags[1].Content, "Hello", " world")
	}
	if frags[0].Model != "gpt-4o" {
		t.Errorf("Model = %q, want %q", frags[0].Model, "gpt-4o")
	}
}

func TestParseSSEStream_ToolCallFragments(t *testing.T) {
	sseData := `data: {"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_a","type":"function","function":{"name":"crea","arguments":""}}]}}]}

data: {"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"name":"te_task","arguments":"{\"title\":"}}]}}]}

data: {"choices":[{"index":0,"delta":{"tool_calls":[{"function":{"arguments":"\"x\"}"}}]}}]}

data: [DONE]
`
	frags := collectFragments(t, sseData)
	if len(frags) != 3 {
		t.Fatalf("got %d fragments, want 3", len(frags))
	}

	first := frags[0].ToolCalls[0]
	if first.Index == nil || *first.Index != 0 {
		t.Errorf("first fragment index = %v, want 0", first.Index)
	}
	if first.ID != "call_a" || first.Name != "crea" {
		t.Errorf("first fragment = %+v", first)
	}

	// A fragment without index is passed through with a nil Index.
	last := frags[2].ToolCalls[0]
	if last.Index != nil {
		t.Errorf("last fragment index = %d, want nil", *last.Index)
	}
	if last.Arguments != `"x"}` {
		t.Errorf("last fragment arguments = %q", last.Arguments)
	}
}

func TestParseSSEStream_MalformedToolCallElement(t *testing.T) {
	sseData := `data: {"choices":[{"index":0,"delta":{"content":"ok","tool_calls":[{"index":"zero"},{"index":1,"function":{"name":"list_tasks"}}]}}]}

data: [DONE]
`
	frags := collectFragments(t, sseData)
	if len(frags) != 1 {
		t.Fatalf("got %d fragments, want 1", len(frags))
	}
	tcs := frags[0].ToolCalls
	if len(tcs) != 2 {
		t.Fatalf("got %d tool call fragments, want 2", len(tcs))
	}
	if tcs[0].Err == nil {
		t.Error("malformed element should carry a decode error")
	}
	if tcs[1].Err != nil || tcs[1].Name != "list_tasks" {
		t.Errorf("valid element was not preserved: %+v", tcs[1])
	}
	if frags[0].Content != "ok" {
		t.Errorf("content = %q, want %q", frags[0].Content, "ok")
	}
}

func TestParseSSEStream_MalformedChunkSkipped(t *testing.T) {
	sseData := `data: {not json}

data: {"choices":[{"index":0,"delta":{"content":"after"}}]}

data: [DONE]
`
	frags := collectFragments(t, sseData)
	if len(frags) != 1 || frags[0].Content != "after" {
		t.Fatalf("got %+v, want one fragment with %q", frags, "after")
	}
}

func TestParseSSEStream_DoneSentinelStopsReading(t *testing.T) {
	sseData := `data: {"choices":[{"index":0,"delta":{"content":"a"}}]}

data: [DONE]

data: {"choices":[{"index":0,"delta":{"content":"b"}}]}
`
	frags := collectFragments(t, sseData)
	if len(frags) != 1 {
		t.Fatalf("got %d fragments, want 1", len(frags))
	}
}

func TestParseSSEStream_NoSpaceAfterDataPrefix(t *testing.T) {
	sseData := "data:{\"choices\":[{\"index\":0,\"delta\":{\"content\":\"tight\"}}]}\n\ndata:[DONE]\n"
	frags := collectFragments(t, sseData)
	if len(frags) != 1 || frags[0].Content != "tight" {
		t.Fatalf("got %+v", frags)
	}
}
