package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rhuss/todoflow/pkg/api"
)

func TestWriteEventSSEFormat(t *testing.T) {
	tests := []struct {
		name  string
		event api.ChatEvent
		want  string
	}{
		{
			name:  "text",
			event: api.TextEvent("Hello"),
			want:  "data: {\"type\":\"text\",\"content\":\"Hello\"}\n\n",
		},
		{
			name:  "preparing",
			event: api.ToolCallEvent(api.ToolCallPreparing, ""),
			want:  "data: {\"type\":\"tool_call\",\"status\":\"preparing\"}\n\n",
		},
		{
			name:  "executing",
			event: api.ToolCallEvent(api.ToolCallExecuting, "create_task"),
			want:  "data: {\"type\":\"tool_call\",\"status\":\"executing\",\"tool\":\"create_task\"}\n\n",
		},
		{
			name:  "done",
			event: api.DoneEvent(),
			want:  "data: [DONE]\n\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			sw := newSSEEventWriter(rec, false)

			if err := sw.WriteEvent(context.Background(), tt.event); err != nil {
				t.Fatalf("WriteEvent error: %v", err)
			}
			if got := rec.Body.String(); got != tt.want {
				t.Errorf("body = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWriteEventSetsHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := newSSEEventWriter(rec, false)
	sw.WriteEvent(context.Background(), api.TextEvent("hi"))

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want %q", ct, "text/event-stream")
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("Cache-Control = %q, want %q", cc, "no-cache")
	}
	if !rec.Flushed {
		t.Error("expected response to be flushed")
	}
}

func TestDuplicateDone(t *testing.T) {
	tests := []struct {
		name      string
		duplicate bool
		want      string
	}{
		{"single sentinel", false, "data: [DONE]\n\n"},
		{"duplicated sentinel", true, "data: [DONE]\n\ndata: [DONE]\n\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			sw := newSSEEventWriter(rec, tt.duplicate)
			if err := sw.WriteEvent(context.Background(), api.DoneEvent()); err != nil {
				t.Fatalf("WriteEvent error: %v", err)
			}
			if got := rec.Body.String(); got != tt.want {
				t.Errorf("body = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWriteAfterDoneFails(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := newSSEEventWriter(rec, false)

	sw.WriteEvent(context.Background(), api.DoneEvent())
	err := sw.WriteEvent(context.Background(), api.TextEvent("late"))
	if !errors.Is(err, errWriterCompleted) {
		t.Errorf("err = %v, want %v", err, errWriterCompleted)
	}
	if got := rec.Body.String(); got != "data: [DONE]\n\n" {
		t.Errorf("body = %q, want only the sentinel", got)
	}
}

// brokenWriter simulates a client that disconnected.
type brokenWriter struct {
	header http.Header
	writes int
}

func (b *brokenWriter) Header() http.Header {
	if b.header == nil {
		b.header = make(http.Header)
	}
	return b.header
}

func (b *brokenWriter) Write([]byte) (int, error) {
	b.writes++
	return 0, errors.New("connection reset")
}

func (b *brokenWriter) WriteHeader(int) {}

func TestWriteFailureCompletesWriter(t *testing.T) {
	bw := &brokenWriter{}
	sw := newSSEEventWriter(bw, false)

	if err := sw.WriteEvent(context.Background(), api.TextEvent("a")); err == nil {
		t.Fatal("expected write error")
	}
	if err := sw.WriteEvent(context.Background(), api.TextEvent("b")); !errors.Is(err, errWriterCompleted) {
		t.Errorf("second write err = %v, want %v", err, errWriterCompleted)
	}
	if bw.writes != 1 {
		t.Errorf("underlying writes = %d, want 1", bw.writes)
	}
}

func TestHasStartedStreaming(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := newSSEEventWriter(rec, false)

	if sw.hasStartedStreaming() {
		t.Error("fresh writer reports streaming")
	}
	sw.WriteEvent(context.Background(), api.TextEvent("x"))
	if !sw.hasStartedStreaming() {
		t.Error("writer does not report streaming after first event")
	}
}
