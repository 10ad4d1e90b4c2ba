package transport

import (
	"context"
	"errors"
	"testing"

	"github.com/rhuss/todoflow/pkg/api"
)

func TestChatRunnerFuncAdapter(t *testing.T) {
	var gotUser, gotMessage string

	fn := ChatRunnerFunc(func(ctx context.Context, userID, message string, w EventWriter) {
		gotUser, gotMessage = userID, message
		w.WriteEvent(ctx, api.DoneEvent())
	})

	// Verify it satisfies the interface.
	var _ ChatRunner = fn

	w := &recordingWriter{}
	fn.Run(context.Background(), "u1", "hello", w)

	if gotUser != "u1" || gotMessage != "hello" {
		t.Errorf("got (%q, %q), want (%q, %q)", gotUser, gotMessage, "u1", "hello")
	}
	if len(w.events) != 1 || !w.events[0].IsTerminal() {
		t.Errorf("events = %v, want a single done event", w.events)
	}
}

func TestEventWriterFuncAdapter(t *testing.T) {
	wantErr := errors.New("gone")
	var got api.ChatEvent

	var w EventWriter = EventWriterFunc(func(_ context.Context, ev api.ChatEvent) error {
		got = ev
		return wantErr
	})

	err := w.WriteEvent(context.Background(), api.TextEvent("hi"))
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
	if got.Content != "hi" {
		t.Errorf("content = %q, want %q", got.Content, "hi")
	}
}
