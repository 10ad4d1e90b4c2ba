package transport

import (
	"context"

	"github.com/rhuss/todoflow/pkg/api"
)

// EventWriter receives the events of one chat turn, in order. A non-nil
// error means the consumer is gone; callers stop delivering but need not
// stop working.
type EventWriter interface {
	WriteEvent(ctx context.Context, event api.ChatEvent) error
}

// EventWriterFunc is an adapter that allows using an ordinary function
// as an EventWriter.
type EventWriterFunc func(ctx context.Context, event api.ChatEvent) error

// WriteEvent calls f(ctx, event).
func (f EventWriterFunc) WriteEvent(ctx context.Context, event api.ChatEvent) error {
	return f(ctx, event)
}

// ChatRunner handles one user message. Run reports every outcome,
// failures included, as events on w and always ends with a done event.
type ChatRunner interface {
	Run(ctx context.Context, userID, message string, w EventWriter)
}

// ChatRunnerFunc is an adapter that allows using an ordinary function
// as a ChatRunner.
type ChatRunnerFunc func(ctx context.Context, userID, message string, w EventWriter)

// Run calls f(ctx, userID, message, w).
func (f ChatRunnerFunc) Run(ctx context.Context, userID, message string, w EventWriter) {
	f(ctx, userID, message, w)
}
