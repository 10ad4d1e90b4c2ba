package transport

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rhuss/todoflow/pkg/api"
)

// Recovery returns middleware that catches panics in the runner, reports
// them to the client as an error text followed by done, and keeps the
// server alive. Writes fail harmlessly if the stream already ended.
func Recovery() Middleware {
	return func(next ChatRunner) ChatRunner {
		return ChatRunnerFunc(func(ctx context.Context, userID, message string, w EventWriter) {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("chat runner panicked", "panic", r, "request_id", RequestIDFromContext(ctx))
					_ = w.WriteEvent(ctx, api.TextEvent(fmt.Sprintf("AI Error: internal server error: %v", r)))
					_ = w.WriteEvent(ctx, api.DoneEvent())
				}
			}()
			next.Run(ctx, userID, message, w)
		})
	}
}
