package transport

import (
	"context"
	"log/slog"
	"time"

	"github.com/rhuss/todoflow/pkg/api"
)

// Logging returns middleware that emits one structured log entry per
// chat turn with the request ID, user, duration and the number of
// events delivered. Message text is not logged.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next ChatRunner) ChatRunner {
		return ChatRunnerFunc(func(ctx context.Context, userID, message string, w EventWriter) {
			start := time.Now()
			var delivered, failed int
			counting := EventWriterFunc(func(ctx context.Context, ev api.ChatEvent) error {
				err := w.WriteEvent(ctx, ev)
				if err != nil {
					failed++
				} else {
					delivered++
				}
				return err
			})

			next.Run(ctx, userID, message, counting)

			logger.LogAttrs(ctx, slog.LevelInfo, "chat completed",
				slog.String("request_id", RequestIDFromContext(ctx)),
				slog.String("user", userID),
				slog.Int("message_len", len(message)),
				slog.Int("events", delivered),
				slog.Bool("abandoned", failed > 0),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}
