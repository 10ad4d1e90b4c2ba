package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rhuss/todoflow/pkg/api"
	"github.com/rhuss/todoflow/pkg/debug"
	"github.com/rhuss/todoflow/pkg/history"
	"github.com/rhuss/todoflow/pkg/observability"
)

// FallbackReply is sent and stored when a turn produced no text at all.
const FallbackReply = "Mission accomplished! I've updated your tasks as requested."

// converse runs the bounded model/tool loop for one message and stores
// the assistant reply. Any returned error is unrecoverable for the turn.
func (e *Engine) converse(ctx context.Context, sess *session, message string, em *emitter) error {
	if err := e.assembleContext(ctx, sess, message); err != nil {
		return err
	}

	descs, err := e.registry.ListTools(ctx)
	if err != nil {
		return fmt.Errorf("list tools: %w", err)
	}
	sess.tools = adaptTools(descs)

	maxIter := e.cfg.maxIterations()
	pending := false
	for sess.iteration < maxIter {
		sess.iteration++
		debug.Log("engine", "calling model", "iteration", sess.iteration, "model", sess.model)

		text, calls, err := e.iterate(ctx, sess, em)
		if err != nil {
			return err
		}
		if len(calls) == 0 {
			pending = false
			break
		}

		debug.Log("engine", "executing tool calls", "iteration", sess.iteration, "count", len(calls))
		e.executeCalls(ctx, sess, text, calls, em)
		pending = true
	}

	if pending {
		slog.Info("chat turn stopped before a final answer",
			"reason", "max_iterations",
			"user", sess.userID,
			"iterations", sess.iteration,
		)
	}
	observability.LoopIterations.Observe(float64(sess.iteration))

	reply := sess.finalText.String()
	if reply == "" {
		slog.Info("chat turn produced no text, using fallback reply", "user", sess.userID, "iterations", sess.iteration)
		reply = FallbackReply
		em.emit(ctx, api.TextEvent(reply))
	}

	if _, err := e.history.Append(ctx, sess.userID, history.RoleAssistant, reply); err != nil {
		return fmt.Errorf("store assistant message: %w", err)
	}
	return nil
}

// iterate makes one model call and returns the text it streamed and the
// tool calls it asked for.
func (e *Engine) iterate(ctx context.Context, sess *session, em *emitter) (string, []resolvedCall, error) {
	ch, err := e.openStream(ctx, sess)
	if err != nil {
		return "", nil, err
	}

	var r reconstructor
	if err := r.consume(ctx, ch, em); err != nil {
		return "", nil, err
	}

	text := r.text.String()
	sess.finalText.WriteString(text)
	return text, r.resolve(), nil
}
