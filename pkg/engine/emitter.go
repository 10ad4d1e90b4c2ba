package engine

import (
	"context"

	"github.com/rhuss/todoflow/pkg/api"
	"github.com/rhuss/todoflow/pkg/debug"
	"github.com/rhuss/todoflow/pkg/transport"
)

// emitter enforces the event ordering rules on top of an EventWriter:
// nothing is delivered after done, and once the writer fails the rest of
// the turn's events are discarded.
type emitter struct {
	w         transport.EventWriter
	done      bool
	abandoned bool
}

func newEmitter(w transport.EventWriter) *emitter {
	return &emitter{w: w}
}

func (em *emitter) emit(ctx context.Context, ev api.ChatEvent) {
	if em.done {
		return
	}
	if ev.IsTerminal() {
		em.done = true
	}
	if em.abandoned {
		return
	}
	if err := em.w.WriteEvent(ctx, ev); err != nil {
		em.abandoned = true
		debug.Log("engine", "event consumer gone, continuing without delivery", "error", err)
	}
}
