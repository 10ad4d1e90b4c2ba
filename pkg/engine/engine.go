package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rhuss/todoflow/pkg/api"
	"github.com/rhuss/todoflow/pkg/history"
	"github.com/rhuss/todoflow/pkg/provider"
	"github.com/rhuss/todoflow/pkg/tools"
	"github.com/rhuss/todoflow/pkg/transport"
)

// Engine handles chat turns for any number of users. It holds no
// per-request state and is safe for concurrent use.
type Engine struct {
	provider provider.Provider
	registry tools.Registry
	history  history.Store
	cfg      Config
}

// Ensure Engine implements transport.ChatRunner at compile time.
var _ transport.ChatRunner = (*Engine)(nil)

// New creates a new Engine. All collaborators are required.
func New(p provider.Provider, reg tools.Registry, hist history.Store, cfg Config) (*Engine, error) {
	if p == nil {
		return nil, fmt.Errorf("engine: provider must not be nil")
	}
	if reg == nil {
		return nil, fmt.Errorf("engine: tool registry must not be nil")
	}
	if hist == nil {
		return nil, fmt.Errorf("engine: history store must not be nil")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("engine: model is required")
	}
	return &Engine{
		provider: p,
		registry: reg,
		history:  hist,
		cfg:      cfg,
	}, nil
}

// Run handles one user message and writes its events to w. It always
// ends with exactly one done event; failures are reported as a text
// event starting with "AI Error: " just before it. If w starts failing,
// the turn still runs to completion and is persisted.
func (e *Engine) Run(ctx context.Context, userID, message string, w transport.EventWriter) {
	em := newEmitter(w)
	sess := newSession(userID, e.cfg.Model)

	if err := e.converse(ctx, sess, message, em); err != nil {
		slog.Error("chat turn failed",
			"user", userID,
			"model", sess.model,
			"iteration", sess.iteration,
			"error", err,
		)
		em.emit(ctx, api.TextEvent("AI Error: "+err.Error()))
	}
	em.emit(ctx, api.DoneEvent())
}

// errStreamClosed is returned to the engine once the consumer closed a Stream.
var errStreamClosed = errors.New("stream closed by consumer")

// Stream is the channel form of a chat turn returned by Send.
type Stream struct {
	events chan api.ChatEvent
	closed chan struct{}
	once   sync.Once
}

// Send starts a chat turn in the background and returns its event stream.
// The events channel is closed after the done event. Callers must either
// drain Events or call Close: once the buffer is full the turn blocks on
// the next event until one of the two happens or ctx is done. Closing the
// stream early stops delivery but not the turn itself.
func (e *Engine) Send(ctx context.Context, userID, message string) *Stream {
	s := &Stream{
		events: make(chan api.ChatEvent, 16),
		closed: make(chan struct{}),
	}
	go func() {
		defer close(s.events)
		e.Run(ctx, userID, message, transport.EventWriterFunc(s.write))
	}()
	return s
}

// Events returns the channel of events for the turn.
func (s *Stream) Events() <-chan api.ChatEvent {
	return s.events
}

// Close marks the stream abandoned. It is safe to call more than once.
func (s *Stream) Close() {
	s.once.Do(func() { close(s.closed) })
}

func (s *Stream) write(ctx context.Context, ev api.ChatEvent) error {
	select {
	case <-s.closed:
		return errStreamClosed
	default:
	}
	select {
	case s.events <- ev:
		return nil
	case <-s.closed:
		return errStreamClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}
