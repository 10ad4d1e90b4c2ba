package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/rhuss/todoflow/pkg/api"
	"github.com/rhuss/todoflow/pkg/transport"
)

// writerState tracks the state of an SSE event writer.
type writerState int

const (
	writerIdle      writerState = iota // Initial state, no writes yet
	writerStreaming                    // WriteEvent has been called at least once
	writerCompleted                    // Done sentinel sent or the client went away
)

// errWriterCompleted is returned for writes after the stream ended.
var errWriterCompleted = errors.New("cannot write event: writer is completed")

// sseEventWriter implements transport.EventWriter for HTTP/SSE responses.
type sseEventWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController

	// duplicateDone repeats the [DONE] sentinel for clients written
	// against the original wire format.
	duplicateDone bool

	mu    sync.Mutex
	state writerState
}

var _ transport.EventWriter = (*sseEventWriter)(nil)

func newSSEEventWriter(w http.ResponseWriter, duplicateDone bool) *sseEventWriter {
	return &sseEventWriter{
		w:             w,
		rc:            http.NewResponseController(w),
		duplicateDone: duplicateDone,
	}
}

// WriteEvent sends a single SSE event. Regular events are formatted as:
//
//	data: {json}\n
//	\n
//
// The done event is written as:
//
//	data: [DONE]\n
//	\n
//
// Any write failure completes the writer, so later events fail fast.
func (s *sseEventWriter) WriteEvent(_ context.Context, event api.ChatEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == writerCompleted {
		return errWriterCompleted
	}

	// First event: set SSE headers.
	if s.state == writerIdle {
		s.w.Header().Set("Content-Type", "text/event-stream")
		s.w.Header().Set("Cache-Control", "no-cache")
		s.w.Header().Set("Connection", "keep-alive")
		s.state = writerStreaming
	}

	if err := s.write(event); err != nil {
		s.state = writerCompleted
		return err
	}
	if event.IsTerminal() {
		s.state = writerCompleted
	}
	return nil
}

func (s *sseEventWriter) write(event api.ChatEvent) error {
	if event.IsTerminal() {
		n := 1
		if s.duplicateDone {
			n = 2
		}
		for range n {
			if _, err := fmt.Fprint(s.w, "data: [DONE]\n\n"); err != nil {
				return fmt.Errorf("failed to write [DONE]: %w", err)
			}
		}
		return s.flush()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return s.flush()
}

func (s *sseEventWriter) flush() error {
	if err := s.rc.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}
	return nil
}

// hasStartedStreaming returns true if at least one SSE event has been written.
func (s *sseEventWriter) hasStartedStreaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != writerIdle
}
