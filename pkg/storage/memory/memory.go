// Package memory provides an in-memory implementation of history.Store
// and tasks.Store for testing and lightweight deployments. Data is lost
// when the process restarts. An optional per-user cap bounds history size.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rhuss/todoflow/pkg/history"
	"github.com/rhuss/todoflow/pkg/storage"
	"github.com/rhuss/todoflow/pkg/tasks"
)

// Store is an in-memory history and task store.
type Store struct {
	mu         sync.RWMutex
	messages   map[string][]history.Message // per user, oldest first
	tasks      map[string]*tasks.Task
	maxHistory int // per user; 0 = unlimited
	last       time.Time
	now        func() time.Time
}

// Ensure Store implements storage.Backend at compile time.
var _ storage.Backend = (*Store)(nil)

// New creates a new in-memory store. If maxHistory is 0, each user's
// history grows without limit. If maxHistory > 0, the oldest turns are
// evicted once a user exceeds it.
func New(maxHistory int) *Store {
	return &Store{
		messages:   make(map[string][]history.Message),
		tasks:      make(map[string]*tasks.Task),
		maxHistory: maxHistory,
		now:        time.Now,
	}
}

// timestamp returns a strictly increasing time so turns appended in quick
// succession still sort deterministically. Caller must hold s.mu.
func (s *Store) timestamp() time.Time {
	ts := s.now().UTC()
	if !ts.After(s.last) {
		ts = s.last.Add(time.Microsecond)
	}
	s.last = ts
	return ts
}

// Append stores a turn for userID.
func (s *Store) Append(_ context.Context, userID, role, content string) (*history.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := history.Message{
		ID:        uuid.NewString(),
		UserID:    userID,
		Role:      role,
		Content:   content,
		Timestamp: s.timestamp(),
	}
	msgs := append(s.messages[userID], msg)
	if s.maxHistory > 0 && len(msgs) > s.maxHistory {
		msgs = msgs[len(msgs)-s.maxHistory:]
	}
	s.messages[userID] = msgs

	out := msg
	return &out, nil
}

// Recent returns up to limit of the user's newest turns, newest first.
func (s *Store) Recent(_ context.Context, userID string, limit int) ([]history.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[userID]
	if limit <= 0 || limit > len(msgs) {
		limit = len(msgs)
	}
	out := make([]history.Message, 0, limit)
	for i := len(msgs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, msgs[i])
	}
	return out, nil
}

// Clear removes all of the user's turns.
func (s *Store) Clear(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.messages[userID])
	delete(s.messages, userID)
	return n, nil
}

// CreateTask stores a new pending task.
func (s *Store) CreateTask(_ context.Context, userID, title string, description *string) (*tasks.Task, error) {
	if err := tasks.ValidateTitle(title); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.timestamp()
	t := &tasks.Task{
		ID:        tasks.NewID(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if description != nil {
		d := *description
		t.Description = &d
	}
	s.tasks[t.ID] = t
	return copyTask(t), nil
}

// GetTask returns a task owned by userID.
func (s *Store) GetTask(_ context.Context, userID, id string) (*tasks.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, err := s.lookup(userID, id)
	if err != nil {
		return nil, err
	}
	return copyTask(t), nil
}

// ListTasks returns the user's tasks filtered and ordered by opts.
func (s *Store) ListTasks(_ context.Context, userID string, opts tasks.ListOptions) ([]tasks.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []tasks.Task{}
	for _, t := range s.tasks {
		if t.UserID != userID || !opts.Matches(t) {
			continue
		}
		out = append(out, *copyTask(t))
	}
	tasks.SortTasks(out, opts.SortBy)
	return out, nil
}

// UpdateTask applies patch to a task owned by userID.
func (s *Store) UpdateTask(_ context.Context, userID, id string, patch tasks.Patch) (*tasks.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.lookup(userID, id)
	if err != nil {
		return nil, err
	}
	updated := copyTask(t)
	if err := patch.Apply(updated, s.timestamp()); err != nil {
		return nil, err
	}
	s.tasks[updated.ID] = updated
	return copyTask(updated), nil
}

// ToggleTask flips the completion flag of a task owned by userID.
func (s *Store) ToggleTask(_ context.Context, userID, id string) (*tasks.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.lookup(userID, id)
	if err != nil {
		return nil, err
	}
	t.Completed = !t.Completed
	t.UpdatedAt = s.timestamp()
	return copyTask(t), nil
}

// DeleteTask removes a task owned by userID.
func (s *Store) DeleteTask(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.lookup(userID, id)
	if err != nil {
		return err
	}
	delete(s.tasks, t.ID)
	return nil
}

// HealthCheck always returns nil for the in-memory store.
func (s *Store) HealthCheck(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

// lookup finds a task by id scoped to userID. Caller must hold s.mu.
func (s *Store) lookup(userID, id string) (*tasks.Task, error) {
	key, err := tasks.ParseID(id)
	if err != nil {
		return nil, err
	}
	t, ok := s.tasks[key]
	if !ok || t.UserID != userID {
		return nil, tasks.ErrNotFound
	}
	return t, nil
}

func copyTask(t *tasks.Task) *tasks.Task {
	c := *t
	if t.Description != nil {
		d := *t.Description
		c.Description = &d
	}
	return &c
}
