// Package tasks defines the task record and the user-scoped store
// contract behind the task tools. Storage adapters in pkg/storage
// implement Store.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxTitleLength is the longest accepted title, in characters.
const MaxTitleLength = 255

var (
	// ErrNotFound is returned both for missing tasks and for tasks owned
	// by another user.
	ErrNotFound = errors.New("Task not found or unauthorized")

	// ErrInvalidTitle is returned for empty or overlong titles.
	ErrInvalidTitle = fmt.Errorf("title must be between 1 and %d characters", MaxTitleLength)
)

// Task is a single to-do record owned by one user.
type Task struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Status filters tasks by completion.
type Status string

const (
	StatusAny       Status = ""
	StatusCompleted Status = "completed"
	StatusPending   Status = "pending"
)

// Sort orders for List.
const (
	SortCreatedAt = "created_at"
	SortTitle     = "title"
	SortUpdatedAt = "updated_at"
)

// ListOptions controls filtering, search and ordering for List.
type ListOptions struct {
	Status Status
	// SortBy is one of the Sort constants. created_at and updated_at
	// sort newest first; title sorts ascending. Unknown values fall back
	// to created_at.
	SortBy string
	// Search matches case-insensitively against title or description.
	Search string
}

// Patch holds the fields to change in Update. Nil fields are left alone.
type Patch struct {
	Title       *string
	Description *string
	Completed   *bool
}

// Store persists tasks. Every operation is scoped to userID; a task that
// belongs to someone else behaves exactly like a missing one.
type Store interface {
	CreateTask(ctx context.Context, userID, title string, description *string) (*Task, error)
	GetTask(ctx context.Context, userID, id string) (*Task, error)
	ListTasks(ctx context.Context, userID string, opts ListOptions) ([]Task, error)
	UpdateTask(ctx context.Context, userID, id string, patch Patch) (*Task, error)
	ToggleTask(ctx context.Context, userID, id string) (*Task, error)
	DeleteTask(ctx context.Context, userID, id string) error
}

// ValidateTitle checks the title length constraint.
func ValidateTitle(title string) error {
	n := utf8.RuneCountInString(title)
	if n < 1 || n > MaxTitleLength {
		return ErrInvalidTitle
	}
	return nil
}

// NewID returns a fresh task ID.
func NewID() string {
	return uuid.NewString()
}

// ParseID normalizes a task ID. Malformed IDs map to ErrNotFound so
// callers can't probe the ID space.
func ParseID(id string) (string, error) {
	u, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return "", ErrNotFound
	}
	return u.String(), nil
}

// Apply mutates t according to patch and bumps UpdatedAt. It validates
// the new title, if any.
func (p Patch) Apply(t *Task, now time.Time) error {
	if p.Title != nil {
		if err := ValidateTitle(*p.Title); err != nil {
			return err
		}
		t.Title = *p.Title
	}
	if p.Description != nil {
		d := *p.Description
		t.Description = &d
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	t.UpdatedAt = now
	return nil
}

// Matches reports whether t passes the status filter and search term.
func (o ListOptions) Matches(t *Task) bool {
	switch o.Status {
	case StatusCompleted:
		if !t.Completed {
			return false
		}
	case StatusPending:
		if t.Completed {
			return false
		}
	}
	if o.Search == "" {
		return true
	}
	term := strings.ToLower(o.Search)
	if strings.Contains(strings.ToLower(t.Title), term) {
		return true
	}
	return t.Description != nil && strings.Contains(strings.ToLower(*t.Description), term)
}

// SortTasks orders ts in place according to sortBy.
func SortTasks(ts []Task, sortBy string) {
	switch sortBy {
	case SortTitle:
		sort.SliceStable(ts, func(i, j int) bool { return ts[i].Title < ts[j].Title })
	case SortUpdatedAt:
		sort.SliceStable(ts, func(i, j int) bool { return ts[i].UpdatedAt.After(ts[j].UpdatedAt) })
	default:
		sort.SliceStable(ts, func(i, j int) bool { return ts[i].CreatedAt.After(ts[j].CreatedAt) })
	}
}

// ParseStatus converts a filter_status argument. Unknown values mean no filter.
func ParseStatus(s string) Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "completed":
		return StatusCompleted
	case "pending":
		return StatusPending
	default:
		return StatusAny
	}
}
