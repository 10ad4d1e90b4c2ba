package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rhuss/todoflow/pkg/history"
	"github.com/rhuss/todoflow/pkg/tasks"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "todoflow_test.db")
	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("New(%q): %v", dbPath, err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// tick makes the store clock advance one second per call.
func tick(s *Store) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	n := 0
	s.now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
}

func TestAppendAndRecent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	s.Append(ctx, "alice", history.RoleUser, "one")
	s.Append(ctx, "alice", history.RoleAssistant, "two")
	s.Append(ctx, "alice", history.RoleUser, "three")
	s.Append(ctx, "bob", history.RoleUser, "bob's")

	got, err := s.Recent(ctx, "alice", 2)
	if err != nil {
		t.Fatalf("Recent() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(Recent) = %d, want 2", len(got))
	}
	if got[0].Content != "three" || got[1].Content != "two" {
		t.Errorf("Recent = [%q %q], want [three two]", got[0].Content, got[1].Content)
	}

	all, _ := s.Recent(ctx, "alice", 0)
	if len(all) != 3 {
		t.Errorf("len(Recent(0)) = %d, want 3", len(all))
	}
}

func TestAppendRejectsUnknownRole(t *testing.T) {
	s := testStore(t)
	if _, err := s.Append(context.Background(), "alice", "system", "x"); err == nil {
		t.Error("Append with role system should fail the CHECK constraint")
	}
}

func TestClear(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	s.Append(ctx, "alice", history.RoleUser, "one")
	s.Append(ctx, "alice", history.RoleTool, "{}")
	s.Append(ctx, "bob", history.RoleUser, "keep")

	n, err := s.Clear(ctx, "alice")
	if err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	if n != 2 {
		t.Errorf("Clear() = %d, want 2", n)
	}
	bob, _ := s.Recent(ctx, "bob", 10)
	if len(bob) != 1 {
		t.Errorf("bob's history = %d turns, want 1", len(bob))
	}
}

func TestTaskLifecycle(t *testing.T) {
	s := testStore(t)
	tick(s)
	ctx := context.Background()

	created, err := s.CreateTask(ctx, "alice", "buy milk", nil)
	if err != nil {
		t.Fatalf("CreateTask() error: %v", err)
	}

	got, err := s.GetTask(ctx, "alice", created.ID)
	if err != nil {
		t.Fatalf("GetTask() error: %v", err)
	}
	if got.Title != "buy milk" || got.Description != nil || got.Completed {
		t.Errorf("GetTask() = %+v, want pending 'buy milk' without description", got)
	}
	if !got.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, created.CreatedAt)
	}

	toggled, err := s.ToggleTask(ctx, "alice", created.ID)
	if err != nil {
		t.Fatalf("ToggleTask() error: %v", err)
	}
	if !toggled.Completed || !toggled.UpdatedAt.After(created.UpdatedAt) {
		t.Errorf("ToggleTask() = %+v, want completed with newer UpdatedAt", toggled)
	}

	desc := "oat"
	updated, err := s.UpdateTask(ctx, "alice", created.ID, tasks.Patch{Description: &desc})
	if err != nil {
		t.Fatalf("UpdateTask() error: %v", err)
	}
	if updated.Description == nil || *updated.Description != "oat" || !updated.Completed {
		t.Errorf("UpdateTask() = %+v, want description set and completion kept", updated)
	}

	if err := s.DeleteTask(ctx, "alice", created.ID); err != nil {
		t.Fatalf("DeleteTask() error: %v", err)
	}
	if err := s.DeleteTask(ctx, "alice", created.ID); !errors.Is(err, tasks.ErrNotFound) {
		t.Errorf("second DeleteTask() = %v, want ErrNotFound", err)
	}
}

func TestTaskValidation(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if _, err := s.CreateTask(ctx, "alice", "", nil); !errors.Is(err, tasks.ErrInvalidTitle) {
		t.Errorf("CreateTask(empty) = %v, want ErrInvalidTitle", err)
	}
	created, _ := s.CreateTask(ctx, "alice", "ok", nil)
	empty := ""
	if _, err := s.UpdateTask(ctx, "alice", created.ID, tasks.Patch{Title: &empty}); !errors.Is(err, tasks.ErrInvalidTitle) {
		t.Errorf("UpdateTask(empty title) = %v, want ErrInvalidTitle", err)
	}
}

func TestTaskOwnership(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	created, _ := s.CreateTask(ctx, "alice", "secret", nil)

	if _, err := s.GetTask(ctx, "mallory", created.ID); !errors.Is(err, tasks.ErrNotFound) {
		t.Errorf("GetTask(other user) = %v, want ErrNotFound", err)
	}
	if _, err := s.ToggleTask(ctx, "mallory", created.ID); !errors.Is(err, tasks.ErrNotFound) {
		t.Errorf("ToggleTask(other user) = %v, want ErrNotFound", err)
	}
	if _, err := s.GetTask(ctx, "alice", "garbage"); !errors.Is(err, tasks.ErrNotFound) {
		t.Errorf("GetTask(malformed id) = %v, want ErrNotFound", err)
	}
}

func TestListTasks(t *testing.T) {
	s := testStore(t)
	tick(s)
	ctx := context.Background()

	desc := "from the Bakery"
	milk, _ := s.CreateTask(ctx, "alice", "milk", nil)
	s.CreateTask(ctx, "alice", "bread", &desc)
	s.CreateTask(ctx, "alice", "apples", nil)
	s.CreateTask(ctx, "bob", "bob task", nil)
	s.ToggleTask(ctx, "alice", milk.ID)

	tests := []struct {
		name string
		opts tasks.ListOptions
		want []string
	}{
		{"newest first", tasks.ListOptions{}, []string{"apples", "bread", "milk"}},
		{"by title", tasks.ListOptions{SortBy: tasks.SortTitle}, []string{"apples", "bread", "milk"}},
		{"recently updated", tasks.ListOptions{SortBy: tasks.SortUpdatedAt}, []string{"milk", "apples", "bread"}},
		{"completed", tasks.ListOptions{Status: tasks.StatusCompleted}, []string{"milk"}},
		{"pending", tasks.ListOptions{Status: tasks.StatusPending}, []string{"apples", "bread"}},
		{"search description", tasks.ListOptions{Search: "bakery"}, []string{"bread"}},
		{"search wildcard is literal", tasks.ListOptions{Search: "_"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListTasks(ctx, "alice", tt.opts)
			if err != nil {
				t.Fatalf("ListTasks() error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ListTasks() returned %d tasks, want %d", len(got), len(tt.want))
			}
			for i, task := range got {
				if task.Title != tt.want[i] {
					t.Errorf("task[%d] = %q, want %q", i, task.Title, tt.want[i])
				}
			}
		})
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reopen.db")
	ctx := context.Background()

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	s.Append(ctx, "alice", history.RoleUser, "remember me")
	s.CreateTask(ctx, "alice", "persisted", nil)
	s.Close()

	s2, err := New(dbPath)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer s2.Close()

	msgs, _ := s2.Recent(ctx, "alice", 10)
	if len(msgs) != 1 || msgs[0].Content != "remember me" {
		t.Errorf("history after reopen = %+v", msgs)
	}
	list, _ := s2.ListTasks(ctx, "alice", tasks.ListOptions{})
	if len(list) != 1 {
		t.Errorf("tasks after reopen = %d, want 1", len(list))
	}
}
