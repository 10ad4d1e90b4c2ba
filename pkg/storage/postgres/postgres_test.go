package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	pgmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/rhuss/todoflow/pkg/history"
	"github.com/rhuss/todoflow/pkg/tasks"
)

func init() {
	// Configure testcontainers to use podman.
	// Detect the podman socket from `podman machine inspect`.
	if os.Getenv("DOCKER_HOST") == "" {
		out, err := exec.Command("podman", "machine", "inspect", "--format", "{{.ConnectionInfo.PodmanSocket.Path}}").Output()
		if err == nil {
			sock := strings.TrimSpace(string(out))
			if sock != "" {
				os.Setenv("DOCKER_HOST", "unix://"+sock)
			}
		}
	}
	// Ryuk needs privileged mode with podman.
	if os.Getenv("TESTCONTAINERS_RYUK_CONTAINER_PRIVILEGED") == "" {
		os.Setenv("TESTCONTAINERS_RYUK_CONTAINER_PRIVILEGED", "true")
	}
}

// setupTestDB starts a PostgreSQL container and returns a connected Store.
// Tests are skipped if Docker is not available.
func setupTestDB(t *testing.T) *Store {
	t.Helper()

	if os.Getenv("SKIP_INTEGRATION") == "true" {
		t.Skip("SKIP_INTEGRATION=true, skipping PostgreSQL integration tests")
	}

	// Verify podman is running.
	if _, err := exec.LookPath("podman"); err != nil {
		t.Skip("podman not found, skipping integration tests")
	}

	ctx := context.Background()

	container, err := pgmodule.Run(ctx,
		"postgres:16-alpine",
		pgmodule.WithDatabase("todoflow_test"),
		pgmodule.WithUsername("test"),
		pgmodule.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Skipf("skipping: could not start PostgreSQL container (is podman running?): %v", err)
	}

	t.Cleanup(func() {
		container.Terminate(context.Background())
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("getting connection string: %v", err)
	}

	store, err := New(ctx, Config{
		DSN:            connStr,
		MaxConns:       5,
		MinConns:       1,
		MigrateOnStart: true,
	})
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

// uniqueUser returns a user id no other test in the run shares.
func uniqueUser(t *testing.T) string {
	return fmt.Sprintf("%s-%d", t.Name(), time.Now().UnixNano())
}

func TestPostgres_AppendAndRecent(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	user := uniqueUser(t)

	for _, turn := range []struct{ role, content string }{
		{history.RoleUser, "add buy milk"},
		{history.RoleTool, `{"task":{}}`},
		{history.RoleAssistant, "Added."},
	} {
		if _, err := store.Append(ctx, user, turn.role, turn.content); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	got, err := store.Recent(ctx, user, 2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(Recent) = %d, want 2", len(got))
	}
	if got[0].Content != "Added." || got[1].Role != history.RoleTool {
		t.Errorf("Recent order = [%q %q], want newest first", got[0].Content, got[1].Role)
	}

	other, err := store.Recent(ctx, user+"-other", 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("other user sees %d messages, want 0", len(other))
	}
}

func TestPostgres_Clear(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	user := uniqueUser(t)

	store.Append(ctx, user, history.RoleUser, "one")
	store.Append(ctx, user, history.RoleAssistant, "two")

	n, err := store.Clear(ctx, user)
	if err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Clear deleted %d, want 2", n)
	}
	got, _ := store.Recent(ctx, user, 10)
	if len(got) != 0 {
		t.Errorf("len(Recent) after Clear = %d, want 0", len(got))
	}
}

func TestPostgres_TaskLifecycle(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	user := uniqueUser(t)

	desc := "2 liters"
	created, err := store.CreateTask(ctx, user, "buy milk", &desc)
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if created.Completed {
		t.Error("new task should be pending")
	}

	toggled, err := store.ToggleTask(ctx, user, created.ID)
	if err != nil {
		t.Fatalf("ToggleTask failed: %v", err)
	}
	if !toggled.Completed {
		t.Error("toggled task should be completed")
	}

	title := "buy oat milk"
	updated, err := store.UpdateTask(ctx, user, created.ID, tasks.Patch{Title: &title})
	if err != nil {
		t.Fatalf("UpdateTask failed: %v", err)
	}
	if updated.Title != title {
		t.Errorf("Title = %q, want %q", updated.Title, title)
	}
	if updated.Description == nil || *updated.Description != desc {
		t.Errorf("Description = %v, want %q", updated.Description, desc)
	}
	if !updated.Completed {
		t.Error("UpdateTask without Completed should keep the flag")
	}

	if err := store.DeleteTask(ctx, user, created.ID); err != nil {
		t.Fatalf("DeleteTask failed: %v", err)
	}
	if _, err := store.GetTask(ctx, user, created.ID); !errors.Is(err, tasks.ErrNotFound) {
		t.Errorf("GetTask after delete: got %v, want ErrNotFound", err)
	}
}

func TestPostgres_TaskOwnership(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	user := uniqueUser(t)

	created, err := store.CreateTask(ctx, user, "private", nil)
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	intruder := user + "-intruder"
	if _, err := store.GetTask(ctx, intruder, created.ID); !errors.Is(err, tasks.ErrNotFound) {
		t.Errorf("GetTask by other user: got %v, want ErrNotFound", err)
	}
	if err := store.DeleteTask(ctx, intruder, created.ID); !errors.Is(err, tasks.ErrNotFound) {
		t.Errorf("DeleteTask by other user: got %v, want ErrNotFound", err)
	}
	if _, err := store.GetTask(ctx, user, "not-a-uuid"); !errors.Is(err, tasks.ErrNotFound) {
		t.Errorf("GetTask malformed id: got %v, want ErrNotFound", err)
	}
}

func TestPostgres_ListTasks(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	user := uniqueUser(t)

	milk, _ := store.CreateTask(ctx, user, "buy milk", nil)
	store.CreateTask(ctx, user, "call mom", nil)
	store.CreateTask(ctx, user, "100% done_task", nil)
	store.ToggleTask(ctx, user, milk.ID)

	tests := []struct {
		name string
		opts tasks.ListOptions
		want []string
	}{
		{"all by title", tasks.ListOptions{SortBy: tasks.SortTitle}, []string{"100% done_task", "buy milk", "call mom"}},
		{"completed", tasks.ListOptions{Status: tasks.StatusCompleted}, []string{"buy milk"}},
		{"pending by title", tasks.ListOptions{Status: tasks.StatusPending, SortBy: tasks.SortTitle}, []string{"100% done_task", "call mom"}},
		{"search case-insensitive", tasks.ListOptions{Search: "MILK"}, []string{"buy milk"}},
		{"search literal percent", tasks.ListOptions{Search: "0% d"}, []string{"100% done_task"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ListTasks(ctx, user, tt.opts)
			if err != nil {
				t.Fatalf("ListTasks failed: %v", err)
			}
			var titles []string
			for _, task := range got {
				titles = append(titles, task.Title)
			}
			if strings.Join(titles, "|") != strings.Join(tt.want, "|") {
				t.Errorf("got %v, want %v", titles, tt.want)
			}
		})
	}
}

func TestPostgres_HealthCheck(t *testing.T) {
	store := setupTestDB(t)
	if err := store.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck failed: %v", err)
	}
}

func TestBuildListQuery(t *testing.T) {
	q, args := buildListQuery("u1", tasks.ListOptions{
		Status: tasks.StatusPending,
		Search: "a_b",
		SortBy: tasks.SortUpdatedAt,
	})
	if !strings.Contains(q, "completed = false") {
		t.Errorf("query missing status filter: %s", q)
	}
	if !strings.Contains(q, "ILIKE $2") {
		t.Errorf("query missing search placeholder: %s", q)
	}
	if !strings.HasSuffix(q, "ORDER BY updated_at DESC") {
		t.Errorf("query ordering = %s, want updated_at DESC", q)
	}
	if len(args) != 2 || args[1] != `%a\_b%` {
		t.Errorf("args = %v, want [u1 %%a\\_b%%]", args)
	}
}
