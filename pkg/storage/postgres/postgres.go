// Package postgres provides a PostgreSQL implementation of history.Store
// and tasks.Store. It uses pgx/v5 for connection pooling and embedded
// SQL migrations for the schema.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rhuss/todoflow/pkg/debug"
	"github.com/rhuss/todoflow/pkg/history"
	"github.com/rhuss/todoflow/pkg/storage"
	"github.com/rhuss/todoflow/pkg/tasks"
)

// Store is a PostgreSQL-backed history and task store.
type Store struct {
	pool *pgxpool.Pool
}

// Ensure Store implements storage.Backend at compile time.
var _ storage.Backend = (*Store)(nil)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	poolCfg, err := cfg.poolConfig()
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// Append stores a conversation turn.
func (s *Store) Append(ctx context.Context, userID, role, content string) (*history.Message, error) {
	msg := &history.Message{
		ID:      uuid.NewString(),
		UserID:  userID,
		Role:    role,
		Content: content,
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO chat_messages (id, user_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, clock_timestamp())
		RETURNING created_at
	`, msg.ID, userID, role, content).Scan(&msg.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("inserting message: %w", err)
	}
	debug.Log("storage", "message appended", "user", userID, "role", role, "id", msg.ID)
	return msg, nil
}

// Recent returns up to limit of the user's newest turns, newest first.
// A non-positive limit returns every turn.
func (s *Store) Recent(ctx context.Context, userID string, limit int) ([]history.Message, error) {
	var lim any // NULL means no limit
	if limit > 0 {
		lim = limit
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, role, content, created_at
		FROM chat_messages
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, lim)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	msgs := []history.Message{}
	for rows.Next() {
		var m history.Message
		if err := rows.Scan(&m.ID, &m.UserID, &m.Role, &m.Content, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating history: %w", err)
	}
	return msgs, nil
}

// Clear deletes all of the user's turns.
func (s *Store) Clear(ctx context.Context, userID string) (int, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM chat_messages WHERE user_id = $1", userID)
	if err != nil {
		return 0, fmt.Errorf("clearing history: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

const taskColumns = "id, user_id, title, description, completed, created_at, updated_at"

func scanTask(row pgx.Row) (*tasks.Task, error) {
	var t tasks.Task
	var id uuid.UUID
	if err := row.Scan(&id, &t.UserID, &t.Title, &t.Description, &t.Completed, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tasks.ErrNotFound
		}
		return nil, fmt.Errorf("scanning task: %w", err)
	}
	t.ID = id.String()
	return &t, nil
}

// CreateTask stores a new pending task.
func (s *Store) CreateTask(ctx context.Context, userID, title string, description *string) (*tasks.Task, error) {
	if err := tasks.ValidateTitle(title); err != nil {
		return nil, err
	}
	return scanTask(s.pool.QueryRow(ctx, `
		INSERT INTO tasks (id, user_id, title, description)
		VALUES ($1, $2, $3, $4)
		RETURNING `+taskColumns,
		tasks.NewID(), userID, title, description,
	))
}

// GetTask returns a task owned by userID.
func (s *Store) GetTask(ctx context.Context, userID, id string) (*tasks.Task, error) {
	key, err := tasks.ParseID(id)
	if err != nil {
		return nil, err
	}
	return scanTask(s.pool.QueryRow(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE id = $1 AND user_id = $2",
		key, userID,
	))
}

// ListTasks returns the user's tasks filtered and ordered by opts.
func (s *Store) ListTasks(ctx context.Context, userID string, opts tasks.ListOptions) ([]tasks.Task, error) {
	query, args := buildListQuery(userID, opts)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	defer rows.Close()

	out := []tasks.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tasks: %w", err)
	}
	return out, nil
}

// buildListQuery renders the filtered task query with positional args.
func buildListQuery(userID string, opts tasks.ListOptions) (string, []any) {
	var b strings.Builder
	args := []any{userID}
	b.WriteString("SELECT " + taskColumns + " FROM tasks WHERE user_id = $1")

	switch opts.Status {
	case tasks.StatusCompleted:
		b.WriteString(" AND completed = true")
	case tasks.StatusPending:
		b.WriteString(" AND completed = false")
	}

	if opts.Search != "" {
		args = append(args, "%"+escapeLike(opts.Search)+"%")
		fmt.Fprintf(&b, " AND (title ILIKE $%d OR description ILIKE $%d)", len(args), len(args))
	}

	switch opts.SortBy {
	case tasks.SortTitle:
		b.WriteString(" ORDER BY title ASC")
	case tasks.SortUpdatedAt:
		b.WriteString(" ORDER BY updated_at DESC")
	default:
		b.WriteString(" ORDER BY created_at DESC")
	}
	return b.String(), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// UpdateTask applies patch to a task owned by userID.
func (s *Store) UpdateTask(ctx context.Context, userID, id string, patch tasks.Patch) (*tasks.Task, error) {
	if patch.Title != nil {
		if err := tasks.ValidateTitle(*patch.Title); err != nil {
			return nil, err
		}
	}
	key, err := tasks.ParseID(id)
	if err != nil {
		return nil, err
	}
	return scanTask(s.pool.QueryRow(ctx, `
		UPDATE tasks SET
			title = COALESCE($3, title),
			description = COALESCE($4, description),
			completed = COALESCE($5, completed),
			updated_at = $6
		WHERE id = $1 AND user_id = $2
		RETURNING `+taskColumns,
		key, userID, patch.Title, patch.Description, patch.Completed, time.Now().UTC(),
	))
}

// ToggleTask flips the completion flag of a task owned by userID.
func (s *Store) ToggleTask(ctx context.Context, userID, id string) (*tasks.Task, error) {
	key, err := tasks.ParseID(id)
	if err != nil {
		return nil, err
	}
	return scanTask(s.pool.QueryRow(ctx, `
		UPDATE tasks SET completed = NOT completed, updated_at = $3
		WHERE id = $1 AND user_id = $2
		RETURNING `+taskColumns,
		key, userID, time.Now().UTC(),
	))
}

// DeleteTask removes a task owned by userID.
func (s *Store) DeleteTask(ctx context.Context, userID, id string) error {
	key, err := tasks.ParseID(id)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, "DELETE FROM tasks WHERE id = $1 AND user_id = $2", key, userID)
	if err != nil {
		return fmt.Errorf("deleting task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return tasks.ErrNotFound
	}
	return nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
