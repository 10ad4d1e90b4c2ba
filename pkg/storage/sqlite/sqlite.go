// Package sqlite provides a single-file SQLite implementation of
// history.Store and tasks.Store for local and single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/rhuss/todoflow/pkg/history"
	"github.com/rhuss/todoflow/pkg/storage"
	"github.com/rhuss/todoflow/pkg/tasks"
)

// timeLayout is fixed-width so text comparison matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store is a SQLite-backed history and task store. All public methods
// are safe for concurrent use (SQLite serializes writes).
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Ensure Store implements storage.Backend at compile time.
var _ storage.Backend = (*Store)(nil)

// New opens the database at path, creating the schema on first use.
// Use ":memory:" for a throwaway database.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A second connection to ":memory:" would see an empty database.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chat_messages (
		seq        INTEGER PRIMARY KEY AUTOINCREMENT,
		id         TEXT NOT NULL UNIQUE,
		user_id    TEXT NOT NULL,
		role       TEXT NOT NULL CHECK (role IN ('user', 'assistant', 'tool')),
		content    TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chat_messages_user ON chat_messages (user_id, seq);

	CREATE TABLE IF NOT EXISTS tasks (
		id          TEXT PRIMARY KEY,
		user_id     TEXT NOT NULL,
		title       TEXT NOT NULL,
		description TEXT,
		completed   INTEGER NOT NULL DEFAULT 0,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_tasks_user ON tasks (user_id, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(v string) (time.Time, error) {
	return time.Parse(timeLayout, v)
}

// Append stores a conversation turn.
func (s *Store) Append(ctx context.Context, userID, role, content string) (*history.Message, error) {
	msg := &history.Message{
		ID:        uuid.NewString(),
		UserID:    userID,
		Role:      role,
		Content:   content,
		Timestamp: s.timestamp(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_messages (id, user_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		msg.ID, userID, role, content, formatTime(msg.Timestamp),
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return msg, nil
}

// Recent returns up to limit of the user's newest turns, newest first.
// Insertion order breaks timestamp ties. A non-positive limit returns
// every turn.
func (s *Store) Recent(ctx context.Context, userID string, limit int) ([]history.Message, error) {
	if limit <= 0 {
		limit = -1 // no limit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, role, content, created_at FROM chat_messages
		 WHERE user_id = ? ORDER BY seq DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	msgs := []history.Message{}
	for rows.Next() {
		var m history.Message
		var ts string
		if err := rows.Scan(&m.ID, &m.UserID, &m.Role, &m.Content, &ts); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if m.Timestamp, err = parseTime(ts); err != nil {
			return nil, fmt.Errorf("parse message time: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// Clear deletes all of the user's turns.
func (s *Store) Clear(ctx context.Context, userID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chat_messages WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

const taskColumns = "id, user_id, title, description, completed, created_at, updated_at"

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (*tasks.Task, error) {
	var t tasks.Task
	var desc sql.NullString
	var created, updated string
	if err := row.Scan(&t.ID, &t.UserID, &t.Title, &desc, &t.Completed, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, tasks.ErrNotFound
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}
	if desc.Valid {
		t.Description = &desc.String
	}
	var err error
	if t.CreatedAt, err = parseTime(created); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if t.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &t, nil
}

// CreateTask stores a new pending task.
func (s *Store) CreateTask(ctx context.Context, userID, title string, description *string) (*tasks.Task, error) {
	if err := tasks.ValidateTitle(title); err != nil {
		return nil, err
	}
	now := s.timestamp()
	t := &tasks.Task{
		ID:          tasks.NewID(),
		UserID:      userID,
		Title:       title,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, 0, ?, ?)`,
		t.ID, userID, title, description, formatTime(now), formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	return t, nil
}

// GetTask returns a task owned by userID.
func (s *Store) GetTask(ctx context.Context, userID, id string) (*tasks.Task, error) {
	key, err := tasks.ParseID(id)
	if err != nil {
		return nil, err
	}
	return scanTask(s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ? AND user_id = ?`, key, userID))
}

// ListTasks returns the user's tasks filtered and ordered by opts.
func (s *Store) ListTasks(ctx context.Context, userID string, opts tasks.ListOptions) ([]tasks.Task, error) {
	var b strings.Builder
	args := []any{userID}
	b.WriteString(`SELECT ` + taskColumns + ` FROM tasks WHERE user_id = ?`)

	switch opts.Status {
	case tasks.StatusCompleted:
		b.WriteString(` AND completed = 1`)
	case tasks.StatusPending:
		b.WriteString(` AND completed = 0`)
	}
	if opts.Search != "" {
		term := "%" + strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(opts.Search) + "%"
		b.WriteString(` AND (title LIKE ? ESCAPE '\' OR description LIKE ? ESCAPE '\')`)
		args = append(args, term, term)
	}
	switch opts.SortBy {
	case tasks.SortTitle:
		b.WriteString(` ORDER BY title ASC`)
	case tasks.SortUpdatedAt:
		b.WriteString(` ORDER BY updated_at DESC`)
	default:
		b.WriteString(` ORDER BY created_at DESC`)
	}

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
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
	return out, rows.Err()
}

// UpdateTask applies patch to a task owned by userID.
func (s *Store) UpdateTask(ctx context.Context, userID, id string, patch tasks.Patch) (*tasks.Task, error) {
	return s.mutate(ctx, userID, id, func(t *tasks.Task, now time.Time) error {
		return patch.Apply(t, now)
	})
}

// ToggleTask flips the completion flag of a task owned by userID.
func (s *Store) ToggleTask(ctx context.Context, userID, id string) (*tasks.Task, error) {
	return s.mutate(ctx, userID, id, func(t *tasks.Task, now time.Time) error {
		t.Completed = !t.Completed
		t.UpdatedAt = now
		return nil
	})
}

// mutate loads, edits and writes back a task in one transaction.
func (s *Store) mutate(ctx context.Context, userID, id string, fn func(*tasks.Task, time.Time) error) (*tasks.Task, error) {
	key, err := tasks.ParseID(id)
	if err != nil {
		return nil, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	t, err := scanTask(tx.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ? AND user_id = ?`, key, userID))
	if err != nil {
		return nil, err
	}
	if err := fn(t, s.timestamp()); err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE tasks SET title = ?, description = ?, completed = ?, updated_at = ? WHERE id = ?`,
		t.Title, t.Description, t.Completed, formatTime(t.UpdatedAt), key,
	)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return t, nil
}

// DeleteTask removes a task owned by userID.
func (s *Store) DeleteTask(ctx context.Context, userID, id string) error {
	key, err := tasks.ParseID(id)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ? AND user_id = ?`, key, userID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return tasks.ErrNotFound
	}
	return nil
}

// HealthCheck verifies the database is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
