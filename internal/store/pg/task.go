package pg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/sergiogc4/taskhub/internal/ids"
	"github.com/sergiogc4/taskhub/internal/task"
)

// TaskStore implements task.Store on PostgreSQL.
type TaskStore struct {
	db *sql.DB
}

var _ task.Store = (*TaskStore)(nil)

// NewTaskStore wraps an existing connection.
func NewTaskStore(db *sql.DB) *TaskStore { return &TaskStore{db: db} }

func (s *TaskStore) Create(ctx context.Context, t *task.Task) error {
	if t.ID == "" {
		t.ID = ids.New()
	}
	row := s.db.QueryRowContext(ctx, `
		insert into tasks(id, title, description, status, priority, due_date, owner_id)
		values($1,$2,$3,$4,$5,$6,$7)
		returning created_at, updated_at`,
		t.ID, t.Title, t.Description, string(t.Status), string(t.Priority), t.DueDate, t.OwnerID,
	)
	return row.Scan(&t.CreatedAt, &t.UpdatedAt)
}

func (s *TaskStore) Find(ctx context.Context, id string) (*task.Task, error) {
	t, err := scanTask(s.db.QueryRowContext(ctx, `
		select id, title, description, status, priority, due_date, owner_id, created_at, updated_at
		from tasks where id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, task.ErrNotFound
	}
	return t, err
}

func (s *TaskStore) ListByOwner(ctx context.Context, ownerID string) ([]*task.Task, error) {
	return s.list(ctx, `
		select id, title, description, status, priority, due_date, owner_id, created_at, updated_at
		from tasks where owner_id=$1 order by created_at desc`, ownerID)
}

func (s *TaskStore) List(ctx context.Context) ([]*task.Task, error) {
	return s.list(ctx, `
		select id, title, description, status, priority, due_date, owner_id, created_at, updated_at
		from tasks order by created_at desc`)
}

func (s *TaskStore) Update(ctx context.Context, t *task.Task) error {
	res, err := s.db.ExecContext(ctx, `
		update tasks set title=$2, description=$3, status=$4, priority=$5, due_date=$6, updated_at=now()
		where id=$1`,
		t.ID, t.Title, t.Description, string(t.Status), string(t.Priority), t.DueDate,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return task.ErrNotFound
	}
	return nil
}

func (s *TaskStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from tasks where id=$1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return task.ErrNotFound
	}
	return nil
}

func (s *TaskStore) DeleteByOwner(ctx context.Context, ownerID string) error {
	_, err := s.db.ExecContext(ctx, `delete from tasks where owner_id=$1`, ownerID)
	return err
}

func (s *TaskStore) list(ctx context.Context, query string, args ...any) ([]*task.Task, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func scanTask(row rowScanner) (*task.Task, error) {
	var (
		t        task.Task
		status   string
		priority string
		dueDate  sql.NullTime
	)
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &status, &priority, &dueDate, &t.OwnerID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Status = task.TaskStatus(status)
	t.Priority = task.Priority(priority)
	if dueDate.Valid {
		d := dueDate.Time
		t.DueDate = &d
	}
	return &t, nil
}
