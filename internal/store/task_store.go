package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/wa-assistant/internal/model"
)

const taskColumns = `id, user_id, description, due_at, reminder_at, meta, created_at, updated_at`

// CreateTask inserts a new task. Generates a UUID if ID is empty.
// Validation is the caller's job; the store persists what it is given.
func (s *SQLiteStore) CreateTask(ctx context.Context, task model.Task) (*model.Task, error) {
	if task.UserID == "" {
		return nil, fmt.Errorf("task owner must not be empty")
	}
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	now := dbTime(s.now())
	task.CreatedAt = now
	task.UpdatedAt = now
	task.DueAt = dbTime(task.DueAt)
	task.ReminderAt = dbTime(task.ReminderAt)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (
			id, user_id, description, due_at, reminder_at, reminder_minute,
			meta, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.UserID, task.Description, task.DueAt, task.ReminderAt,
		unixMinute(task.ReminderAt), task.Meta, task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}
	return &task, nil
}

// UpdateTask overwrites the mutable fields of a task in a single write
// keyed by id and owner.
func (s *SQLiteStore) UpdateTask(ctx context.Context, task model.Task) error {
	task.UpdatedAt = dbTime(s.now())
	task.DueAt = dbTime(task.DueAt)
	task.ReminderAt = dbTime(task.ReminderAt)

	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET
			description = ?, due_at = ?, reminder_at = ?, reminder_minute = ?,
			meta = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		task.Description, task.DueAt, task.ReminderAt, unixMinute(task.ReminderAt),
		task.Meta, task.UpdatedAt,
		task.ID, task.UserID,
	)
	if err != nil {
		return fmt.Errorf("updating task %s: %w", task.ID, err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return &model.NotFoundError{Resource: "task", ID: task.ID}
	}
	return nil
}

// FindTask retrieves a task by ID, scoped to its owner.
func (s *SQLiteStore) FindTask(
	ctx context.Context,
	id string,
	userID string,
) (*model.Task, error) {
	var task model.Task
	err := s.db.GetContext(ctx, &task,
		"SELECT "+taskColumns+" FROM tasks WHERE id = ? AND user_id = ?",
		id, userID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &model.NotFoundError{Resource: "task", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("getting task %s: %w", id, err)
	}
	normalizeTask(&task)
	return &task, nil
}

// ListUpcoming retrieves the user's tasks due after filter.From, soonest first.
func (s *SQLiteStore) ListUpcoming(
	ctx context.Context,
	userID string,
	filter UpcomingFilter,
) ([]model.Task, error) {
	query := "SELECT " + taskColumns + " FROM tasks WHERE user_id = ? AND due_at > ?"
	args := []interface{}{userID, dbTime(filter.From)}

	if !filter.Until.IsZero() {
		query += " AND due_at <= ?"
		args = append(args, dbTime(filter.Until))
	}
	query += " ORDER BY due_at ASC, created_at ASC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	var tasks []model.Task
	if err := s.db.SelectContext(ctx, &tasks, query, args...); err != nil {
		return nil, fmt.Errorf("querying upcoming tasks for user %s: %w", userID, err)
	}
	return normalizeTasks(tasks), nil
}

// ListTasksForUser retrieves every task owned by the user ordered by due date.
func (s *SQLiteStore) ListTasksForUser(
	ctx context.Context,
	userID string,
) ([]model.Task, error) {
	var tasks []model.Task
	err := s.db.SelectContext(ctx, &tasks,
		"SELECT "+taskColumns+" FROM tasks WHERE user_id = ? ORDER BY due_at ASC",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying tasks for user %s: %w", userID, err)
	}
	return normalizeTasks(tasks), nil
}

// ListDueAt retrieves the tasks whose reminder falls in the given minute.
func (s *SQLiteStore) ListDueAt(
	ctx context.Context,
	minute time.Time,
) ([]model.Task, error) {
	var tasks []model.Task
	err := s.db.SelectContext(ctx, &tasks,
		"SELECT "+taskColumns+" FROM tasks WHERE reminder_minute = ? ORDER BY reminder_at, id",
		unixMinute(minute),
	)
	if err != nil {
		return nil, fmt.Errorf("querying reminders due at %s: %w", minute.Format(time.RFC3339), err)
	}
	return normalizeTasks(tasks), nil
}
