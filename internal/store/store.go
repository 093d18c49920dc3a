package store

import (
	"context"
	"time"

	"github.com/nhle/wa-assistant/internal/model"
)

// UpcomingFilter bounds an agenda query.
type UpcomingFilter struct {
	From  time.Time // tasks due strictly after From
	Until time.Time // zero means no upper bound
	Limit int       // zero means no limit
}

// UserStore persists WhatsApp contacts.
type UserStore interface {
	// FindOrCreateByPhone returns the user with the given canonical phone,
	// creating it with name when absent. created reports which happened.
	FindOrCreateByPhone(ctx context.Context, phone, name string) (user *model.User, created bool, err error)
	GetUser(ctx context.Context, id string) (*model.User, error)
	GetUserByPhone(ctx context.Context, phone string) (*model.User, error)
	TouchLastContact(ctx context.Context, userID string, at time.Time) error
	SetSubscribed(ctx context.Context, userID string, subscribed bool) error
}

// TaskStore persists tasks. Every read or write that names a task also
// names its owner; a task belonging to someone else is reported as not found.
type TaskStore interface {
	CreateTask(ctx context.Context, task model.Task) (*model.Task, error)
	UpdateTask(ctx context.Context, task model.Task) error
	FindTask(ctx context.Context, id, userID string) (*model.Task, error)
	ListUpcoming(ctx context.Context, userID string, filter UpcomingFilter) ([]model.Task, error)
	ListTasksForUser(ctx context.Context, userID string) ([]model.Task, error)

	// ListDueAt returns every task whose reminder falls within the minute
	// starting at minute.
	ListDueAt(ctx context.Context, minute time.Time) ([]model.Task, error)
}

// ReminderLog records which (task, minute) reminders already fired.
type ReminderLog interface {
	// ClaimReminder marks the reminder for taskID at minute as fired.
	// It returns false when an earlier claim exists.
	ClaimReminder(ctx context.Context, taskID string, minute time.Time) (bool, error)
}

// Store is the full persistence surface used by the application.
type Store interface {
	UserStore
	TaskStore
	ReminderLog
	Close() error
}
