package model

import "time"

// Task is a reminder-bearing item owned by exactly one user.
type Task struct {
	ID          string    `json:"id" db:"id"`
	UserID      string    `json:"user_id" db:"user_id"`
	Description string    `json:"description" db:"description"`
	DueAt       time.Time `json:"due_at" db:"due_at"`
	ReminderAt  time.Time `json:"reminder_at" db:"reminder_at"`
	Meta        string    `json:"meta" db:"meta"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// TaskInput carries the fields of a create-task command. Meta is optional.
type TaskInput struct {
	Description string
	DueAt       time.Time
	ReminderAt  time.Time
	Meta        string
}

// Validate checks required fields and the reminder ordering.
func (in TaskInput) Validate() error {
	if in.Description == "" {
		return &ValidationError{Field: "description", Message: "is required"}
	}
	if in.DueAt.IsZero() {
		return &ValidationError{Field: "due_at", Message: "is required"}
	}
	if in.ReminderAt.IsZero() {
		return &ValidationError{Field: "reminder_at", Message: "is required"}
	}
	return validateOrder(in.ReminderAt, in.DueAt)
}

// TaskPatch carries the optional fields of an update-task command.
// A nil field is left untouched.
type TaskPatch struct {
	Description *string
	DueAt       *time.Time
	ReminderAt  *time.Time
	Meta        *string
}

// IsEmpty reports whether the patch changes nothing.
func (p TaskPatch) IsEmpty() bool {
	return p.Description == nil && p.DueAt == nil && p.ReminderAt == nil && p.Meta == nil
}

// Apply returns a copy of t with the patch merged in and validates the
// merged values.
func (p TaskPatch) Apply(t Task) (Task, error) {
	if p.Description != nil {
		if *p.Description == "" {
			return Task{}, &ValidationError{Field: "description", Message: "must not be empty"}
		}
		t.Description = *p.Description
	}
	if p.DueAt != nil {
		t.DueAt = *p.DueAt
	}
	if p.ReminderAt != nil {
		t.ReminderAt = *p.ReminderAt
	}
	if p.Meta != nil {
		t.Meta = *p.Meta
	}
	if err := validateOrder(t.ReminderAt, t.DueAt); err != nil {
		return Task{}, err
	}
	return t, nil
}

func validateOrder(reminderAt, dueAt time.Time) error {
	if reminderAt.After(dueAt) {
		return &ValidationError{
			Field:   "reminder_at",
			Message: "must not be after due_at",
		}
	}
	return nil
}
