package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/nhle/wa-assistant/internal/model"
	"github.com/nhle/wa-assistant/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// NewTestUser creates a user with the given phone in s and returns it.
func NewTestUser(t *testing.T, s *store.SQLiteStore, phone, name string) *model.User {
	t.Helper()

	u, _, err := s.FindOrCreateByPhone(context.Background(), phone, name)
	if err != nil {
		t.Fatalf("creating test user: %v", err)
	}
	return u
}

// NewTestTask creates a task owned by userID due at dueAt with a reminder
// one hour earlier.
func NewTestTask(t *testing.T, s *store.SQLiteStore, userID, description string, dueAt time.Time) *model.Task {
	t.Helper()

	task, err := s.CreateTask(context.Background(), model.Task{
		UserID:      userID,
		Description: description,
		DueAt:       dueAt,
		ReminderAt:  dueAt.Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("creating test task: %v", err)
	}
	return task
}
