package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/wa-assistant/internal/model"
	"github.com/nhle/wa-assistant/internal/store"
	"github.com/nhle/wa-assistant/tests/testutil"
)

func TestMigrationsApplied(t *testing.T) {
	s := testutil.NewTestStore(t)

	v, err := s.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestFindOrCreateByPhone(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	u, created, err := s.FindOrCreateByPhone(ctx, "+5579988064629", "Test User")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "+5579988064629", u.Phone)
	assert.Equal(t, "Test User", u.Name)
	assert.False(t, u.Subscribed)
	assert.NotEmpty(t, u.ID)

	again, created, err := s.FindOrCreateByPhone(ctx, "+5579988064629", "Other Name")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, u.ID, again.ID)
	assert.Equal(t, "Test User", again.Name, "existing user keeps its name")
}

func TestGetUserNotFound(t *testing.T) {
	s := testutil.NewTestStore(t)

	_, err := s.GetUser(context.Background(), "missing")
	assert.True(t, model.IsNotFound(err))

	_, err = s.GetUserByPhone(context.Background(), "+1")
	assert.True(t, model.IsNotFound(err))
}

func TestTouchLastContactAndSubscribe(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	u := testutil.NewTestUser(t, s, "+5511999990000", "Ana")

	at := time.Date(2026, 10, 18, 12, 30, 15, 0, time.UTC)
	require.NoError(t, s.TouchLastContact(ctx, u.ID, at))
	require.NoError(t, s.SetSubscribed(ctx, u.ID, true))

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.LastContactAt.Equal(at))
	assert.True(t, got.Subscribed)

	assert.True(t, model.IsNotFound(s.TouchLastContact(ctx, "nope", at)))
	assert.True(t, model.IsNotFound(s.SetSubscribed(ctx, "nope", true)))
}

func TestCreateAndFindTask(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	u := testutil.NewTestUser(t, s, "+5511999990001", "Bia")

	due := time.Date(2026, 11, 1, 15, 0, 0, 0, time.UTC)
	created, err := s.CreateTask(ctx, model.Task{
		UserID:      u.ID,
		Description: "Dentist",
		DueAt:       due,
		ReminderAt:  due.Add(-2 * time.Hour),
		Meta:        "health",
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	got, err := s.FindTask(ctx, created.ID, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dentist", got.Description)
	assert.Equal(t, "health", got.Meta)
	assert.Equal(t, u.ID, got.UserID)
	assert.True(t, got.DueAt.Equal(due))
	assert.True(t, got.ReminderAt.Equal(due.Add(-2*time.Hour)))
}

func TestFindTaskScopedToOwner(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	owner := testutil.NewTestUser(t, s, "+5511999990002", "Owner")
	other := testutil.NewTestUser(t, s, "+5511999990003", "Other")
	task := testutil.NewTestTask(t, s, owner.ID, "Private", time.Now().Add(48*time.Hour))

	_, err := s.FindTask(ctx, task.ID, other.ID)
	assert.True(t, model.IsNotFound(err))

	task.UserID = other.ID
	task.Description = "Hijacked"
	err = s.UpdateTask(ctx, *task)
	assert.True(t, model.IsNotFound(err))

	got, err := s.FindTask(ctx, task.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "Private", got.Description)
}

func TestUpdateTaskMovesReminderMinute(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	u := testutil.NewTestUser(t, s, "+5511999990004", "Caio")

	due := time.Date(2026, 12, 24, 20, 0, 0, 0, time.UTC)
	task := testutil.NewTestTask(t, s, u.ID, "Dinner", due)

	moved := due.Add(-30 * time.Minute)
	task.ReminderAt = moved
	require.NoError(t, s.UpdateTask(ctx, *task))

	old, err := s.ListDueAt(ctx, due.Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, old)

	now, err := s.ListDueAt(ctx, moved)
	require.NoError(t, err)
	require.Len(t, now, 1)
	assert.Equal(t, task.ID, now[0].ID)
}

func TestListDueAtMinuteGranularity(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	u := testutil.NewTestUser(t, s, "+5511999990005", "Duda")

	minute := time.Date(2026, 10, 20, 9, 15, 0, 0, time.UTC)
	for i, offset := range []time.Duration{0, 30 * time.Second, 59 * time.Second, time.Minute, -time.Second} {
		_, err := s.CreateTask(ctx, model.Task{
			UserID:      u.ID,
			Description: string(rune('a' + i)),
			DueAt:       minute.Add(time.Hour),
			ReminderAt:  minute.Add(offset),
		})
		require.NoError(t, err)
	}

	due, err := s.ListDueAt(ctx, minute.Add(20*time.Second))
	require.NoError(t, err)
	require.Len(t, due, 3)
	for _, task := range due {
		assert.Contains(t, []string{"a", "b", "c"}, task.Description)
	}
}

func TestListUpcomingOrderedAndBounded(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	u := testutil.NewTestUser(t, s, "+5511999990006", "Eva")
	other := testutil.NewTestUser(t, s, "+5511999990007", "Fabio")

	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	testutil.NewTestTask(t, s, u.ID, "past", now.Add(-time.Hour))
	testutil.NewTestTask(t, s, u.ID, "third", now.Add(72*time.Hour))
	testutil.NewTestTask(t, s, u.ID, "first", now.Add(2*time.Hour))
	testutil.NewTestTask(t, s, u.ID, "second", now.Add(24*time.Hour))
	testutil.NewTestTask(t, s, u.ID, "far", now.Add(90*24*time.Hour))
	testutil.NewTestTask(t, s, other.ID, "not mine", now.Add(3*time.Hour))

	tasks, err := s.ListUpcoming(ctx, u.ID, store.UpcomingFilter{
		From:  now,
		Until: now.Add(30 * 24 * time.Hour),
	})
	require.NoError(t, err)

	var got []string
	for _, task := range tasks {
		got = append(got, task.Description)
	}
	assert.Equal(t, []string{"first", "second", "third"}, got)

	limited, err := s.ListUpcoming(ctx, u.ID, store.UpcomingFilter{From: now, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	unbounded, err := s.ListUpcoming(ctx, u.ID, store.UpcomingFilter{From: now})
	require.NoError(t, err)
	assert.Len(t, unbounded, 4)
}

func TestClaimReminderOnce(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	u := testutil.NewTestUser(t, s, "+5511999990008", "Gil")
	task := testutil.NewTestTask(t, s, u.ID, "Call mom", time.Now().Add(time.Hour))

	minute := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	ok, err := s.ClaimReminder(ctx, task.ID, minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.ClaimReminder(ctx, task.ID, minute.Add(40*time.Second))
	require.NoError(t, err)
	assert.False(t, ok, "same minute must not be claimed twice")

	ok, err = s.ClaimReminder(ctx, task.ID, minute.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)
}
