package command_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/wa-assistant/internal/command"
	"github.com/nhle/wa-assistant/internal/model"
	"github.com/nhle/wa-assistant/internal/store"
	"github.com/nhle/wa-assistant/tests/testutil"
)

const phone = "+5579988064629"

type fixture struct {
	store  *store.SQLiteStore
	sink   *testutil.RecordingSink
	router *command.Router
	now    time.Time
}

func newFixture(t *testing.T, opts ...command.Option) *fixture {
	t.Helper()
	f := &fixture{
		store: testutil.NewTestStore(t),
		sink:  &testutil.RecordingSink{},
		now:   time.Now().UTC().Truncate(time.Second),
	}
	opts = append([]command.Option{command.WithClock(func() time.Time { return f.now })}, opts...)
	f.router = command.New(f.store, f.store, f.sink, command.Config{
		Location:      time.UTC,
		AgendaHorizon: 30 * 24 * time.Hour,
	}, opts...)
	return f
}

func (f *fixture) handle(t *testing.T, body string) *command.Result {
	t.Helper()
	res, err := f.router.Handle(context.Background(), model.Inbound{
		From: "whatsapp:" + phone,
		Name: "Test User",
		WaID: strings.TrimPrefix(phone, "+"),
		Body: body,
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) user(t *testing.T) *model.User {
	t.Helper()
	return testutil.NewTestUser(t, f.store, phone, "Test User")
}

func stamp(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func TestMenuFromUnknownSenderCreatesUser(t *testing.T) {
	f := newFixture(t)

	res := f.handle(t, "!menu")

	assert.True(t, res.UserCreated)
	assert.Equal(t, command.IntentMenu, res.Intent)

	u, err := f.store.GetUserByPhone(context.Background(), phone)
	require.NoError(t, err)
	assert.Equal(t, "Test User", u.Name)

	sent := f.sink.To(phone)
	require.Len(t, sent, 1)
	assert.Equal(t, model.KindText, sent[0].Kind)
	assert.Contains(t, sent[0].Body, "!agenda")
}

func TestFreeformFirstMessageCreatesUser(t *testing.T) {
	f := newFixture(t)

	res := f.handle(t, "Oi, tudo bem?")

	assert.True(t, res.UserCreated)
	assert.Equal(t, command.IntentFreeform, res.Intent)
	_, err := f.store.GetUserByPhone(context.Background(), phone)
	require.NoError(t, err)
}

func TestNameFallsBackToWaID(t *testing.T) {
	f := newFixture(t)

	_, err := f.router.Handle(context.Background(), model.Inbound{
		From: "whatsapp:" + phone,
		WaID: "5579988064629",
		Body: "!menu",
	})
	require.NoError(t, err)

	u, err := f.store.GetUserByPhone(context.Background(), phone)
	require.NoError(t, err)
	assert.Equal(t, "5579988064629", u.Name)
}

func TestInvalidSenderRejected(t *testing.T) {
	f := newFixture(t)

	_, err := f.router.Handle(context.Background(), model.Inbound{From: "whatsapp:", Body: "!menu"})
	assert.True(t, model.IsValidationError(err))
	assert.Empty(t, f.sink.Sent)
}

func TestHandleTouchesLastContact(t *testing.T) {
	f := newFixture(t)
	u := f.user(t)
	require.NoError(t, f.store.TouchLastContact(context.Background(), u.ID, f.now.Add(-48*time.Hour)))

	f.handle(t, "!menu")

	got, err := f.store.GetUser(context.Background(), u.ID)
	require.NoError(t, err)
	assert.True(t, got.LastContactAt.Equal(f.now))
}

func TestAgendaListsUpcomingInOrder(t *testing.T) {
	f := newFixture(t)
	u := f.user(t)
	testutil.NewTestTask(t, f.store, u.ID, "Later", f.now.Add(48*time.Hour))
	testutil.NewTestTask(t, f.store, u.ID, "Sooner", f.now.Add(3*time.Hour))
	testutil.NewTestTask(t, f.store, u.ID, "Done already", f.now.Add(-3*time.Hour))

	res := f.handle(t, "!agenda")

	require.Len(t, res.Messages, 1)
	body := res.Messages[0].Body
	assert.NotContains(t, body, "Done already")
	assert.Less(t, strings.Index(body, "Sooner"), strings.Index(body, "Later"))
	assert.Len(t, f.sink.To(phone), 1)
}

func TestAgendaEmpty(t *testing.T) {
	f := newFixture(t)

	res := f.handle(t, "!agenda")

	require.Len(t, res.Messages, 1)
	assert.Contains(t, res.Messages[0].Body, "não tem tarefas")
}

func TestInsightsSendsText(t *testing.T) {
	f := newFixture(t)
	u := f.user(t)
	testutil.NewTestTask(t, f.store, u.ID, "Consulta", f.now.Add(24*time.Hour))

	res := f.handle(t, "!insights")

	assert.Equal(t, command.IntentInsights, res.Intent)
	sent := f.sink.To(phone)
	require.Len(t, sent, 1)
	assert.Equal(t, model.KindText, sent[0].Kind)
	assert.Contains(t, sent[0].Body, "Total de tarefas: 1")
}

func TestCreateTaskPersistsFields(t *testing.T) {
	f := newFixture(t)
	due := f.now.Add(24 * time.Hour)
	reminder := f.now.Add(23 * time.Hour)

	res := f.handle(t, fmt.Sprintf(
		`{"action":"create_task","description":"Test Task","due_at":%q,"reminder_at":%q,"meta":"Meeting"}`,
		stamp(due), stamp(reminder),
	))

	require.NoError(t, res.Err)
	require.NotNil(t, res.Task)

	got, err := f.store.FindTask(context.Background(), res.Task.ID, res.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "Test Task", got.Description)
	assert.Equal(t, "Meeting", got.Meta)
	assert.Equal(t, res.User.ID, got.UserID)
	assert.True(t, got.DueAt.Equal(due))
	assert.True(t, got.ReminderAt.Equal(reminder))
	assert.Contains(t, f.sink.To(phone)[0].Body, "Tarefa criada")
}

func TestCreateTaskMetaOptional(t *testing.T) {
	f := newFixture(t)
	u := f.user(t)

	task, err := f.router.CreateTask(context.Background(), *u, model.TaskInput{
		Description: "No label",
		DueAt:       f.now.Add(time.Hour),
		ReminderAt:  f.now.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Empty(t, task.Meta)
}

func TestCreateTaskRejectsInvalidInput(t *testing.T) {
	cases := map[string]string{
		"reminder after due": fmt.Sprintf(`{"action":"create_task","description":"x","due_at":%q,"reminder_at":%q}`,
			"2030-01-01T10:00:00Z", "2030-01-01T10:01:00Z"),
		"missing description": `{"action":"create_task","due_at":"2030-01-01 10:00","reminder_at":"2030-01-01 09:00"}`,
		"missing due_at":      `{"action":"create_task","description":"x","reminder_at":"2030-01-01 09:00"}`,
		"bad timestamp":       `{"action":"create_task","description":"x","due_at":"tomorrow","reminder_at":"2030-01-01 09:00"}`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)

			res := f.handle(t, body)

			assert.True(t, model.IsValidationError(res.Err))
			assert.Nil(t, res.Task)
			tasks, err := f.store.ListTasksForUser(context.Background(), res.User.ID)
			require.NoError(t, err)
			assert.Empty(t, tasks)
			require.Len(t, f.sink.To(phone), 1)
			assert.Contains(t, f.sink.To(phone)[0].Body, "Não consegui salvar")
		})
	}
}

func TestUpdateTaskNotOwnedLeavesStoreUntouched(t *testing.T) {
	f := newFixture(t)
	other := testutil.NewTestUser(t, f.store, "+5511000000000", "Other")
	theirs := testutil.NewTestTask(t, f.store, other.ID, "Theirs", f.now.Add(5*time.Hour))

	res := f.handle(t, fmt.Sprintf(`{"action":"update_task","task_id":%q,"description":"Mine now"}`, theirs.ID))

	assert.True(t, model.IsNotFound(res.Err))
	got, err := f.store.FindTask(context.Background(), theirs.ID, other.ID)
	require.NoError(t, err)
	assert.Equal(t, *theirs, *got)
	assert.Contains(t, f.sink.To(phone)[0].Body, "Não encontrei")
}

func TestUpdateTaskPartialKeepsOmittedFields(t *testing.T) {
	f := newFixture(t)
	u := f.user(t)
	ctx := context.Background()

	created, err := f.router.CreateTask(ctx, *u, model.TaskInput{
		Description: "Descrição Antiga",
		DueAt:       f.now.Add(24 * time.Hour),
		ReminderAt:  f.now.Add(20 * time.Hour),
		Meta:        "Trabalho",
	})
	require.NoError(t, err)

	res := f.handle(t, fmt.Sprintf(`{"action":"update_task","task_id":%q,"description":"Descrição Atualizada"}`, created.ID))
	require.NoError(t, res.Err)

	got, err := f.store.FindTask(ctx, created.ID, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Descrição Atualizada", got.Description)
	assert.Equal(t, "Trabalho", got.Meta)
	assert.True(t, got.DueAt.Equal(created.DueAt))
	assert.True(t, got.ReminderAt.Equal(created.ReminderAt))
}

func TestUpdateTaskAllFields(t *testing.T) {
	f := newFixture(t)
	u := f.user(t)
	ctx := context.Background()
	task := testutil.NewTestTask(t, f.store, u.ID, "Old", f.now.Add(24*time.Hour))

	due := f.now.Add(48 * time.Hour)
	reminder := f.now.Add(24 * time.Hour)
	res := f.handle(t, fmt.Sprintf(
		`{"action":"update_task","task_id":%q,"description":"New","due_at":%q,"meta":"Atualização","reminder_at":%q}`,
		task.ID, stamp(due), stamp(reminder),
	))
	require.NoError(t, res.Err)

	got, err := f.store.FindTask(ctx, task.ID, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "New", got.Description)
	assert.Equal(t, "Atualização", got.Meta)
	assert.True(t, got.DueAt.Equal(due))
	assert.True(t, got.ReminderAt.Equal(reminder))
}

func TestUpdateTaskRevalidatesMergedValues(t *testing.T) {
	f := newFixture(t)
	u := f.user(t)
	ctx := context.Background()
	task := testutil.NewTestTask(t, f.store, u.ID, "Keep", f.now.Add(24*time.Hour))

	// Moving due_at before the existing reminder must fail.
	res := f.handle(t, fmt.Sprintf(`{"action":"update_task","task_id":%q,"due_at":%q}`,
		task.ID, stamp(task.ReminderAt.Add(-time.Minute))))

	assert.True(t, model.IsValidationError(res.Err))
	got, err := f.store.FindTask(ctx, task.ID, u.ID)
	require.NoError(t, err)
	assert.Equal(t, *task, *got)
}

func TestUpdateWithNoFieldsIsIdentity(t *testing.T) {
	f := newFixture(t)
	u := f.user(t)
	ctx := context.Background()

	created, err := f.router.CreateTask(ctx, *u, model.TaskInput{
		Description: "Same",
		DueAt:       f.now.Add(24 * time.Hour),
		ReminderAt:  f.now.Add(23 * time.Hour),
		Meta:        "x",
	})
	require.NoError(t, err)

	updated, err := f.router.UpdateTask(ctx, *u, created.ID, model.TaskPatch{})
	require.NoError(t, err)
	assert.Equal(t, *created, *updated)

	stored, err := f.store.FindTask(ctx, created.ID, u.ID)
	require.NoError(t, err)
	assert.Equal(t, *created, *stored)
}

type fakeResponder struct {
	reply    string
	err      error
	got      string
	upcoming int
}

func (r *fakeResponder) Reply(_ context.Context, _ model.User, text string, upcoming []model.Task) (string, error) {
	r.got = text
	r.upcoming = len(upcoming)
	return r.reply, r.err
}

func TestFreeformUsesResponderWithoutMutation(t *testing.T) {
	resp := &fakeResponder{reply: "Olá! Como posso ajudar?"}
	f := newFixture(t, command.WithResponder(resp))
	u := f.user(t)
	task := testutil.NewTestTask(t, f.store, u.ID, "Untouched", f.now.Add(24*time.Hour))

	res := f.handle(t, "  Bom dia  ")

	assert.Equal(t, command.IntentFreeform, res.Intent)
	assert.Equal(t, "Bom dia", resp.got)
	assert.Equal(t, 1, resp.upcoming)
	assert.Equal(t, "Olá! Como posso ajudar?", f.sink.To(phone)[0].Body)

	got, err := f.store.FindTask(context.Background(), task.ID, u.ID)
	require.NoError(t, err)
	assert.Equal(t, *task, *got)
}

func TestFreeformFallsBackOnResponderError(t *testing.T) {
	f := newFixture(t, command.WithResponder(&fakeResponder{err: errors.New("boom")}))

	f.handle(t, "hello")

	assert.Contains(t, f.sink.To(phone)[0].Body, "!menu")
}

func TestDeliveryFailureKeepsCommittedTask(t *testing.T) {
	f := newFixture(t)
	f.sink.FailFor = map[string]bool{phone: true}

	res, err := f.router.Handle(context.Background(), model.Inbound{
		From: phone,
		Body: fmt.Sprintf(`{"action":"create_task","description":"Persist me","due_at":%q,"reminder_at":%q}`,
			stamp(f.now.Add(2*time.Hour)), stamp(f.now.Add(time.Hour))),
	})

	require.Error(t, err)
	assert.True(t, model.IsDeliveryError(err))
	require.NotNil(t, res.Task)
	_, err = f.store.FindTask(context.Background(), res.Task.ID, res.User.ID)
	assert.NoError(t, err)
}

type fakeCheckout struct{ calls int }

func (c *fakeCheckout) CheckoutPath(_ context.Context, _ model.User) (string, error) {
	c.calls++
	return "cs_test_abc", nil
}

func TestSubscriptionGate(t *testing.T) {
	checkout := &fakeCheckout{}
	f := &fixture{store: testutil.NewTestStore(t), sink: &testutil.RecordingSink{}, now: time.Now().UTC()}
	f.router = command.New(f.store, f.store, f.sink, command.Config{
		Location:            time.UTC,
		RequireSubscription: true,
		CheckoutTemplate:    "HXpay",
	}, command.WithCheckout(checkout))

	res := f.handle(t, "Hello")

	assert.True(t, res.Gated)
	assert.Equal(t, 1, checkout.calls)
	sent := f.sink.To(phone)
	require.Len(t, sent, 1)
	assert.Equal(t, model.KindTemplate, sent[0].Kind)
	assert.Equal(t, "HXpay", sent[0].TemplateID)
	assert.Equal(t, "cs_test_abc", sent[0].Variables["2"])

	require.NoError(t, f.store.SetSubscribed(context.Background(), res.User.ID, true))
	res = f.handle(t, "!menu")
	assert.False(t, res.Gated)
	assert.Equal(t, 1, checkout.calls)
}
