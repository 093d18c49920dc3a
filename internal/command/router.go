// Package command classifies inbound WhatsApp messages and runs the
// matching handler against the user's tasks.
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nhle/wa-assistant/internal/model"
	"github.com/nhle/wa-assistant/internal/notify"
	"github.com/nhle/wa-assistant/internal/store"
)

// freeformContextLimit caps how many upcoming tasks the responder sees.
const freeformContextLimit = 10

// Responder produces a conversational reply for messages that match no
// command. It must not modify tasks.
type Responder interface {
	Reply(ctx context.Context, user model.User, text string, upcoming []model.Task) (string, error)
}

// Checkout creates a subscription checkout for a user and returns the
// path the checkout-link template appends to its base URL.
type Checkout interface {
	CheckoutPath(ctx context.Context, user model.User) (string, error)
}

// Config holds the router's policy knobs.
type Config struct {
	Location      *time.Location
	AgendaHorizon time.Duration // zero means unbounded
	AgendaLimit   int

	// RequireSubscription gates every command behind an active
	// subscription. Users without one get CheckoutTemplate instead.
	RequireSubscription bool
	CheckoutTemplate    string
}

// Result describes what one inbound message did.
type Result struct {
	User        *model.User
	UserCreated bool
	Intent      Intent
	Gated       bool
	Task        *model.Task
	Messages    []model.OutboundMessage

	// Err is a user-facing failure (validation or not found). It has
	// already been turned into a reply in Messages.
	Err error
}

// Router resolves the sender, classifies the body, and dispatches.
type Router struct {
	users     store.UserStore
	tasks     store.TaskStore
	sink      notify.Sink
	responder Responder
	checkout  Checkout
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time
}

// Option customizes a Router.
type Option func(*Router)

// WithResponder sets the freeform responder.
func WithResponder(r Responder) Option {
	return func(rt *Router) { rt.responder = r }
}

// WithCheckout sets the subscription checkout used by the gate.
func WithCheckout(c Checkout) Option {
	return func(rt *Router) { rt.checkout = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(rt *Router) { rt.logger = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(rt *Router) { rt.now = now }
}

// New creates a Router.
func New(
	users store.UserStore,
	tasks store.TaskStore,
	sink notify.Sink,
	cfg Config,
	opts ...Option,
) *Router {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	r := &Router{
		users:  users,
		tasks:  tasks,
		sink:   sink,
		cfg:    cfg,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle processes one inbound message end to end. The returned error is
// non-nil only for store failures or failed deliveries; a delivery error
// never undoes a mutation already committed.
func (r *Router) Handle(ctx context.Context, in model.Inbound) (*Result, error) {
	phone, err := model.CanonicalPhone(in.From)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = strings.TrimSpace(in.WaID)
	}
	if name == "" {
		name = phone
	}

	user, created, err := r.users.FindOrCreateByPhone(ctx, phone, name)
	if err != nil {
		return nil, fmt.Errorf("resolving user %s: %w", phone, err)
	}
	if created {
		r.logger.Info("command: new user", "user", user.ID, "phone", phone)
	}

	res := &Result{
		User:        user,
		UserCreated: created,
		Intent:      Classify(in.Body),
	}

	if r.cfg.RequireSubscription && !user.Subscribed && r.checkout != nil {
		res.Gated = true
		err = r.gate(ctx, res)
	} else {
		err = r.dispatch(ctx, res, in.Body)
	}
	if err != nil {
		return res, err
	}

	now := r.now()
	if err := r.users.TouchLastContact(ctx, user.ID, now); err != nil {
		return res, fmt.Errorf("touching user %s: %w", user.ID, err)
	}
	user.LastContactAt = now

	r.logger.Debug("command: dispatched",
		"user", user.ID, "intent", res.Intent.String(), "gated", res.Gated, "messages", len(res.Messages))

	return res, r.deliver(ctx, user.Phone, res.Messages)
}

// dispatch runs the handler for res.Intent.
func (r *Router) dispatch(ctx context.Context, res *Result, body string) error {
	user := *res.User

	switch res.Intent {
	case IntentMenu:
		res.Messages = append(res.Messages, notify.Menu())
		return nil

	case IntentAgenda:
		tasks, err := r.Agenda(ctx, user)
		if err != nil {
			return err
		}
		res.Messages = append(res.Messages, notify.ScheduleList(tasks, r.cfg.Location))
		return nil

	case IntentInsights:
		tasks, err := r.tasks.ListTasksForUser(ctx, user.ID)
		if err != nil {
			return err
		}
		text := ComputeInsights(tasks, r.now()).Render(r.cfg.Location)
		res.Messages = append(res.Messages, model.Text(text))
		return nil

	case IntentCreateTask:
		task, err := r.createFromBody(ctx, user, body)
		return r.settle(res, task, err, notify.TaskCreated)

	case IntentUpdateTask:
		task, err := r.updateFromBody(ctx, user, body)
		return r.settle(res, task, err, notify.TaskUpdated)

	default:
		res.Messages = append(res.Messages, model.Text(r.freeform(ctx, user, body)))
		return nil
	}
}

// settle records a create/update outcome. User-facing errors become a
// reply; anything else aborts the dispatch.
func (r *Router) settle(
	res *Result,
	task *model.Task,
	err error,
	confirm func(model.Task, *time.Location) model.OutboundMessage,
) error {
	if err != nil {
		if model.IsValidationError(err) || model.IsNotFound(err) {
			res.Err = err
			res.Messages = append(res.Messages, notify.ErrorReply(err))
			return nil
		}
		return err
	}
	res.Task = task
	res.Messages = append(res.Messages, confirm(*task, r.cfg.Location))
	return nil
}

// gate replaces dispatch for users without a subscription.
func (r *Router) gate(ctx context.Context, res *Result) error {
	path, err := r.checkout.CheckoutPath(ctx, *res.User)
	if err != nil {
		return fmt.Errorf("creating checkout for user %s: %w", res.User.ID, err)
	}
	res.Messages = append(res.Messages, notify.CheckoutLink(r.cfg.CheckoutTemplate, *res.User, path))
	return nil
}

func (r *Router) createFromBody(ctx context.Context, user model.User, body string) (*model.Task, error) {
	in, err := ParseCreate(body, r.cfg.Location)
	if err != nil {
		return nil, err
	}
	return r.CreateTask(ctx, user, in)
}

func (r *Router) updateFromBody(ctx context.Context, user model.User, body string) (*model.Task, error) {
	id, patch, err := ParseUpdate(body, r.cfg.Location)
	if err != nil {
		return nil, err
	}
	return r.UpdateTask(ctx, user, id, patch)
}

// CreateTask validates in and persists a new task owned by user.
func (r *Router) CreateTask(ctx context.Context, user model.User, in model.TaskInput) (*model.Task, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	task, err := r.tasks.CreateTask(ctx, model.Task{
		UserID:      user.ID,
		Description: in.Description,
		DueAt:       in.DueAt,
		ReminderAt:  in.ReminderAt,
		Meta:        in.Meta,
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("command: task created", "user", user.ID, "task", task.ID)
	return task, nil
}

// UpdateTask applies patch to the user's task id. Omitted fields keep
// their values; the merged task must still have reminder_at <= due_at.
func (r *Router) UpdateTask(
	ctx context.Context,
	user model.User,
	id string,
	patch model.TaskPatch,
) (*model.Task, error) {
	current, err := r.tasks.FindTask(ctx, id, user.ID)
	if err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return current, nil
	}

	updated, err := patch.Apply(*current)
	if err != nil {
		return nil, err
	}
	if err := r.tasks.UpdateTask(ctx, updated); err != nil {
		return nil, err
	}

	r.logger.Info("command: task updated", "user", user.ID, "task", id)
	return r.tasks.FindTask(ctx, id, user.ID)
}

// Agenda returns the user's upcoming tasks within the configured horizon.
func (r *Router) Agenda(ctx context.Context, user model.User) ([]model.Task, error) {
	now := r.now()
	filter := store.UpcomingFilter{From: now, Limit: r.cfg.AgendaLimit}
	if r.cfg.AgendaHorizon > 0 {
		filter.Until = now.Add(r.cfg.AgendaHorizon)
	}
	return r.tasks.ListUpcoming(ctx, user.ID, filter)
}

// freeform asks the responder for a reply, falling back to a fixed hint.
func (r *Router) freeform(ctx context.Context, user model.User, body string) string {
	const hint = "Não entendi. Envie !menu para ver o que posso fazer."

	if r.responder == nil {
		return hint
	}

	upcoming, err := r.tasks.ListUpcoming(ctx, user.ID, store.UpcomingFilter{
		From:  r.now(),
		Limit: freeformContextLimit,
	})
	if err != nil {
		r.logger.Warn("command: loading freeform context failed", "user", user.ID, "error", err)
	}

	reply, err := r.responder.Reply(ctx, user, strings.TrimSpace(body), upcoming)
	if err != nil || strings.TrimSpace(reply) == "" {
		if err != nil {
			r.logger.Warn("command: responder failed", "user", user.ID, "error", err)
		}
		return hint
	}
	return reply
}

// deliver sends every message, continuing past failures.
func (r *Router) deliver(ctx context.Context, to string, msgs []model.OutboundMessage) error {
	var errs []error
	for _, msg := range msgs {
		if err := notify.Deliver(ctx, r.sink, to, msg); err != nil {
			r.logger.Error("command: delivery failed", "to", to, "kind", msg.Kind.String(), "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
