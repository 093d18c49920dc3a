// Package reminder fires task reminders once per minute.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nhle/wa-assistant/internal/model"
	"github.com/nhle/wa-assistant/internal/notify"
	"github.com/nhle/wa-assistant/internal/store"
)

// Report summarizes one sweep.
type Report struct {
	Minute        time.Time
	Due           int
	AlreadyFired  int
	Reminders     int
	FirstContacts int
	Failed        int
}

// Sweeper decides, per due task, between a plain reminder and a
// first-contact template, and sends it.
type Sweeper struct {
	tasks        store.TaskStore
	users        store.UserStore
	fires        store.ReminderLog
	sink         notify.Sink
	firstContact string
	logger       *slog.Logger
}

// NewSweeper creates a Sweeper. firstContactTemplate is the template id
// used for users silent for at least model.FirstContactWindow.
func NewSweeper(
	s store.Store,
	sink notify.Sink,
	firstContactTemplate string,
	logger *slog.Logger,
) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		tasks:        s,
		users:        s,
		fires:        s,
		sink:         sink,
		firstContact: firstContactTemplate,
		logger:       logger,
	}
}

// Sweep processes every task whose reminder falls in the minute of now.
// A failure on one task is logged and counted; the rest still run. Only
// a failed due-task query aborts the sweep.
func (sw *Sweeper) Sweep(ctx context.Context, now time.Time) (Report, error) {
	minute := now.UTC().Truncate(time.Minute)
	report := Report{Minute: minute}

	tasks, err := sw.tasks.ListDueAt(ctx, minute)
	if err != nil {
		return report, fmt.Errorf("listing due reminders: %w", err)
	}
	report.Due = len(tasks)

	for _, task := range tasks {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		kind, err := sw.fire(ctx, task, minute, now)
		switch {
		case err != nil:
			report.Failed++
			sw.logger.Error("reminder: task failed", "task", task.ID, "user", task.UserID, "error", err)
		case kind == fireSkipped:
			report.AlreadyFired++
		case kind == fireFirstContact:
			report.FirstContacts++
		default:
			report.Reminders++
		}
	}

	if report.Due > 0 {
		sw.logger.Info("reminder: sweep done",
			"minute", minute.Format(time.RFC3339),
			"due", report.Due,
			"reminders", report.Reminders,
			"first_contacts", report.FirstContacts,
			"already_fired", report.AlreadyFired,
			"failed", report.Failed,
		)
	}
	return report, nil
}

type fireKind int

const (
	fireReminder fireKind = iota
	fireFirstContact
	fireSkipped
)

// fire claims the (task, minute) marker and sends one notification.
// The claim happens first, so a reminder is sent at most once even when
// the send fails.
func (sw *Sweeper) fire(ctx context.Context, task model.Task, minute, now time.Time) (fireKind, error) {
	claimed, err := sw.fires.ClaimReminder(ctx, task.ID, minute)
	if err != nil {
		return 0, err
	}
	if !claimed {
		return fireSkipped, nil
	}

	user, err := sw.users.GetUser(ctx, task.UserID)
	if err != nil {
		return 0, fmt.Errorf("loading owner: %w", err)
	}

	kind := fireReminder
	msg := notify.Reminder(task)
	if user.NeedsFirstContact(now) {
		kind = fireFirstContact
		msg = notify.FirstContact(sw.firstContact, *user)
	}

	if err := notify.Deliver(ctx, sw.sink, user.Phone, msg); err != nil {
		return 0, err
	}
	return kind, nil
}
