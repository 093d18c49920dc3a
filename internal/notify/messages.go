package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/nhle/wa-assistant/internal/model"
)

// displayLayout is how dates are shown to users.
const displayLayout = "02/01/2006 15:04"

// ReminderPrefix starts every plain reminder text.
const ReminderPrefix = "Lembrete de tarefa: "

// Menu lists the commands the assistant understands.
func Menu() model.OutboundMessage {
	var sb strings.Builder
	sb.WriteString("*Menu*\n\n")
	sb.WriteString("!menu - mostra este menu\n")
	sb.WriteString("!agenda - lista suas próximas tarefas\n")
	sb.WriteString("!insights - resumo das suas tarefas\n\n")
	sb.WriteString("*Criar tarefa* (meta é opcional):\n")
	sb.WriteString(`{"action":"create_task","description":"Pagar boleto",` +
		`"due_at":"2025-03-10 18:00","reminder_at":"2025-03-10 09:00","meta":"contas"}`)
	sb.WriteString("\n\n*Alterar tarefa* (envie só os campos que mudam):\n")
	sb.WriteString(`{"action":"update_task","task_id":"<ID>","description":"...",` +
		`"due_at":"...","reminder_at":"...","meta":"..."}`)
	sb.WriteString("\n\nDatas: AAAA-MM-DD HH:MM, AAAA-MM-DD HH:MM:SS ou RFC 3339 " +
		"(2025-03-10T18:00:00-03:00). O lembrete não pode ser depois do vencimento. " +
		"O ID aparece na confirmação da tarefa criada.")
	return model.Text(sb.String())
}

// ScheduleList renders tasks in the order given.
func ScheduleList(tasks []model.Task, loc *time.Location) model.OutboundMessage {
	if len(tasks) == 0 {
		return model.Text("Você não tem tarefas agendadas.")
	}

	var sb strings.Builder
	sb.WriteString("*Sua agenda*\n")
	for i, t := range tasks {
		fmt.Fprintf(&sb, "\n%d. %s - %s", i+1, t.DueAt.In(loc).Format(displayLayout), t.Description)
		if t.Meta != "" {
			fmt.Fprintf(&sb, " [%s]", t.Meta)
		}
	}
	return model.Text(sb.String())
}

// Reminder is the plain reminder sent inside the conversation window.
func Reminder(task model.Task) model.OutboundMessage {
	return model.Text(ReminderPrefix + task.Description)
}

// FirstContact is the re-engagement template sent after a long silence.
func FirstContact(templateID string, user model.User) model.OutboundMessage {
	return model.Template(templateID, map[string]string{"1": user.Name})
}

// CheckoutLink asks a user without a subscription to subscribe. The
// template carries the checkout session path as its second variable.
func CheckoutLink(templateID string, user model.User, checkoutPath string) model.OutboundMessage {
	return model.Template(templateID, map[string]string{
		"1": user.Name,
		"2": checkoutPath,
	})
}

// SubscriptionComplete welcomes a newly subscribed user.
func SubscriptionComplete(templateID string, user model.User) model.OutboundMessage {
	return model.Template(templateID, map[string]string{"1": user.Name})
}

// TaskCreated confirms a new task.
func TaskCreated(task model.Task, loc *time.Location) model.OutboundMessage {
	return model.Text(fmt.Sprintf(
		"Tarefa criada: %s\nVencimento: %s\nLembrete: %s\nID: %s",
		task.Description,
		task.DueAt.In(loc).Format(displayLayout),
		task.ReminderAt.In(loc).Format(displayLayout),
		task.ID,
	))
}

// TaskUpdated confirms a changed task.
func TaskUpdated(task model.Task, loc *time.Location) model.OutboundMessage {
	return model.Text(fmt.Sprintf(
		"Tarefa atualizada: %s\nVencimento: %s\nLembrete: %s",
		task.Description,
		task.DueAt.In(loc).Format(displayLayout),
		task.ReminderAt.In(loc).Format(displayLayout),
	))
}

// ErrorReply turns a user-facing error into a conversational reply.
func ErrorReply(err error) model.OutboundMessage {
	switch {
	case model.IsNotFound(err):
		return model.Text("Não encontrei essa tarefa.")
	case model.IsValidationError(err):
		return model.Text("Não consegui salvar a tarefa: " + err.Error())
	default:
		return model.Text("Algo deu errado. Tente novamente em instantes.")
	}
}
