package command

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/nhle/wa-assistant/internal/model"
)

// timeLayouts are the accepted timestamp formats, tried in order. Layouts
// without an offset are read in the router's location.
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

type createPayload struct {
	Action      string `json:"action"`
	Description string `json:"description"`
	DueAt       string `json:"due_at"`
	ReminderAt  string `json:"reminder_at"`
	Meta        string `json:"meta"`
}

type updatePayload struct {
	Action      string  `json:"action"`
	TaskID      string  `json:"task_id"`
	Description *string `json:"description"`
	DueAt       *string `json:"due_at"`
	ReminderAt  *string `json:"reminder_at"`
	Meta        *string `json:"meta"`
}

// ParseCreate decodes a create_task payload into a validated TaskInput.
func ParseCreate(body string, loc *time.Location) (model.TaskInput, error) {
	var p createPayload
	if err := json.Unmarshal([]byte(strings.TrimSpace(body)), &p); err != nil {
		return model.TaskInput{}, &model.ValidationError{Message: "malformed task payload"}
	}

	in := model.TaskInput{
		Description: strings.TrimSpace(p.Description),
		Meta:        strings.TrimSpace(p.Meta),
	}

	var err error
	if p.DueAt != "" {
		if in.DueAt, err = ParseTime(p.DueAt, loc); err != nil {
			return model.TaskInput{}, fieldError("due_at", err)
		}
	}
	if p.ReminderAt != "" {
		if in.ReminderAt, err = ParseTime(p.ReminderAt, loc); err != nil {
			return model.TaskInput{}, fieldError("reminder_at", err)
		}
	}

	if err := in.Validate(); err != nil {
		return model.TaskInput{}, err
	}
	return in, nil
}

// ParseUpdate decodes an update_task payload into a task id and patch.
// Fields absent from the payload stay nil in the patch.
func ParseUpdate(body string, loc *time.Location) (string, model.TaskPatch, error) {
	var p updatePayload
	if err := json.Unmarshal([]byte(strings.TrimSpace(body)), &p); err != nil {
		return "", model.TaskPatch{}, &model.ValidationError{Message: "malformed task payload"}
	}

	id := strings.TrimSpace(p.TaskID)
	if id == "" {
		return "", model.TaskPatch{}, &model.ValidationError{Field: "task_id", Message: "is required"}
	}

	var patch model.TaskPatch
	if p.Description != nil {
		d := strings.TrimSpace(*p.Description)
		patch.Description = &d
	}
	if p.Meta != nil {
		m := strings.TrimSpace(*p.Meta)
		patch.Meta = &m
	}
	if p.DueAt != nil {
		t, err := ParseTime(*p.DueAt, loc)
		if err != nil {
			return "", model.TaskPatch{}, fieldError("due_at", err)
		}
		patch.DueAt = &t
	}
	if p.ReminderAt != nil {
		t, err := ParseTime(*p.ReminderAt, loc)
		if err != nil {
			return "", model.TaskPatch{}, fieldError("reminder_at", err)
		}
		patch.ReminderAt = &t
	}
	return id, patch, nil
}

// ParseTime reads an RFC 3339 timestamp or one of the local layouts.
func ParseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}

	var lastErr error
	for _, layout := range timeLayouts {
		t, err := time.ParseInLocation(layout, s, loc)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func fieldError(field string, err error) error {
	return &model.ValidationError{Field: field, Message: "has an invalid timestamp: " + err.Error()}
}
