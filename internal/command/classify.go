package command

import (
	"encoding/json"
	"strings"
)

// Intent is the classification of one inbound message.
type Intent int

const (
	IntentFreeform Intent = iota
	IntentMenu
	IntentAgenda
	IntentInsights
	IntentCreateTask
	IntentUpdateTask
)

func (i Intent) String() string {
	switch i {
	case IntentMenu:
		return "menu"
	case IntentAgenda:
		return "agenda"
	case IntentInsights:
		return "insights"
	case IntentCreateTask:
		return "create_task"
	case IntentUpdateTask:
		return "update_task"
	default:
		return "freeform"
	}
}

// Reserved command prefixes, matched case-sensitively.
const (
	PrefixMenu     = "!menu"
	PrefixAgenda   = "!agenda"
	PrefixInsights = "!insights"
)

// Structured payload actions.
const (
	ActionCreateTask = "create_task"
	ActionUpdateTask = "update_task"
)

// Classify maps a message body to an intent. The first matching rule
// wins: reserved prefixes, then structured task payloads, then freeform.
func Classify(body string) Intent {
	body = strings.TrimSpace(body)

	switch {
	case strings.HasPrefix(body, PrefixMenu):
		return IntentMenu
	case strings.HasPrefix(body, PrefixAgenda):
		return IntentAgenda
	case strings.HasPrefix(body, PrefixInsights):
		return IntentInsights
	}

	switch payloadAction(body) {
	case ActionCreateTask:
		return IntentCreateTask
	case ActionUpdateTask:
		return IntentUpdateTask
	}
	return IntentFreeform
}

// payloadAction returns the "action" of a JSON object body, or "" when
// body is not a JSON object.
func payloadAction(body string) string {
	if !strings.HasPrefix(body, "{") {
		return ""
	}
	var probe struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal([]byte(body), &probe); err != nil {
		return ""
	}
	return probe.Action
}
