// Package ai answers freeform WhatsApp messages with the Claude Messages API.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nhle/wa-assistant/internal/model"
)

const (
	defaultModel     = "claude-sonnet-4-5-20250929"
	defaultMaxTokens = 512
	apiURL           = "https://api.anthropic.com/v1/messages"
	apiVersion       = "2023-06-01"

	historyMessages = 10
	historyIdle     = 24 * time.Hour
)

// Assistant replies to messages that match no command. It only reads
// the user's tasks; it never changes them.
type Assistant struct {
	apiKey    string
	model     string
	maxTokens int
	loc       *time.Location
	endpoint  string
	client    *http.Client
	history   *Conversations
	now       func() time.Time
}

// New creates an assistant. Dates in the prompt are rendered in loc.
func New(apiKey, modelName string, maxTokens int, loc *time.Location) *Assistant {
	if modelName == "" {
		modelName = defaultModel
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	if loc == nil {
		loc = time.UTC
	}

	return &Assistant{
		apiKey:    apiKey,
		model:     modelName,
		maxTokens: maxTokens,
		loc:       loc,
		endpoint:  apiURL,
		client:    &http.Client{Timeout: 30 * time.Second},
		history:   NewConversations(historyMessages, historyIdle),
		now:       time.Now,
	}
}

// Reply answers text from user, given their upcoming tasks.
func (a *Assistant) Reply(
	ctx context.Context,
	user model.User,
	text string,
	upcoming []model.Task,
) (string, error) {
	now := a.now()

	var messages []apiMessage
	for _, m := range a.history.History(user.ID, now) {
		messages = append(messages, textMessage(m.Role, m.Content))
	}
	messages = append(messages, textMessage(RoleUser, text))

	resp, err := a.callAPI(ctx, apiRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System:    a.buildSystemPrompt(user, upcoming, now),
		Messages:  messages,
	})
	if err != nil {
		return "", err
	}

	var parts []string
	for _, block := range resp.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	reply := strings.TrimSpace(strings.Join(parts, ""))
	if reply == "" {
		return "", fmt.Errorf("empty response (stop reason %q)", resp.StopReason)
	}

	a.history.Record(user.ID, now, text, reply)
	return reply, nil
}

// callAPI makes a single request to the Claude Messages API.
func (a *Assistant) callAPI(ctx context.Context, reqBody apiRequest) (*apiResponse, error) {
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, a.endpoint, bytes.NewReader(bodyBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling Claude API: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiErrorResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	var result apiResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	return &result, nil
}

// buildSystemPrompt describes the assistant's role and the user's agenda.
func (a *Assistant) buildSystemPrompt(user model.User, upcoming []model.Task, now time.Time) string {
	var sb strings.Builder

	sb.WriteString("You are a personal task assistant talking to a user over WhatsApp. ")
	sb.WriteString("Reply in the user's language (default: Brazilian Portuguese), ")
	sb.WriteString("in at most a few short sentences with no markdown headings.\n\n")

	fmt.Fprintf(&sb, "User name: %s\n", user.Name)
	fmt.Fprintf(&sb, "Current time: %s\n\n", now.In(a.loc).Format("2006-01-02 15:04 MST"))

	if len(upcoming) == 0 {
		sb.WriteString("The user has no upcoming tasks.\n\n")
	} else {
		sb.WriteString("Upcoming tasks:\n")
		for _, t := range upcoming {
			fmt.Fprintf(&sb, "- %s (due %s", t.Description, t.DueAt.In(a.loc).Format("2006-01-02 15:04"))
			if t.Meta != "" {
				fmt.Fprintf(&sb, ", %s", t.Meta)
			}
			sb.WriteString(")\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString("IMPORTANT: You CANNOT create, change, or delete tasks yourself. ")
	sb.WriteString("Tasks are created and changed only by sending a JSON message, e.g.\n")
	sb.WriteString(`{"action":"create_task","description":"...","due_at":"YYYY-MM-DD HH:MM","reminder_at":"YYYY-MM-DD HH:MM","meta":"..."}`)
	sb.WriteString("\n")
	sb.WriteString(`{"action":"update_task","task_id":"<id>", plus only the fields to change}`)
	sb.WriteString("\nIf the user asks for a task, you may write that JSON for them to send ")
	sb.WriteString("back, and mention !menu for the full instructions, !agenda to list ")
	sb.WriteString("upcoming tasks, and !insights for a summary.")

	return sb.String()
}

func textMessage(role Role, text string) apiMessage {
	return apiMessage{
		Role:    string(role),
		Content: []apiContentBlock{{Type: "text", Text: text}},
	}
}

// --- Claude API types ---

type apiRequest struct {
	Model     string       `json:"model"`
	MaxTokens int          `json:"max_tokens"`
	System    string       `json:"system"`
	Messages  []apiMessage `json:"messages"`
}

type apiMessage struct {
	Role    string            `json:"role"`
	Content []apiContentBlock `json:"content"`
}

type apiContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type apiResponse struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Role       string            `json:"role"`
	Content    []apiContentBlock `json:"content"`
	Model      string            `json:"model"`
	StopReason string            `json:"stop_reason"`
}

type apiErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}
