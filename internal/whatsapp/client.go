// Package whatsapp sends and authenticates WhatsApp messages through the
// Twilio API.
package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/twilio/twilio-go"
	twclient "github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// maxBodyLen is the Twilio Messages API body limit, in characters.
const maxBodyLen = 1600

// messageCreator is the slice of the Twilio API the sender uses.
type messageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// Sender implements notify.Sink over the Twilio Messages API. It retries
// with exponential backoff when Twilio answers 429.
type Sender struct {
	api        messageCreator
	from       string
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger
}

// NewSender creates a Sender for the given account. from is the WhatsApp
// sender, with or without the "whatsapp:" prefix.
func NewSender(accountSID, authToken, from string, logger *slog.Logger) *Sender {
	rest := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return newSender(rest.Api, from, logger)
}

func newSender(api messageCreator, from string, logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{
		api:        api,
		from:       Address(from),
		maxRetries: 3,
		backoff:    time.Second,
		logger:     logger,
	}
}

// Address prefixes a phone number with the WhatsApp channel scheme.
func Address(phone string) string {
	if strings.HasPrefix(phone, "whatsapp:") {
		return phone
	}
	return "whatsapp:" + phone
}

// SendText sends a free-form message. Only valid inside the 24h window.
func (s *Sender) SendText(ctx context.Context, to string, body string) error {
	if body == "" {
		return nil
	}
	body = truncate(body, maxBodyLen)

	params := &openapi.CreateMessageParams{}
	params.SetTo(Address(to))
	params.SetFrom(s.from)
	params.SetBody(body)

	return s.create(ctx, params)
}

// SendTemplate sends a pre-approved content template with variables.
func (s *Sender) SendTemplate(ctx context.Context, to string, templateID string, vars map[string]string) error {
	if templateID == "" {
		return errors.New("whatsapp: template id is empty")
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(Address(to))
	params.SetFrom(s.from)
	params.SetContentSid(templateID)

	if len(vars) > 0 {
		encoded, err := json.Marshal(vars)
		if err != nil {
			return fmt.Errorf("whatsapp: marshaling template variables: %w", err)
		}
		params.SetContentVariables(string(encoded))
	}

	return s.create(ctx, params)
}

// create calls the API, retrying on rate limiting.
func (s *Sender) create(ctx context.Context, params *openapi.CreateMessageParams) error {
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := s.api.CreateMessage(params)
		if err == nil {
			if msg != nil && msg.Sid != nil {
				s.logger.Debug("whatsapp: message queued", "sid", *msg.Sid)
			}
			return nil
		}

		if !isRateLimited(err) {
			return fmt.Errorf("whatsapp: creating message: %w", err)
		}
		lastErr = err

		wait := s.backoff * time.Duration(1<<attempt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("whatsapp: rate limited after %d retries: %w", s.maxRetries, lastErr)
}

// truncate shortens s to at most limit characters, never splitting one.
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-3]) + "..."
}

func isRateLimited(err error) bool {
	var restErr *twclient.TwilioRestError
	return errors.As(err, &restErr) && restErr.Status == http.StatusTooManyRequests
}
