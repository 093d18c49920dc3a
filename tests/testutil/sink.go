package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/nhle/wa-assistant/internal/model"
)

// ErrSendFailed is returned by RecordingSink for recipients in FailFor.
var ErrSendFailed = errors.New("send failed")

// Sent is one message captured by RecordingSink.
type Sent struct {
	To      string
	Message model.OutboundMessage
}

// RecordingSink captures outbound messages instead of sending them.
type RecordingSink struct {
	mu      sync.Mutex
	Sent    []Sent
	FailFor map[string]bool
}

func (r *RecordingSink) SendText(_ context.Context, to string, body string) error {
	return r.record(to, model.Text(body))
}

func (r *RecordingSink) SendTemplate(_ context.Context, to string, templateID string, vars map[string]string) error {
	return r.record(to, model.Template(templateID, vars))
}

func (r *RecordingSink) record(to string, msg model.OutboundMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.FailFor[to] {
		return ErrSendFailed
	}
	r.Sent = append(r.Sent, Sent{To: to, Message: msg})
	return nil
}

// To returns the messages sent to recipient.
func (r *RecordingSink) To(recipient string) []model.OutboundMessage {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []model.OutboundMessage
	for _, s := range r.Sent {
		if s.To == recipient {
			out = append(out, s.Message)
		}
	}
	return out
}

// Count returns how many messages of kind were sent.
func (r *RecordingSink) Count(kind model.OutboundKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, s := range r.Sent {
		if s.Message.Kind == kind {
			n++
		}
	}
	return n
}
