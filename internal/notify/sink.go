// Package notify defines the outbound notification contract and the
// messages the assistant sends.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nhle/wa-assistant/internal/model"
)

// Sink is the outbound message channel.
type Sink interface {
	SendText(ctx context.Context, to string, body string) error
	SendTemplate(ctx context.Context, to string, templateID string, vars map[string]string) error
}

// Deliver sends msg to recipient through sink. Any failure is returned as
// a *model.DeliveryError.
func Deliver(ctx context.Context, sink Sink, to string, msg model.OutboundMessage) error {
	var err error
	switch msg.Kind {
	case model.KindText:
		err = sink.SendText(ctx, to, msg.Body)
	case model.KindTemplate:
		err = sink.SendTemplate(ctx, to, msg.TemplateID, msg.Variables)
	default:
		err = fmt.Errorf("unknown message kind %d", msg.Kind)
	}
	if err != nil {
		return &model.DeliveryError{Recipient: to, Err: err}
	}
	return nil
}

// LogSink writes messages to a logger instead of a real channel.
// It is used when no channel credentials are configured.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) SendText(_ context.Context, to string, body string) error {
	s.logger().Info("notify: text", "to", to, "body", body)
	return nil
}

func (s LogSink) SendTemplate(_ context.Context, to string, templateID string, vars map[string]string) error {
	s.logger().Info("notify: template", "to", to, "template", templateID, "vars", vars)
	return nil
}

func (s LogSink) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}
