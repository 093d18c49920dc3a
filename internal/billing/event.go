package billing

import (
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"

	"github.com/nhle/wa-assistant/internal/model"
)

// SignatureHeader is the header Stripe signs webhook deliveries with.
const SignatureHeader = "Stripe-Signature"

// Completion is a finished subscription checkout.
type Completion struct {
	SessionID string
	UserID    string // client reference set when the session was created
	Phone     string // phone collected at checkout, as typed by the customer
}

// ParseCompletion verifies payload against the signing secret and
// extracts a Completion. ok is false for well-signed events of any other
// type. A bad signature yields an AuthenticationError.
func ParseCompletion(payload []byte, header, secret string) (c Completion, ok bool, err error) {
	event, err := webhook.ConstructEventWithOptions(payload, header, secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return Completion{}, false, &model.AuthenticationError{Reason: err.Error()}
	}
	if event.Type != stripe.EventTypeCheckoutSessionCompleted {
		return Completion{}, false, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return Completion{}, false, fmt.Errorf("decoding checkout session: %w", err)
	}

	c = Completion{
		SessionID: sess.ID,
		UserID:    sess.ClientReferenceID,
	}
	if sess.CustomerDetails != nil {
		c.Phone = sess.CustomerDetails.Phone
	}
	if c.Phone == "" {
		c.Phone = sess.Metadata["phone"]
	}
	return c, true, nil
}
