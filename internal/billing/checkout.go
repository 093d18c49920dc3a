// Package billing creates subscription checkouts and interprets the
// provider's completion events.
package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/checkout/session"

	"github.com/nhle/wa-assistant/internal/model"
)

// checkoutURLPrefix is stripped from session URLs. The checkout-link
// template already carries it as the button's base URL.
const checkoutURLPrefix = "https://checkout.stripe.com/c/pay/"

// sessionCreator is the subset of the Stripe checkout session client used here.
type sessionCreator interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// Checkout opens Stripe subscription checkouts for WhatsApp users.
type Checkout struct {
	sessions sessionCreator
	priceID  string
	returnTo string
}

// NewCheckout returns a Checkout for the given secret key and price.
// botNumber is the assistant's WhatsApp number; success and cancel both
// return the user to the chat with it.
func NewCheckout(secretKey, priceID, botNumber string) *Checkout {
	sc := &session.Client{B: stripe.GetBackend(stripe.APIBackend), Key: secretKey}
	return newCheckout(sc, priceID, botNumber)
}

func newCheckout(sessions sessionCreator, priceID, botNumber string) *Checkout {
	return &Checkout{
		sessions: sessions,
		priceID:  priceID,
		returnTo: ChatURL(botNumber),
	}
}

// ChatURL returns the wa.me deep link for a WhatsApp number in any of
// the forms "whatsapp:+1 415...", "+1415..." or "1415...".
func ChatURL(number string) string {
	var sb strings.Builder
	sb.WriteString("https://wa.me/")
	for _, r := range number {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// CheckoutPath creates a subscription checkout session for user and
// returns its URL without the hosted checkout prefix.
func (c *Checkout) CheckoutPath(ctx context.Context, user model.User) (string, error) {
	if c.priceID == "" {
		return "", errors.New("billing: no price configured")
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(c.priceID), Quantity: stripe.Int64(1)},
		},
		SuccessURL:        stripe.String(c.returnTo),
		CancelURL:         stripe.String(c.returnTo),
		ClientReferenceID: stripe.String(user.ID),
		PhoneNumberCollection: &stripe.CheckoutSessionPhoneNumberCollectionParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("phone", user.Phone)

	sess, err := c.sessions.New(params)
	if err != nil {
		return "", fmt.Errorf("creating checkout session for user %s: %w", user.ID, err)
	}
	return strings.TrimPrefix(sess.URL, checkoutURLPrefix), nil
}
