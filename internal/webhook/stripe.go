package webhook

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/nhle/wa-assistant/internal/billing"
	"github.com/nhle/wa-assistant/internal/model"
	"github.com/nhle/wa-assistant/internal/notify"
	"github.com/nhle/wa-assistant/internal/store"
)

// StripePath is where Stripe posts billing events.
const StripePath = "/webhook/stripe"

// StripeHandler marks users subscribed when their checkout completes.
type StripeHandler struct {
	users    store.UserStore
	sink     notify.Sink
	secret   string
	template string
	logger   *slog.Logger
}

// NewStripeHandler returns a handler verifying events with secret. On
// completion the user receives the template welcome message, unless
// template is empty.
func NewStripeHandler(
	users store.UserStore,
	sink notify.Sink,
	secret, template string,
	logger *slog.Logger,
) *StripeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StripeHandler{
		users:    users,
		sink:     sink,
		secret:   secret,
		template: template,
		logger:   logger,
	}
}

func (h *StripeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "unreadable body", http.StatusBadRequest)
		return
	}

	c, ok, err := billing.ParseCompletion(payload, r.Header.Get(billing.SignatureHeader), h.secret)
	if err != nil {
		if model.IsAuthError(err) {
			h.logger.Warn("webhook: rejected stripe event", "error", err)
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := h.complete(r.Context(), c); err != nil {
		if model.IsNotFound(err) || model.IsValidationError(err) {
			// Unknown customer; retrying will not help.
			h.logger.Warn("webhook: checkout for unknown user", "session", c.SessionID, "error", err)
			w.WriteHeader(http.StatusOK)
			return
		}
		h.logger.Error("webhook: completing subscription failed", "session", c.SessionID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *StripeHandler) complete(ctx context.Context, c billing.Completion) error {
	user, err := h.resolve(ctx, c)
	if err != nil {
		return err
	}

	if user.Subscribed {
		// Stripe redelivers events; the welcome went out the first time.
		h.logger.Info("webhook: user already subscribed", "user", user.ID, "session", c.SessionID)
		return nil
	}

	if err := h.users.SetSubscribed(ctx, user.ID, true); err != nil {
		return fmt.Errorf("subscribing user %s: %w", user.ID, err)
	}
	h.logger.Info("webhook: user subscribed", "user", user.ID, "session", c.SessionID)

	if h.template == "" || h.sink == nil {
		return nil
	}
	msg := notify.SubscriptionComplete(h.template, *user)
	if err := notify.Deliver(ctx, h.sink, user.Phone, msg); err != nil {
		// The subscription is recorded; only the welcome is lost.
		h.logger.Error("webhook: welcome delivery failed", "user", user.ID, "error", err)
	}
	return nil
}

// resolve finds the subscriber by client reference, then by phone.
func (h *StripeHandler) resolve(ctx context.Context, c billing.Completion) (*model.User, error) {
	if c.UserID != "" {
		user, err := h.users.GetUser(ctx, c.UserID)
		if err == nil || !model.IsNotFound(err) {
			return user, err
		}
	}
	phone, err := model.CanonicalPhone(c.Phone)
	if err != nil {
		return nil, err
	}
	return h.users.GetUserByPhone(ctx, phone)
}
