package webhook

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/nhle/wa-assistant/internal/command"
	"github.com/nhle/wa-assistant/internal/model"
)

// WhatsAppPath is where Twilio posts inbound WhatsApp messages.
const WhatsAppPath = "/webhook/whatsapp"

// emptyTwiML acknowledges a message without replying inline. Replies go
// out through the REST API instead.
const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response/>`

// InboundHandler processes one inbound message.
type InboundHandler interface {
	Handle(ctx context.Context, in model.Inbound) (*command.Result, error)
}

// SignatureVerifier checks a provider signature over a form post.
type SignatureVerifier interface {
	Verify(fullURL string, form url.Values, signature string) bool
}

// WhatsAppHandler receives Twilio's inbound message webhook.
type WhatsAppHandler struct {
	router    InboundHandler
	verifier  SignatureVerifier
	header    string
	publicURL string
	logger    *slog.Logger
}

// NewWhatsAppHandler returns a handler that verifies signatures from
// header against publicURL joined with the request path. A nil verifier
// disables verification, which only makes sense in local development.
func NewWhatsAppHandler(
	router InboundHandler,
	verifier SignatureVerifier,
	header, publicURL string,
	logger *slog.Logger,
) *WhatsAppHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WhatsAppHandler{
		router:    router,
		verifier:  verifier,
		header:    header,
		publicURL: strings.TrimRight(publicURL, "/"),
		logger:    logger,
	}
}

func (h *WhatsAppHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form", http.StatusBadRequest)
		return
	}

	if err := h.authenticate(r); err != nil {
		h.logger.Warn("webhook: rejected whatsapp request", "error", err)
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	in := model.Inbound{
		From: r.PostForm.Get("From"),
		Name: r.PostForm.Get("ProfileName"),
		WaID: r.PostForm.Get("WaId"),
		Body: r.PostForm.Get("Body"),
		To:   r.PostForm.Get("To"),
	}

	res, err := h.router.Handle(r.Context(), in)
	switch {
	case err == nil:
	case model.IsValidationError(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case model.IsDeliveryError(err):
		// The command already ran; a provider retry would run it again.
		h.logger.Error("webhook: reply delivery failed", "from", in.From, "error", err)
	default:
		h.logger.Error("webhook: handling message failed", "from", in.From, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if res != nil && res.User != nil {
		h.logger.Info("webhook: message handled",
			"user", res.User.ID, "intent", res.Intent.String(), "gated", res.Gated)
	}

	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(emptyTwiML))
}

func (h *WhatsAppHandler) authenticate(r *http.Request) error {
	if h.verifier == nil {
		return nil
	}
	sig := r.Header.Get(h.header)
	if sig == "" {
		return &model.AuthenticationError{Reason: "missing " + h.header}
	}
	if !h.verifier.Verify(h.publicURL+r.URL.RequestURI(), r.PostForm, sig) {
		return &model.AuthenticationError{Reason: "signature mismatch"}
	}
	return nil
}
