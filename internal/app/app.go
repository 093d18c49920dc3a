// Package app wires configuration, persistence, channels and handlers
// into a running service.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nhle/wa-assistant/internal/ai"
	"github.com/nhle/wa-assistant/internal/billing"
	"github.com/nhle/wa-assistant/internal/command"
	"github.com/nhle/wa-assistant/internal/credential"
	"github.com/nhle/wa-assistant/internal/model"
	"github.com/nhle/wa-assistant/internal/notify"
	"github.com/nhle/wa-assistant/internal/reminder"
	"github.com/nhle/wa-assistant/internal/store"
	"github.com/nhle/wa-assistant/internal/webhook"
	"github.com/nhle/wa-assistant/internal/whatsapp"
)

const shutdownTimeout = 10 * time.Second

// Secrets are the credentials resolved outside the config file.
type Secrets struct {
	TwilioAuthToken     string
	AnthropicAPIKey     string
	StripeSecretKey     string
	StripeWebhookSecret string
}

// LoadSecrets resolves every secret through the credential package.
func LoadSecrets() (Secrets, error) {
	var s Secrets
	var errs []error
	for key, dst := range map[string]*string{
		credential.TwilioAuthToken:     &s.TwilioAuthToken,
		credential.AnthropicAPIKey:     &s.AnthropicAPIKey,
		credential.StripeSecretKey:     &s.StripeSecretKey,
		credential.StripeWebhookSecret: &s.StripeWebhookSecret,
	} {
		v, err := credential.Lookup(key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		*dst = v
	}
	return s, errors.Join(errs...)
}

// App holds the assembled service.
type App struct {
	Config    *model.AppConfig
	Store     *store.SQLiteStore
	Sink      notify.Sink
	Router    *command.Router
	Sweeper   *reminder.Sweeper
	Scheduler *reminder.Scheduler
	Handler   http.Handler

	logger *slog.Logger
}

// New opens the database and builds every component from cfg. Missing
// channel credentials degrade to a logging sink; a missing Stripe key or
// webhook secret disables the subscription gate.
func New(cfg *model.AppConfig, secrets Secrets, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	a := &App{Config: cfg, Store: s, logger: logger}
	a.Sink = a.buildSink(secrets)

	var opts []command.Option
	opts = append(opts, command.WithLogger(logger))
	if secrets.AnthropicAPIKey != "" {
		opts = append(opts, command.WithResponder(
			ai.New(secrets.AnthropicAPIKey, cfg.AI.Model, cfg.AI.MaxTokens, cfg.Location())))
	} else {
		logger.Info("app: no Anthropic key; freeform messages get the menu hint")
	}

	billingOn := cfg.Billing.Enabled
	if billingOn && secrets.StripeSecretKey == "" {
		logger.Warn("app: billing enabled but no Stripe secret key; subscription gate is off")
		billingOn = false
	}
	if billingOn && secrets.StripeWebhookSecret == "" {
		// Without the webhook nobody could ever leave the gate.
		logger.Warn("app: billing enabled but no Stripe webhook secret; subscription gate is off",
			"key", credential.EnvName(credential.StripeWebhookSecret))
		billingOn = false
	}
	if billingOn {
		opts = append(opts, command.WithCheckout(
			billing.NewCheckout(secrets.StripeSecretKey, cfg.Billing.PriceID, cfg.Twilio.From)))
	}

	a.Router = command.New(s, s, a.Sink, command.Config{
		Location:            cfg.Location(),
		AgendaHorizon:       cfg.AgendaHorizon(),
		AgendaLimit:         cfg.Agenda.Limit,
		RequireSubscription: billingOn,
		CheckoutTemplate:    cfg.Templates.CheckoutLink,
	}, opts...)

	a.Sweeper = reminder.NewSweeper(s, a.Sink, cfg.Templates.FirstContact, logger)
	a.Scheduler = reminder.NewScheduler(a.Sweeper, cfg.Reminder.Interval, cfg.Reminder.SweepTimeout, logger)

	a.Handler = webhook.NewMux(a.routes(secrets, billingOn), logger)
	return a, nil
}

func (a *App) buildSink(secrets Secrets) notify.Sink {
	cfg := a.Config
	if cfg.Twilio.AccountSID == "" || secrets.TwilioAuthToken == "" {
		a.logger.Warn("app: Twilio credentials missing; outbound messages are only logged")
		return notify.LogSink{Logger: a.logger}
	}
	return whatsapp.NewSender(cfg.Twilio.AccountSID, secrets.TwilioAuthToken, cfg.Twilio.From, a.logger)
}

func (a *App) routes(secrets Secrets, billingOn bool) webhook.Routes {
	var verifier webhook.SignatureVerifier
	if secrets.TwilioAuthToken != "" {
		verifier = whatsapp.NewVerifier(secrets.TwilioAuthToken)
	} else {
		a.logger.Warn("app: no Twilio auth token; webhook signatures are not verified")
	}

	routes := webhook.Routes{
		WhatsApp: webhook.NewWhatsAppHandler(
			a.Router, verifier, whatsapp.SignatureHeader, a.Config.Server.PublicURL, a.logger),
	}
	if billingOn {
		routes.Stripe = webhook.NewStripeHandler(
			a.Store, a.Sink, secrets.StripeWebhookSecret, a.Config.Templates.SubscriptionComplete, a.logger)
	}
	return routes
}

// Serve runs the HTTP server, and the reminder scheduler when enabled,
// until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	if a.Config.Reminder.Enabled {
		a.Scheduler.Start(ctx)
		defer a.Scheduler.Stop()
	}

	srv := &http.Server{
		Addr:              a.Config.Server.Addr,
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("app: listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	a.logger.Info("app: stopped")
	return nil
}

// RemindOnce runs a single reminder sweep for now, for use from an
// external cron.
func (a *App) RemindOnce(ctx context.Context, now time.Time) (reminder.Report, error) {
	ctx, cancel := context.WithTimeout(ctx, a.Config.Reminder.SweepTimeout)
	defer cancel()
	return a.Sweeper.Sweep(ctx, now)
}

// Close releases the store.
func (a *App) Close() error {
	return a.Store.Close()
}
