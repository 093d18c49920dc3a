package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`

	// PublicURL is the externally visible base URL. Twilio signs the full
	// webhook URL, so it must match what the provider calls.
	PublicURL string `mapstructure:"public_url" yaml:"public_url"`
}

// DatabaseConfig holds the SQLite location.
type DatabaseConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// LogConfig selects slog level and handler.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// TwilioConfig holds the WhatsApp sender account. The auth token is a
// secret and is resolved through the credential package, not this file.
type TwilioConfig struct {
	AccountSID string `mapstructure:"account_sid" yaml:"account_sid"`
	From       string `mapstructure:"from" yaml:"from"`
}

// TemplateConfig maps message roles to pre-approved content template ids.
type TemplateConfig struct {
	FirstContact         string `mapstructure:"first_contact" yaml:"first_contact"`
	CheckoutLink         string `mapstructure:"checkout_link" yaml:"checkout_link"`
	SubscriptionComplete string `mapstructure:"subscription_complete" yaml:"subscription_complete"`
}

// ReminderConfig controls the in-process reminder sweep.
type ReminderConfig struct {
	Enabled      bool          `mapstructure:"enabled" yaml:"enabled"`
	Interval     time.Duration `mapstructure:"interval" yaml:"interval"`
	SweepTimeout time.Duration `mapstructure:"sweep_timeout" yaml:"sweep_timeout"`
}

// AgendaConfig controls the !agenda listing.
type AgendaConfig struct {
	// HorizonDays limits how far ahead !agenda looks. Zero means unbounded.
	HorizonDays int `mapstructure:"horizon_days" yaml:"horizon_days"`
	Limit       int `mapstructure:"limit" yaml:"limit"`
}

// BillingConfig holds the subscription provider settings. Secrets are
// resolved through the credential package.
type BillingConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	PriceID string `mapstructure:"price_id" yaml:"price_id"`
}

// AIConfig holds settings for the freeform responder.
type AIConfig struct {
	Model     string `mapstructure:"model" yaml:"model"`
	MaxTokens int    `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Server    ServerConfig   `mapstructure:"server" yaml:"server"`
	Database  DatabaseConfig `mapstructure:"database" yaml:"database"`
	Log       LogConfig      `mapstructure:"log" yaml:"log"`
	Timezone  string         `mapstructure:"timezone" yaml:"timezone"`
	Twilio    TwilioConfig   `mapstructure:"twilio" yaml:"twilio"`
	Templates TemplateConfig `mapstructure:"templates" yaml:"templates"`
	Reminder  ReminderConfig `mapstructure:"reminder" yaml:"reminder"`
	Agenda    AgendaConfig   `mapstructure:"agenda" yaml:"agenda"`
	Billing   BillingConfig  `mapstructure:"billing" yaml:"billing"`
	AI        AIConfig       `mapstructure:"ai" yaml:"ai"`
}

// Location resolves Timezone, falling back to UTC when it is unknown.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// AgendaHorizon returns the agenda look-ahead as a duration.
func (c *AppConfig) AgendaHorizon() time.Duration {
	return time.Duration(c.Agenda.HorizonDays) * 24 * time.Hour
}

// Validate checks the settings a running server cannot do without.
func (c *AppConfig) Validate() error {
	var errs []error
	if c.Twilio.AccountSID == "" {
		errs = append(errs, errors.New("twilio.account_sid is required"))
	}
	if c.Twilio.From == "" {
		errs = append(errs, errors.New("twilio.from is required"))
	}
	if c.Server.PublicURL == "" {
		errs = append(errs, errors.New("server.public_url is required"))
	}
	if c.Billing.Enabled && c.Billing.PriceID == "" {
		errs = append(errs, errors.New("billing.price_id is required when billing is enabled"))
	}
	if c.Billing.Enabled && c.Templates.CheckoutLink == "" {
		errs = append(errs, errors.New("templates.checkout_link is required when billing is enabled"))
	}
	if c.Reminder.Enabled && c.Templates.FirstContact == "" {
		errs = append(errs, errors.New("templates.first_contact is required when reminders are enabled"))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	return errors.Join(errs...)
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/wa-assistant/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "wa-assistant", "config.yaml")
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.public_url", "")
	v.SetDefault("database.path", "wa-assistant.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("timezone", "America/Sao_Paulo")
	v.SetDefault("twilio.account_sid", "")
	v.SetDefault("twilio.from", "")
	v.SetDefault("templates.first_contact", "")
	v.SetDefault("templates.checkout_link", "")
	v.SetDefault("templates.subscription_complete", "HX5c3e30f24906a42a3c5218e2e35c59f4")
	v.SetDefault("reminder.enabled", true)
	v.SetDefault("reminder.interval", time.Minute)
	v.SetDefault("reminder.sweep_timeout", 50*time.Second)
	v.SetDefault("agenda.horizon_days", 30)
	v.SetDefault("agenda.limit", 20)
	v.SetDefault("billing.enabled", false)
	v.SetDefault("billing.price_id", "")
	v.SetDefault("ai.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("ai.max_tokens", 512)
}

// NewViper returns a Viper instance with defaults and WA_-prefixed
// environment overrides, e.g. WA_TWILIO_FROM for twilio.from.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix("WA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig reads configuration from the given YAML file path into v.
// A missing file is not an error; defaults and environment apply.
func LoadConfig(v *viper.Viper, path string) (*AppConfig, error) {
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			var pathErr *os.PathError
			if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Reminder.Interval <= 0 {
		cfg.Reminder.Interval = time.Minute
	}
	if cfg.Reminder.SweepTimeout <= 0 {
		cfg.Reminder.SweepTimeout = 50 * time.Second
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("server", cfg.Server)
	v.Set("database", cfg.Database)
	v.Set("log", cfg.Log)
	v.Set("timezone", cfg.Timezone)
	v.Set("twilio", cfg.Twilio)
	v.Set("templates", cfg.Templates)
	v.Set("reminder", cfg.Reminder)
	v.Set("agenda", cfg.Agenda)
	v.Set("billing", cfg.Billing)
	v.Set("ai", cfg.AI)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
