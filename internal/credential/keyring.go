// Package credential resolves secrets from the environment or the system
// keyring.
package credential

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/99designs/keyring"
)

const serviceName = "wa-assistant"

// Keys of the secrets the service needs.
const (
	TwilioAuthToken     = "twilio_auth_token"
	AnthropicAPIKey     = "anthropic_api_key"
	StripeSecretKey     = "stripe_secret_key"
	StripeWebhookSecret = "stripe_webhook_secret"
)

// Keys lists every known secret key, for the CLI.
var Keys = []string{TwilioAuthToken, AnthropicAPIKey, StripeSecretKey, StripeWebhookSecret}

// opener is swapped in tests.
var opener = openKeyring

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/wa-assistant/credentials",
		FilePasswordFunc:         filePassword,
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// filePassword unlocks the file backend with WA_KEYRING_PASSWORD when set.
func filePassword(prompt string) (string, error) {
	if pw := os.Getenv("WA_KEYRING_PASSWORD"); pw != "" {
		return pw, nil
	}
	return keyring.FixedStringPrompt("wa-assistant-file-key")(prompt)
}

// EnvName returns the environment variable consulted for key,
// e.g. WA_TWILIO_AUTH_TOKEN.
func EnvName(key string) string {
	return "WA_" + strings.ToUpper(key)
}

// Lookup returns the secret for key from its environment variable, then
// from the keyring. A secret present in neither yields "" and no error.
func Lookup(key string) (string, error) {
	if v := strings.TrimSpace(os.Getenv(EnvName(key))); v != "" {
		return v, nil
	}

	v, err := Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", nil
	}
	return v, err
}

// Get retrieves a credential value by key from the system keyring.
func Get(key string) (string, error) {
	ring, err := opener()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// Set stores a credential value by key in the system keyring.
func Set(key string, value string) error {
	ring, err := opener()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(value),
		Label: serviceName + " " + key,
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// Delete removes a credential by key from the system keyring.
func Delete(key string) error {
	ring, err := opener()
	if err != nil {
		return err
	}

	err = ring.Remove(key)
	if err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}
