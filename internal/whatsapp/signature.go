package whatsapp

import (
	"net/url"

	twclient "github.com/twilio/twilio-go/client"
)

// SignatureHeader carries Twilio's request signature.
const SignatureHeader = "X-Twilio-Signature"

// Verifier checks that a webhook call was signed with the account's auth
// token.
type Verifier struct {
	validator twclient.RequestValidator
}

// NewVerifier creates a Verifier for authToken.
func NewVerifier(authToken string) *Verifier {
	return &Verifier{validator: twclient.NewRequestValidator(authToken)}
}

// Verify reports whether signature matches the full public URL and the
// POSTed form. Multi-valued fields use their first value, as Twilio
// never repeats webhook parameters.
func (v *Verifier) Verify(publicURL string, form url.Values, signature string) bool {
	if signature == "" {
		return false
	}
	params := make(map[string]string, len(form))
	for k, vs := range form {
		if len(vs) > 0 {
			params[k] = vs[0]
		}
	}
	return v.validator.Validate(publicURL, params, signature)
}
