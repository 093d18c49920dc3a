package whatsapp

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/url"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

// sign computes Twilio's documented signature: HMAC-SHA1 over the URL
// followed by every POST field name and value sorted by name.
func sign(token, fullURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	data := fullURL
	for _, k := range keys {
		data += k + form.Get(k)
	}
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestVerify(t *testing.T) {
	const token = "12345"
	const endpoint = "https://example.com/webhook/whatsapp"
	form := url.Values{
		"From":        {"whatsapp:+5579988064629"},
		"ProfileName": {"Test User"},
		"WaId":        {"5579988064629"},
		"Body":        {"!menu"},
		"To":          {"whatsapp:+14155238886"},
	}
	v := NewVerifier(token)

	assert.True(t, v.Verify(endpoint, form, sign(token, endpoint, form)))
	assert.False(t, v.Verify(endpoint, form, ""))
	assert.False(t, v.Verify(endpoint, form, sign("other", endpoint, form)))

	tampered := url.Values{}
	for k, vs := range form {
		tampered[k] = vs
	}
	tampered.Set("Body", "!agenda")
	assert.False(t, v.Verify(endpoint, tampered, sign(token, endpoint, form)))
}
