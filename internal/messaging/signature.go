// signature.go - X-Twilio-Signature check for inbound webhooks

package messaging

import (
	"net/url"

	"github.com/twilio/twilio-go/client"
)

// SignatureHeader carries the request signature on Twilio webhooks
const SignatureHeader = "X-Twilio-Signature"

// ValidSignature reports whether signature was produced by Twilio for this
// url and form. Twilio posts one value per field, so only the first is signed.
func ValidSignature(authToken, fullURL string, form url.Values, signature string) bool {
	if authToken == "" || signature == "" {
		return false
	}
	params := make(map[string]string, len(form))
	for k := range form {
		params[k] = form.Get(k)
	}
	validator := client.NewRequestValidator(authToken)
	return validator.Validate(fullURL, params, signature)
}
