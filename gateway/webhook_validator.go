package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// WebhookValidator authenticates inbound vendor notifications. The vendor
// signs the raw request body with HMAC-SHA256 using the shared webhook
// secret and sends the hex digest in the Asaas-Signature header.
type WebhookValidator struct {
	secret string
}

func NewWebhookValidator(secret string) *WebhookValidator {
	return &WebhookValidator{secret: secret}
}

// Enabled reports whether a secret is configured. Without one, validation
// cannot be performed and the caller decides whether to accept traffic.
func (v *WebhookValidator) Enabled() bool {
	return v.secret != ""
}

// ValidateSignature checks the signature header against the raw body using
// a constant-time comparison. The header is decoded before comparing so the
// hex case the vendor happens to send does not matter.
func (v *WebhookValidator) ValidateSignature(signature string, body []byte) bool {
	if v.secret == "" || signature == "" {
		return false
	}

	sig, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(v.secret))
	mac.Write(body)

	return hmac.Equal(sig, mac.Sum(nil))
}
