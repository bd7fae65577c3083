// File: internal/infra/security/signature.go
package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// SignatureVerifier checks provider webhook signatures.
// Signature format: base64(HMAC-SHA256(secret, rawBody)).
type SignatureVerifier struct{}

func NewSignatureVerifier() *SignatureVerifier { return &SignatureVerifier{} }

// Sign computes the signature the provider would send for rawBody.
func (v *SignatureVerifier) Sign(rawBody []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches rawBody under secret.
// The body must be the exact bytes received; re-encoded JSON will not match.
// An empty secret or signature never verifies.
func (v *SignatureVerifier) Verify(rawBody []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected := v.Sign(rawBody, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}
