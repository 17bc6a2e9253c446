// Package webhook delivers signed workspace event payloads to registered
// endpoints.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Signer provides HMAC-SHA256 signing and verification over serialized
// payload bodies. Each webhook carries its own secret.
type Signer struct {
	secret []byte
}

// NewSigner creates a new Signer with the given secret string.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign computes the hex-encoded HMAC-SHA256 of the body.
func (s *Signer) Sign(body []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a signature in constant time.
func (s *Signer) Verify(body []byte, signature string) bool {
	expected := s.Sign(body)
	return hmac.Equal([]byte(expected), []byte(signature))
}
