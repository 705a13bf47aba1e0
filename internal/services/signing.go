package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SigningService authenticates proxy callback bodies. The broker signs each
// request body with a shared secret; callbacks with a missing or wrong
// signature never reach a handler.
type SigningService struct {
	secret string
}

// NewSigningService creates a signing service with the shared secret.
func NewSigningService(secret string) *SigningService {
	return &SigningService{secret: secret}
}

// SignPayload computes the hex HMAC-SHA256 signature of a request body.
func (s *SigningService) SignPayload(payload []byte) string {
	h := hmac.New(sha256.New, []byte(s.secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// ValidateSignature checks a presented signature in constant time.
func (s *SigningService) ValidateSignature(payload []byte, signature string) bool {
	expected := s.SignPayload(payload)
	return hmac.Equal([]byte(signature), []byte(expected))
}
