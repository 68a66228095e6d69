package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"
)

// tokenBytes is the entropy of generated secrets. 32 bytes base64-encodes
// to 44 characters, comfortably above brute-force range.
const tokenBytes = 32

// TokenSource generates high-entropy secrets from an injectable random
// source. Production code passes nil to get crypto/rand; tests can inject
// a deterministic reader. There is no non-cryptographic fallback.
type TokenSource struct {
	reader io.Reader
}

// NewTokenSource creates a token source. A nil reader selects crypto/rand.
func NewTokenSource(reader io.Reader) *TokenSource {
	if reader == nil {
		reader = rand.Reader
	}
	return &TokenSource{reader: reader}
}

// Token returns a base64 URL-encoded random value suitable for OAuth state
// parameters and session tokens.
func (ts *TokenSource) Token() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := io.ReadFull(ts.reader, b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// GenerateSecureToken creates a cryptographically secure random token using
// the default crypto/rand source.
func GenerateSecureToken() (string, error) {
	return NewTokenSource(nil).Token()
}

// ConstantTimeEquals compares two secrets without leaking the position of
// the first mismatching byte.
func ConstantTimeEquals(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
