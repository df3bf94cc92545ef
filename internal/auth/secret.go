// Package auth holds the credential helpers for player authentication.
// Secrets are compared exactly as stored; hashing them at rest is a known
// open item documented in DESIGN.md rather than silently introduced here.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
)

// SecretEqual reports whether two secrets match, in constant time and with
// no normalization whatsoever.
func SecretEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// NewSecret mints a random URL-safe secret for clients that ask the server
// to choose one.
func NewSecret() (string, error) {
	var buf [24]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf[:]), nil
}
