package session

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// tokenBytes is the number of random bytes per token: 256 bits of entropy.
const tokenBytes = 32

// GenerateToken returns a cryptographically random, URL-safe bearer token.
// It fails only if the local entropy source is exhausted, which is fatal for
// the caller.
func GenerateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("reading entropy for session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
