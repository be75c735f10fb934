package identity

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// randomBytes is the entropy behind state and nonce values. 32 bytes encode to
// 43 base64url characters.
const randomBytes = 32

// generateState returns a random base64url value for the state or nonce
// parameter.
func generateState() (string, error) {
	b := make([]byte, randomBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random value: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
