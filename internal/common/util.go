package common

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// OpaqueTokenBytes is the entropy of refresh and verification tokens (256 bits).
const OpaqueTokenBytes = 32

// RandomBytes reads n bytes from crypto/rand.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("read random: %w", err)
	}
	return b, nil
}

// NewOpaqueToken returns OpaqueTokenBytes random bytes, hex encoded.
// The token carries no structure; all meaning lives in the ledger row.
func NewOpaqueToken() (string, error) {
	b, err := RandomBytes(OpaqueTokenBytes)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Wipe zeroes a password buffer once it is no longer needed.
func Wipe(b []byte) {
	clear(b)
}
