package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// GenerateAPIKey generates a random API key with the given prefix.
// Format: prefix_randomhex
// Example: sx_live_a1b2c3d4e5f6...
func GenerateAPIKey(prefix string) (string, error) {
	b := make([]byte, 32) // 64 char hex
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s_%s", prefix, hex.EncodeToString(b)), nil
}

// GenerateExchangeKey generates a key for an ERP integration: sx_live_xxx
func GenerateExchangeKey() (string, error) {
	return GenerateAPIKey("sx_live")
}

// GenerateClientID generates the public identifier sent as X-Client-Id.
func GenerateClientID() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "erp_" + hex.EncodeToString(b), nil
}
