package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// GenerateSignature creates HMAC-SHA256 signature
func GenerateSignature(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature validates HMAC-SHA256 signature
func VerifySignature(payload []byte, signature, secret string) bool {
	expected := GenerateSignature(payload, secret)
	return hmac.Equal([]byte(signature), []byte(expected))
}

// SignLink returns the expiry (unix seconds) and signature for a download key.
func SignLink(key string, expires time.Time, secret string) (string, string) {
	exp := strconv.FormatInt(expires.Unix(), 10)
	return exp, GenerateSignature([]byte(key+"|"+exp), secret)
}

// VerifyLink checks a signed download link against the current time.
func VerifyLink(key, expires, signature, secret string, now time.Time) error {
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad expiry", ErrInvalidSignature)
	}
	if !VerifySignature([]byte(key+"|"+expires), signature, secret) {
		return ErrInvalidSignature
	}
	if now.Unix() > exp {
		return ErrLinkExpired
	}
	return nil
}
