package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	InitJWT("unit-secret", time.Hour)

	token, expiresAt, err := GenerateJWT(42, "ops@example.com")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	claims, err := ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "ops@example.com", claims.Email)

	_, err = ValidateJWT(token + "x")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSignedLinks(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	key := "exchange/exports/job-1/catalog_20240501_120000.xml"

	exp, sig := SignLink(key, now.Add(time.Hour), "s3cr3t")

	assert.NoError(t, VerifyLink(key, exp, sig, "s3cr3t", now))
	assert.ErrorIs(t, VerifyLink(key, exp, sig, "s3cr3t", now.Add(2*time.Hour)), ErrLinkExpired)
	assert.ErrorIs(t, VerifyLink(key+"x", exp, sig, "s3cr3t", now), ErrInvalidSignature)
	assert.ErrorIs(t, VerifyLink(key, "abc", sig, "s3cr3t", now), ErrInvalidSignature)
}

func TestGenerateExchangeKey(t *testing.T) {
	a, err := GenerateExchangeKey()
	require.NoError(t, err)
	b, err := GenerateExchangeKey()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Len(t, a, len("sx_live_")+64)
}
